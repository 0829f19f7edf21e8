// Package sim is the configurable fake broker. It exists to exercise the
// execution loop's failure handling (rejects, unsolicited cancels, partial
// fills, kill switch) deterministically, without a live exchange.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/metrics"
	"github.com/soumyarai2050/Flux-sub002/pkg/id"
)

var (
	ErrKillSwitch     = fmt.Errorf("kill switch engaged")
	ErrDuplicateOrder = fmt.Errorf("order already exists")
	ErrUnknownOrder   = fmt.Errorf("order not found")
)

type simOrder struct {
	req         broker.NewOrderRequest
	ackedQty    float64
	filledQty   float64
	acked       bool
	open        bool
	cxlRejArmed bool
}

// Engine implements broker.TradingLink against the regex-matched rule set.
// All responses are emitted synchronously within the placing call, so tests
// observe a deterministic event sequence.
type Engine struct {
	mu              sync.Mutex
	cfg             *Config
	listener        broker.Listener
	ksStore         KillSwitchStore
	log             zerolog.Logger
	killSwitch      bool
	internalRejects int
	counters        map[string]int
	orders          map[string]*simOrder
	now             func() time.Time
}

func NewEngine(cfg *Config, ks KillSwitchStore, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		ksStore:  ks,
		log:      log.With().Str("component", "sim").Logger(),
		counters: make(map[string]int),
		orders:   make(map[string]*simOrder),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetListener registers the broker-response consumer. Events emitted before
// a listener is set are dropped.
func (e *Engine) SetListener(l broker.Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

// ReloadConfig swaps the rule set; in-flight per-symbol counters are kept.
func (e *Engine) ReloadConfig(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	e.log.Info().Str("path", path).Msg("sim config reloaded")
	return nil
}

// nextIsSpecial advances the per-symbol order counter through the repeating
// N-normal / M-special cycle and reports which phase this order falls in.
func (e *Engine) nextIsSpecial(symbol string, rule Rule) bool {
	if !rule.specialCycle() {
		return false
	}
	cycle := rule.ContinuesOrderCount + rule.ContinuesSpecialOrderCount
	pos := e.counters[symbol] % cycle
	e.counters[symbol]++
	return pos >= rule.ContinuesOrderCount
}

type emitted struct {
	updates []broker.OrderUpdate
	fills   []journal.FillRecord
}

func (em *emitted) update(req broker.NewOrderRequest, ev journal.OrderEvent, px, qty float64, ts time.Time) {
	em.updates = append(em.updates, broker.OrderUpdate{
		OrderID:    req.OrderID,
		StrategyID: req.StrategyID,
		Event:      ev,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Px:         px,
		Qty:        qty,
		Account:    req.Account,
		Time:       ts,
	})
}

func (em *emitted) fill(req broker.NewOrderRequest, px, qty float64, ts time.Time) {
	em.fills = append(em.fills, journal.FillRecord{
		FillID:     id.New(),
		OrderID:    req.OrderID,
		StrategyID: req.StrategyID,
		FillPx:     px,
		FillQty:    qty,
		FillSymbol: req.Symbol,
		FillSide:   req.Side,
		Account:    req.Account,
		FillTime:   ts,
	})
}

// dispatch delivers the collected events after the lock is released so the
// listener may safely read back through the cache.
func (e *Engine) dispatch(em emitted) {
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	if l == nil {
		return
	}
	for _, u := range em.updates {
		metrics.OrderEventsTotal.WithLabelValues(string(u.Event)).Inc()
		l.OnOrderUpdate(u)
	}
	for _, f := range em.fills {
		metrics.FillsTotal.WithLabelValues(f.FillSymbol, string(f.FillSide)).Inc()
		l.OnFill(f)
	}
}

func (e *Engine) PlaceNewOrder(ctx context.Context, req broker.NewOrderRequest) error {
	_ = ctx

	e.mu.Lock()
	ts := e.now()
	var em emitted

	if e.killSwitch {
		e.internalRejects++
		em.update(req, journal.OEIntRej, req.Px, req.Qty, ts)
		e.mu.Unlock()
		e.dispatch(em)
		return ErrKillSwitch
	}
	if _, ok := e.orders[req.OrderID]; ok {
		e.internalRejects++
		e.mu.Unlock()
		return ErrDuplicateOrder
	}

	o := &simOrder{req: req, open: true}
	e.orders[req.OrderID] = o
	rule := e.cfg.RuleFor(req.Symbol)
	special := e.nextIsSpecial(req.Symbol, rule)

	em.update(req, journal.OENew, req.Px, req.Qty, ts)

	switch {
	case !rule.SimulateReversePath:
		// No broker responses at all; the order stays UNACK.

	case special && rule.SimulateNewToRejectOrders:
		o.open = false
		em.update(req, journal.OERej, req.Px, req.Qty, ts)

	case special && rule.SimulateNewUnsolicitedCxlOrders:
		// Cancel arrives before any ack, out of the usual event order.
		o.open = false
		em.update(req, journal.OEUnsolCxl, req.Px, req.Qty, ts)

	case special && rule.SimulateAckToRejectOrders:
		e.ackLocked(o, rule, &em, ts)
		o.open = false
		em.update(req, journal.OEBrkRej, req.Px, req.Qty, ts)

	case special && rule.SimulateAckUnsolicitedCxlOrders:
		e.ackLocked(o, rule, &em, ts)
		o.open = false
		em.update(req, journal.OEUnsolCxl, req.Px, req.Qty, ts)

	case special && rule.SimulateAckToCxlRejOrders:
		// Ack normally but arm the sticky flag: the next cancel for this
		// order is rejected once.
		e.ackLocked(o, rule, &em, ts)
		o.cxlRejArmed = true

	default:
		e.ackLocked(o, rule, &em, ts)
		if !rule.SimulateAvoidFillAfterAck {
			e.fillLocked(o, rule, &em, ts)
		}
	}

	e.mu.Unlock()
	e.dispatch(em)
	return nil
}

// ackLocked emits the (possibly partial) OE_ACK.
func (e *Engine) ackLocked(o *simOrder, rule Rule, em *emitted, ts time.Time) {
	o.acked = true
	o.ackedQty = o.req.Qty * rule.AckPercent / 100
	em.update(o.req, journal.OEAck, o.req.Px, o.ackedQty, ts)
}

// fillLocked emits total_fill_count fill events scaled by fill_percent of
// the acked quantity.
func (e *Engine) fillLocked(o *simOrder, rule Rule, em *emitted, ts time.Time) {
	total := o.ackedQty * rule.FillPercent / 100
	if total <= 0 {
		return
	}
	per := total / float64(rule.TotalFillCount)
	for i := 0; i < rule.TotalFillCount; i++ {
		em.fill(o.req, o.req.Px, per, ts)
		o.filledQty += per
	}
	if o.filledQty >= o.req.Qty {
		o.open = false
	}
}

func (e *Engine) PlaceCancelOrder(ctx context.Context, req broker.CancelRequest) error {
	_ = ctx

	e.mu.Lock()
	ts := e.now()
	var em emitted

	o, ok := e.orders[req.OrderID]
	if !ok || !o.open {
		e.internalRejects++
		e.mu.Unlock()
		return fmt.Errorf("cancel %s: %w", req.OrderID, ErrUnknownOrder)
	}

	rule := e.cfg.RuleFor(o.req.Symbol)
	em.update(o.req, journal.OECxl, o.req.Px, o.req.Qty, ts)

	switch {
	case rule.AvoidCxlAckAfterCxlReq:
		// The cancel request is swallowed; no ack ever comes back.

	case o.cxlRejArmed:
		o.cxlRejArmed = false
		if rule.ForceFullyFill {
			// Corrective fill for the remainder before the reject lands.
			remaining := o.req.Qty - o.filledQty
			if remaining > 0 {
				em.fill(o.req, o.req.Px, remaining, ts)
				o.filledQty = o.req.Qty
				o.open = false
			}
		}
		em.update(o.req, journal.OECxlRej, o.req.Px, o.req.Qty, ts)

	default:
		o.open = false
		em.update(o.req, journal.OECxlAck, o.req.Px, o.req.Qty-o.filledQty, ts)
	}

	e.mu.Unlock()
	e.dispatch(em)
	return nil
}

func (e *Engine) PlaceAmendOrder(ctx context.Context, req broker.AmendRequest) error {
	_ = ctx

	e.mu.Lock()
	ts := e.now()
	var em emitted

	o, ok := e.orders[req.OrderID]
	if !ok {
		e.internalRejects++
		e.mu.Unlock()
		return fmt.Errorf("amend %s: %w", req.OrderID, ErrUnknownOrder)
	}
	if !o.open || !o.acked {
		em.update(o.req, journal.OEAmdRej, o.req.Px, o.req.Qty, ts)
		e.mu.Unlock()
		e.dispatch(em)
		return nil
	}
	if req.NewPx > 0 {
		o.req.Px = req.NewPx
	}
	if req.NewQty > 0 {
		o.req.Qty = req.NewQty
	}
	em.update(o.req, journal.OEAmdAck, o.req.Px, o.req.Qty, ts)

	e.mu.Unlock()
	e.dispatch(em)
	return nil
}

func (e *Engine) TriggerKillSwitch(ctx context.Context) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ksStore.Store(true); err != nil {
		return err
	}
	e.killSwitch = true
	e.log.Warn().Msg("kill switch engaged")
	return nil
}

func (e *Engine) RevokeKillSwitch(ctx context.Context) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ksStore.Store(false); err != nil {
		return err
	}
	e.killSwitch = false
	e.log.Warn().Msg("kill switch revoked, trading resumed")
	return nil
}

func (e *Engine) KillSwitchEngaged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killSwitch
}

func (e *Engine) InternalRejects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.internalRejects
}

// ReconcileKillSwitch aligns the persisted flag with the configured value at
// startup. Both outcomes are alerted: a matching value is an unexpected
// no-op, a mismatch means the flag had to be forced.
func (e *Engine) ReconcileKillSwitch(enabled bool) (changed bool, err error) {
	persisted, err := e.ksStore.Load()
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if persisted == enabled {
		e.killSwitch = persisted
		e.log.Warn().Bool("engaged", persisted).Msg("kill switch already matches configured value, no-op")
		return false, nil
	}
	if err := e.ksStore.Store(enabled); err != nil {
		return false, err
	}
	e.killSwitch = enabled
	e.log.Warn().Bool("engaged", enabled).Msg("kill switch forced to configured value")
	return true, nil
}
