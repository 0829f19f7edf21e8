// Package executor runs one decision loop per active strategy. The loop
// wakes on cache notifications, reads a consistent snapshot, runs the
// pre-trade controls and issues orders through the trading link.
package executor

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/metrics"
	"github.com/soumyarai2050/Flux-sub002/pkg/id"
	"github.com/soumyarai2050/Flux-sub002/risk"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// Loop return codes. Zero is exhaustion (graceful DONE), one is an operator
// or manager requested stop; anything else re-enters the loop.
const (
	codeDone         = 0
	codeOperatorStop = 1
	codePanic        = -2
)

// codeFatalEntry is returned without ever entering the loop when the pair
// strategy cannot be resolved.
const codeFatalEntry = -1

// ErrAlreadyDone is returned by a status patcher when the strategy was
// already DONE; the executor logs it as unexpected but not fatal.
var ErrAlreadyDone = errors.New("strategy already DONE")

// LedgerCounter answers the rolling-window ledger queries behind the pacing,
// cancel-rate, participation and residual checks.
type LedgerCounter interface {
	CountEventsSince(events []journal.OrderEvent, since time.Time) (int, error)
	CountStrategyEventsSince(strategyID string, events []journal.OrderEvent, since time.Time) (int, error)
	SumFillQtySince(symbol string, side market.Side, since time.Time) (float64, error)
}

// StatusPatcher applies the strategy's DONE self-transition upstream.
type StatusPatcher interface {
	PatchStratState(ctx context.Context, strategyID string, state stratcache.StratState) error
}

// Alerter surfaces strategy alerts to the operator.
type Alerter interface {
	Alert(strategyID, severity, msg string)
}

var rejectionEvents = []journal.OrderEvent{
	journal.OERej, journal.OEBrkRej, journal.OEExhRej, journal.OEIntRej,
}

var cancelRequestEvents = []journal.OrderEvent{journal.OECxl}

type Deps struct {
	Cache   *stratcache.StratCache
	Link    broker.TradingLink
	Events  broker.Listener
	Fx      *market.FxRateTable
	Limits  risk.OrderLimits
	Counter LedgerCounter
	Patcher StatusPatcher
	Alerter Alerter
	Log     zerolog.Logger
}

type StratExecutor struct {
	cache   *stratcache.StratCache
	link    broker.TradingLink
	events  broker.Listener
	fx      *market.FxRateTable
	limits  risk.OrderLimits
	counter LedgerCounter
	patcher StatusPatcher
	alerter Alerter
	log     zerolog.Logger
	stratID string
}

func New(d Deps) *StratExecutor {
	cfg, _, _ := d.Cache.Config()
	return &StratExecutor{
		cache:   d.Cache,
		link:    d.Link,
		events:  d.Events,
		fx:      d.Fx,
		limits:  d.Limits,
		counter: d.Counter,
		patcher: d.Patcher,
		alerter: d.Alerter,
		log:     d.Log.With().Str("component", "executor").Str("strategy", cfg.StrategyID).Logger(),
		stratID: cfg.StrategyID,
	}
}

// Run is the outer wrapper: it re-enters the inner loop on any code other
// than 0 or 1 immediately and indefinitely, so transient collaborator
// failures never kill the strategy. Only exhaustion (0) and a requested
// stop (1) exit.
func (x *StratExecutor) Run(ctx context.Context) int {
	if _, _, ok := x.cache.Config(); !ok {
		x.log.Error().Msg("cannot resolve pair strategy on entry")
		return codeFatalEntry
	}

	metrics.ActiveStrategies.Inc()
	defer metrics.ActiveStrategies.Dec()

	for {
		code := x.loop(ctx)
		switch code {
		case codeDone:
			x.markDone(ctx)
			return codeDone
		case codeOperatorStop:
			x.log.Info().Msg("executor stopping on request")
			return codeOperatorStop
		default:
			x.log.Error().Int("code", code).Msg("executor loop exited unexpectedly, re-entering")
		}
	}
}

func (x *StratExecutor) loop(ctx context.Context) (code int) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error().Any("panic", r).Msg("executor loop panicked")
			code = codePanic
		}
	}()

	for {
		// Stop is cooperative and only observed at loop top; an in-flight
		// cycle always completes first.
		if x.cache.Stopped() {
			x.cache.ClearConfig()
			return codeOperatorStop
		}

		select {
		case <-ctx.Done():
			return codeOperatorStop
		case <-x.cache.WakeCh():
			x.cache.DrainWakes()
		}
		metrics.ExecutorCyclesTotal.WithLabelValues(x.stratID).Inc()

		portfolio, ok := x.cache.PortfolioStatus()
		if !ok {
			x.log.Debug().Msg("portfolio status unavailable, skipping cycle")
			continue
		}

		cfg, _, ok := x.cache.Config()
		if !ok {
			continue
		}
		status, _, ok := x.cache.Status()
		if !ok || status.State != stratcache.StateActive {
			continue
		}

		// Cancels always run ahead of new-order evaluation.
		x.processCancels(ctx)

		brief, _, briefOK := x.cache.Brief()
		if !briefOK {
			x.log.Debug().Msg("strat brief unavailable, skipping cycle")
			continue
		}
		if brief.Exhausted(x.limits.MinOrderNotional) {
			x.log.Info().Msg("consumable notional exhausted on both sides")
			return codeDone
		}

		leg1TOB, leg2TOB, _, tobOK := x.cache.TopOfBook(time.Time{})
		if !tobOK {
			continue
		}

		fxRate, fxOK := x.fx.Get(cfg.FxPair)
		if !fxOK {
			x.log.Debug().Str("fx_pair", cfg.FxPair).Msg("fx rate unavailable, skipping cycle")
			continue
		}

		killed := portfolio.KillSwitch || x.link.KillSwitchEngaged()
		x.processManualOrders(ctx, cfg, brief, fxRate, killed)

		if killed {
			continue
		}

		x.evaluateSystematic(ctx, cfg, brief, leg1TOB, leg2TOB, fxRate)
	}
}

func (x *StratExecutor) processCancels(ctx context.Context) {
	for _, req := range x.cache.DequeueCancels() {
		brief, _, ok := x.cache.Brief()
		if ok {
			limits, _, _ := x.cache.Limits()
			snap, found := x.cache.OrderSnapshot(req.OrderID)
			qty := 0.0
			if found {
				qty = snap.Qty - snap.FilledQty
			}
			windowCancels := 0
			if x.counter != nil && limits.CancelRateWindow > 0 && limits.MaxCancelRate > 0 {
				n, err := x.counter.CountStrategyEventsSince(x.stratID, cancelRequestEvents,
					time.Now().UTC().Add(-limits.CancelRateWindow))
				if err != nil {
					// Cancels reduce exposure; a ledger failure never blocks them.
					x.log.Error().Err(err).Msg("rolling cancel count unavailable")
				} else {
					windowCancels = n
				}
			}
			if res := risk.EvaluateCancel(limits, brief.For(req.Side), qty, windowCancels); !res.Passed() {
				x.rejectInternally(req.OrderID, req.Symbol, req.Side, journal.OECxlExhRej, res)
				continue
			}
		}
		if err := x.link.PlaceCancelOrder(ctx, req); err != nil {
			x.log.Error().Err(err).Str("order_id", req.OrderID).Msg("cancel failed")
			x.alerter.Alert(x.stratID, journal.SeverityError, "cancel "+req.OrderID+" failed: "+err.Error())
		}
	}
}

func (x *StratExecutor) processManualOrders(ctx context.Context, cfg stratcache.PairStrategyConfig, brief stratcache.StratBrief, fxRate float64, killed bool) {
	for _, req := range x.cache.DequeueManualOrders() {
		if killed {
			x.log.Warn().Str("order_id", req.OrderID).Msg("manual order dropped, kill switch engaged")
			x.alerter.Alert(x.stratID, journal.SeverityWarning, "manual order dropped: kill switch engaged")
			continue
		}
		x.tryPlace(ctx, cfg, brief, req, fxRate)
		// Re-read the brief so consecutive manual orders see the consumed
		// budget.
		brief, _, _ = x.cache.Brief()
	}
}

// evaluateSystematic picks the leg whose accumulated notional is behind (or
// level) and tries an aggressive order at its top-of-book quote.
func (x *StratExecutor) evaluateSystematic(ctx context.Context, cfg stratcache.PairStrategyConfig, brief stratcache.StratBrief, leg1TOB, leg2TOB market.TopOfBook, fxRate float64) {
	n1 := x.filledNotional(cfg.Leg1)
	n2 := x.filledNotional(cfg.Leg2)

	leg, tob := cfg.Leg1, leg1TOB
	if n1 > n2 {
		leg, tob = cfg.Leg2, leg2TOB
	}

	quote := tob.AggressiveQuote(leg.Side)
	if quote.Px <= 0 || quote.Qty <= 0 {
		return
	}
	qty := quote.Qty
	if x.limits.MaxOrderQty > 0 && qty > x.limits.MaxOrderQty {
		qty = x.limits.MaxOrderQty
	}

	req := broker.NewOrderRequest{
		OrderID:    id.New(),
		StrategyID: x.stratID,
		Symbol:     leg.Symbol,
		Side:       leg.Side,
		Px:         quote.Px,
		Qty:        qty,
		Account:    cfg.Account,
	}
	x.tryPlace(ctx, cfg, brief, req, fxRate)
}

func (x *StratExecutor) filledNotional(leg stratcache.Leg) float64 {
	snap, ok := x.cache.SymbolSide(leg.Symbol, leg.Side)
	if !ok {
		return 0
	}
	return snap.TotalNotional
}

// tryPlace runs the full admission evaluation and, if every control passes,
// consumes the brief and sends the order. Manual and systematic orders share
// this path.
func (x *StratExecutor) tryPlace(ctx context.Context, cfg stratcache.PairStrategyConfig, brief stratcache.StratBrief, req broker.NewOrderRequest, fxRate float64) {
	intent := risk.NewOrderIntent{
		Symbol: req.Symbol,
		Side:   req.Side,
		Px:     req.Px,
		Qty:    req.Qty,
		Fx:     fxRate,
	}
	checkCtx, ok := x.buildCheckContext(cfg, brief, req)
	if !ok {
		return
	}

	result := risk.EvaluateNewOrder(intent, checkCtx)
	if !result.Passed() {
		x.log.Warn().
			Str("symbol", req.Symbol).Str("side", string(req.Side)).
			Float64("px", req.Px).Float64("qty", req.Qty).
			Str("failed", result.String()).
			Msg("order blocked by pre-trade controls")
		x.alerter.Alert(x.stratID, journal.SeverityWarning,
			"order blocked on "+req.Symbol+" "+string(req.Side)+": "+result.String())
		countCheckFailures(result)
		return
	}

	leg := cfg.LegFor(req.Symbol)
	x.cache.SetUnackLeg(leg, true)
	x.cache.ConsumeBrief(req.Side, intent.Notional(), req.Qty)

	if err := x.link.PlaceNewOrder(ctx, req); err != nil {
		x.cache.SetUnackLeg(leg, false)
		x.log.Error().Err(err).Str("order_id", req.OrderID).Msg("place order failed")
		x.alerter.Alert(x.stratID, journal.SeverityError, "place order failed: "+err.Error())
	}
}

// buildCheckContext gathers every admission input from one cache snapshot
// plus the ledger's rolling windows. A ledger failure skips the cycle; the
// next wake retries.
func (x *StratExecutor) buildCheckContext(cfg stratcache.PairStrategyConfig, brief stratcache.StratBrief, req broker.NewOrderRequest) (risk.NewOrderContext, bool) {
	limits, _, _ := x.cache.Limits()

	leg1TOB, leg2TOB, _, tobOK := x.cache.TopOfBook(time.Time{})
	var tob market.TopOfBook
	if tobOK {
		if cfg.LegFor(req.Symbol) == 2 {
			tob = leg2TOB
		} else {
			tob = leg1TOB
		}
	}

	var depthPx float64
	if d, ok := x.cache.MarketDepth(req.Symbol, req.Side.Opposite()); ok {
		if px, ok := d.PxAtLevel(x.limits.MaxPxLevels); ok {
			depthPx = px
		}
	}

	var windowFillQty float64
	if x.counter != nil && limits.ParticipationWindow > 0 && limits.MaxParticipationRate > 0 {
		q, err := x.counter.SumFillQtySince(req.Symbol, req.Side, time.Now().UTC().Add(-limits.ParticipationWindow))
		if err != nil {
			x.log.Error().Err(err).Msg("rolling participation qty unavailable")
			return risk.NewOrderContext{}, false
		}
		windowFillQty = q
	}

	var windowResidual float64
	if x.counter != nil && limits.ResidualWindow > 0 && limits.MaxResidualQty > 0 {
		since := time.Now().UTC().Add(-limits.ResidualWindow)
		q1, err := x.counter.SumFillQtySince(cfg.Leg1.Symbol, cfg.Leg1.Side, since)
		if err != nil {
			x.log.Error().Err(err).Msg("rolling residual qty unavailable")
			return risk.NewOrderContext{}, false
		}
		q2, err := x.counter.SumFillQtySince(cfg.Leg2.Symbol, cfg.Leg2.Side, since)
		if err != nil {
			x.log.Error().Err(err).Msg("rolling residual qty unavailable")
			return risk.NewOrderContext{}, false
		}
		windowResidual = math.Abs(q1 - q2)
	}

	var rollingNew, rollingRej int
	if x.counter != nil && x.limits.NewOrderWindow > 0 {
		n, err := x.counter.CountEventsSince([]journal.OrderEvent{journal.OENew}, time.Now().UTC().Add(-x.limits.NewOrderWindow))
		if err != nil {
			x.log.Error().Err(err).Msg("rolling new-order count unavailable")
			return risk.NewOrderContext{}, false
		}
		rollingNew = n
	}
	if x.counter != nil && x.limits.RejectionWindow > 0 {
		n, err := x.counter.CountEventsSince(rejectionEvents, time.Now().UTC().Add(-x.limits.RejectionWindow))
		if err != nil {
			x.log.Error().Err(err).Msg("rolling rejection count unavailable")
			return risk.NewOrderContext{}, false
		}
		rollingRej = n
	}

	openCount, openNotional := x.cache.OpenExposure(req.Side)
	status, _, _ := x.cache.Status()

	var symbolNotional float64
	if ss, ok := x.cache.SymbolSide(req.Symbol, req.Side); ok {
		symbolNotional = ss.TotalNotional
	}

	return risk.NewOrderContext{
		Limits: x.limits,
		Strat:  limits,
		Brief:  brief.For(req.Side),

		LastTradePx:  tob.LastTrade.Px,
		AggressivePx: tob.AggressiveQuote(req.Side).Px,
		DepthPx:      depthPx,

		OpenOrdersOnSide:   openCount,
		OpenNotionalOnSide: openNotional,
		NetFilledNotional:  status.BuyFillNotional - status.SellFillNotional,
		BasketNotional:     status.BuyFillNotional + status.SellFillNotional + openNotional,
		SymbolSideNotional: symbolNotional,

		RollingNewOrders:  rollingNew,
		RollingRejections: rollingRej,
		WindowFillQty:     windowFillQty,
		WindowResidualQty: windowResidual,

		UnackLeg: x.cache.HasUnackLeg(cfg.LegFor(req.Symbol)),
	}, true
}

// rejectInternally journals a reject that never reached the broker.
func (x *StratExecutor) rejectInternally(orderID, symbol string, side market.Side, ev journal.OrderEvent, res risk.Check) {
	x.log.Warn().Str("order_id", orderID).Str("failed", res.String()).Str("event", string(ev)).
		Msg("request rejected internally")
	x.alerter.Alert(x.stratID, journal.SeverityWarning, string(ev)+" "+orderID+": "+res.String())
	countCheckFailures(res)
	if x.events != nil {
		x.events.OnOrderUpdate(broker.OrderUpdate{
			OrderID:    orderID,
			StrategyID: x.stratID,
			Event:      ev,
			Symbol:     symbol,
			Side:       side,
			Time:       time.Now().UTC(),
			Text:       res.String(),
		})
	}
}

func (x *StratExecutor) markDone(ctx context.Context) {
	err := x.patcher.PatchStratState(ctx, x.stratID, stratcache.StateDone)
	if errors.Is(err, ErrAlreadyDone) {
		x.log.Warn().Msg("strategy was already DONE when patching")
		return
	}
	if err != nil {
		x.log.Error().Err(err).Msg("failed to patch strategy DONE")
		return
	}
	x.log.Info().Msg("strategy transitioned to DONE")
}

func countCheckFailures(c risk.Check) {
	if c.Passed() {
		return
	}
	for _, name := range strings.Split(c.String(), ",") {
		metrics.RiskCheckFailuresTotal.WithLabelValues(name).Inc()
	}
}
