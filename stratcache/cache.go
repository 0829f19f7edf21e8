// Package stratcache holds one strategy's live state: market data, order
// snapshots, config, limits, status and brief. A single executor goroutine
// reads it while the manager's routing callbacks write it concurrently, so
// every accessor runs under the cache mutex and compound getters copy all
// their fields inside one acquisition.
package stratcache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/risk"
)

// tradeMergeNudge keeps trade-only top-of-book merges strictly newer than
// the quote they merged into, so staleness checks still see a fresh version.
const tradeMergeNudge = time.Millisecond

type StratCache struct {
	mu  sync.Mutex
	log zerolog.Logger

	cfg        PairStrategyConfig
	cfgSet     bool
	cfgUpdated time.Time

	limits        risk.StratLimits
	limitsSet     bool
	limitsUpdated time.Time

	status        StratStatus
	statusSet     bool
	statusUpdated time.Time

	brief        StratBrief
	briefSet     bool
	briefUpdated time.Time

	portfolio    PortfolioStatus
	portfolioSet bool

	// Two pre-allocated top-of-book slots, leg1 and leg2.
	tob    [2]market.TopOfBook
	tobSet [2]bool

	depths map[string]map[market.Side]market.MarketDepth

	// Open-order index: an order id is present iff its status is neither
	// DOD nor FILLED.
	openOrders map[string]OrderSnapshot
	symbolSide map[string]*SymbolSideSnapshot

	unackLeg1 bool
	unackLeg2 bool

	stopped bool
	notify  chan struct{}

	cancelQueue []broker.CancelRequest
	manualQueue []broker.NewOrderRequest
}

func New(cfg PairStrategyConfig, log zerolog.Logger) *StratCache {
	return &StratCache{
		log:        log.With().Str("strategy", cfg.StrategyID).Logger(),
		cfg:        cfg,
		cfgSet:     true,
		cfgUpdated: time.Now().UTC(),
		depths:     make(map[string]map[market.Side]market.MarketDepth),
		openOrders: make(map[string]OrderSnapshot),
		symbolSide: make(map[string]*SymbolSideSnapshot),
		notify:     make(chan struct{}, 1),
	}
}

// Notify releases one wake for the executor. Bursts coalesce: the channel
// holds at most one pending signal, so N queued events trigger exactly one
// re-evaluation.
func (c *StratCache) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// WakeCh is the executor's wait point.
func (c *StratCache) WakeCh() <-chan struct{} { return c.notify }

// DrainWakes clears any pending signal. The executor calls it right after
// waking, before reading state, so it never decides "no work" on a stale
// signal.
func (c *StratCache) DrainWakes() {
	for {
		select {
		case <-c.notify:
		default:
			return
		}
	}
}

func (c *StratCache) SetStopped() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.Notify()
}

// ClearStopped rearms the cache for a fresh executor after a stop.
func (c *StratCache) ClearStopped() {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
}

func (c *StratCache) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// --- pair config / limits / status / brief ---

func (c *StratCache) Config() (PairStrategyConfig, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg, c.cfgUpdated, c.cfgSet
}

func (c *StratCache) SetConfig(cfg PairStrategyConfig) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.cfgSet = true
	c.cfgUpdated = time.Now().UTC()
	return c.cfgUpdated
}

func (c *StratCache) ClearConfig() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfgSet = false
}

func (c *StratCache) Limits() (risk.StratLimits, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits, c.limitsUpdated, c.limitsSet
}

func (c *StratCache) SetLimits(l risk.StratLimits) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits = l
	c.limitsSet = true
	c.limitsUpdated = time.Now().UTC()
	return c.limitsUpdated
}

func (c *StratCache) Status() (StratStatus, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.statusUpdated, c.statusSet
}

func (c *StratCache) SetStatus(s StratStatus) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
	c.statusSet = true
	c.statusUpdated = time.Now().UTC()
	return c.statusUpdated
}

// MutateStatus applies fn to the status under the lock.
func (c *StratCache) MutateStatus(fn func(*StratStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
	c.statusSet = true
	c.statusUpdated = time.Now().UTC()
}

func (c *StratCache) Brief() (StratBrief, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brief, c.briefUpdated, c.briefSet
}

func (c *StratCache) SetBrief(b StratBrief) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brief = b
	c.briefSet = true
	c.briefUpdated = time.Now().UTC()
	return c.briefUpdated
}

// ConsumeBrief draws an admitted order's consumption from one side's budget
// immediately, before the broker responds, so concurrent decisions never
// spend the same budget twice.
func (c *StratCache) ConsumeBrief(side market.Side, notional, qty float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := &c.brief.Buy
	if side == market.SideSell {
		b = &c.brief.Sell
	}
	b.ConsumableNotional -= notional
	b.ConsumableOpenNotional -= notional
	b.ConsumableOpenOrders--
	b.ConsumableConcentration -= notional
	b.ConsumableParticipationQty -= qty
	c.briefUpdated = time.Now().UTC()
}

// MutateBrief applies fn to the brief under the lock.
func (c *StratCache) MutateBrief(fn func(*StratBrief)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.brief)
	c.briefSet = true
	c.briefUpdated = time.Now().UTC()
}

func (c *StratCache) PortfolioStatus() (PortfolioStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.portfolio, c.portfolioSet
}

func (c *StratCache) SetPortfolioStatus(p PortfolioStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portfolio = p
	c.portfolioSet = true
}

// --- top of book ---

// SetTopOfBook applies one leg's update. Updates for symbols outside the
// configured pair are logged and dropped. A stale timestamp is discarded,
// except for trade-only updates, which merge into the stored quote and nudge
// the update time forward so downstream staleness checks observe a fresh
// version. Returns the stored update time and whether the update took.
func (c *StratCache) SetTopOfBook(tob market.TopOfBook) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	leg := c.cfg.LegFor(tob.Symbol)
	if leg == 0 {
		c.log.Warn().Str("symbol", tob.Symbol).Msg("top-of-book update for unconfigured symbol dropped")
		return time.Time{}, false
	}
	slot := leg - 1

	tradeOnly := tob.Bid.IsZero() && tob.Ask.IsZero() && !tob.LastTrade.IsZero()
	if c.tobSet[slot] {
		stored := &c.tob[slot]
		if tradeOnly {
			stored.LastTrade = tob.LastTrade
			base := stored.LastUpdate
			if tob.LastUpdate.After(base) {
				base = tob.LastUpdate
			}
			stored.LastUpdate = base.Add(tradeMergeNudge)
			return stored.LastUpdate, true
		}
		if !tob.LastUpdate.After(stored.LastUpdate) {
			return time.Time{}, false
		}
	} else if tradeOnly {
		// Nothing to merge into yet.
		return time.Time{}, false
	}

	c.tob[slot] = tob
	c.tobSet[slot] = true
	return tob.LastUpdate, true
}

// TopOfBook returns both legs plus the older of the two update times, copied
// under a single lock acquisition so the caller never sees a half-updated
// pair. When since is non-zero and neither leg advanced past it, the read
// reports not-ok.
func (c *StratCache) TopOfBook(since time.Time) (leg1, leg2 market.TopOfBook, asOf time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tobSet[0] || !c.tobSet[1] {
		return market.TopOfBook{}, market.TopOfBook{}, time.Time{}, false
	}
	leg1, leg2 = c.tob[0], c.tob[1]
	asOf = leg1.LastUpdate
	if leg2.LastUpdate.Before(asOf) {
		asOf = leg2.LastUpdate
	}
	if !since.IsZero() && !leg1.LastUpdate.After(since) && !leg2.LastUpdate.After(since) {
		return market.TopOfBook{}, market.TopOfBook{}, time.Time{}, false
	}
	return leg1, leg2, asOf, true
}

// --- market depth ---

// SetSortedMarketDepths replaces one side's level list for a symbol,
// creating the container on first use. Levels must already be sorted best
// price first.
func (c *StratCache) SetSortedMarketDepths(symbol string, side market.Side, exchTime time.Time, levels []market.DepthLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bySide, ok := c.depths[symbol]
	if !ok {
		bySide = make(map[market.Side]market.MarketDepth, 2)
		c.depths[symbol] = bySide
	}
	bySide[side] = market.MarketDepth{Symbol: symbol, Side: side, ExchTime: exchTime, Levels: levels}
}

func (c *StratCache) MarketDepth(symbol string, side market.Side) (market.MarketDepth, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bySide, ok := c.depths[symbol]
	if !ok {
		return market.MarketDepth{}, false
	}
	d, ok := bySide[side]
	return d, ok
}

// --- order snapshots ---

// SetOrderSnapshot stores an order's state and maintains the open-order
// index invariant: present iff status is neither DOD nor FILLED. An
// OVER_FILLED transition is logged as strategy-blocking but not raised; the
// order stays indexed for upstream investigation.
func (c *StratCache) SetOrderSnapshot(o OrderSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.Status == journal.StatusOverFilled {
		if prev, ok := c.openOrders[o.OrderID]; !ok || prev.Status != journal.StatusOverFilled {
			c.log.Error().Str("order_id", o.OrderID).
				Float64("qty", o.Qty).Float64("filled", o.FilledQty).
				Msg("order went OVER_FILLED; strategy requires manual investigation")
			c.status.Alerts = append(c.status.Alerts, "OVER_FILLED order "+o.OrderID)
		}
	}

	if o.Status.IsOpen() {
		c.openOrders[o.OrderID] = o
	} else {
		delete(c.openOrders, o.OrderID)
	}
}

func (c *StratCache) OrderSnapshot(orderID string) (OrderSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.openOrders[orderID]
	return o, ok
}

// OpenOrders copies the open-order index.
func (c *StratCache) OpenOrders() []OrderSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]OrderSnapshot, 0, len(c.openOrders))
	for _, o := range c.openOrders {
		out = append(out, o)
	}
	return out
}

// OpenExposure returns the open-order count and open notional for one side
// in a single consistent read.
func (c *StratCache) OpenExposure(side market.Side) (count int, notional float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.openOrders {
		if o.Side == side {
			count++
			notional += o.OpenNotional()
		}
	}
	return count, notional
}

// --- symbol/side aggregates ---

func symbolSideKey(symbol string, side market.Side) string {
	return symbol + "|" + string(side)
}

// MutateSymbolSide applies fn to the (symbol, side) aggregate, creating it
// on first use.
func (c *StratCache) MutateSymbolSide(symbol string, side market.Side, fn func(*SymbolSideSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := symbolSideKey(symbol, side)
	snap, ok := c.symbolSide[key]
	if !ok {
		snap = &SymbolSideSnapshot{Symbol: symbol, Side: side}
		c.symbolSide[key] = snap
	}
	fn(snap)
	snap.LastUpdate = time.Now().UTC()
}

func (c *StratCache) SymbolSide(symbol string, side market.Side) (SymbolSideSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.symbolSide[symbolSideKey(symbol, side)]
	if !ok {
		return SymbolSideSnapshot{}, false
	}
	return *snap, true
}

// --- unack flags ---

// SetUnackLeg flags leg (1 or 2) as having an outstanding order awaiting a
// broker response; new-order admission on that leg is blocked meanwhile.
// Any other leg number refers to no configured leg and is ignored.
func (c *StratCache) SetUnackLeg(leg int, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch leg {
	case 1:
		c.unackLeg1 = v
	case 2:
		c.unackLeg2 = v
	}
}

func (c *StratCache) HasUnackLeg(leg int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch leg {
	case 1:
		return c.unackLeg1
	case 2:
		return c.unackLeg2
	}
	return false
}

// --- queued requests ---

func (c *StratCache) EnqueueCancel(req broker.CancelRequest) {
	c.mu.Lock()
	c.cancelQueue = append(c.cancelQueue, req)
	c.mu.Unlock()
	c.Notify()
}

// DequeueCancels drains the queued cancel requests.
func (c *StratCache) DequeueCancels() []broker.CancelRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.cancelQueue
	c.cancelQueue = nil
	return out
}

func (c *StratCache) EnqueueManualOrder(req broker.NewOrderRequest) {
	c.mu.Lock()
	c.manualQueue = append(c.manualQueue, req)
	c.mu.Unlock()
	c.Notify()
}

// DequeueManualOrders drains the queued non-systematic order requests.
func (c *StratCache) DequeueManualOrders() []broker.NewOrderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.manualQueue
	c.manualQueue = nil
	return out
}
