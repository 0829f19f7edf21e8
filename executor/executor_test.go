package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/risk"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

const waitFor = 2 * time.Second

type fakeLink struct {
	mu       sync.Mutex
	placed   []broker.NewOrderRequest
	cancels  []broker.CancelRequest
	placedCh chan broker.NewOrderRequest
	cancelCh chan broker.CancelRequest
	killed   bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		placedCh: make(chan broker.NewOrderRequest, 16),
		cancelCh: make(chan broker.CancelRequest, 16),
	}
}

func (l *fakeLink) PlaceNewOrder(_ context.Context, req broker.NewOrderRequest) error {
	l.mu.Lock()
	l.placed = append(l.placed, req)
	l.mu.Unlock()
	l.placedCh <- req
	return nil
}

func (l *fakeLink) PlaceCancelOrder(_ context.Context, req broker.CancelRequest) error {
	l.mu.Lock()
	l.cancels = append(l.cancels, req)
	l.mu.Unlock()
	l.cancelCh <- req
	return nil
}

func (l *fakeLink) PlaceAmendOrder(context.Context, broker.AmendRequest) error { return nil }
func (l *fakeLink) TriggerKillSwitch(context.Context) error                    { return nil }
func (l *fakeLink) RevokeKillSwitch(context.Context) error                     { return nil }
func (l *fakeLink) InternalRejects() int                                       { return 0 }

func (l *fakeLink) KillSwitchEngaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.killed
}

func (l *fakeLink) placedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.placed)
}

func (l *fakeLink) cancelCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cancels)
}

type fakePatcher struct {
	mu    sync.Mutex
	calls []stratcache.StratState
	ch    chan stratcache.StratState
	err   error
}

func newFakePatcher() *fakePatcher {
	return &fakePatcher{ch: make(chan stratcache.StratState, 4)}
}

func (p *fakePatcher) PatchStratState(_ context.Context, _ string, state stratcache.StratState) error {
	p.mu.Lock()
	p.calls = append(p.calls, state)
	p.mu.Unlock()
	p.ch <- state
	return p.err
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
	ch     chan string
}

func newFakeAlerter() *fakeAlerter {
	return &fakeAlerter{ch: make(chan string, 16)}
}

func (a *fakeAlerter) Alert(_, _, msg string) {
	a.mu.Lock()
	a.alerts = append(a.alerts, msg)
	a.mu.Unlock()
	a.ch <- msg
}

type fakeCounter struct {
	n       int
	cancels int
	fillQty float64
}

func (c *fakeCounter) CountEventsSince([]journal.OrderEvent, time.Time) (int, error) {
	return c.n, nil
}

func (c *fakeCounter) CountStrategyEventsSince(string, []journal.OrderEvent, time.Time) (int, error) {
	return c.cancels, nil
}

func (c *fakeCounter) SumFillQtySince(string, market.Side, time.Time) (float64, error) {
	return c.fillQty, nil
}

type captureEvents struct {
	mu      sync.Mutex
	updates []broker.OrderUpdate
	ch      chan broker.OrderUpdate
}

func newCaptureEvents() *captureEvents {
	return &captureEvents{ch: make(chan broker.OrderUpdate, 16)}
}

func (e *captureEvents) OnOrderUpdate(u broker.OrderUpdate) {
	e.mu.Lock()
	e.updates = append(e.updates, u)
	e.mu.Unlock()
	e.ch <- u
}

func (e *captureEvents) OnFill(journal.FillRecord) {}

type harness struct {
	cache   *stratcache.StratCache
	link    *fakeLink
	events  *captureEvents
	patcher *fakePatcher
	alerter *fakeAlerter
	counter *fakeCounter
	fx      *market.FxRateTable
	exec    *StratExecutor
}

func openBrief() risk.SideBrief {
	return risk.SideBrief{
		ConsumableNotional:         1e9,
		ConsumableOpenNotional:     1e9,
		ConsumableOpenOrders:       10,
		ConsumableConcentration:    1e9,
		ConsumableCxlQty:           1e9,
		ConsumableParticipationQty: 1e9,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cache := stratcache.New(stratcache.PairStrategyConfig{
		StrategyID: "strat-1",
		Leg1:       stratcache.Leg{Symbol: "RELIANCE", Side: market.SideBuy},
		Leg2:       stratcache.Leg{Symbol: "TCS", Side: market.SideSell},
		Account:    "acct-1",
		FxPair:     "USD/INR",
	}, zerolog.Nop())

	fx := market.NewFxRateTable("USD/INR")
	require.NoError(t, fx.Set("USD/INR", 1))

	h := &harness{
		cache:   cache,
		link:    newFakeLink(),
		events:  newCaptureEvents(),
		patcher: newFakePatcher(),
		alerter: newFakeAlerter(),
		counter: &fakeCounter{},
		fx:      fx,
	}
	h.exec = New(Deps{
		Cache:   cache,
		Link:    h.link,
		Events:  h.events,
		Fx:      fx,
		Limits:  risk.OrderLimits{MinOrderNotional: 1000, MaxOrderQty: 5000, MaxBasisPoints: 50},
		Counter: h.counter,
		Patcher: h.patcher,
		Alerter: h.alerter,
		Log:     zerolog.Nop(),
	})
	return h
}

// prime puts the cache into a runnable state: portfolio present, strategy
// ACTIVE, budget open on both sides, quotes on both legs.
func (h *harness) prime(t *testing.T) {
	t.Helper()

	now := time.Now().UTC()
	h.cache.SetPortfolioStatus(stratcache.PortfolioStatus{})
	h.cache.SetStatus(stratcache.StratStatus{State: stratcache.StateActive})
	h.cache.SetBrief(stratcache.StratBrief{Buy: openBrief(), Sell: openBrief()})
	_, ok := h.cache.SetTopOfBook(market.TopOfBook{
		Symbol:     "RELIANCE",
		Bid:        market.Quote{Px: 100, Qty: 50, Time: now},
		Ask:        market.Quote{Px: 101, Qty: 50, Time: now},
		LastUpdate: now,
	})
	require.True(t, ok)
	_, ok = h.cache.SetTopOfBook(market.TopOfBook{
		Symbol:     "TCS",
		Bid:        market.Quote{Px: 200, Qty: 40, Time: now},
		Ask:        market.Quote{Px: 201, Qty: 40, Time: now},
		LastUpdate: now,
	})
	require.True(t, ok)
}

func runExecutor(h *harness, ctx context.Context) chan int {
	done := make(chan int, 1)
	go func() { done <- h.exec.Run(ctx) }()
	return done
}

func waitCode(t *testing.T, done chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(waitFor):
		t.Fatal("executor did not exit in time")
		return 0
	}
}

func TestRunFatalWithoutConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cache.ClearConfig()
	assert.Equal(t, codeFatalEntry, h.exec.Run(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := runExecutor(h, ctx)

	cancel()
	assert.Equal(t, codeOperatorStop, waitCode(t, done))
}

func TestRunStopsOnSetStopped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	done := runExecutor(h, context.Background())

	h.cache.SetStopped()
	assert.Equal(t, codeOperatorStop, waitCode(t, done))

	// Stop tears down the pair config.
	_, _, ok := h.cache.Config()
	assert.False(t, ok)
}

func TestSystematicOrderPlaced(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.Notify()

	select {
	case req := <-h.link.placedCh:
		// Legs are level, so leg1 goes first, lifting the ask.
		assert.Equal(t, "RELIANCE", req.Symbol)
		assert.Equal(t, market.SideBuy, req.Side)
		assert.Equal(t, 101.0, req.Px)
		assert.Equal(t, 50.0, req.Qty)
		assert.NotEmpty(t, req.OrderID)
		assert.Equal(t, "acct-1", req.Account)
	case <-time.After(waitFor):
		t.Fatal("expected a systematic order")
	}

	// Admission flagged the leg unacked and consumed the budget up front.
	assert.True(t, h.cache.HasUnackLeg(1))
	b, _, _ := h.cache.Brief()
	assert.Equal(t, 1e9-101.0*50, b.Buy.ConsumableNotional)

	cancel()
	waitCode(t, done)
}

func TestSystematicQtyCappedAtMaxOrderQty(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)
	now := time.Now().UTC().Add(time.Second)
	_, ok := h.cache.SetTopOfBook(market.TopOfBook{
		Symbol:     "RELIANCE",
		Bid:        market.Quote{Px: 100, Qty: 9000, Time: now},
		Ask:        market.Quote{Px: 101, Qty: 9000, Time: now},
		LastUpdate: now,
	})
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.Notify()

	select {
	case req := <-h.link.placedCh:
		assert.Equal(t, 5000.0, req.Qty)
	case <-time.After(waitFor):
		t.Fatal("expected a systematic order")
	}

	cancel()
	waitCode(t, done)
}

func TestBlockedOrderNeverReachesLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)

	// Buy side has no admissible notional; sell side is still funded, so
	// the strategy is not exhausted, but the chosen leg is blocked.
	brief := stratcache.StratBrief{Buy: openBrief(), Sell: openBrief()}
	brief.Buy.ConsumableNotional = 0
	h.cache.SetBrief(brief)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.Notify()

	select {
	case msg := <-h.alerter.ch:
		assert.Contains(t, msg, "CONSUMABLE_NOTIONAL")
	case <-time.After(waitFor):
		t.Fatal("expected a blocked-order alert")
	}
	assert.Equal(t, 0, h.link.placedCount())
	assert.False(t, h.cache.HasUnackLeg(1))

	cancel()
	waitCode(t, done)
}

func TestExhaustionTransitionsToDone(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)

	exhausted := risk.SideBrief{ConsumableNotional: 100} // below min order notional
	h.cache.SetBrief(stratcache.StratBrief{Buy: exhausted, Sell: exhausted})

	done := runExecutor(h, context.Background())
	h.cache.Notify()

	assert.Equal(t, codeDone, waitCode(t, done))

	select {
	case state := <-h.patcher.ch:
		assert.Equal(t, stratcache.StateDone, state)
	case <-time.After(waitFor):
		t.Fatal("expected a DONE patch")
	}
}

func TestKillSwitchSuppressesSystematicOrders(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)
	h.cache.SetPortfolioStatus(stratcache.PortfolioStatus{KillSwitch: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	// A dropped manual order proves the cycle ran while killed.
	h.cache.EnqueueManualOrder(broker.NewOrderRequest{
		OrderID: "man-1", StrategyID: "strat-1", Symbol: "RELIANCE",
		Side: market.SideBuy, Px: 100, Qty: 10,
	})

	select {
	case msg := <-h.alerter.ch:
		assert.Contains(t, msg, "kill switch")
	case <-time.After(waitFor):
		t.Fatal("expected a dropped-manual-order alert")
	}
	assert.Equal(t, 0, h.link.placedCount())

	cancel()
	waitCode(t, done)
}

func TestManualOrderPlaced(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.EnqueueManualOrder(broker.NewOrderRequest{
		OrderID: "man-1", StrategyID: "strat-1", Symbol: "TCS",
		Side: market.SideSell, Px: 200, Qty: 10, Account: "acct-1",
	})

	select {
	case req := <-h.link.placedCh:
		assert.Equal(t, "man-1", req.OrderID)
		assert.Equal(t, market.SideSell, req.Side)
	case <-time.After(waitFor):
		t.Fatal("expected the manual order")
	}

	cancel()
	waitCode(t, done)
}

func TestCancelForwardedToLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)
	h.cache.SetOrderSnapshot(stratcache.OrderSnapshot{
		OrderID: "ord-1", Symbol: "RELIANCE", Side: market.SideBuy,
		Px: 100, Qty: 10, Status: journal.StatusAcked,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.EnqueueCancel(broker.CancelRequest{
		OrderID: "ord-1", StrategyID: "strat-1", Symbol: "RELIANCE", Side: market.SideBuy,
	})

	select {
	case req := <-h.link.cancelCh:
		assert.Equal(t, "ord-1", req.OrderID)
	case <-time.After(waitFor):
		t.Fatal("expected the cancel to reach the link")
	}

	cancel()
	waitCode(t, done)
}

func TestCancelRejectedInternallyOnExhaustedCxlBudget(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)

	brief := stratcache.StratBrief{Buy: openBrief(), Sell: openBrief()}
	brief.Buy.ConsumableCxlQty = 0
	h.cache.SetBrief(brief)

	h.cache.SetOrderSnapshot(stratcache.OrderSnapshot{
		OrderID: "ord-1", Symbol: "RELIANCE", Side: market.SideBuy,
		Px: 100, Qty: 10, Status: journal.StatusAcked,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.EnqueueCancel(broker.CancelRequest{
		OrderID: "ord-1", StrategyID: "strat-1", Symbol: "RELIANCE", Side: market.SideBuy,
	})

	select {
	case u := <-h.events.ch:
		assert.Equal(t, journal.OECxlExhRej, u.Event)
		assert.Equal(t, "ord-1", u.OrderID)
	case <-time.After(waitFor):
		t.Fatal("expected an internal cancel reject")
	}

	cancel()
	waitCode(t, done)
}

func TestParticipationWindowBlocksOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)
	h.cache.SetLimits(risk.StratLimits{
		ParticipationWindow:  5 * time.Minute,
		MaxParticipationRate: 60,
	})
	// 20 already traded in the window leaves room for 40; the systematic
	// order wants 50.
	h.counter.fillQty = 20

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.Notify()

	select {
	case msg := <-h.alerter.ch:
		assert.Contains(t, msg, "PARTICIPATION_QTY")
	case <-time.After(waitFor):
		t.Fatal("expected a participation-blocked alert")
	}
	assert.Equal(t, 0, h.link.placedCount())

	cancel()
	waitCode(t, done)
}

func TestCancelRateWindowRejectsCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.prime(t)
	h.cache.SetLimits(risk.StratLimits{
		CancelRateWindow: time.Minute,
		MaxCancelRate:    3,
	})
	// The ledger already holds a full window of cancel requests.
	h.counter.cancels = 3

	h.cache.SetOrderSnapshot(stratcache.OrderSnapshot{
		OrderID: "ord-1", Symbol: "RELIANCE", Side: market.SideBuy,
		Px: 100, Qty: 10, Status: journal.StatusAcked,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runExecutor(h, ctx)

	h.cache.EnqueueCancel(broker.CancelRequest{
		OrderID: "ord-1", StrategyID: "strat-1", Symbol: "RELIANCE", Side: market.SideBuy,
	})

	select {
	case u := <-h.events.ch:
		assert.Equal(t, journal.OECxlExhRej, u.Event)
		assert.Contains(t, u.Text, "CANCEL_RATE")
	case <-time.After(waitFor):
		t.Fatal("expected an internal cancel reject")
	}
	assert.Equal(t, 0, h.link.cancelCount())

	cancel()
	waitCode(t, done)
}
