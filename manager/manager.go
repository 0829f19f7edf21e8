// Package manager routes inbound streaming updates to the per-strategy
// caches and owns the lifecycle of their executors.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/executor"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/metrics"
	"github.com/soumyarai2050/Flux-sub002/pkg/id"
	"github.com/soumyarai2050/Flux-sub002/risk"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// Ledger is what the manager needs from the persisted journal: the append
// paths plus the recovery and rolling-window queries. *journal.SQLite
// satisfies it.
type Ledger interface {
	journal.Journal
	ListOrderEventsByStrategy(strategyID string) ([]journal.OrderRecord, error)
	ListFillsByStrategy(strategyID string) ([]journal.FillRecord, error)
	CountEventsSince(events []journal.OrderEvent, since time.Time) (int, error)
	CountStrategyEventsSince(strategyID string, events []journal.OrderEvent, since time.Time) (int, error)
	SumFillQtySince(symbol string, side market.Side, since time.Time) (float64, error)
}

type execHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// TradingDataManager owns the registry of live caches, consumes broker
// responses as the link's Listener, and creates/destroys executors as
// strategies become ongoing or stop being so.
type TradingDataManager struct {
	reg    *Registry
	ledger Ledger
	link   broker.TradingLink
	limits risk.OrderLimits
	log    zerolog.Logger

	mu        sync.Mutex
	baseCtx   context.Context
	executors map[string]*execHandle
}

func New(reg *Registry, ledger Ledger, link broker.TradingLink, limits risk.OrderLimits, log zerolog.Logger) *TradingDataManager {
	return &TradingDataManager{
		reg:       reg,
		ledger:    ledger,
		link:      link,
		limits:    limits,
		log:       log.With().Str("component", "manager").Logger(),
		baseCtx:   context.Background(),
		executors: make(map[string]*execHandle),
	}
}

// Start binds the base context all executor goroutines derive from.
func (m *TradingDataManager) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Stop requests every executor to wind down and waits for them.
func (m *TradingDataManager) Stop() {
	m.mu.Lock()
	handles := make(map[string]*execHandle, len(m.executors))
	for id, h := range m.executors {
		handles[id] = h
	}
	m.mu.Unlock()

	for id, h := range handles {
		if c, ok := m.reg.Get(id); ok {
			c.SetStopped()
		}
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}

// HandleUpdate routes one streaming update to the matching caches and wakes
// their executors.
func (m *TradingDataManager) HandleUpdate(u Update) {
	metrics.FeedUpdatesTotal.WithLabelValues(string(u.Kind)).Inc()

	switch u.Kind {
	case UpdateTopOfBook:
		if u.TOB == nil {
			return
		}
		for _, c := range m.reg.BySymbol(u.TOB.Symbol) {
			if _, ok := c.SetTopOfBook(*u.TOB); ok {
				c.Notify()
			}
		}

	case UpdateMarketDepth:
		if u.Depth == nil {
			return
		}
		for _, c := range m.reg.BySymbol(u.Depth.Symbol) {
			c.SetSortedMarketDepths(u.Depth.Symbol, u.Depth.Side, u.Depth.ExchTime, u.Depth.Levels)
			c.Notify()
		}

	case UpdateFxOverview:
		if u.Fx == nil {
			return
		}
		if err := m.reg.Fx().Set(u.Fx.Pair, u.Fx.Closing); err != nil {
			m.log.Warn().Err(err).Str("pair", u.Fx.Pair).Msg("fx overview dropped")
			return
		}
		for _, c := range m.reg.All() {
			c.Notify()
		}

	case UpdatePortfolio:
		if u.Portfolio == nil {
			return
		}
		for _, c := range m.reg.All() {
			c.SetPortfolioStatus(*u.Portfolio)
			c.Notify()
		}

	case UpdateStratStatus:
		if u.Status == nil {
			return
		}
		c, ok := m.reg.Get(u.StrategyID)
		if !ok {
			m.log.Warn().Str("strategy", u.StrategyID).Msg("status update for unknown strategy")
			return
		}
		c.SetStatus(*u.Status)
		c.Notify()
		m.reconcileLifecycle(u.StrategyID, u.Status.State)

	case UpdateStratBrief:
		if u.Brief == nil {
			return
		}
		if c, ok := m.reg.Get(u.StrategyID); ok {
			c.SetBrief(*u.Brief)
			c.Notify()
		}

	case UpdateStratLimits:
		if u.Limits == nil {
			return
		}
		if c, ok := m.reg.Get(u.StrategyID); ok {
			c.SetLimits(*u.Limits)
			c.Notify()
		}

	case UpdatePairConfig:
		if u.Pair == nil {
			return
		}
		if c, ok := m.reg.Get(u.Pair.StrategyID); ok {
			c.SetConfig(*u.Pair)
			c.Notify()
			return
		}
		c := stratcache.New(*u.Pair, m.log)
		m.reg.Add(c)
		m.log.Info().Str("strategy", u.Pair.StrategyID).
			Str("leg1", u.Pair.Leg1.Symbol).Str("leg2", u.Pair.Leg2.Symbol).
			Msg("strategy registered")

	case UpdateStratDelete:
		m.stopExecutor(u.StrategyID)
		m.reg.Remove(u.StrategyID)
		m.log.Info().Str("strategy", u.StrategyID).Msg("strategy removed")

	case UpdateManualOrder:
		if u.NewOrder == nil {
			return
		}
		if c, ok := m.reg.Get(u.NewOrder.StrategyID); ok {
			c.EnqueueManualOrder(*u.NewOrder)
		}

	case UpdateCancelOrder:
		if u.Cancel == nil {
			return
		}
		req := *u.Cancel
		if ref, ok := m.reg.LookupOrder(req.OrderID); ok {
			req.StrategyID = ref.StrategyID
			req.Symbol = ref.Symbol
			req.Side = ref.Side
		}
		if c, ok := m.reg.Get(req.StrategyID); ok {
			c.EnqueueCancel(req)
		}

	default:
		m.log.Warn().Str("kind", string(u.Kind)).Msg("unknown update kind dropped")
	}
}

// reconcileLifecycle starts an executor when a strategy becomes ongoing and
// stops it when it no longer is.
func (m *TradingDataManager) reconcileLifecycle(strategyID string, state stratcache.StratState) {
	switch state {
	case stratcache.StateActive:
		m.startExecutor(strategyID)
	case stratcache.StateDone, stratcache.StateError, stratcache.StateReady:
		m.stopExecutor(strategyID)
	}
}

func (m *TradingDataManager) startExecutor(strategyID string) {
	c, ok := m.reg.Get(strategyID)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.executors[strategyID]; running {
		return
	}
	c.ClearStopped()

	ctx, cancel := context.WithCancel(m.baseCtx)
	ex := executor.New(executor.Deps{
		Cache:   c,
		Link:    m.link,
		Events:  m,
		Fx:      m.reg.Fx(),
		Limits:  m.limits,
		Counter: m.ledger,
		Patcher: m,
		Alerter: m,
		Log:     m.log,
	})
	h := &execHandle{cancel: cancel, done: make(chan struct{})}
	m.executors[strategyID] = h

	go func() {
		defer close(h.done)
		code := ex.Run(ctx)
		m.log.Info().Str("strategy", strategyID).Int("code", code).Msg("executor exited")
		m.mu.Lock()
		delete(m.executors, strategyID)
		m.mu.Unlock()
	}()

	m.log.Info().Str("strategy", strategyID).Msg("executor started")
	c.Notify()
}

func (m *TradingDataManager) stopExecutor(strategyID string) {
	m.mu.Lock()
	h, ok := m.executors[strategyID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if c, found := m.reg.Get(strategyID); found {
		c.SetStopped()
	}
	h.cancel()
	<-h.done
}

// RunningExecutors reports how many executors are live.
func (m *TradingDataManager) RunningExecutors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executors)
}

// PatchStratState applies a strategy's self-transition. Patching an
// already-DONE strategy returns executor.ErrAlreadyDone.
func (m *TradingDataManager) PatchStratState(ctx context.Context, strategyID string, state stratcache.StratState) error {
	_ = ctx
	c, ok := m.reg.Get(strategyID)
	if !ok {
		return executor.ErrAlreadyDone
	}
	var already bool
	c.MutateStatus(func(s *stratcache.StratStatus) {
		already = s.State == state
		s.State = state
	})
	if already {
		return executor.ErrAlreadyDone
	}
	return nil
}

// Alert persists an operator alert and mirrors it onto the strategy status.
func (m *TradingDataManager) Alert(strategyID, severity, msg string) {
	rec := journal.AlertRecord{
		ID:         id.New(),
		StrategyID: strategyID,
		Severity:   severity,
		Msg:        msg,
		Time:       time.Now().UTC(),
	}
	if err := m.ledger.RecordAlert(rec); err != nil {
		m.log.Error().Err(err).Msg("failed to persist alert")
	}
	if c, ok := m.reg.Get(strategyID); ok {
		c.MutateStatus(func(s *stratcache.StratStatus) {
			s.Alerts = append(s.Alerts, severity+": "+msg)
		})
	}
	m.log.Warn().Str("strategy", strategyID).Str("severity", severity).Msg(msg)
}
