package manager

import (
	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/pkg/id"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// OnOrderUpdate implements broker.Listener: persist the transition and fold
// it into the owning cache.
func (m *TradingDataManager) OnOrderUpdate(u broker.OrderUpdate) {
	rec := journal.OrderRecord{
		ID:         id.New(),
		OrderID:    u.OrderID,
		StrategyID: u.StrategyID,
		Event:      u.Event,
		Symbol:     u.Symbol,
		Side:       u.Side,
		Px:         u.Px,
		Qty:        u.Qty,
		Account:    u.Account,
		Time:       u.Time,
		Text:       u.Text,
	}
	if err := m.ledger.RecordOrderEvent(rec); err != nil {
		m.log.Error().Err(err).Str("order_id", u.OrderID).Str("event", string(u.Event)).
			Msg("failed to journal order event")
	}
	m.applyOrderUpdate(u)
}

// OnFill implements broker.Listener.
func (m *TradingDataManager) OnFill(f journal.FillRecord) {
	if err := m.ledger.RecordFill(f); err != nil {
		m.log.Error().Err(err).Str("fill_id", f.FillID).Msg("failed to journal fill")
	}
	m.applyFill(f)
}

// applyOrderUpdate mutates cache state from one order transition. Recovery
// replay reuses it, so live and replayed state stay observably equivalent.
func (m *TradingDataManager) applyOrderUpdate(u broker.OrderUpdate) {
	c, ok := m.reg.Get(u.StrategyID)
	if !ok {
		m.log.Warn().Str("strategy", u.StrategyID).Str("order_id", u.OrderID).
			Msg("order update for unknown strategy")
		return
	}

	if u.Event == journal.OENew {
		// Admission consumed the fx-normalized notional; the ref must record
		// the same amount or terminal restoration drifts the brief. OE_NEW is
		// dispatched synchronously from placement, so the rate here is the
		// rate admission used.
		cfg, _, _ := c.Config()
		fx, ok := m.reg.Fx().Get(cfg.FxPair)
		if !ok {
			fx = 1
		}
		m.reg.RegisterOrder(u.OrderID, OrderRef{
			StrategyID:       u.StrategyID,
			Symbol:           u.Symbol,
			Side:             u.Side,
			Qty:              u.Qty,
			ConsumedNotional: u.Px * u.Qty * fx,
		})
	}

	snap, found := c.OrderSnapshot(u.OrderID)
	if !found {
		snap = stratcache.OrderSnapshot{
			OrderID:   u.OrderID,
			Symbol:    u.Symbol,
			Side:      u.Side,
			Px:        u.Px,
			Qty:       u.Qty,
			Account:   u.Account,
			Status:    journal.StatusUnack,
			CreatedAt: u.Time,
		}
	}

	next := journal.StatusAfter(u.Event)
	switch u.Event {
	case journal.OEAck:
		// A partial ack shrinks the workable quantity.
		if u.Qty > 0 && u.Qty < snap.Qty {
			snap.Qty = u.Qty
		}
	case journal.OECxlAck, journal.OEUnsolCxl:
		snap.CancelledQty += u.Qty
	case journal.OEAmdAck:
		if u.Px > 0 {
			snap.Px = u.Px
		}
		if u.Qty > 0 {
			snap.Qty = u.Qty
		}
	}
	// Never regress a fully filled order back to an event-derived status.
	if snap.Status != journal.StatusFilled && snap.Status != journal.StatusOverFilled {
		snap.Status = next
	}
	snap.LastUpdate = u.Time
	c.SetOrderSnapshot(snap)

	m.settleBudget(c, u, snap)

	// The first broker response for a leg clears its unack gate.
	if u.Event != journal.OENew && u.Event != journal.OECxl {
		cfg, _, _ := c.Config()
		if leg := cfg.LegFor(u.Symbol); leg != 0 {
			c.SetUnackLeg(leg, false)
		}
	}

	m.refreshOpenNotional(c)
	m.bumpSymbolSide(c, u)
	c.Notify()
}

// settleBudget returns the unfilled remainder of a terminally closed order
// to the brief, proportional to what admission consumed, and charges the
// cancel-quantity budget on cancels.
func (m *TradingDataManager) settleBudget(c *stratcache.StratCache, u broker.OrderUpdate, snap stratcache.OrderSnapshot) {
	switch u.Event {
	case journal.OERej, journal.OEBrkRej, journal.OEExhRej, journal.OEIntRej,
		journal.OELapse, journal.OECxlAck, journal.OEUnsolCxl:
	default:
		return
	}

	ref, ok := m.reg.LookupOrder(u.OrderID)
	if !ok || ref.Qty <= 0 {
		return
	}
	remaining := ref.Qty - snap.FilledQty
	if remaining < 0 {
		remaining = 0
	}
	restored := ref.ConsumedNotional * remaining / ref.Qty

	c.MutateBrief(func(b *stratcache.StratBrief) {
		side := &b.Buy
		if u.Side == market.SideSell {
			side = &b.Sell
		}
		side.ConsumableNotional += restored
		side.ConsumableOpenNotional += restored
		side.ConsumableOpenOrders++
		side.ConsumableConcentration += restored
		side.ConsumableParticipationQty += remaining
		if u.Event == journal.OECxlAck || u.Event == journal.OEUnsolCxl {
			side.ConsumableCxlQty -= remaining
		}
	})
	m.reg.DropOrder(u.OrderID)
}

// applyFill folds one fill into the order snapshot, the strategy status and
// the symbol/side aggregates.
func (m *TradingDataManager) applyFill(f journal.FillRecord) {
	c, ok := m.reg.Get(f.StrategyID)
	if !ok {
		m.log.Warn().Str("strategy", f.StrategyID).Str("order_id", f.OrderID).
			Msg("fill for unknown strategy")
		return
	}

	snap, found := c.OrderSnapshot(f.OrderID)
	if !found {
		snap = stratcache.OrderSnapshot{
			OrderID:   f.OrderID,
			Symbol:    f.FillSymbol,
			Side:      f.FillSide,
			Px:        f.FillPx,
			Qty:       f.FillQty,
			Account:   f.Account,
			Status:    journal.StatusAcked,
			CreatedAt: f.FillTime,
		}
	}

	prevFilled := snap.FilledQty
	snap.FilledQty += f.FillQty
	if snap.FilledQty > 0 {
		snap.AvgFillPx = (snap.AvgFillPx*prevFilled + f.FillPx*f.FillQty) / snap.FilledQty
	}
	switch {
	case snap.FilledQty > snap.Qty:
		snap.Status = journal.StatusOverFilled
	case snap.FilledQty == snap.Qty:
		snap.Status = journal.StatusFilled
	}
	snap.LastUpdate = f.FillTime
	c.SetOrderSnapshot(snap)
	if !snap.Status.IsOpen() {
		m.reg.DropOrder(f.OrderID)
	}

	notional := f.FillPx * f.FillQty
	c.MutateStatus(func(s *stratcache.StratStatus) {
		if f.FillSide == market.SideBuy {
			prev := s.BuyQty
			s.BuyQty += f.FillQty
			s.BuyFillNotional += notional
			if s.BuyQty > 0 {
				s.AvgBuyPx = (s.AvgBuyPx*prev + f.FillPx*f.FillQty) / s.BuyQty
			}
		} else {
			prev := s.SellQty
			s.SellQty += f.FillQty
			s.SellFillNotional += notional
			if s.SellQty > 0 {
				s.AvgSellPx = (s.AvgSellPx*prev + f.FillPx*f.FillQty) / s.SellQty
			}
		}
		s.Residual = s.BuyFillNotional - s.SellFillNotional
	})

	c.MutateSymbolSide(f.FillSymbol, f.FillSide, func(ss *stratcache.SymbolSideSnapshot) {
		prev := ss.FilledQty
		ss.FilledQty += f.FillQty
		ss.TotalQty += f.FillQty
		ss.TotalNotional += notional
		if ss.FilledQty > 0 {
			ss.AvgPx = (ss.AvgPx*prev + f.FillPx*f.FillQty) / ss.FilledQty
		}
	})

	m.refreshOpenNotional(c)
	c.Notify()
}

func (m *TradingDataManager) refreshOpenNotional(c *stratcache.StratCache) {
	_, buyOpen := c.OpenExposure(market.SideBuy)
	_, sellOpen := c.OpenExposure(market.SideSell)
	c.MutateStatus(func(s *stratcache.StratStatus) {
		s.OpenNotional = buyOpen + sellOpen
	})
}

func (m *TradingDataManager) bumpSymbolSide(c *stratcache.StratCache, u broker.OrderUpdate) {
	switch u.Event {
	case journal.OENew:
		c.MutateSymbolSide(u.Symbol, u.Side, func(ss *stratcache.SymbolSideSnapshot) {
			ss.OrderCount++
		})
	case journal.OECxlAck, journal.OEUnsolCxl:
		c.MutateSymbolSide(u.Symbol, u.Side, func(ss *stratcache.SymbolSideSnapshot) {
			ss.CancelledQty += u.Qty
		})
		c.MutateStatus(func(s *stratcache.StratStatus) {
			s.CxlNotional += u.Px * u.Qty
		})
	}
}
