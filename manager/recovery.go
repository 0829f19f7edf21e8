package manager

import (
	"fmt"
	"sort"
	"time"

	"github.com/soumyarai2050/Flux-sub002/broker"
)

// LoadExisting rebuilds a strategy's cache from the persisted order and fill
// ledger after a restart. Rows replay through the same apply paths the live
// listener uses, in event-time order, so the cache ends up observably
// equivalent to its state before the crash, modulo events lost in flight.
func (m *TradingDataManager) LoadExisting(strategyID string) error {
	if _, ok := m.reg.Get(strategyID); !ok {
		return fmt.Errorf("load existing: strategy %q not registered", strategyID)
	}

	events, err := m.ledger.ListOrderEventsByStrategy(strategyID)
	if err != nil {
		return fmt.Errorf("load existing orders: %w", err)
	}
	fills, err := m.ledger.ListFillsByStrategy(strategyID)
	if err != nil {
		return fmt.Errorf("load existing fills: %w", err)
	}

	type replayRow struct {
		ts    time.Time
		apply func()
	}
	rows := make([]replayRow, 0, len(events)+len(fills))
	for _, ev := range events {
		u := broker.OrderUpdate{
			OrderID:    ev.OrderID,
			StrategyID: ev.StrategyID,
			Event:      ev.Event,
			Symbol:     ev.Symbol,
			Side:       ev.Side,
			Px:         ev.Px,
			Qty:        ev.Qty,
			Account:    ev.Account,
			Time:       ev.Time,
			Text:       ev.Text,
		}
		rows = append(rows, replayRow{ts: ev.Time, apply: func() { m.applyOrderUpdate(u) }})
	}
	for _, f := range fills {
		f := f
		rows = append(rows, replayRow{ts: f.FillTime, apply: func() { m.applyFill(f) }})
	}

	// Stable on insertion sequence so same-timestamp rows keep ledger order.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })

	for _, row := range rows {
		row.apply()
	}

	m.log.Info().Str("strategy", strategyID).
		Int("order_events", len(events)).Int("fills", len(fills)).
		Msg("cache recovered from ledger")
	return nil
}
