package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/soumyarai2050/Flux-sub002/market"
)

const orderEventCols = `id, order_id, strategy_id, event, symbol, side, px, qty, account, event_time, text`

// ListOrderEventsByStrategy returns every order-journal row for a strategy in
// event-time order. Recovery replays this to rebuild the cache's order
// snapshots after a crash.
func (j *SQLite) ListOrderEventsByStrategy(strategyID string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+orderEventCols+`
		FROM order_events
		WHERE strategy_id = ?
		ORDER BY event_time ASC, id ASC`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		var event, side string
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.StrategyID, &event, &rec.Symbol, &side,
			&rec.Px, &rec.Qty, &rec.Account, &rec.Time, &rec.Text,
		); err != nil {
			return nil, err
		}
		rec.Event = OrderEvent(event)
		rec.Side = market.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFillsByStrategy returns every fill for a strategy in fill-time order.
func (j *SQLite) ListFillsByStrategy(strategyID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT fill_id, order_id, strategy_id, fill_px, fill_qty, fill_symbol, fill_side, account, fill_time
		FROM fills
		WHERE strategy_id = ?
		ORDER BY fill_time ASC, fill_id ASC`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var rec FillRecord
		var side string
		if err := rows.Scan(
			&rec.FillID, &rec.OrderID, &rec.StrategyID, &rec.FillPx, &rec.FillQty,
			&rec.FillSymbol, &side, &rec.Account, &rec.FillTime,
		); err != nil {
			return nil, err
		}
		rec.FillSide = market.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOrderEvents returns the journal rows for one order, oldest first.
func (j *SQLite) ListOrderEvents(orderID string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+orderEventCols+`
		FROM order_events
		WHERE order_id = ?
		ORDER BY event_time ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		var event, side string
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.StrategyID, &event, &rec.Symbol, &side,
			&rec.Px, &rec.Qty, &rec.Account, &rec.Time, &rec.Text,
		); err != nil {
			return nil, err
		}
		rec.Event = OrderEvent(event)
		rec.Side = market.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("order %q not found", orderID)
	}
	return out, nil
}

// CountEventsSince counts portfolio-wide journal rows for the given events
// with event_time >= since. Rolling new-order and rejection ceilings query
// through here.
func (j *SQLite) CountEventsSince(events []OrderEvent, since time.Time) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(events)), ",")
	args := make([]any, 0, len(events)+1)
	for _, ev := range events {
		args = append(args, string(ev))
	}
	args = append(args, since)

	var n int
	err := j.db.QueryRow(`
		SELECT COUNT(*)
		FROM order_events
		WHERE event IN (`+placeholders+`) AND event_time >= ?`, args...).Scan(&n)
	return n, err
}

// CountStrategyEventsSince counts one strategy's journal rows for the given
// events with event_time >= since. Cancel-rate windows query through here.
func (j *SQLite) CountStrategyEventsSince(strategyID string, events []OrderEvent, since time.Time) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(events)), ",")
	args := make([]any, 0, len(events)+2)
	args = append(args, strategyID)
	for _, ev := range events {
		args = append(args, string(ev))
	}
	args = append(args, since)

	var n int
	err := j.db.QueryRow(`
		SELECT COUNT(*)
		FROM order_events
		WHERE strategy_id = ? AND event IN (`+placeholders+`) AND event_time >= ?`, args...).Scan(&n)
	return n, err
}

// SumFillQtySince returns traded quantity for a symbol/side since the given
// time. Participation windows bound the prospective order against this.
func (j *SQLite) SumFillQtySince(symbol string, side market.Side, since time.Time) (float64, error) {
	var total float64
	err := j.db.QueryRow(`
		SELECT COALESCE(SUM(fill_qty), 0)
		FROM fills
		WHERE fill_symbol = ? AND fill_side = ? AND fill_time >= ?`,
		symbol, string(side), since).Scan(&total)
	return total, err
}
