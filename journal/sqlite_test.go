package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumyarai2050/Flux-sub002/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func orderRow(id, orderID, strategyID string, ev OrderEvent, tm time.Time) OrderRecord {
	return OrderRecord{
		ID:         id,
		OrderID:    orderID,
		StrategyID: strategyID,
		Event:      ev,
		Symbol:     "RELIANCE",
		Side:       market.SideBuy,
		Px:         2500,
		Qty:        10,
		Account:    "acct-1",
		Time:       tm,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	_, path := newTestSQLite(t)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('order_events','fills','alerts')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["order_events"])
	assert.True(t, found["fills"])
	assert.True(t, found["alerts"])
}

func TestRecordAndListOrderEvents(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	assert.NoError(t, j.RecordOrderEvent(orderRow("e1", "ord-1", "s1", OENew, base)))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e2", "ord-1", "s1", OEAck, base.Add(time.Second))))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e3", "ord-2", "s2", OENew, base.Add(2*time.Second))))

	recs, err := j.ListOrderEvents("ord-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, OENew, recs[0].Event)
	assert.Equal(t, OEAck, recs[1].Event)
	assert.Equal(t, "RELIANCE", recs[0].Symbol)
	assert.Equal(t, market.SideBuy, recs[0].Side)

	byStrat, err := j.ListOrderEventsByStrategy("s1")
	require.NoError(t, err)
	assert.Len(t, byStrat, 2)

	_, err = j.ListOrderEvents("missing")
	assert.Error(t, err)
}

func TestRecordAndListFills(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	assert.NoError(t, j.RecordFill(FillRecord{
		FillID: "f1", OrderID: "ord-1", StrategyID: "s1",
		FillPx: 2500, FillQty: 5, FillSymbol: "RELIANCE", FillSide: market.SideBuy,
		Account: "acct-1", FillTime: base,
	}))
	assert.NoError(t, j.RecordFill(FillRecord{
		FillID: "f2", OrderID: "ord-1", StrategyID: "s1",
		FillPx: 2501, FillQty: 5, FillSymbol: "RELIANCE", FillSide: market.SideBuy,
		Account: "acct-1", FillTime: base.Add(time.Second),
	}))

	fills, err := j.ListFillsByStrategy("s1")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "f1", fills[0].FillID)
	assert.Equal(t, 2501.0, fills[1].FillPx)

	total, err := j.SumFillQtySince("RELIANCE", market.SideBuy, base)
	require.NoError(t, err)
	assert.Equal(t, 10.0, total)

	total, err = j.SumFillQtySince("RELIANCE", market.SideBuy, base.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 5.0, total)
}

func TestCountEventsSince(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	base := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

	assert.NoError(t, j.RecordOrderEvent(orderRow("e1", "ord-1", "s1", OENew, base)))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e2", "ord-2", "s1", OERej, base.Add(time.Second))))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e3", "ord-3", "s1", OEBrkRej, base.Add(2*time.Second))))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e4", "ord-4", "s1", OENew, base.Add(-time.Hour))))

	n, err := j.CountEventsSince([]OrderEvent{OENew}, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = j.CountEventsSince([]OrderEvent{OERej, OEBrkRej, OEExhRej, OEIntRej}, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = j.CountEventsSince(nil, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountStrategyEventsSince(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	base := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

	assert.NoError(t, j.RecordOrderEvent(orderRow("e1", "ord-1", "s1", OECxl, base)))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e2", "ord-2", "s1", OECxl, base.Add(time.Second))))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e3", "ord-3", "s2", OECxl, base.Add(time.Second))))
	assert.NoError(t, j.RecordOrderEvent(orderRow("e4", "ord-4", "s1", OECxl, base.Add(-time.Hour))))

	// Only s1's rows inside the window count.
	n, err := j.CountStrategyEventsSince("s1", []OrderEvent{OECxl}, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = j.CountStrategyEventsSince("s2", []OrderEvent{OECxl}, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = j.CountStrategyEventsSince("s1", nil, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordAlert(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	assert.NoError(t, j.RecordAlert(AlertRecord{
		ID: "a1", StrategyID: "s1", Severity: SeverityError,
		Msg: "breach px exceeded", Time: time.Now().UTC(),
	}))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&n))
	assert.Equal(t, 1, n)
}
