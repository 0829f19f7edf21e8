package journal

import (
	_ "github.com/mattn/go-sqlite3"

	"database/sql"
)

// SQLite persists the order/fill/alert ledger in a local sqlite database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrderEvent(r OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO order_events
		(id, order_id, strategy_id, event, symbol, side, px, qty, account, event_time, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrderID, r.StrategyID, string(r.Event), r.Symbol, string(r.Side),
		r.Px, r.Qty, r.Account, r.Time, r.Text,
	)
	return err
}

func (j *SQLite) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, order_id, strategy_id, fill_px, fill_qty, fill_symbol, fill_side, account, fill_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FillID, f.OrderID, f.StrategyID, f.FillPx, f.FillQty,
		f.FillSymbol, string(f.FillSide), f.Account, f.FillTime,
	)
	return err
}

func (j *SQLite) RecordAlert(a AlertRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO alerts
		(id, strategy_id, severity, msg, alert_time)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.StrategyID, a.Severity, a.Msg, a.Time,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
