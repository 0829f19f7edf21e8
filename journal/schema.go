// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS order_events (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	event TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	px REAL NOT NULL,
	qty REAL NOT NULL,
	account TEXT NOT NULL,
	event_time DATETIME NOT NULL,
	text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fills (
	fill_id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	fill_px REAL NOT NULL,
	fill_qty REAL NOT NULL,
	fill_symbol TEXT NOT NULL,
	fill_side TEXT NOT NULL,
	account TEXT NOT NULL,
	fill_time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	msg TEXT NOT NULL,
	alert_time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id);
CREATE INDEX IF NOT EXISTS idx_order_events_strategy ON order_events(strategy_id);
CREATE INDEX IF NOT EXISTS idx_order_events_time ON order_events(event_time);
CREATE INDEX IF NOT EXISTS idx_fills_order ON fills(order_id);
CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy_id);
`
