package journal

import (
	"time"

	"github.com/soumyarai2050/Flux-sub002/market"
)

// OrderRecord is one append-only order-journal row, written per transition.
type OrderRecord struct {
	ID         string
	OrderID    string
	StrategyID string
	Event      OrderEvent
	Symbol     string
	Side       market.Side
	Px         float64
	Qty        float64
	Account    string
	Time       time.Time
	Text       string
}

// FillRecord is one fill-journal row.
type FillRecord struct {
	FillID     string
	OrderID    string
	StrategyID string
	FillPx     float64
	FillQty    float64
	FillSymbol string
	FillSide   market.Side
	Account    string
	FillTime   time.Time
}

// AlertRecord captures a risk-check failure or recoverable error surfaced to
// the operator.
type AlertRecord struct {
	ID         string
	StrategyID string
	Severity   string
	Msg        string
	Time       time.Time
}

const (
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// Journal is the persisted order/fill/alert ledger.
type Journal interface {
	RecordOrderEvent(OrderRecord) error
	RecordFill(FillRecord) error
	RecordAlert(AlertRecord) error
	Close() error
}
