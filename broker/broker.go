package broker

import (
	"context"
	"time"

	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
)

// TradingLink is the contract any broker connector satisfies. Calls report
// success or failure synchronously from the caller's perspective and never
// retry internally; retry policy belongs to the caller. Asynchronous broker
// responses arrive through the registered Listener.
type TradingLink interface {
	PlaceNewOrder(ctx context.Context, req NewOrderRequest) error
	PlaceCancelOrder(ctx context.Context, req CancelRequest) error
	PlaceAmendOrder(ctx context.Context, req AmendRequest) error

	TriggerKillSwitch(ctx context.Context) error
	RevokeKillSwitch(ctx context.Context) error
	KillSwitchEngaged() bool

	// InternalRejects counts requests this link refused before they reached
	// the venue.
	InternalRejects() int
}

// Listener receives broker responses. Implementations must not call back
// into the link from the callback.
type Listener interface {
	OnOrderUpdate(OrderUpdate)
	OnFill(journal.FillRecord)
}

type NewOrderRequest struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Side       market.Side
	Px         float64
	Qty        float64
	Account    string
}

type CancelRequest struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Side       market.Side
}

type AmendRequest struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Side       market.Side
	NewPx      float64
	NewQty     float64
}

// OrderUpdate is one broker-side order transition, already mapped onto the
// journal event taxonomy.
type OrderUpdate struct {
	OrderID    string
	StrategyID string
	Event      journal.OrderEvent
	Symbol     string
	Side       market.Side
	Px         float64
	Qty        float64
	Account    string
	Time       time.Time
	Text       string
}
