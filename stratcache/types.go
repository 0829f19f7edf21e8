package stratcache

import (
	"time"

	"github.com/soumyarai2050/Flux-sub002/journal"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/risk"
)

// StratState is the operator-visible lifecycle of a pair strategy.
type StratState string

const (
	StateReady   StratState = "READY"
	StateActive  StratState = "ACTIVE"
	StatePaused  StratState = "PAUSED"
	StateSnoozed StratState = "SNOOZED"
	StateError   StratState = "ERROR"
	StateDone    StratState = "DONE"
)

// Leg is one of the two securities in a pair strategy.
type Leg struct {
	Symbol string      `yaml:"symbol"`
	Side   market.Side `yaml:"side"`
}

// PairStrategyConfig identifies a strategy and its two legs. The host/port
// pair is populated once the strategy is running.
type PairStrategyConfig struct {
	StrategyID string     `yaml:"strategy_id"`
	Leg1       Leg        `yaml:"leg1"`
	Leg2       Leg        `yaml:"leg2"`
	Account    string     `yaml:"account"`
	FxPair     string     `yaml:"fx_pair"`
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	State      StratState `yaml:"state"`
}

// LegFor returns which leg (1 or 2) the symbol belongs to, or 0.
func (c PairStrategyConfig) LegFor(symbol string) int {
	switch symbol {
	case c.Leg1.Symbol:
		return 1
	case c.Leg2.Symbol:
		return 2
	default:
		return 0
	}
}

// StratStatus carries the rolling per-strategy aggregates, mutated only
// through order/fill journal processing.
type StratStatus struct {
	State StratState

	BuyQty  float64
	SellQty float64

	BuyFillNotional  float64
	SellFillNotional float64
	OpenNotional     float64
	CxlNotional      float64

	AvgBuyPx  float64
	AvgSellPx float64

	Residual float64
	Alerts   []string
}

// StratBrief is the per-side remaining risk budget, the admission-control
// state every new-order and cancel decision reads.
type StratBrief struct {
	Buy  risk.SideBrief
	Sell risk.SideBrief
}

func (b StratBrief) For(side market.Side) risk.SideBrief {
	if side == market.SideBuy {
		return b.Buy
	}
	return b.Sell
}

// Exhausted reports whether both sides' consumable notional has dropped
// below the minimum order notional, leaving nothing tradable.
func (b StratBrief) Exhausted(minOrderNotional float64) bool {
	return b.Buy.ConsumableNotional < minOrderNotional &&
		b.Sell.ConsumableNotional < minOrderNotional
}

// PortfolioStatus is the portfolio-wide context a strategy needs before it
// may act.
type PortfolioStatus struct {
	KillSwitch          bool
	OverallBuyNotional  float64
	OverallSellNotional float64
}

// OrderSnapshot is the cache's view of one order.
type OrderSnapshot struct {
	OrderID      string
	Symbol       string
	Side         market.Side
	Px           float64
	Qty          float64
	Account      string
	Status       journal.OrderStatus
	FilledQty    float64
	CancelledQty float64
	AvgFillPx    float64
	CreatedAt    time.Time
	LastUpdate   time.Time
}

// OpenNotional is price times unfilled quantity for a live order.
func (o OrderSnapshot) OpenNotional() float64 {
	left := o.Qty - o.FilledQty - o.CancelledQty
	if left < 0 {
		left = 0
	}
	return o.Px * left
}

// SymbolSideSnapshot aggregates per (symbol, side) across orders, feeding
// concentration and cancel-rate computations.
type SymbolSideSnapshot struct {
	Symbol        string
	Side          market.Side
	AvgPx         float64
	TotalQty      float64
	FilledQty     float64
	CancelledQty  float64
	TotalNotional float64
	OrderCount    int
	LastUpdate    time.Time
}
