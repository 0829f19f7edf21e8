package risk

import "strings"

// Check is an OR-combinable set of pre-trade control failures. Success is the
// zero value; every individual control contributes one named bit so a single
// rejected order can report every broken limit in one log line.
type Check uint32

const Success Check = 0

const (
	MinOrderNotionalBreach Check = 1 << iota
	MaxOrderNotionalBreach
	MaxOrderQtyBreach
	ZeroOrderQty
	InvalidOrderPx
	BreachPxViolated
	BreachPxUnavailable
	ConsumableNotionalBreach
	ConsumableOpenNotionalBreach
	ConsumableOpenOrdersBreach
	ConsumableConcentrationBreach
	ConsumableCxlQtyBreach
	ParticipationQtyBreach
	ResidualRestrictionBreach
	MaxOpenOrdersBreach
	MaxOpenNotionalBreach
	MaxNetFilledNotionalBreach
	MaxBasketNotionalBreach
	OrderPacingBreach
	RejectionRateBreach
	CancelRateBreach
	UnackLegOutstanding
	KillSwitchEngaged
	MissingFxRate
	MissingTopOfBook
	StrategyNotActive
)

var checkNames = []struct {
	bit  Check
	name string
}{
	{MinOrderNotionalBreach, "MIN_ORDER_NOTIONAL"},
	{MaxOrderNotionalBreach, "MAX_ORDER_NOTIONAL"},
	{MaxOrderQtyBreach, "MAX_ORDER_QTY"},
	{ZeroOrderQty, "ZERO_ORDER_QTY"},
	{InvalidOrderPx, "INVALID_ORDER_PX"},
	{BreachPxViolated, "BREACH_PX"},
	{BreachPxUnavailable, "BREACH_PX_UNAVAILABLE"},
	{ConsumableNotionalBreach, "CONSUMABLE_NOTIONAL"},
	{ConsumableOpenNotionalBreach, "CONSUMABLE_OPEN_NOTIONAL"},
	{ConsumableOpenOrdersBreach, "CONSUMABLE_OPEN_ORDERS"},
	{ConsumableConcentrationBreach, "CONSUMABLE_CONCENTRATION"},
	{ConsumableCxlQtyBreach, "CONSUMABLE_CXL_QTY"},
	{ParticipationQtyBreach, "PARTICIPATION_QTY"},
	{ResidualRestrictionBreach, "RESIDUAL_RESTRICTION"},
	{MaxOpenOrdersBreach, "MAX_OPEN_ORDERS"},
	{MaxOpenNotionalBreach, "MAX_OPEN_NOTIONAL"},
	{MaxNetFilledNotionalBreach, "MAX_NET_FILLED_NOTIONAL"},
	{MaxBasketNotionalBreach, "MAX_BASKET_NOTIONAL"},
	{OrderPacingBreach, "ORDER_PACING"},
	{RejectionRateBreach, "REJECTION_RATE"},
	{CancelRateBreach, "CANCEL_RATE"},
	{UnackLegOutstanding, "UNACK_LEG_OUTSTANDING"},
	{KillSwitchEngaged, "KILL_SWITCH"},
	{MissingFxRate, "MISSING_FX_RATE"},
	{MissingTopOfBook, "MISSING_TOP_OF_BOOK"},
	{StrategyNotActive, "STRATEGY_NOT_ACTIVE"},
}

func (c Check) Passed() bool { return c == Success }

func (c Check) Has(bit Check) bool { return c&bit != 0 }

// String lists every failed control, comma separated.
func (c Check) String() string {
	if c == Success {
		return "SUCCESS"
	}
	var parts []string
	for _, cn := range checkNames {
		if c&cn.bit != 0 {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, ",")
}
