// Package risk holds the stateless pre-trade order controls. Every function
// here is pure: it takes the values it needs and returns a Check bitset, so
// each control is unit-testable in isolation and failures OR together.
package risk

import (
	"math"

	"github.com/soumyarai2050/Flux-sub002/market"
)

// NewOrderIntent is the prospective order under evaluation. Notional is
// already normalized to the account currency by Fx.
type NewOrderIntent struct {
	Symbol string
	Side   market.Side
	Px     float64
	Qty    float64
	Fx     float64
}

func (i NewOrderIntent) Notional() float64 {
	return i.Px * i.Qty * i.Fx
}

// NewOrderContext carries every input the combined evaluation reads. The
// caller assembles it from one consistent cache snapshot.
type NewOrderContext struct {
	Limits OrderLimits
	Strat  StratLimits
	Brief  SideBrief

	// Breach-price inputs, zero when unavailable.
	LastTradePx  float64
	AggressivePx float64
	DepthPx      float64

	OpenOrdersOnSide  int
	OpenNotionalOnSide float64
	NetFilledNotional float64
	BasketNotional    float64
	SymbolSideNotional float64

	// Rolling-window ledger queries; zero when the window is not configured.
	RollingNewOrders  int
	RollingRejections int
	WindowFillQty     float64
	WindowResidualQty float64

	KillSwitch bool
	UnackLeg   bool
}

// CheckOrderNotional bounds the single-order notional.
func CheckOrderNotional(lim OrderLimits, notional float64) Check {
	c := Success
	if lim.MinOrderNotional > 0 && notional < lim.MinOrderNotional {
		c |= MinOrderNotionalBreach
	}
	if lim.MaxOrderNotional > 0 && notional > lim.MaxOrderNotional {
		c |= MaxOrderNotionalBreach
	}
	return c
}

// CheckOrderQty bounds the single-order quantity.
func CheckOrderQty(lim OrderLimits, qty float64) Check {
	c := Success
	if qty <= 0 {
		c |= ZeroOrderQty
	}
	if lim.MaxOrderQty > 0 && qty > lim.MaxOrderQty {
		c |= MaxOrderQtyBreach
	}
	return c
}

// BreachPx computes the worst admissible price for side. Each available
// bound contributes; the tightest wins. Buys are capped above, sells floored
// below. The second return is false when no bound could be computed.
func BreachPx(side market.Side, lastTradePx, aggressivePx, depthPx float64, lim OrderLimits) (float64, bool) {
	var bounds []float64
	if lastTradePx > 0 && lim.MaxPxDeviationPct > 0 {
		dev := lastTradePx * lim.MaxPxDeviationPct / 100
		if side == market.SideBuy {
			bounds = append(bounds, lastTradePx+dev)
		} else {
			bounds = append(bounds, lastTradePx-dev)
		}
	}
	if aggressivePx > 0 && lim.MaxBasisPoints > 0 {
		bps := aggressivePx * lim.MaxBasisPoints / 10000
		if side == market.SideBuy {
			bounds = append(bounds, aggressivePx+bps)
		} else {
			bounds = append(bounds, aggressivePx-bps)
		}
	}
	if depthPx > 0 && lim.MaxPxLevels > 0 {
		bounds = append(bounds, depthPx)
	}
	if len(bounds) == 0 {
		return 0, false
	}
	breach := bounds[0]
	for _, b := range bounds[1:] {
		if side == market.SideBuy {
			breach = math.Min(breach, b)
		} else {
			breach = math.Max(breach, b)
		}
	}
	return breach, true
}

// CheckBreachPx rejects prices beyond the breach threshold.
func CheckBreachPx(side market.Side, px, breachPx float64) Check {
	if px <= 0 {
		return InvalidOrderPx
	}
	if side == market.SideBuy && px > breachPx {
		return BreachPxViolated
	}
	if side == market.SideSell && px < breachPx {
		return BreachPxViolated
	}
	return Success
}

// CheckSideBrief verifies every consumable the order would draw on stays
// non-negative after admission.
func CheckSideBrief(brief SideBrief, notional, qty float64) Check {
	c := Success
	if brief.ConsumableNotional < notional {
		c |= ConsumableNotionalBreach
	}
	if brief.ConsumableOpenNotional < notional {
		c |= ConsumableOpenNotionalBreach
	}
	if brief.ConsumableOpenOrders < 1 {
		c |= ConsumableOpenOrdersBreach
	}
	if brief.ConsumableConcentration < notional {
		c |= ConsumableConcentrationBreach
	}
	if brief.ConsumableParticipationQty < qty {
		c |= ParticipationQtyBreach
	}
	return c
}

// CheckStratExposure applies the per-strategy activation-time bounds. With a
// residual window configured the windowed leg imbalance is checked instead of
// the brief's running residual.
func CheckStratExposure(lim StratLimits, ctx NewOrderContext, notional float64) Check {
	c := Success
	if lim.MaxOpenOrdersPerSide > 0 && ctx.OpenOrdersOnSide >= lim.MaxOpenOrdersPerSide {
		c |= MaxOpenOrdersBreach
	}
	if lim.MaxOpenNotionalPerSide > 0 && ctx.OpenNotionalOnSide+notional > lim.MaxOpenNotionalPerSide {
		c |= MaxOpenNotionalBreach
	}
	if lim.MaxNetFilledNotional > 0 && math.Abs(ctx.NetFilledNotional) > lim.MaxNetFilledNotional {
		c |= MaxNetFilledNotionalBreach
	}
	if lim.MaxBasketNotional > 0 && ctx.BasketNotional+notional > lim.MaxBasketNotional {
		c |= MaxBasketNotionalBreach
	}
	residual := ctx.Brief.ResidualQty
	if lim.ResidualWindow > 0 {
		residual = ctx.WindowResidualQty
	}
	if lim.MaxResidualQty > 0 && residual > lim.MaxResidualQty {
		c |= ResidualRestrictionBreach
	}
	return c
}

// CheckParticipation bounds the side's traded quantity per rolling window.
// The remaining allowance, MaxParticipationRate minus the quantity already
// traded inside the window, is the participation-derived consumable the
// prospective order draws on.
func CheckParticipation(lim StratLimits, windowFillQty, qty float64) Check {
	if lim.ParticipationWindow <= 0 || lim.MaxParticipationRate <= 0 {
		return Success
	}
	if windowFillQty+qty > lim.MaxParticipationRate {
		return ParticipationQtyBreach
	}
	return Success
}

// CheckConcentration caps one symbol/side's share of the basket notional at
// MaxConcentration percent. An empty basket cannot be concentrated.
func CheckConcentration(lim StratLimits, symbolNotional, basketNotional, notional float64) Check {
	if lim.MaxConcentration <= 0 || basketNotional <= 0 {
		return Success
	}
	if symbolNotional+notional > lim.MaxConcentration/100*(basketNotional+notional) {
		return ConsumableConcentrationBreach
	}
	return Success
}

// CheckPortfolioPacing applies the rolling new-order and rejection ceilings.
func CheckPortfolioPacing(lim OrderLimits, rollingNew, rollingRej int) Check {
	c := Success
	if lim.MaxNewOrders > 0 && rollingNew >= lim.MaxNewOrders {
		c |= OrderPacingBreach
	}
	if lim.MaxRejections > 0 && rollingRej >= lim.MaxRejections {
		c |= RejectionRateBreach
	}
	return c
}

// EvaluateNewOrder runs every control and ORs the failures. Nothing short
// circuits: a rejected order reports all broken limits at once.
func EvaluateNewOrder(intent NewOrderIntent, ctx NewOrderContext) Check {
	c := Success
	if ctx.KillSwitch {
		c |= KillSwitchEngaged
	}
	if ctx.UnackLeg {
		c |= UnackLegOutstanding
	}
	if intent.Fx <= 0 {
		c |= MissingFxRate
	}

	notional := intent.Notional()
	c |= CheckOrderQty(ctx.Limits, intent.Qty)
	c |= CheckOrderNotional(ctx.Limits, notional)

	if breach, ok := BreachPx(intent.Side, ctx.LastTradePx, ctx.AggressivePx, ctx.DepthPx, ctx.Limits); ok {
		c |= CheckBreachPx(intent.Side, intent.Px, breach)
	} else {
		c |= BreachPxUnavailable
	}

	c |= CheckSideBrief(ctx.Brief, notional, intent.Qty)
	c |= CheckStratExposure(ctx.Strat, ctx, notional)
	c |= CheckParticipation(ctx.Strat, ctx.WindowFillQty, intent.Qty)
	c |= CheckConcentration(ctx.Strat, ctx.SymbolSideNotional, ctx.BasketNotional, notional)
	c |= CheckPortfolioPacing(ctx.Limits, ctx.RollingNewOrders, ctx.RollingRejections)
	return c
}

// EvaluateCancel gates a cancel request on the remaining cancel-quantity
// budget and, when a window is configured, the per-window cancel-request
// ceiling.
func EvaluateCancel(lim StratLimits, brief SideBrief, qty float64, windowCancels int) Check {
	c := Success
	if brief.ConsumableCxlQty < qty {
		c |= ConsumableCxlQtyBreach
	}
	if lim.CancelRateWindow > 0 && lim.MaxCancelRate > 0 && float64(windowCancels) >= lim.MaxCancelRate {
		c |= CancelRateBreach
	}
	return c
}
