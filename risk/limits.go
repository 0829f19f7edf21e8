package risk

import "time"

// OrderLimits are the portfolio-wide static bounds every order is checked
// against, immutable once loaded.
type OrderLimits struct {
	MinOrderNotional  float64
	MaxOrderNotional  float64
	MaxOrderQty       float64
	MaxPxDeviationPct float64
	MaxBasisPoints    float64
	MaxPxLevels       int
	MaxNewOrders      int
	NewOrderWindow    time.Duration
	MaxRejections     int
	RejectionWindow   time.Duration
}

// StratLimits are the per-strategy bounds fixed at activation.
type StratLimits struct {
	MaxOpenOrdersPerSide   int
	MaxBasketNotional      float64
	MaxOpenNotionalPerSide float64
	MaxNetFilledNotional   float64
	MaxConcentration       float64
	CancelRateWindow       time.Duration
	MaxCancelRate          float64
	ParticipationWindow    time.Duration
	MaxParticipationRate   float64
	ResidualWindow         time.Duration
	MaxResidualQty         float64
}

// SideBrief is one side's remaining risk budget. Admission consumes it; a
// new order may go out only while every field it draws on stays >= the
// amount it would consume.
type SideBrief struct {
	ConsumableNotional         float64
	ConsumableOpenNotional     float64
	ConsumableOpenOrders       float64
	ConsumableConcentration    float64
	ConsumableCxlQty           float64
	ConsumableParticipationQty float64
	ResidualQty                float64
}
