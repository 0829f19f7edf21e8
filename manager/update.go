package manager

import (
	"github.com/soumyarai2050/Flux-sub002/broker"
	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/risk"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// UpdateKind discriminates inbound streaming updates.
type UpdateKind string

const (
	UpdateTopOfBook   UpdateKind = "top_of_book"
	UpdateMarketDepth UpdateKind = "market_depth"
	UpdateFxOverview  UpdateKind = "fx_overview"
	UpdatePortfolio   UpdateKind = "portfolio_status"
	UpdateStratStatus UpdateKind = "strat_status"
	UpdateStratBrief  UpdateKind = "strat_brief"
	UpdateStratLimits UpdateKind = "strat_limits"
	UpdatePairConfig  UpdateKind = "pair_config"
	UpdateStratDelete UpdateKind = "strat_delete"
	UpdateManualOrder UpdateKind = "manual_order"
	UpdateCancelOrder UpdateKind = "cancel_order"
)

// FxUpdate carries one fx-symbol-overview refresh.
type FxUpdate struct {
	Pair    string  `json:"pair"`
	Closing float64 `json:"closing"`
}

// Update is the envelope pushed over the streaming channel. Exactly one
// payload field matching Kind is set.
type Update struct {
	Kind       UpdateKind `json:"kind"`
	StrategyID string     `json:"strategy_id,omitempty"`

	TOB       *market.TopOfBook               `json:"tob,omitempty"`
	Depth     *market.MarketDepth             `json:"depth,omitempty"`
	Fx        *FxUpdate                       `json:"fx,omitempty"`
	Portfolio *stratcache.PortfolioStatus     `json:"portfolio,omitempty"`
	Status    *stratcache.StratStatus         `json:"status,omitempty"`
	Brief     *stratcache.StratBrief          `json:"brief,omitempty"`
	Limits    *risk.StratLimits               `json:"limits,omitempty"`
	Pair      *stratcache.PairStrategyConfig  `json:"pair,omitempty"`
	NewOrder  *broker.NewOrderRequest         `json:"new_order,omitempty"`
	Cancel    *broker.CancelRequest           `json:"cancel,omitempty"`
}
