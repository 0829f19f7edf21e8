// Package config loads the YAML application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soumyarai2050/Flux-sub002/risk"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// Config is the complete process configuration.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Journal     JournalConfig     `yaml:"journal"`
	Sim         SimConfig         `yaml:"sim"`
	Feed        FeedConfig        `yaml:"feed"`
	OrderLimits OrderLimitsConfig `yaml:"order_limits"`
	FxPairs     []string          `yaml:"fx_pairs"`
	Strategies  []StrategyConfig  `yaml:"strategies"`
}

// AppConfig contains process-wide runtime settings.
type AppConfig struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// JournalConfig locates the persisted ledger.
type JournalConfig struct {
	DBPath string `yaml:"db_path"`
}

// SimConfig configures the simulated broker.
type SimConfig struct {
	ConfigPath        string `yaml:"config_path"`
	KillSwitchPath    string `yaml:"kill_switch_path"`
	KillSwitchEnabled bool   `yaml:"is_kill_switch_enabled"`
}

// FeedConfig points at the streaming update channel.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// OrderLimitsConfig mirrors risk.OrderLimits with duration strings.
type OrderLimitsConfig struct {
	MinOrderNotional  float64 `yaml:"min_order_notional"`
	MaxOrderNotional  float64 `yaml:"max_order_notional"`
	MaxOrderQty       float64 `yaml:"max_order_qty"`
	MaxPxDeviationPct float64 `yaml:"max_px_deviation_pct"`
	MaxBasisPoints    float64 `yaml:"max_basis_points"`
	MaxPxLevels       int     `yaml:"max_px_levels"`
	MaxNewOrders      int     `yaml:"max_new_orders"`
	NewOrderWindow    string  `yaml:"new_order_window"`
	MaxRejections     int     `yaml:"max_rejections"`
	RejectionWindow   string  `yaml:"rejection_window"`
}

// StratLimitsConfig mirrors risk.StratLimits with duration strings.
type StratLimitsConfig struct {
	MaxOpenOrdersPerSide   int     `yaml:"max_open_orders_per_side"`
	MaxBasketNotional      float64 `yaml:"max_basket_notional"`
	MaxOpenNotionalPerSide float64 `yaml:"max_open_notional_per_side"`
	MaxNetFilledNotional   float64 `yaml:"max_net_filled_notional"`
	MaxConcentration       float64 `yaml:"max_concentration"`
	CancelRateWindow       string  `yaml:"cancel_rate_window"`
	MaxCancelRate          float64 `yaml:"max_cancel_rate"`
	ParticipationWindow    string  `yaml:"participation_window"`
	MaxParticipationRate   float64 `yaml:"max_participation_rate"`
	ResidualWindow         string  `yaml:"residual_window"`
	MaxResidualQty         float64 `yaml:"max_residual_qty"`
}

// StrategyConfig is one pair strategy definition.
type StrategyConfig struct {
	Pair   stratcache.PairStrategyConfig `yaml:"pair"`
	Limits StratLimitsConfig             `yaml:"limits"`
}

// LoadFromFile loads and validates the configuration.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path is required")
	}
	if c.OrderLimits.MinOrderNotional <= 0 {
		return fmt.Errorf("order_limits.min_order_notional must be > 0")
	}
	if _, err := c.OrderLimits.Build(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Pair.StrategyID == "" {
			return fmt.Errorf("strategies[%d]: strategy_id is required", i)
		}
		if seen[s.Pair.StrategyID] {
			return fmt.Errorf("strategies[%d]: duplicate strategy_id %q", i, s.Pair.StrategyID)
		}
		seen[s.Pair.StrategyID] = true
		if !s.Pair.Leg1.Side.Valid() || !s.Pair.Leg2.Side.Valid() {
			return fmt.Errorf("strategy %q: both leg sides must be BUY or SELL", s.Pair.StrategyID)
		}
		if s.Pair.Leg1.Symbol == "" || s.Pair.Leg2.Symbol == "" {
			return fmt.Errorf("strategy %q: both leg symbols are required", s.Pair.StrategyID)
		}
		if _, err := s.Limits.Build(); err != nil {
			return fmt.Errorf("strategy %q: %w", s.Pair.StrategyID, err)
		}
	}
	return nil
}

func parseWindow(name, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// Build converts to the risk package's limits type.
func (c OrderLimitsConfig) Build() (risk.OrderLimits, error) {
	newWindow, err := parseWindow("order_limits.new_order_window", c.NewOrderWindow)
	if err != nil {
		return risk.OrderLimits{}, err
	}
	rejWindow, err := parseWindow("order_limits.rejection_window", c.RejectionWindow)
	if err != nil {
		return risk.OrderLimits{}, err
	}
	return risk.OrderLimits{
		MinOrderNotional:  c.MinOrderNotional,
		MaxOrderNotional:  c.MaxOrderNotional,
		MaxOrderQty:       c.MaxOrderQty,
		MaxPxDeviationPct: c.MaxPxDeviationPct,
		MaxBasisPoints:    c.MaxBasisPoints,
		MaxPxLevels:       c.MaxPxLevels,
		MaxNewOrders:      c.MaxNewOrders,
		NewOrderWindow:    newWindow,
		MaxRejections:     c.MaxRejections,
		RejectionWindow:   rejWindow,
	}, nil
}

// Build converts to the risk package's per-strategy limits type.
func (c StratLimitsConfig) Build() (risk.StratLimits, error) {
	cxlWindow, err := parseWindow("limits.cancel_rate_window", c.CancelRateWindow)
	if err != nil {
		return risk.StratLimits{}, err
	}
	partWindow, err := parseWindow("limits.participation_window", c.ParticipationWindow)
	if err != nil {
		return risk.StratLimits{}, err
	}
	resWindow, err := parseWindow("limits.residual_window", c.ResidualWindow)
	if err != nil {
		return risk.StratLimits{}, err
	}
	return risk.StratLimits{
		MaxOpenOrdersPerSide:   c.MaxOpenOrdersPerSide,
		MaxBasketNotional:      c.MaxBasketNotional,
		MaxOpenNotionalPerSide: c.MaxOpenNotionalPerSide,
		MaxNetFilledNotional:   c.MaxNetFilledNotional,
		MaxConcentration:       c.MaxConcentration,
		CancelRateWindow:       cxlWindow,
		MaxCancelRate:          c.MaxCancelRate,
		ParticipationWindow:    partWindow,
		MaxParticipationRate:   c.MaxParticipationRate,
		ResidualWindow:         resWindow,
		MaxResidualQty:         c.MaxResidualQty,
	}, nil
}
