package sim

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule drives the simulated handling of orders for matching symbols. Zero
// percentages default to 100 and a zero fill count to 1, so an empty rule is
// the plain happy path.
type Rule struct {
	AckPercent                 float64 `yaml:"ack_percent"`
	FillPercent                float64 `yaml:"fill_percent"`
	TotalFillCount             int     `yaml:"total_fill_count"`
	ContinuesOrderCount        int     `yaml:"continues_order_count"`
	ContinuesSpecialOrderCount int     `yaml:"continues_special_order_count"`

	// Master switch: without it orders stop after OE_NEW and no broker
	// responses are simulated at all.
	SimulateReversePath bool `yaml:"simulate_reverse_path"`

	SimulateNewToRejectOrders       bool `yaml:"simulate_new_to_reject_orders"`
	SimulateNewUnsolicitedCxlOrders bool `yaml:"simulate_new_unsolicited_cxl_orders"`
	SimulateAckToRejectOrders       bool `yaml:"simulate_ack_to_reject_orders"`
	SimulateAckUnsolicitedCxlOrders bool `yaml:"simulate_ack_unsolicited_cxl_orders"`
	SimulateAckToCxlRejOrders       bool `yaml:"simulate_ack_to_cxl_rej_orders"`
	SimulateAvoidFillAfterAck       bool `yaml:"simulate_avoid_fill_after_ack"`
	ForceFullyFill                  bool `yaml:"force_fully_fill"`
	AvoidCxlAckAfterCxlReq          bool `yaml:"avoid_cxl_ack_after_cxl_req"`
}

func (r Rule) normalized() Rule {
	if r.AckPercent <= 0 {
		r.AckPercent = 100
	}
	if r.FillPercent <= 0 {
		r.FillPercent = 100
	}
	if r.TotalFillCount <= 0 {
		r.TotalFillCount = 1
	}
	return r
}

// specialCycle reports whether the rule defines a repeating N-normal /
// M-special order cycle.
func (r Rule) specialCycle() bool {
	return r.ContinuesOrderCount > 0 && r.ContinuesSpecialOrderCount > 0
}

type symbolRule struct {
	pattern string
	re      *regexp.Regexp
	rule    Rule
}

// Config is the ordered list of (pattern, rule) pairs plus the mandatory
// default fallback. Lookup is first match wins.
type Config struct {
	rules      []symbolRule
	def        Rule
	hasDefault bool
}

const defaultKey = "default"

// LoadConfig reads the simulator rules from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sim config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes the symbol_configs mapping, preserving file order so
// earlier patterns win over later ones.
func ParseConfig(data []byte) (*Config, error) {
	var doc struct {
		SymbolConfigs yaml.Node `yaml:"symbol_configs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sim config: %w", err)
	}

	cfg := &Config{def: Rule{}.normalized()}
	if doc.SymbolConfigs.Kind == 0 {
		return cfg, nil
	}
	if doc.SymbolConfigs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("symbol_configs must be a mapping")
	}

	content := doc.SymbolConfigs.Content
	for i := 0; i+1 < len(content); i += 2 {
		key := content[i].Value
		var rule Rule
		if err := content[i+1].Decode(&rule); err != nil {
			return nil, fmt.Errorf("rule %q: %w", key, err)
		}
		if key == defaultKey {
			cfg.def = rule.normalized()
			cfg.hasDefault = true
			continue
		}
		re, err := regexp.Compile("(?i)" + key)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", key, err)
		}
		cfg.rules = append(cfg.rules, symbolRule{pattern: key, re: re, rule: rule.normalized()})
	}
	return cfg, nil
}

// RuleFor returns the first matching rule for symbol, or the default.
func (c *Config) RuleFor(symbol string) Rule {
	for _, sr := range c.rules {
		if sr.re.MatchString(symbol) {
			return sr.rule
		}
	}
	return c.def
}

// Validate checks the known symbol universe against the pattern list and
// returns one warning per symbol matched by more than one pattern. Runs once
// at load instead of on every lookup.
func (c *Config) Validate(symbols []string) []string {
	var warnings []string
	if len(c.rules) > 0 && !c.hasDefault {
		warnings = append(warnings,
			`no "default" rule configured; unmatched symbols get the happy-path rule`)
	}
	for _, sym := range symbols {
		var matched []string
		for _, sr := range c.rules {
			if sr.re.MatchString(sym) {
				matched = append(matched, sr.pattern)
			}
		}
		if len(matched) > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"symbol %q matches multiple patterns [%s]; first wins", sym, strings.Join(matched, ", ")))
		}
	}
	return warnings
}
