package market

import "time"

// DepthLevel is one price level of a market-depth snapshot.
type DepthLevel struct {
	Px  float64
	Qty float64
}

// MarketDepth is one side's ordered level list for a symbol, best price
// first. Snapshots are replaced wholesale on refresh, never merged.
type MarketDepth struct {
	Symbol   string
	Side     Side
	ExchTime time.Time
	Levels   []DepthLevel
}

// PxAtLevel returns the price at a 1-based depth level, clamping to the
// deepest available level when the book is thinner than requested.
func (d MarketDepth) PxAtLevel(level int) (float64, bool) {
	if len(d.Levels) == 0 || level <= 0 {
		return 0, false
	}
	if level > len(d.Levels) {
		level = len(d.Levels)
	}
	return d.Levels[level-1].Px, true
}
