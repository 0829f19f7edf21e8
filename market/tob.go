package market

import "time"

// Quote is one priced level: a best bid, a best ask, or a last trade.
type Quote struct {
	Px   float64
	Qty  float64
	Time time.Time
}

func (q Quote) IsZero() bool {
	return q.Px == 0 && q.Qty == 0 && q.Time.IsZero()
}

// TopOfBook is the best bid/ask plus last trade for one symbol.
// LastUpdate is the exchange timestamp of the newest constituent update;
// staleness checks compare it, so it must only move forward.
type TopOfBook struct {
	Symbol     string
	Bid        Quote
	Ask        Quote
	LastTrade  Quote
	LastUpdate time.Time
}

// AggressiveQuote returns the quote a marketable order on side would cross:
// buys lift the ask, sells hit the bid.
func (t TopOfBook) AggressiveQuote(side Side) Quote {
	if side == SideBuy {
		return t.Ask
	}
	return t.Bid
}

func (t TopOfBook) Mid() float64 {
	return (t.Bid.Px + t.Ask.Px) / 2
}

// HasQuote reports whether both sides of the book are populated.
func (t TopOfBook) HasQuote() bool {
	return t.Bid.Px > 0 && t.Ask.Px > 0
}
