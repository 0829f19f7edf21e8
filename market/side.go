package market

import "fmt"

// Side is the direction of an order or of one strategy leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func ParseSide(v string) (Side, error) {
	switch Side(v) {
	case SideBuy, SideSell:
		return Side(v), nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}
