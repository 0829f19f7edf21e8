package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSide(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.True(t, SideBuy.Valid())
	assert.False(t, Side("SHORT").Valid())

	s, err := ParseSide("SELL")
	require.NoError(t, err)
	assert.Equal(t, SideSell, s)

	_, err = ParseSide("hold")
	assert.Error(t, err)
}

func TestTopOfBookAggressiveQuote(t *testing.T) {
	t.Parallel()

	tob := TopOfBook{
		Bid: Quote{Px: 100, Qty: 10},
		Ask: Quote{Px: 101, Qty: 20},
	}
	assert.Equal(t, 101.0, tob.AggressiveQuote(SideBuy).Px)
	assert.Equal(t, 100.0, tob.AggressiveQuote(SideSell).Px)
	assert.Equal(t, 100.5, tob.Mid())
	assert.True(t, tob.HasQuote())
	assert.False(t, TopOfBook{}.HasQuote())
}

func TestQuoteIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Quote{}.IsZero())
	assert.False(t, Quote{Px: 1}.IsZero())
	assert.False(t, Quote{Time: time.Now()}.IsZero())
}

func TestFxRateTable(t *testing.T) {
	t.Parallel()

	fx := NewFxRateTable("USD/INR")

	// Seeded but not yet set.
	_, ok := fx.Get("USD/INR")
	assert.False(t, ok)

	assert.Error(t, fx.Set("EUR/USD", 1.1))

	require.NoError(t, fx.Set("USD/INR", 83.2))
	v, ok := fx.Get("USD/INR")
	require.True(t, ok)
	assert.Equal(t, 83.2, v)

	_, ok = fx.Get("EUR/USD")
	assert.False(t, ok)
}
