package market

import (
	"fmt"
	"sync"
)

// FxRateTable maps currency pairs (e.g. "USD|SGD") to their closing price,
// used to normalize every notional to the account currency. Supported pairs
// are seeded at construction and stay unset until an overview update lands.
type FxRateTable struct {
	mu    sync.RWMutex
	rates map[string]*float64
}

func NewFxRateTable(pairs ...string) *FxRateTable {
	t := &FxRateTable{rates: make(map[string]*float64, len(pairs))}
	for _, p := range pairs {
		t.rates[p] = nil
	}
	return t
}

// Set stores the closing price for a seeded pair.
func (t *FxRateTable) Set(pair string, closing float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rates[pair]; !ok {
		return fmt.Errorf("fx pair %q not supported", pair)
	}
	v := closing
	t.rates[pair] = &v
	return nil
}

// Get returns the closing price for pair, or false while still unset.
func (t *FxRateTable) Get(pair string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rates[pair]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}
