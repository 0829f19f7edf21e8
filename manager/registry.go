package manager

import (
	"sync"

	"github.com/soumyarai2050/Flux-sub002/market"
	"github.com/soumyarai2050/Flux-sub002/stratcache"
)

// OrderRef resolves an order id back to its strategy and leg, and remembers
// what the admission decision consumed so terminal events can restore the
// unfilled remainder proportionally.
type OrderRef struct {
	StrategyID       string
	Symbol           string
	Side             market.Side
	Qty              float64
	ConsumedNotional float64
}

// Registry is the explicit owner of every live StratCache plus the
// process-wide order-id index and fx table. The manager holds the only
// mutable handle; executors receive cache references, never the registry.
type Registry struct {
	mu       sync.Mutex
	caches   map[string]*stratcache.StratCache
	bySymbol map[string][]*stratcache.StratCache
	orders   map[string]OrderRef
	fx       *market.FxRateTable
}

func NewRegistry(fx *market.FxRateTable) *Registry {
	return &Registry{
		caches:   make(map[string]*stratcache.StratCache),
		bySymbol: make(map[string][]*stratcache.StratCache),
		orders:   make(map[string]OrderRef),
		fx:       fx,
	}
}

func (r *Registry) Fx() *market.FxRateTable { return r.fx }

// Add registers a cache under its strategy id and both leg symbols.
func (r *Registry) Add(c *stratcache.StratCache) {
	cfg, _, _ := c.Config()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caches[cfg.StrategyID]; ok {
		return
	}
	r.caches[cfg.StrategyID] = c
	r.bySymbol[cfg.Leg1.Symbol] = append(r.bySymbol[cfg.Leg1.Symbol], c)
	r.bySymbol[cfg.Leg2.Symbol] = append(r.bySymbol[cfg.Leg2.Symbol], c)
}

// Remove drops a cache and its symbol routes.
func (r *Registry) Remove(strategyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[strategyID]
	if !ok {
		return
	}
	delete(r.caches, strategyID)
	for sym, list := range r.bySymbol {
		kept := list[:0]
		for _, other := range list {
			if other != c {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(r.bySymbol, sym)
		} else {
			r.bySymbol[sym] = kept
		}
	}
}

func (r *Registry) Get(strategyID string) (*stratcache.StratCache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[strategyID]
	return c, ok
}

// BySymbol returns every cache with a leg on symbol.
func (r *Registry) BySymbol(symbol string) []*stratcache.StratCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stratcache.StratCache, len(r.bySymbol[symbol]))
	copy(out, r.bySymbol[symbol])
	return out
}

// All returns every live cache.
func (r *Registry) All() []*stratcache.StratCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stratcache.StratCache, 0, len(r.caches))
	for _, c := range r.caches {
		out = append(out, c)
	}
	return out
}

func (r *Registry) RegisterOrder(orderID string, ref OrderRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderID] = ref
}

func (r *Registry) LookupOrder(orderID string) (OrderRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.orders[orderID]
	return ref, ok
}

func (r *Registry) DropOrder(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
}
