package adapter

import (
	"sync"
	"time"
)

// marketsCache memoizes LoadMarkets() results per venue with a coarse TTL,
// invalidated early on SymbolNotFound (§9 "cached market metadata"). The
// Python original gets this for free from ccxt's own lru_cache(maxsize=16)
// around get_exchange(); here it's an explicit field each adapter embeds.
type marketsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	fetched time.Time
	data    map[string]MarketMeta
}

// DefaultMarketsTTL matches §9's "coarse TTL (e.g. 10 minutes)".
const DefaultMarketsTTL = 10 * time.Minute

func newMarketsCache() *marketsCache {
	return &marketsCache{ttl: DefaultMarketsTTL}
}

// get returns the cached markets map if still fresh, and whether it was a
// hit.
func (c *marketsCache) get() (map[string]MarketMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil || time.Since(c.fetched) > c.ttl {
		return nil, false
	}
	return c.data, true
}

// set stores a freshly-fetched markets map.
func (c *marketsCache) set(data map[string]MarketMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.fetched = time.Now()
}

// invalidate forces the next get() to miss; called on SymbolNotFound so a
// newly-listed market is picked up without waiting out the full TTL.
func (c *marketsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}
