package cache

import (
	"fmt"
	"sync"
	"time"

	"main/internal/book"
	"main/internal/exchange"
)

// TTLs match the producers' publish cadence: a reader finding an
// expired value must treat it as absent and abstain from trading.
const (
	DepthTTL    = 5 * time.Minute
	BalancesTTL = time.Hour
)

// Cache is the shared in-process store between the ingestion workers
// (single producer per key) and the buy/sell decision loops. Values
// are immutable snapshots; readers never observe partial writes.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores value under key for ttl. A non-positive ttl stores the
// value without expiry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Get returns the value under key, or false when the key is missing or
// past its ttl.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func DepthKey(ticker, exchangeName string) string {
	return fmt.Sprintf("%s_%s_depth", ticker, exchangeName)
}

func BalancesKey(exchangeName, account string) string {
	return fmt.Sprintf("%s_%s_balances", exchangeName, account)
}

// SetDepth publishes a book snapshot with the standard TTL.
func (c *Cache) SetDepth(ticker, exchangeName string, depth book.Depth) {
	c.Set(DepthKey(ticker, exchangeName), depth, DepthTTL)
}

// Depth reads the current book snapshot, false when absent or stale.
func (c *Cache) Depth(ticker, exchangeName string) (book.Depth, bool) {
	v, ok := c.Get(DepthKey(ticker, exchangeName))
	if !ok {
		return book.Depth{}, false
	}
	depth, ok := v.(book.Depth)
	return depth, ok
}

// SetBalances publishes account balances with the standard TTL.
func (c *Cache) SetBalances(exchangeName, account string, balances exchange.Balances) {
	c.Set(BalancesKey(exchangeName, account), balances, BalancesTTL)
}

// Balances reads the cached account balances, false when absent or stale.
func (c *Cache) Balances(exchangeName, account string) (exchange.Balances, bool) {
	v, ok := c.Get(BalancesKey(exchangeName, account))
	if !ok {
		return nil, false
	}
	balances, ok := v.(exchange.Balances)
	return balances, ok
}

// Once reports whether key was absent and marks it for ttl. Used for
// rate-limiting side effects such as the last-order timestamp write.
func (c *Cache) Once(key string, ttl time.Duration) bool {
	if _, ok := c.Get(key); ok {
		return false
	}
	c.Set(key, true, ttl)
	return true
}
