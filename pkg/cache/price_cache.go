package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// PriceCache holds the last observed price per instrument key. It is
// sharded so the mark hot path does not serialize every instrument on
// one lock. Each ledger owns its own instance; nothing here is global.
type PriceCache struct {
	shards [numShards]*priceShard
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]priceEntry
}

type priceEntry struct {
	price     float64
	updatedAt time.Time
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	c := &PriceCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{items: make(map[string]priceEntry)}
	}
	return c
}

func (c *PriceCache) getShard(key string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a price for an instrument key.
func (c *PriceCache) Set(key string, price float64) {
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.items[key] = priceEntry{price: price, updatedAt: time.Now()}
	shard.mu.Unlock()
}

// Get retrieves the last price for an instrument key.
func (c *PriceCache) Get(key string) (float64, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, ok := shard.items[key]
	shard.mu.RUnlock()
	return entry.price, ok
}

// GetWithAge retrieves the price and how long ago it was observed.
func (c *PriceCache) GetWithAge(key string) (float64, time.Duration, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, ok := shard.items[key]
	shard.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	return entry.price, time.Since(entry.updatedAt), true
}

// Snapshot returns a copy of all current prices.
func (c *PriceCache) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	for _, shard := range c.shards {
		shard.mu.RLock()
		for k, e := range shard.items {
			out[k] = e.price
		}
		shard.mu.RUnlock()
	}
	return out
}

// Len returns the number of tracked instruments.
func (c *PriceCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}
