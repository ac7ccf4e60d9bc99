package rendercache

import "time"

// DefaultTTL applies when cache_ttl_minutes is unset or invalid.
const DefaultTTL = 60 * time.Minute

// Pages binds a fixed TTL to the cache, exposing the surface the page
// handlers consume. Handlers never choose expiration themselves.
type Pages struct {
	cache *Cache
	ttl   time.Duration
}

// NewPages creates a page cache with the given TTL.
func NewPages(cache *Cache, ttl time.Duration) *Pages {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Pages{cache: cache, ttl: ttl}
}

// Store saves a rendered payload under the configured TTL.
func (p *Pages) Store(table, key string, value interface{}) error {
	return p.cache.Store(table, key, value, p.ttl)
}

// GetIfFresh decodes a fresh payload into dest, reporting whether one existed.
func (p *Pages) GetIfFresh(table, key string, dest interface{}) (bool, error) {
	return p.cache.GetIfFresh(table, key, dest)
}
