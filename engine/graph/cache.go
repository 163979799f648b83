package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CachingStore wraps a Store and caches schema-context snapshots per
// tenant. Lookups and path searches pass through untouched; only the
// snapshot fetch is cached, so a query always sees one immutable
// snapshot without refetching it per stage.
type CachingStore struct {
	Store
	cache *ristretto.Cache[string, *SchemaContext]
	ttl   time.Duration
}

// NewCachingStore wraps the store with a TTL-bounded snapshot cache.
func NewCachingStore(store Store, ttl time.Duration) (*CachingStore, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *SchemaContext]{
		NumCounters: 10_000,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("graph: failed to create schema cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachingStore{Store: store, cache: cache, ttl: ttl}, nil
}

// GetSchemaContext returns the cached snapshot for the tenant, fetching
// and caching it on a miss.
func (c *CachingStore) GetSchemaContext(ctx context.Context, tenantID string) (*SchemaContext, error) {
	if snapshot, ok := c.cache.Get(tenantID); ok {
		return snapshot, nil
	}
	snapshot, err := c.Store.GetSchemaContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cost := int64(len(snapshot.Tables) + len(snapshot.GlossaryTerms) + 1)
	c.cache.SetWithTTL(tenantID, snapshot, cost, c.ttl)
	c.cache.Wait()
	return snapshot, nil
}

// Close releases cache resources.
func (c *CachingStore) Close() {
	c.cache.Close()
}
