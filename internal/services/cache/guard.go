package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/metrics"
	"github.com/ternarybob/tadawul/internal/models"
)

// Guard wraps a CacheStorage. Backend errors are logged and counted;
// a failed Get is a miss and a failed Set is dropped.
type Guard struct {
	store   interfaces.CacheStorage
	logger  arbor.ILogger
	metrics *metrics.Metrics
	errors  atomic.Int64
}

// NewGuard wraps store. metrics may be nil.
func NewGuard(store interfaces.CacheStorage, logger arbor.ILogger, m *metrics.Metrics) *Guard {
	return &Guard{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Get returns the live entry for key, or nil on miss or backend failure.
func (g *Guard) Get(ctx context.Context, key string) *models.CacheEntry {
	entry, err := g.store.Get(ctx, key)
	if err != nil {
		g.fail("get", key, err)
		return nil
	}
	return entry
}

// Set stores payload under key.
func (g *Guard) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	if err := g.store.Set(ctx, key, payload, ttl); err != nil {
		g.fail("set", key, err)
	}
}

// Delete removes key.
func (g *Guard) Delete(ctx context.Context, key string) {
	if err := g.store.Delete(ctx, key); err != nil {
		g.fail("delete", key, err)
	}
}

// Purge removes expired entries and returns how many went.
func (g *Guard) Purge(ctx context.Context) int {
	removed, err := g.store.Purge(ctx)
	if err != nil {
		g.fail("purge", "", err)
	}
	return removed
}

// Errors returns the number of backend errors seen.
func (g *Guard) Errors() int64 {
	return g.errors.Load()
}

func (g *Guard) fail(op, key string, err error) {
	g.errors.Add(1)
	g.metrics.ObserveCacheError(op)
	g.logger.Warn().
		Err(err).
		Str("op", op).
		Str("key", key).
		Msg("Cache backend error, treating as miss")
}
