package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/tadawul/internal/models"
)

// ErrCacheCorrupt is returned when a stored entry cannot be decoded. The entry is removed.
var ErrCacheCorrupt = errors.New("cache entry corrupt")

// CacheStorage stores JSON payloads with a time-to-live.
// Implementations must be safe for concurrent use; concurrent writers to one key
// leave exactly one complete entry (last writer wins).
type CacheStorage interface {
	// Get returns the live entry for key, or nil, nil when absent or expired
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Set stores payload under key for ttl
	Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Purge removes expired entries and returns how many were removed
	Purge(ctx context.Context) (int, error)

	Close() error
}
