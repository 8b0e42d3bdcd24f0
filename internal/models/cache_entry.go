package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is one stored payload with its freshness metadata.
type CacheEntry struct {
	Key        string          `json:"key"`
	StoredAt   time.Time       `json:"timestamp"`
	TTLSeconds int64           `json:"ttl"`
	Payload    json.RawMessage `json:"data"`
}

// TTL returns the entry lifetime.
func (e *CacheEntry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}

// ExpiresAt returns the instant after which the entry is dead.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL())
}

// Expired reports whether now - storedAt exceeds the TTL.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL()
}

// TTLSecondsFor converts a duration to whole seconds, rounding sub-second TTLs up to 1.
func TTLSecondsFor(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if secs < 1 && ttl > 0 {
		return 1
	}
	return secs
}
