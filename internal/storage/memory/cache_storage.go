// Package memory keeps cache entries in process memory.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/models"
)

// CacheStorage is a mutex-guarded map implementation of interfaces.CacheStorage.
type CacheStorage struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// NewCacheStorage creates an empty store. A nil clock means time.Now.
func NewCacheStorage(now func() time.Time) *CacheStorage {
	if now == nil {
		now = time.Now
	}
	return &CacheStorage{
		entries: make(map[string]models.CacheEntry),
		now:     now,
	}
}

func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || entry.Expired(s.now()) {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored payload
	entry.Payload = append(json.RawMessage(nil), entry.Payload...)
	return &entry, nil
}

func (s *CacheStorage) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	entry := models.CacheEntry{
		Key:        key,
		StoredAt:   s.now().UTC(),
		TTLSeconds: models.TTLSecondsFor(ttl),
		Payload:    append(json.RawMessage(nil), payload...),
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *CacheStorage) Purge(ctx context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, live or not.
func (s *CacheStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *CacheStorage) Close() error {
	return nil
}

// Manager adapts CacheStorage to interfaces.StorageManager.
type Manager struct {
	cache *CacheStorage
}

// NewManager creates an empty in-process cache.
func NewManager() *Manager {
	return &Manager{cache: NewCacheStorage(nil)}
}

func (m *Manager) CacheStorage() interfaces.CacheStorage { return m.cache }
func (m *Manager) Backend() string                       { return "memory" }
func (m *Manager) Close() error                          { return m.cache.Close() }
