// Package redis stores cache entries in Redis with native key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/models"
)

const (
	pingTimeout = 5 * time.Second
	scanBatch   = 200
)

// CacheStorage implements interfaces.CacheStorage on a Redis client.
// Entries carry the same envelope as the file backend; Redis expires them at ttl.
type CacheStorage struct {
	client redis.UniversalClient
	prefix string
	logger arbor.ILogger
	now    func() time.Time
}

// NewCacheStorage connects and pings the server.
func NewCacheStorage(logger arbor.ILogger, config *common.RedisConfig) (*CacheStorage, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{config.Addr},
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	logger.Info().Str("addr", config.Addr).Int("db", config.DB).Msg("Redis cache storage initialized")
	return NewCacheStorageWithClient(client, config.Prefix, logger), nil
}

// NewCacheStorageWithClient wraps an existing client.
func NewCacheStorageWithClient(client redis.UniversalClient, prefix string, logger arbor.ILogger) *CacheStorage {
	return &CacheStorage{
		client: client,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (s *CacheStorage) key(key string) string {
	return s.prefix + key
}

func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.client.Del(ctx, s.key(key))
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrCacheCorrupt, key, err)
	}
	if entry.Expired(s.now()) {
		return nil, nil
	}
	return &entry, nil
}

func (s *CacheStorage) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	entry := models.CacheEntry{
		Key:        key,
		StoredAt:   s.now().UTC(),
		TTLSeconds: models.TTLSecondsFor(ttl),
		Payload:    payload,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, entry.TTL()).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge scans the prefix and removes entries that cannot be decoded.
// Expiry itself is handled by Redis.
func (s *CacheStorage) Purge(ctx context.Context) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		data, err := s.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var entry models.CacheEntry
		if json.Unmarshal(data, &entry) == nil && !entry.Expired(s.now()) {
			continue
		}
		if err := s.client.Del(ctx, k).Err(); err == nil {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return removed, nil
}

func (s *CacheStorage) Close() error {
	return s.client.Close()
}

// Manager adapts CacheStorage to interfaces.StorageManager.
type Manager struct {
	cache *CacheStorage
}

// NewManager connects to Redis.
func NewManager(logger arbor.ILogger, config *common.RedisConfig) (*Manager, error) {
	cache, err := NewCacheStorage(logger, config)
	if err != nil {
		return nil, err
	}
	return &Manager{cache: cache}, nil
}

func (m *Manager) CacheStorage() interfaces.CacheStorage { return m.cache }
func (m *Manager) Backend() string                       { return "redis" }
func (m *Manager) Close() error                          { return m.cache.Close() }
