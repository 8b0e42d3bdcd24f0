package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// cacheRecord is the persisted form of a cache entry.
// ExpiresAt is indexed so purges can select expired rows without a full decode.
type cacheRecord struct {
	Key        string
	StoredAt   time.Time
	TTLSeconds int64
	ExpiresAt  int64 `badgerhold:"index"`
	Payload    []byte
}

// CacheStorage implements interfaces.CacheStorage for Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewCacheStorage creates a Badger-backed cache store. A nil clock means time.Now.
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger, now func() time.Time) *CacheStorage {
	if now == nil {
		now = time.Now
	}
	return &CacheStorage{
		db:     db,
		logger: logger,
		now:    now,
	}
}

func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var rec cacheRecord
	if err := s.db.Store().Get(key, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry := &models.CacheEntry{
		Key:        rec.Key,
		StoredAt:   rec.StoredAt,
		TTLSeconds: rec.TTLSeconds,
		Payload:    json.RawMessage(rec.Payload),
	}
	if entry.Expired(s.now()) {
		if err := s.db.Store().Delete(key, &cacheRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete expired cache entry")
		}
		return nil, nil
	}
	return entry, nil
}

func (s *CacheStorage) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	storedAt := s.now().UTC()
	ttlSeconds := models.TTLSecondsFor(ttl)
	rec := cacheRecord{
		Key:        key,
		StoredAt:   storedAt,
		TTLSeconds: ttlSeconds,
		ExpiresAt:  storedAt.Unix() + ttlSeconds,
		Payload:    []byte(payload),
	}
	if err := s.db.Store().Upsert(key, &rec); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	if err := s.db.Store().Delete(key, &cacheRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge removes every record whose expiry is in the past.
func (s *CacheStorage) Purge(ctx context.Context) (int, error) {
	cutoff := s.now().Unix()

	count, err := s.db.Store().Count(&cacheRecord{}, badgerhold.Where("ExpiresAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to count expired cache entries: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&cacheRecord{}, badgerhold.Where("ExpiresAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}

	if rewritten, err := s.db.RunGC(); err != nil {
		s.logger.Warn().Err(err).Msg("Badger value log GC failed")
	} else if rewritten {
		s.logger.Debug().Msg("Badger value log compacted")
	}
	return int(count), nil
}

// Close is handled by the Manager, which owns the database.
func (s *CacheStorage) Close() error {
	return nil
}
