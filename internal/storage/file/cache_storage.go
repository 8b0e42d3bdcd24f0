// Package file stores cache entries as one JSON file per key.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/models"
)

const entryExt = ".json"

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// CacheStorage implements interfaces.CacheStorage on a directory.
// Writes go to a temp file in the same directory, are fsynced, then renamed over the target,
// so readers never observe a partial entry.
type CacheStorage struct {
	dir    string
	logger arbor.ILogger
	now    func() time.Time
}

// Option configures CacheStorage.
type Option func(*CacheStorage)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *CacheStorage) {
		s.now = now
	}
}

// NewCacheStorage creates the directory if needed.
func NewCacheStorage(dir string, logger arbor.ILogger, opts ...Option) (*CacheStorage, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &CacheStorage{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debug().Str("dir", dir).Msg("File cache storage initialized")
	return s, nil
}

// Get reads the entry file. Corrupt files are removed and reported; expired entries read as a miss.
func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	path := s.path(key)
	data, info, err := readEntryFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.removeIfUnchanged(path, info)
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrCacheCorrupt, filepath.Base(path), err)
	}

	// Expired files are left for Purge; a concurrent Set may already be replacing this one
	if entry.Expired(s.now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set writes the entry atomically.
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

	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry file.
func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge removes expired and corrupt entries.
func (s *CacheStorage) Purge(ctx context.Context) (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	now := s.now()
	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), entryExt) {
			continue
		}

		path := filepath.Join(s.dir, f.Name())
		data, info, err := readEntryFile(path)
		if err != nil {
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil || entry.Expired(now) {
			if s.removeIfUnchanged(path, info) {
				removed++
			}
		}
	}
	return removed, nil
}

// Close is a no-op for the file backend.
func (s *CacheStorage) Close() error {
	return nil
}

// path maps a key to its file. Keys that are not filename-safe are hashed.
func (s *CacheStorage) path(key string) string {
	name := key
	if !safeKey.MatchString(key) {
		sum := sha256.Sum256([]byte(key))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(s.dir, name+entryExt)
}

// readEntryFile returns the file contents together with the identity of the file that was read.
func readEntryFile(path string) ([]byte, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}

// removeIfUnchanged deletes path only while it is still the file described by info.
// A Set renames a new file over the path, which changes its identity, so fresh entries survive.
func (s *CacheStorage) removeIfUnchanged(path string, info os.FileInfo) bool {
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !os.SameFile(info, current) {
		s.logger.Debug().Str("path", path).Msg("Cache entry replaced since read, keeping it")
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove cache entry")
		return false
	}
	return true
}

// Manager adapts CacheStorage to interfaces.StorageManager.
type Manager struct {
	cache *CacheStorage
}

// NewManager creates the cache directory.
func NewManager(logger arbor.ILogger, dir string) (*Manager, error) {
	cache, err := NewCacheStorage(dir, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{cache: cache}, nil
}

func (m *Manager) CacheStorage() interfaces.CacheStorage { return m.cache }
func (m *Manager) Backend() string                       { return "file" }
func (m *Manager) Close() error                          { return m.cache.Close() }
