package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/interfaces"
	"github.com/ternarybob/tadawul/internal/storage/badger"
	"github.com/ternarybob/tadawul/internal/storage/file"
	"github.com/ternarybob/tadawul/internal/storage/memory"
	"github.com/ternarybob/tadawul/internal/storage/redis"
)

// NewStorageManager creates the cache storage manager selected by config.Cache.Backend.
// An unreachable Redis server degrades to the file backend so the service still starts.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Cache.Backend {
	case "file", "":
		return file.NewManager(logger, config.Cache.Dir)
	case "memory":
		logger.Info().Msg("Using in-memory cache storage")
		return memory.NewManager(), nil
	case "badger":
		return badger.NewManager(logger, &config.Cache.Badger)
	case "redis":
		manager, err := redis.NewManager(logger, &config.Cache.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("fallback", "file").Msg("Redis cache unavailable, falling back")
			return file.NewManager(logger, config.Cache.Dir)
		}
		return manager, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", config.Cache.Backend)
	}
}
