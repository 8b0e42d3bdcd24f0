package interfaces

// StorageManager owns the configured cache backend.
type StorageManager interface {
	CacheStorage() CacheStorage
	Backend() string
	Close() error
}
