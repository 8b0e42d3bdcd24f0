package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStorage(t *testing.T) {
	now := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	storage := NewCacheStorage(func() time.Time { return now })
	ctx := context.Background()

	payload := json.RawMessage(`{"a":1}`)
	require.NoError(t, storage.Set(ctx, "k", payload, 30*time.Second))

	// Mutating the caller's buffer must not affect the stored copy
	payload[2] = 'b'

	entry, err := storage.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.JSONEq(t, `{"a":1}`, string(entry.Payload))

	now = now.Add(31 * time.Second)
	entry, err = storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.Equal(t, 1, storage.Len(), "expired entries stay until purged")
	removed, err := storage.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, storage.Len())
}

func TestCacheStorage_Concurrent(t *testing.T) {
	storage := NewCacheStorage(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = storage.Set(ctx, "k", json.RawMessage(`1`), time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _ = storage.Get(ctx, "k")
		}()
	}
	wg.Wait()

	require.NoError(t, storage.Delete(ctx, "k"))
	entry, err := storage.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}
