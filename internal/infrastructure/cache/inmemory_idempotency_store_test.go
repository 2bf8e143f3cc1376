package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

func reconcilerKey() string {
	return shared.IdempotencyKey("payment-reconciler", uuid.NewString())
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("second mark of the same key is a duplicate", func(t *testing.T) {
		key := reconcilerKey()

		isNew, err := store.MarkProcessed(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("same event for another consumer is new", func(t *testing.T) {
		eventID := uuid.NewString()

		isNew, err := store.MarkProcessed(ctx, shared.IdempotencyKey("payment-reconciler", eventID), time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, shared.IdempotencyKey("vat-register", eventID), time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_Unmark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()
	key := reconcilerKey()

	_, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Unmark(ctx, key))

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, processed)

	// unmarking an unknown key is fine
	assert.NoError(t, store.Unmark(ctx, "never-seen"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(WithClock(clock.Now), WithSweepInterval(time.Hour))
	defer store.Close()
	ctx := context.Background()
	key := reconcilerKey()

	_, err := store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(time.Second)
	processed, err = store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, processed)

	isNew, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(WithClock(clock.Now), WithSweepInterval(time.Hour))
	defer store.Close()
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Minute)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", 24*time.Hour)
	require.Equal(t, 3, store.Size())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, store.sweep())
	assert.Equal(t, 1, store.Size())

	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()
	key := reconcilerKey()

	const workers = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, key, time.Hour)
			if err == nil && isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
