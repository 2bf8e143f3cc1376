package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/config"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/memory"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisIdempotencyStore(client, "")
	ctx := context.Background()
	key := reconcilerKey()

	isNew, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, mr.Exists(defaultIdempotencyPrefix+key))

	isNew, err = store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)

	t.Run("ttl expiry", func(t *testing.T) {
		short := reconcilerKey()
		_, err := store.MarkProcessed(ctx, short, time.Minute)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		processed, err := store.IsProcessed(ctx, short)
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("unmark releases the key", func(t *testing.T) {
		require.NoError(t, store.Unmark(ctx, key))
		isNew, err := store.MarkProcessed(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("errors surface when redis is down", func(t *testing.T) {
		mr.Close()
		_, err := store.MarkProcessed(ctx, reconcilerKey(), time.Hour)
		assert.Error(t, err)
	})
}

func TestRedisSequenceGenerator(t *testing.T) {
	_, client := newRedis(t)
	gen := NewRedisSequenceGenerator(client)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	for want := int64(1); want <= 3; want++ {
		got, err := gen.Next(ctx, tenantA, "INV-2024-2025")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := gen.Next(ctx, tenantB, "INV-2024-2025")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = gen.Next(ctx, uuid.Nil, "INV-2024-2025")
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

type countingSnapshots struct {
	shared.SnapshotStore
	reads int
}

func (c *countingSnapshots) GetLatest(ctx context.Context, aggregateID string) (*shared.Snapshot, error) {
	c.reads++
	return c.SnapshotStore.GetLatest(ctx, aggregateID)
}

func TestRedisSnapshotStore(t *testing.T) {
	mr, client := newRedis(t)
	durable := &countingSnapshots{SnapshotStore: memory.NewSnapshotStore()}
	store := NewRedisSnapshotStore(client, durable, WithSnapshotTTL(time.Minute))
	ctx := context.Background()
	tenantID := uuid.New()

	snap, err := store.GetLatest(ctx, "INV-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.False(t, mr.Exists(defaultSnapshotPrefix+"INV-1"))

	require.NoError(t, store.Save(ctx, shared.Snapshot{
		AggregateID: "INV-1", AggregateType: "Invoice", TenantID: tenantID,
		Version: 20, State: json.RawMessage(`{"status":"APPROVED"}`),
	}))

	t.Run("read through then served from cache", func(t *testing.T) {
		durable.reads = 0
		for i := 0; i < 3; i++ {
			snap, err := store.GetLatest(ctx, "INV-1")
			require.NoError(t, err)
			require.NotNil(t, snap)
			assert.Equal(t, 20, snap.Version)
			assert.Equal(t, tenantID, snap.TenantID)
		}
		assert.Equal(t, 1, durable.reads)
		assert.True(t, mr.Exists(defaultSnapshotPrefix+"INV-1"))
	})

	t.Run("save evicts the cached copy", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, shared.Snapshot{
			AggregateID: "INV-1", AggregateType: "Invoice", TenantID: tenantID,
			Version: 40, State: json.RawMessage(`{"status":"PAID"}`),
		}))
		assert.False(t, mr.Exists(defaultSnapshotPrefix+"INV-1"))

		snap, err := store.GetLatest(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, 40, snap.Version)
	})

	t.Run("corrupt entry falls back to the durable store", func(t *testing.T) {
		require.NoError(t, mr.Set(defaultSnapshotPrefix+"INV-1", "not json"))
		snap, err := store.GetLatest(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, 40, snap.Version)
	})

	t.Run("cache outage does not fail reads", func(t *testing.T) {
		mr.Close()
		snap, err := store.GetLatest(ctx, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, 40, snap.Version)
	})
}

type failingSnapshots struct{ shared.SnapshotStore }

func (failingSnapshots) Save(context.Context, shared.Snapshot) error {
	return errors.New("disk full")
}

func TestRedisSnapshotStore_SaveFailureKeepsCache(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set(defaultSnapshotPrefix+"PAY-1", `{"aggregate_id":"PAY-1","version":3}`))
	store := NewRedisSnapshotStore(client, failingSnapshots{memory.NewSnapshotStore()})

	err := store.Save(context.Background(), shared.Snapshot{AggregateID: "PAY-1", Version: 6})
	require.Error(t, err)
	assert.True(t, mr.Exists(defaultSnapshotPrefix+"PAY-1"))
}

func TestFactory(t *testing.T) {
	t.Run("redis disabled falls back", func(t *testing.T) {
		f := NewFactory(config.RedisConfig{})
		defer f.Close()

		idem, err := f.IdempotencyStore()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryIdempotencyStore{}, idem)
		_ = idem.Close()

		durableSnaps := memory.NewSnapshotStore()
		snaps, err := f.SnapshotStore(durableSnaps)
		require.NoError(t, err)
		assert.Same(t, durableSnaps, snaps)

		durableSeq := memory.NewSequenceGenerator()
		seq, err := f.SequenceGenerator(durableSeq)
		require.NoError(t, err)
		assert.Same(t, durableSeq, seq)
	})

	t.Run("redis enabled builds redis stores", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewFactory(redisConfigFor(t, mr))
		defer f.Close()

		idem, err := f.IdempotencyStore()
		require.NoError(t, err)
		assert.IsType(t, &RedisIdempotencyStore{}, idem)

		snaps, err := f.SnapshotStore(memory.NewSnapshotStore())
		require.NoError(t, err)
		assert.IsType(t, &RedisSnapshotStore{}, snaps)

		seq, err := f.SequenceGenerator(memory.NewSequenceGenerator())
		require.NoError(t, err)
		assert.IsType(t, &RedisSequenceGenerator{}, seq)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := redisConfigFor(t, mr)
		mr.Close()

		idem, err := NewFactory(cfg).IdempotencyStore()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryIdempotencyStore{}, idem)
		_ = idem.Close()

		_, err = NewFactory(cfg, WithInMemoryFallback(false)).IdempotencyStore()
		assert.Error(t, err)
	})
}
