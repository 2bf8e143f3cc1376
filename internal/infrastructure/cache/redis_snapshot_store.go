package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	defaultSnapshotPrefix = "ledger:snapshot:"
	defaultSnapshotTTL    = time.Hour
)

// RedisSnapshotStore puts Redis in front of a durable SnapshotStore.
// Reads go through the cache, writes go to the backing store and evict the
// cached copy. A stale cached snapshot only means a longer replay, because
// loaders always read the events after the snapshot version.
type RedisSnapshotStore struct {
	client    *redis.Client
	next      shared.SnapshotStore
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// SnapshotCacheOption configures a RedisSnapshotStore
type SnapshotCacheOption func(*RedisSnapshotStore)

// WithSnapshotTTL sets how long a cached snapshot lives
func WithSnapshotTTL(ttl time.Duration) SnapshotCacheOption {
	return func(s *RedisSnapshotStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSnapshotCacheLogger sets the logger
func WithSnapshotCacheLogger(logger *zap.Logger) SnapshotCacheOption {
	return func(s *RedisSnapshotStore) {
		s.logger = logger
	}
}

// NewRedisSnapshotStore wraps next with a Redis read-through cache
func NewRedisSnapshotStore(client *redis.Client, next shared.SnapshotStore, opts ...SnapshotCacheOption) *RedisSnapshotStore {
	s := &RedisSnapshotStore{
		client:    client,
		next:      next,
		keyPrefix: defaultSnapshotPrefix,
		ttl:       defaultSnapshotTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSnapshotStore) key(aggregateID string) string {
	return s.keyPrefix + aggregateID
}

// GetLatest returns the cached snapshot, falling back to the backing store.
// Cache failures are logged and never fail the read.
func (s *RedisSnapshotStore) GetLatest(ctx context.Context, aggregateID string) (*shared.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(aggregateID)).Bytes()
	switch {
	case err == nil:
		var snap shared.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
		s.logger.Warn("Dropping corrupt cached snapshot", zap.String("aggregate_id", aggregateID))
		_ = s.client.Del(ctx, s.key(aggregateID))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("Snapshot cache read failed",
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}

	snap, err := s.next.GetLatest(ctx, aggregateID)
	if err != nil || snap == nil {
		return snap, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := s.client.Set(ctx, s.key(aggregateID), data, s.ttl).Err(); err != nil {
			s.logger.Warn("Snapshot cache write failed",
				zap.String("aggregate_id", aggregateID),
				zap.Error(err))
		}
	}
	return snap, nil
}

// Save persists the snapshot and evicts the cached copy
func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot shared.Snapshot) error {
	if err := s.next.Save(ctx, snapshot); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(snapshot.AggregateID)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached snapshot: %w", err)
	}
	return nil
}

var _ shared.SnapshotStore = (*RedisSnapshotStore)(nil)
