package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

const defaultIdempotencyPrefix = "ledger:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore using Redis, so every
// ledger instance sees the same processed-key set
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store with an existing Redis client.
// The caller keeps ownership of the client.
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed uses SET NX with a TTL, so concurrent consumers of the same
// key see exactly one true
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed checks if a key has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return exists > 0, nil
}

// Unmark removes a key after a failed delivery
func (s *RedisIdempotencyStore) Unmark(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to unmark event: %w", err)
	}
	return nil
}

// Close is a no-op; the client belongs to whoever created the store
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
