package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

const defaultSequencePrefix = "ledger:seq:"

// RedisSequenceGenerator hands out numbers with INCR. Counters survive a
// restart only as far as the Redis persistence settings allow; run Redis with
// AOF when invoice numbers must never repeat.
type RedisSequenceGenerator struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSequenceGenerator creates a Redis-backed sequence generator
func NewRedisSequenceGenerator(client *redis.Client) *RedisSequenceGenerator {
	return &RedisSequenceGenerator{client: client, keyPrefix: defaultSequencePrefix}
}

// Next increments and returns the counter, starting at 1
func (g *RedisSequenceGenerator) Next(ctx context.Context, tenantID uuid.UUID, scope string) (int64, error) {
	if tenantID == uuid.Nil || scope == "" {
		return 0, shared.NewValidationError("INVALID_SEQUENCE_SCOPE", "Sequence needs a tenant and a scope")
	}
	value, err := g.client.Incr(ctx, g.keyPrefix+tenantID.String()+":"+scope).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", scope, err)
	}
	return value, nil
}

var _ shared.SequenceGenerator = (*RedisSequenceGenerator)(nil)
