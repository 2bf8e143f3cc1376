package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Factory builds the Redis-backed ledger stores when Redis is configured and
// hands back the relational or in-memory fallbacks when it is not
type Factory struct {
	redisConfig           config.RedisConfig
	client                *redis.Client
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// process-local idempotency. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient uses an existing client instead of dialing one
func WithClient(client *redis.Client) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new factory. Redis is dialed once, on first use.
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the shared Redis client, or nil when Redis is disabled
func (f *Factory) Client() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled() {
		return nil, nil
	}
	client, err := NewRedisClient(&f.redisConfig)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// IdempotencyStore returns a Redis store when Redis is reachable and an
// in-memory one otherwise, unless fallback is disabled
func (f *Factory) IdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.Client()
	if err == nil && client != nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}

	if err != nil && !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	if err != nil {
		f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
			"This may cause duplicate event processing in distributed deployments.",
			zap.Error(err),
		)
	}
	return NewInMemoryIdempotencyStore(), nil
}

// SnapshotStore wraps durable with a Redis cache when Redis is enabled
func (f *Factory) SnapshotStore(durable shared.SnapshotStore) (shared.SnapshotStore, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return durable, nil
	}
	return NewRedisSnapshotStore(client, durable, WithSnapshotCacheLogger(f.logger)), nil
}

// SequenceGenerator returns the Redis generator when Redis is enabled and
// durable otherwise
func (f *Factory) SequenceGenerator(durable shared.SequenceGenerator) (shared.SequenceGenerator, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return durable, nil
	}
	return NewRedisSequenceGenerator(client), nil
}

// Close releases the shared client
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
