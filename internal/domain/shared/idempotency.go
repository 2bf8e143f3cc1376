package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which (consumer, event) pairs were already handled
type IdempotencyStore interface {
	// MarkProcessed returns true if the key was newly marked, false if it was already present
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Unmark releases a key so a failed delivery can be retried
	Unmark(ctx context.Context, key string) error
	Close() error
}

// IdempotencyKey scopes an event ID to a consumer, so two projections can
// both process the same event once
func IdempotencyKey(consumer, eventID string) string {
	return consumer + ":" + eventID
}

// IdempotencyConfig holds configuration for idempotent consumers
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered. Default: 24 hours
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
