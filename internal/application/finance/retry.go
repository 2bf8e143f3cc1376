package finance

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// RetryConfig bounds the reload-and-retry loop run on optimistic concurrency conflicts
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns 3 attempts starting at 50ms
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

func (c RetryConfig) policy(ctx context.Context) backoff.BackOff {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1)), ctx)
}

// retryOnConflict runs fn until it succeeds, fails with anything other than a
// concurrency conflict, or the attempts run out. fn must reload the aggregate
// on every call.
func retryOnConflict(ctx context.Context, cfg RetryConfig, onRetry func(error), fn func(ctx context.Context) error) error {
	op := func() error {
		err := fn(ctx)
		if err == nil || shared.IsKind(err, shared.KindConcurrencyConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err)
		}
	}
	return backoff.RetryNotify(op, cfg.policy(ctx), notify)
}
