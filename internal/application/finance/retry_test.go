package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()
	conflict := shared.ErrStreamConflict("INV-1", 3, 4)

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls, retries := 0, 0
		err := retryOnConflict(ctx, fastRetry(3), func(error) { retries++ }, func(context.Context) error {
			calls++
			if calls < 3 {
				return conflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("returns the conflict once attempts run out", func(t *testing.T) {
		calls := 0
		err := retryOnConflict(ctx, fastRetry(2), nil, func(context.Context) error {
			calls++
			return conflict
		})
		assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		rule := shared.NewBusinessRuleError("OVERPAYMENT", "too much")
		err := retryOnConflict(ctx, fastRetry(5), nil, func(context.Context) error {
			calls++
			return rule
		})
		assert.ErrorIs(t, err, rule)
		assert.Equal(t, 1, calls)

		boom := errors.New("disk full")
		calls = 0
		err = retryOnConflict(ctx, fastRetry(5), nil, func(context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_ = retryOnConflict(ctx, RetryConfig{}, nil, func(context.Context) error {
			calls++
			return conflict
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := retryOnConflict(cctx, RetryConfig{MaxAttempts: 10, InitialInterval: time.Hour}, nil, func(context.Context) error {
			calls++
			cancel()
			return conflict
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
