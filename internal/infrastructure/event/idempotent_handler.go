package event

import (
	"context"
	"sync/atomic"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats is a snapshot of an IdempotentHandler's counters
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler makes a consumer process each event at most once.
// Keys are scoped by consumer name, so the same event can feed several
// consumers. A failed delivery releases its key so redelivery is not skipped.
type IdempotentHandler struct {
	consumer string
	handler  shared.EventHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	logger   *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// NewIdempotentHandler wraps handler under the given consumer name
func NewIdempotentHandler(
	consumer string,
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		consumer: consumer,
		handler:  handler,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		logger:   logger.With(zap.String("consumer", consumer)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes event unless this consumer already has
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := shared.IdempotencyKey(h.consumer, event.EventID().String())
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}

	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		// process anyway; handlers tolerate redelivery
		h.logger.Warn("idempotency check failed, processing anyway", append(fields, zap.Error(err))...)
	case !isNew:
		h.duplicate.Add(1)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if unmarkErr := h.store.Unmark(ctx, key); unmarkErr != nil {
			h.logger.Error("failed to release idempotency key", append(fields, zap.Error(unmarkErr))...)
		}
		return err
	}
	h.processed.Add(1)
	return nil
}

// Stats returns the handler's counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
