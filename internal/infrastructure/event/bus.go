package event

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus is stopped")

// InMemoryEventBus dispatches events synchronously to subscribed handlers.
// Every handler sees the event even when an earlier one fails; the failures
// are joined and returned so the outbox can redeliver.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
}

// Publish delivers events in order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	var errs []error
	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("aggregate_id", event.AggregateID()),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers handler for eventTypes, defaulting to handler.EventTypes()
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start marks the bus as accepting events
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Len()))
	return nil
}

// Stop rejects further publishes. Dispatch is synchronous, so nothing is in flight
// once the last Publish call has returned.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("event bus stopped")
	return nil
}

// dispatch converts a handler panic into an error
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", event.EventType(), r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
