package shared

import "context"

// EventHandler consumes ledger events relayed from the outbox. Delivery is
// at-least-once, so Handle may see the same event more than once.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the persisted type names the handler wants; empty means all
	EventTypes() []string
}

// EventPublisher is what the outbox relay hands decoded events to
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber lets projections and workflows register with the relay
type EventSubscriber interface {
	// Subscribe falls back to handler.EventTypes() when no types are given
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus is the in-process fan-out between the outbox processor and consumers
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventRecorder writes appended events to the outbox inside the append transaction.
// txProvider is the store's transaction handle (*gorm.DB for the relational store).
type EventRecorder interface {
	Record(ctx context.Context, txProvider any, envelopes ...EventEnvelope) error
}
