package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// EventSourced is implemented by every aggregate whose state is derived from its event stream
type EventSourced interface {
	AggregateID() string
	AggregateType() string
	AggregateTenantID() uuid.UUID
	GetVersion() int
	PersistedVersion() int
	GetUncommittedEvents() []DomainEvent
	MarkEventsCommitted()
	ReplayEvent(event DomainEvent) error
}

// Snapshottable aggregates can be serialized and restored without replaying their history
type Snapshottable interface {
	EventSourced
	ToSnapshot() ([]byte, error)
	RestoreSnapshot(state []byte, version int) error
}

// AggregateRoot is the replay/apply engine shared by all event-sourced aggregates.
// E is the closed set of events the aggregate accepts.
type AggregateRoot[E DomainEvent] struct {
	id          string
	aggType     string
	tenantID    uuid.UUID
	version     int
	uncommitted []E
}

// SetIdentity binds the root to its stream. Called once by factories and loaders.
func (a *AggregateRoot[E]) SetIdentity(id, aggType string, tenantID uuid.UUID) {
	a.id = id
	a.aggType = aggType
	a.tenantID = tenantID
}

// AggregateID returns the stream key
func (a *AggregateRoot[E]) AggregateID() string {
	return a.id
}

// AggregateType returns the aggregate type name
func (a *AggregateRoot[E]) AggregateType() string {
	return a.aggType
}

// AggregateTenantID returns the owning tenant
func (a *AggregateRoot[E]) AggregateTenantID() uuid.UUID {
	return a.tenantID
}

// GetVersion returns the number of events applied, including uncommitted ones
func (a *AggregateRoot[E]) GetVersion() int {
	return a.version
}

// PersistedVersion returns the version the stream had when the aggregate was loaded.
// This is the expected version for the next append.
func (a *AggregateRoot[E]) PersistedVersion() int {
	return a.version - len(a.uncommitted)
}

// Raise stamps a new event with the next stream version, applies it through when
// and buffers it until the caller confirms persistence.
func (a *AggregateRoot[E]) Raise(event E, when func(E) error) error {
	b := event.base()
	b.Version = a.version + 1
	if b.AggID == "" {
		b.AggID = a.id
	}
	if b.AggType == "" {
		b.AggType = a.aggType
	}
	if b.TenantIDValue == uuid.Nil {
		b.TenantIDValue = a.tenantID
	}
	if err := when(event); err != nil {
		return err
	}
	a.version++
	a.uncommitted = append(a.uncommitted, event)
	return nil
}

// Replay applies a stored event. Events must arrive in stream order with no gaps.
func (a *AggregateRoot[E]) Replay(event E, when func(E) error) error {
	if event.StreamVersion() != a.version+1 {
		return NewInvalidStateError("EVENT_OUT_OF_ORDER",
			fmt.Sprintf("event %s for %s has version %d, expected %d",
				event.EventType(), a.id, event.StreamVersion(), a.version+1))
	}
	if err := when(event); err != nil {
		return err
	}
	a.version = event.StreamVersion()
	return nil
}

// RestoreVersion sets the version after state was restored from a snapshot
func (a *AggregateRoot[E]) RestoreVersion(version int) {
	a.version = version
	a.uncommitted = nil
}

// GetUncommittedEvents returns the buffered events without clearing them
func (a *AggregateRoot[E]) GetUncommittedEvents() []DomainEvent {
	events := make([]DomainEvent, len(a.uncommitted))
	for i, e := range a.uncommitted {
		events[i] = e
	}
	return events
}

// MarkEventsCommitted clears the buffer once the events are persisted
func (a *AggregateRoot[E]) MarkEventsCommitted() {
	a.uncommitted = nil
}
