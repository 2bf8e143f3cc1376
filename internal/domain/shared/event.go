package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain.
// Implementations must embed BaseDomainEvent.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
	AggregateType() string
	TenantID() uuid.UUID
	// StreamVersion is the position of the event in its aggregate stream, starting at 1
	StreamVersion() int
	CausationUserID() string
	SchemaVersion() int

	base() *BaseDomainEvent
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggID         string    `json:"aggregate_id"`
	AggType       string    `json:"aggregate_type"`
	TenantIDValue uuid.UUID `json:"tenant_id"`
	Version       int       `json:"version"`
	CausedBy      string    `json:"causation_user_id,omitempty"`
	Schema        int       `json:"schema_version,omitempty"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() string {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// TenantID returns the tenant ID
func (e *BaseDomainEvent) TenantID() uuid.UUID {
	return e.TenantIDValue
}

// StreamVersion returns the version the event holds in its stream
func (e *BaseDomainEvent) StreamVersion() int {
	return e.Version
}

// CausationUserID returns the user whose command produced the event
func (e *BaseDomainEvent) CausationUserID() string {
	return e.CausedBy
}

// SchemaVersion returns the schema version of the event.
// Returns 1 if no version is set.
func (e *BaseDomainEvent) SchemaVersion() int {
	if e.Schema == 0 {
		return 1
	}
	return e.Schema
}

func (e *BaseDomainEvent) base() *BaseDomainEvent {
	return e
}

// NewBaseDomainEvent creates a new base domain event with schema version 1.
// The stream version is assigned when the event is raised on its aggregate.
func NewBaseDomainEvent(eventType, aggType, aggID string, tenantID uuid.UUID, causedBy string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		AggID:         aggID,
		AggType:       aggType,
		TenantIDValue: tenantID,
		CausedBy:      causedBy,
		Schema:        1,
	}
}
