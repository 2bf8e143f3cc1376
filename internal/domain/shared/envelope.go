package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventEnvelope is the persisted form of a domain event and the unit of replay
type EventEnvelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	AggregateID     string          `json:"aggregate_id"`
	AggregateType   string          `json:"aggregate_type"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Version         int             `json:"version"`
	CausationUserID string          `json:"causation_user_id,omitempty"`
	SchemaVersion   int             `json:"schema_version"`
	Timestamp       time.Time       `json:"timestamp"`
}

// EventCodec converts domain events to envelopes and back.
// Decoding an unknown event type is an error.
type EventCodec interface {
	Encode(event DomainEvent) (EventEnvelope, error)
	Decode(envelope EventEnvelope) (DomainEvent, error)
}

// NewEnvelope builds the envelope header from an event; the payload is supplied by the codec
func NewEnvelope(event DomainEvent, payload []byte) EventEnvelope {
	return EventEnvelope{
		EventID:         event.EventID(),
		AggregateID:     event.AggregateID(),
		AggregateType:   event.AggregateType(),
		EventType:       event.EventType(),
		Payload:         payload,
		TenantID:        event.TenantID(),
		Version:         event.StreamVersion(),
		CausationUserID: event.CausationUserID(),
		SchemaVersion:   event.SchemaVersion(),
		Timestamp:       event.OccurredAt(),
	}
}

// RestoreHeader copies the persisted envelope header onto a decoded event.
// The envelope is authoritative for identity, ordering and schema version.
func RestoreHeader(event DomainEvent, env EventEnvelope) {
	b := event.base()
	b.ID = env.EventID
	b.Type = env.EventType
	b.Timestamp = env.Timestamp
	b.AggID = env.AggregateID
	b.AggType = env.AggregateType
	b.TenantIDValue = env.TenantID
	b.Version = env.Version
	b.CausedBy = env.CausationUserID
	b.Schema = env.SchemaVersion
}
