package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// EventModel is one row of an aggregate stream. (aggregate_id, version) is
// unique, so two writers racing for the same version cannot both commit.
type EventModel struct {
	Sequence        int64     `gorm:"primaryKey;autoIncrement"`
	EventID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	AggregateID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_ledger_events_stream,priority:1"`
	Version         int       `gorm:"not null;uniqueIndex:idx_ledger_events_stream,priority:2"`
	AggregateType   string    `gorm:"type:varchar(64);not null;index"`
	EventType       string    `gorm:"type:varchar(128);not null"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Payload         []byte    `gorm:"type:jsonb;not null"`
	CausationUserID string    `gorm:"type:varchar(128)"`
	SchemaVersion   int       `gorm:"not null"`
	OccurredAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EventModel) TableName() string {
	return "ledger_events"
}

// ToEnvelope converts the row to the domain envelope
func (m *EventModel) ToEnvelope() shared.EventEnvelope {
	return shared.EventEnvelope{
		EventID:         m.EventID,
		AggregateID:     m.AggregateID,
		AggregateType:   m.AggregateType,
		EventType:       m.EventType,
		Payload:         m.Payload,
		TenantID:        m.TenantID,
		Version:         m.Version,
		CausationUserID: m.CausationUserID,
		SchemaVersion:   m.SchemaVersion,
		Timestamp:       m.OccurredAt,
	}
}

// EventModelFromEnvelope builds a row from an envelope
func EventModelFromEnvelope(env shared.EventEnvelope) *EventModel {
	return &EventModel{
		EventID:         env.EventID,
		AggregateID:     env.AggregateID,
		Version:         env.Version,
		AggregateType:   env.AggregateType,
		EventType:       env.EventType,
		TenantID:        env.TenantID,
		Payload:         env.Payload,
		CausationUserID: env.CausationUserID,
		SchemaVersion:   env.SchemaVersion,
		OccurredAt:      env.Timestamp,
	}
}

// SnapshotModel keeps the latest snapshot of each aggregate
type SnapshotModel struct {
	AggregateID   string    `gorm:"type:varchar(64);primaryKey"`
	AggregateType string    `gorm:"type:varchar(64);not null"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Version       int       `gorm:"not null"`
	State         []byte    `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SnapshotModel) TableName() string {
	return "ledger_snapshots"
}

// ToDomain converts the row to a domain snapshot
func (m *SnapshotModel) ToDomain() *shared.Snapshot {
	return &shared.Snapshot{
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		TenantID:      m.TenantID,
		Version:       m.Version,
		State:         m.State,
		CreatedAt:     m.CreatedAt,
	}
}

// SnapshotModelFromDomain builds a row from a domain snapshot
func SnapshotModelFromDomain(s shared.Snapshot) *SnapshotModel {
	return &SnapshotModel{
		AggregateID:   s.AggregateID,
		AggregateType: s.AggregateType,
		TenantID:      s.TenantID,
		Version:       s.Version,
		State:         s.State,
		CreatedAt:     s.CreatedAt,
	}
}

// SequenceModel is the last number handed out for a tenant and scope
type SequenceModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Scope     string    `gorm:"type:varchar(64);primaryKey"`
	Value     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "ledger_sequences"
}
