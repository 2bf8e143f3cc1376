package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// OutboxEntryModel is the persistence model for the transactional outbox.
// Rows are written in the same transaction as the events they carry.
type OutboxEntryModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(128);not null"`
	AggregateID   string              `gorm:"type:varchar(64);not null;index"`
	AggregateType string              `gorm:"type:varchar(64);not null"`
	StreamVersion int                 `gorm:"not null"`
	SchemaVersion int                 `gorm:"not null"`
	CausedBy      string              `gorm:"type:varchar(128)"`
	OccurredAt    time.Time           `gorm:"not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_status_created,priority:1"`
	RetryCount    int                 `gorm:"not null"`
	MaxRetries    int                 `gorm:"not null"`
	LastError     string              `gorm:"type:text"`
	NextRetryAt   *time.Time          `gorm:"index"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxEntryModel) TableName() string {
	return "outbox_events"
}

// ToDomain converts the persistence model to a domain OutboxEntry
func (m *OutboxEntryModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		StreamVersion: m.StreamVersion,
		SchemaVersion: m.SchemaVersion,
		CausedBy:      m.CausedBy,
		OccurredAt:    m.OccurredAt,
		Payload:       m.Payload,
		Status:        m.Status,
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		LastError:     m.LastError,
		NextRetryAt:   m.NextRetryAt,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OutboxEntryModelFromDomain creates a persistence model from a domain OutboxEntry
func OutboxEntryModelFromDomain(e *shared.OutboxEntry) *OutboxEntryModel {
	return &OutboxEntryModel{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		StreamVersion: e.StreamVersion,
		SchemaVersion: e.SchemaVersion,
		CausedBy:      e.CausedBy,
		OccurredAt:    e.OccurredAt,
		Payload:       e.Payload,
		Status:        e.Status,
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// All returns every model managed by the ledger, in migration order
func All() []any {
	return []any{
		&EventModel{},
		&SnapshotModel{},
		&SequenceModel{},
		&OutboxEntryModel{},
		&ReconciliationIssueModel{},
	}
}
