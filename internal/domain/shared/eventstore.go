package shared

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStore is append-only per-aggregate stream storage.
//
// Append must fail with a KindConcurrencyConflict error when the stream's
// current version differs from expectedVersion. Load returns events with a
// version greater than afterVersion, ordered ascending.
type EventStore interface {
	Append(ctx context.Context, aggregateID string, expectedVersion int, events ...EventEnvelope) error
	Load(ctx context.Context, aggregateID string, afterVersion int) ([]EventEnvelope, error)
}

// Snapshot is a point-in-time serialized aggregate state
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotStore keeps the latest snapshot per aggregate.
// GetLatest returns (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	GetLatest(ctx context.Context, aggregateID string) (*Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// ErrStreamConflict builds the error returned by stores on a stale expected version
func ErrStreamConflict(aggregateID string, expected, actual int) *DomainError {
	return NewConcurrencyError("CONCURRENCY_CONFLICT",
		"Resource was modified by another process").
		WithDetail("aggregate_id", aggregateID).
		WithDetail("expected_version", expected).
		WithDetail("actual_version", actual)
}
