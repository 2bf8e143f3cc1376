package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppendObserver is told how many events each successful append wrote.
// telemetry.LedgerMetrics implements it.
type AppendObserver interface {
	RecordEventsAppended(ctx context.Context, aggregateType string, n int)
}

// GormEventStore implements shared.EventStore on the ledger_events table.
//
// The expected version is checked inside the append transaction and the
// (aggregate_id, version) unique index rejects a writer that slipped past the
// check, so at most one of two concurrent appends for a version commits.
// When a recorder is configured the envelopes are handed to it inside the
// same transaction, which is how the outbox stays consistent with the stream.
type GormEventStore struct {
	db       *gorm.DB
	recorder shared.EventRecorder
	observer AppendObserver
	logger   *zap.Logger
}

// EventStoreOption configures a GormEventStore
type EventStoreOption func(*GormEventStore)

// WithEventRecorder records appended envelopes in the append transaction
func WithEventRecorder(recorder shared.EventRecorder) EventStoreOption {
	return func(s *GormEventStore) {
		s.recorder = recorder
	}
}

// WithAppendObserver reports append counts
func WithAppendObserver(observer AppendObserver) EventStoreOption {
	return func(s *GormEventStore) {
		s.observer = observer
	}
}

// WithEventStoreLogger sets the logger
func WithEventStoreLogger(logger *zap.Logger) EventStoreOption {
	return func(s *GormEventStore) {
		s.logger = logger
	}
}

// NewGormEventStore creates a new GORM-backed event store
func NewGormEventStore(db *gorm.DB, opts ...EventStoreOption) *GormEventStore {
	s := &GormEventStore{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes events after expectedVersion, all or nothing
func (s *GormEventStore) Append(ctx context.Context, aggregateID string, expectedVersion int, events ...shared.EventEnvelope) error {
	if len(events) == 0 {
		return nil
	}
	if err := checkContiguous(aggregateID, expectedVersion, events); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := streamVersion(tx, aggregateID)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return shared.ErrStreamConflict(aggregateID, expectedVersion, current)
		}

		rows := lo.Map(events, func(env shared.EventEnvelope, _ int) *models.EventModel {
			return models.EventModelFromEnvelope(env)
		})
		if err := tx.Create(rows).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.ErrStreamConflict(aggregateID, expectedVersion, expectedVersion+1)
			}
			return fmt.Errorf("failed to insert events: %w", err)
		}

		if s.recorder != nil {
			if err := s.recorder.Record(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to record events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			s.logger.Debug("append rejected on stale version",
				zap.String("aggregate_id", aggregateID),
				zap.Int("expected_version", expectedVersion),
			)
		}
		return err
	}

	if s.observer != nil {
		s.observer.RecordEventsAppended(ctx, events[0].AggregateType, len(events))
	}
	return nil
}

// Load returns the events of aggregateID after afterVersion in version order
func (s *GormEventStore) Load(ctx context.Context, aggregateID string, afterVersion int) ([]shared.EventEnvelope, error) {
	var rows []models.EventModel
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ? AND version > ?", aggregateID, afterVersion).
		Order("version ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return lo.Map(rows, func(row models.EventModel, _ int) shared.EventEnvelope {
		return row.ToEnvelope()
	}), nil
}

// Version returns the current version of a stream, 0 when it does not exist
func (s *GormEventStore) Version(ctx context.Context, aggregateID string) (int, error) {
	return streamVersion(s.db.WithContext(ctx), aggregateID)
}

func streamVersion(db *gorm.DB, aggregateID string) (int, error) {
	var current int
	if err := db.Model(&models.EventModel{}).
		Select("COALESCE(MAX(version), 0)").
		Where("aggregate_id = ?", aggregateID).
		Scan(&current).Error; err != nil {
		return 0, fmt.Errorf("failed to read stream version: %w", err)
	}
	return current, nil
}

// checkContiguous rejects batches that do not continue the stream one by one
func checkContiguous(aggregateID string, expectedVersion int, events []shared.EventEnvelope) error {
	for i, env := range events {
		if env.AggregateID != aggregateID {
			return shared.NewValidationError("EVENT_STREAM_MISMATCH",
				fmt.Sprintf("Event %s belongs to %s, not %s", env.EventID, env.AggregateID, aggregateID))
		}
		if want := expectedVersion + i + 1; env.Version != want {
			return shared.NewValidationError("EVENT_VERSION_GAP",
				fmt.Sprintf("Event %s has version %d, expected %d", env.EventID, env.Version, want))
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

var _ shared.EventStore = (*GormEventStore)(nil)
