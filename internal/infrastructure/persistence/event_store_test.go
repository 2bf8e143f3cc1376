package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/event"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"github.com/vextrus/vextrus-erp-sub014/internal/testutil"
)

func invoiceEnvelopes(tenantID uuid.UUID, aggregateID string, from, n int) []shared.EventEnvelope {
	out := make([]shared.EventEnvelope, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, shared.EventEnvelope{
			EventID:         uuid.New(),
			AggregateID:     aggregateID,
			AggregateType:   finance.AggregateTypeInvoice,
			EventType:       finance.EventTypeLineItemAdded,
			Payload:         json.RawMessage(`{"description":"cement"}`),
			TenantID:        tenantID,
			Version:         from + i,
			CausationUserID: "user-1",
			SchemaVersion:   1,
			Timestamp:       time.Date(2024, 8, 1, 10, 0, i, 0, time.UTC),
		})
	}
	return out
}

type countingObserver struct {
	appended map[string]int
}

func (o *countingObserver) RecordEventsAppended(_ context.Context, aggregateType string, n int) {
	o.appended[aggregateType] += n
}

func TestGormEventStore_AppendAndLoad(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	observer := &countingObserver{appended: map[string]int{}}
	store := NewGormEventStore(db, WithAppendObserver(observer))
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, store.Append(ctx, "INV-1", 0, invoiceEnvelopes(tenantID, "INV-1", 1, 2)...))
	require.NoError(t, store.Append(ctx, "INV-1", 2, invoiceEnvelopes(tenantID, "INV-1", 3, 1)...))
	require.NoError(t, store.Append(ctx, "INV-2", 0, invoiceEnvelopes(tenantID, "INV-2", 1, 1)...))

	events, err := store.Load(ctx, "INV-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, env := range events {
		assert.Equal(t, i+1, env.Version)
		assert.Equal(t, "INV-1", env.AggregateID)
		assert.Equal(t, "user-1", env.CausationUserID)
		assert.Equal(t, 1, env.SchemaVersion)
		assert.JSONEq(t, `{"description":"cement"}`, string(env.Payload))
	}

	tail, err := store.Load(ctx, "INV-1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, 3, tail[0].Version)

	version, err := store.Version(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	version, err = store.Version(ctx, "INV-404")
	require.NoError(t, err)
	assert.Zero(t, version)

	assert.Equal(t, 4, observer.appended[finance.AggregateTypeInvoice])
}

func TestGormEventStore_StaleVersion(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := NewGormEventStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, store.Append(ctx, "PAY-1", 0, invoiceEnvelopes(tenantID, "PAY-1", 1, 2)...))

	err := store.Append(ctx, "PAY-1", 1, invoiceEnvelopes(tenantID, "PAY-1", 2, 1)...)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
	de, ok := shared.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, 2, de.Details["actual_version"])

	events, err := store.Load(ctx, "PAY-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGormEventStore_RejectsGappedBatch(t *testing.T) {
	store := NewGormEventStore(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	err := store.Append(ctx, "JRN-1", 0, invoiceEnvelopes(uuid.New(), "JRN-1", 2, 1)...)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	err = store.Append(ctx, "JRN-1", 0, invoiceEnvelopes(uuid.New(), "JRN-2", 1, 1)...)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestGormEventStore_WritesOutboxInSameTransaction(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := NewGormEventStore(db, WithEventRecorder(event.NewOutboxRecorder()))
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, store.Append(ctx, "INV-7", 0, invoiceEnvelopes(tenantID, "INV-7", 1, 2)...))

	pending, err := event.NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "INV-7", pending[0].AggregateID)
	assert.Equal(t, 1, pending[0].StreamVersion)
	assert.Equal(t, "user-1", pending[0].CausedBy)

	// a conflicting append must not leave outbox rows behind
	err = store.Append(ctx, "INV-7", 0, invoiceEnvelopes(tenantID, "INV-7", 1, 1)...)
	require.Error(t, err)
	var outboxRows int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&outboxRows).Error)
	assert.Equal(t, int64(2), outboxRows)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, any, ...shared.EventEnvelope) error {
	return errors.New("outbox unavailable")
}

func TestGormEventStore_RecorderFailureRollsBack(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store := NewGormEventStore(db, WithEventRecorder(failingRecorder{}))
	ctx := context.Background()

	err := store.Append(ctx, "INV-8", 0, invoiceEnvelopes(uuid.New(), "INV-8", 1, 1)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")

	var rows int64
	require.NoError(t, db.Model(&models.EventModel{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestIsUniqueViolation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	env := invoiceEnvelopes(uuid.New(), "INV-9", 1, 1)[0]
	require.NoError(t, db.Create(models.EventModelFromEnvelope(env)).Error)

	dup := models.EventModelFromEnvelope(env)
	dup.EventID = uuid.New()
	err := db.Create(dup).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
}

func TestGormEventStore_LoadQuery(t *testing.T) {
	m := testutil.NewMockDB(t)
	store := NewGormEventStore(m.DB)

	m.Mock.ExpectQuery(`SELECT \* FROM "ledger_events" WHERE aggregate_id = \$1 AND version > \$2 ORDER BY version ASC`).
		WithArgs("JRN-3", 5).
		WillReturnRows(sqlmock.NewRows([]string{"sequence", "event_id", "aggregate_id", "version", "event_type"}).
			AddRow(int64(11), uuid.New().String(), "JRN-3", 6, finance.EventTypeJournalPosted))

	events, err := store.Load(context.Background(), "JRN-3", 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 6, events[0].Version)
	assert.Equal(t, finance.EventTypeJournalPosted, events[0].EventType)
	m.ExpectationsWereMet(t)
}
