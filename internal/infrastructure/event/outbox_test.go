package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func recordEnvelopes(t *testing.T, db *gorm.DB, envs ...shared.EventEnvelope) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return NewOutboxRecorder().Record(context.Background(), tx, envs...)
	}))
}

func encodedPaymentFailed(t *testing.T, version int) shared.EventEnvelope {
	t.Helper()
	e := paymentFailed(t)
	e.Version = version
	env, err := NewFinanceSerializer().Encode(e)
	require.NoError(t, err)
	return env
}

func TestOutboxRecorder_RejectsForeignTx(t *testing.T) {
	err := NewOutboxRecorder().Record(context.Background(), "not-a-tx", encodedPaymentFailed(t, 1))
	assert.ErrorContains(t, err, "*gorm.DB")
	assert.NoError(t, NewOutboxRecorder().Record(context.Background(), nil))
}

func TestGormOutboxRepository_Lifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()

	first := encodedPaymentFailed(t, 1)
	second := encodedPaymentFailed(t, 2)
	recordEnvelopes(t, db, first, second)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].StreamVersion)
	assert.Equal(t, "user-7", pending[0].CausedBy)
	assert.Equal(t, first.EventID, pending[0].EventID)

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{pending[0].ID, pending[1].ID})
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)

	again, err := repo.MarkProcessing(ctx, []uuid.UUID{pending[0].ID})
	require.NoError(t, err)
	assert.Empty(t, again, "processing entries cannot be claimed twice")

	claimed[0].MarkSent()
	require.NoError(t, repo.Update(ctx, claimed[0]))
	for i := 0; i < shared.DefaultMaxRetries; i++ {
		claimed[1].MarkFailed("boom")
	}
	require.NoError(t, repo.Update(ctx, claimed[1]))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])

	dead, total, err := repo.FindDead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, dead, 1)
	assert.Equal(t, "boom", dead[0].LastError)

	found, err := repo.FindByID(ctx, dead[0].ID)
	require.NoError(t, err)
	assert.True(t, found.IsDead())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, shared.IsKind(err, shared.KindNotFound))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestGormOutboxRepository_FindRetryable(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormOutboxRepository(db)
	ctx := context.Background()
	recordEnvelopes(t, db, encodedPaymentFailed(t, 1))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	entry := pending[0]
	entry.MarkFailed("temporary")
	require.NoError(t, repo.Update(ctx, entry))

	due, err := repo.FindRetryable(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = repo.FindRetryable(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestOutboxProcessor_DeliversInStreamOrder(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormOutboxRepository(db)
	recordEnvelopes(t, db, encodedPaymentFailed(t, 1), encodedPaymentFailed(t, 2), encodedPaymentFailed(t, 3))

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := testutil.NewMockEventHandler(finance.EventTypePaymentFailed)
	bus.Subscribe(handler)
	p := NewOutboxProcessor(repo, bus, NewFinanceSerializer(), OutboxProcessorConfig{BatchSize: 10}, zap.NewNop())

	assert.Equal(t, 3, p.ProcessBatch(context.Background()))
	handled := handler.Handled()
	require.Len(t, handled, 3)
	for i, e := range handled {
		assert.Equal(t, i+1, e.StreamVersion())
		assert.Equal(t, "user-7", e.CausationUserID())
	}

	assert.Zero(t, p.ProcessBatch(context.Background()), "sent entries are not redelivered")
}

func TestOutboxProcessor_FailedDeliveryIsRetried(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormOutboxRepository(db)
	recordEnvelopes(t, db, encodedPaymentFailed(t, 1))

	bus := NewInMemoryEventBus(zap.NewNop())
	handler := testutil.NewMockEventHandler()
	handler.SetError(errors.New("downstream unavailable"))
	bus.Subscribe(handler)
	p := NewOutboxProcessor(repo, bus, NewFinanceSerializer(), OutboxProcessorConfig{}, zap.NewNop())

	assert.Zero(t, p.ProcessBatch(context.Background()))
	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])

	// make the failed entry due now
	require.NoError(t, db.Exec("UPDATE outbox_events SET next_retry_at = ?", time.Now().Add(-time.Second)).Error)
	handler.SetError(nil)
	assert.Equal(t, 1, p.ProcessBatch(context.Background()))
	assert.Equal(t, 2, handler.HandledCount())
}

func TestOutboxProcessor_UndecodableEntryFails(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormOutboxRepository(db)
	env := encodedPaymentFailed(t, 1)
	env.EventType = "Retired"
	recordEnvelopes(t, db, env)

	p := NewOutboxProcessor(repo, NewInMemoryEventBus(nil), NewFinanceSerializer(), OutboxProcessorConfig{}, nil)
	assert.Zero(t, p.ProcessBatch(context.Background()))

	entry, err := repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entry)
}

func TestOutboxProcessor_RunStopsOnCancel(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	p := NewOutboxProcessor(NewGormOutboxRepository(db), NewInMemoryEventBus(nil), NewFinanceSerializer(),
		OutboxProcessorConfig{PollInterval: 5 * time.Millisecond, CleanupEnabled: true, CleanupInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
