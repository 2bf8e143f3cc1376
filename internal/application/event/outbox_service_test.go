package event

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/memory"
	"go.uber.org/zap"
)

func paymentCompletedEntry(t *testing.T, paymentID string, version int) *shared.OutboxEntry {
	t.Helper()
	return shared.NewOutboxEntry(shared.EventEnvelope{
		EventID:         uuid.New(),
		AggregateID:     paymentID,
		AggregateType:   finance.AggregateTypePayment,
		EventType:       finance.EventTypePaymentCompleted,
		Payload:         json.RawMessage(`{"invoice_id":"INV-1"}`),
		TenantID:        uuid.New(),
		Version:         version,
		CausationUserID: "cashier-1",
		SchemaVersion:   1,
		Timestamp:       time.Now().UTC(),
	})
}

// kill fails an entry until it lands in the dead letter set
func kill(entry *shared.OutboxEntry) *shared.OutboxEntry {
	for !entry.IsDead() {
		entry.MarkFailed("invoice projection unavailable")
	}
	return entry
}

func seedOutbox(t *testing.T, dead, pending int) (*memory.OutboxRepository, []*shared.OutboxEntry) {
	t.Helper()
	repo := memory.NewOutboxRepository()
	var deadEntries []*shared.OutboxEntry
	for i := 0; i < dead; i++ {
		e := kill(paymentCompletedEntry(t, fmt.Sprintf("PAY-D%d", i), 3))
		deadEntries = append(deadEntries, e)
		require.NoError(t, repo.Save(context.Background(), e))
	}
	for i := 0; i < pending; i++ {
		require.NoError(t, repo.Save(context.Background(), paymentCompletedEntry(t, fmt.Sprintf("PAY-P%d", i), 3)))
	}
	return repo, deadEntries
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo, _ := seedOutbox(t, 5, 2)
	svc := NewOutboxService(repo, zap.NewNop())

	page, err := svc.GetDeadLetterEntries(context.Background(), shared.Filter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.Equal(t, string(shared.OutboxStatusDead), item.Status)
		assert.Equal(t, finance.EventTypePaymentCompleted, item.EventType)
		assert.Equal(t, "cashier-1", item.CausedBy)
		assert.Equal(t, "invoice projection unavailable", item.LastError)
	}

	last, err := svc.GetDeadLetterEntries(context.Background(), shared.Filter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
}

func TestOutboxService_GetEntry(t *testing.T) {
	repo, dead := seedOutbox(t, 1, 0)
	svc := NewOutboxService(repo, nil)

	got, err := svc.GetEntry(context.Background(), dead[0].ID)
	require.NoError(t, err)
	assert.Equal(t, dead[0].AggregateID, got.AggregateID)
	assert.Equal(t, 3, got.StreamVersion)

	_, err = svc.GetEntry(context.Background(), uuid.New())
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	ctx := context.Background()
	repo, dead := seedOutbox(t, 1, 1)
	svc := NewOutboxService(repo, zap.NewNop())

	got, err := svc.RetryDeadEntry(ctx, dead[0].ID)
	require.NoError(t, err)
	assert.Equal(t, string(shared.OutboxStatusPending), got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.LastError)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	t.Run("entry that is not dead", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(ctx, dead[0].ID)
		assert.True(t, shared.IsKind(err, shared.KindInvalidState))
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(ctx, uuid.New())
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	ctx := context.Background()
	repo, _ := seedOutbox(t, retryAllPageSize+7, 3)
	svc := NewOutboxService(repo, zap.NewNop())

	n, err := svc.RetryAllDeadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(retryAllPageSize+7), n)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Dead)
	assert.Equal(t, int64(retryAllPageSize+10), stats.Pending)

	n, err = svc.RetryAllDeadEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxService_GetStats(t *testing.T) {
	ctx := context.Background()
	repo, _ := seedOutbox(t, 2, 3)
	sent := paymentCompletedEntry(t, "PAY-S", 4)
	sent.MarkSent()
	require.NoError(t, repo.Save(ctx, sent))

	stats, err := NewOutboxService(repo, zap.NewNop()).GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutboxStatsDTO{Pending: 3, Sent: 1, Dead: 2, Total: 6}, stats)
}
