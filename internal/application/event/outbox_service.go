package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// retryAllPageSize is the batch size used when re-queueing every dead entry
const retryAllPageSize = 100

// OutboxService lets operators inspect the outbox and re-queue events whose
// delivery exhausted its retries
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{
		repo:   repo,
		logger: logger.Named("outbox-admin"),
	}
}

// OutboxEntryDTO is the operator view of an outbox entry; the payload is omitted
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   string     `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	StreamVersion int        `json:"stream_version"`
	CausedBy      string     `json:"caused_by,omitempty"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// GetDeadLetterEntries returns one page of dead entries, most recently failed first
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, filter shared.Filter) (shared.Paginated[OutboxEntryDTO], error) {
	f := filter.Normalized()
	entries, total, err := s.repo.FindDead(ctx, f.Page, f.PageSize)
	if err != nil {
		s.logger.Error("failed to find dead letter entries", zap.Error(err))
		return shared.Paginated[OutboxEntryDTO]{}, err
	}
	items := lo.Map(entries, func(e *shared.OutboxEntry, _ int) OutboxEntryDTO {
		return toOutboxEntryDTO(e)
	})
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// GetEntry retrieves a single outbox entry by ID
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (OutboxEntryDTO, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return OutboxEntryDTO{}, err
	}
	return toOutboxEntryDTO(entry), nil
}

// RetryDeadEntry puts a dead entry back in the pending queue with a fresh retry budget
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (OutboxEntryDTO, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return OutboxEntryDTO{}, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return OutboxEntryDTO{}, shared.NewInvalidStateError("OUTBOX_ENTRY_NOT_DEAD", err.Error()).
			WithDetail("id", id.String()).
			WithDetail("status", string(entry.Status))
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("failed to update outbox entry", zap.Error(err), zap.String("id", id.String()))
		return OutboxEntryDTO{}, err
	}

	s.logger.Info("dead letter entry reset for retry",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID),
	)
	return toOutboxEntryDTO(entry), nil
}

// RetryAllDeadEntries re-queues every dead entry and returns how many were reset.
// Reset entries leave the dead set, so the first page is read until it is empty.
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	var count int64
	for {
		entries, _, err := s.repo.FindDead(ctx, 1, retryAllPageSize)
		if err != nil {
			s.logger.Error("failed to find dead letter entries", zap.Error(err))
			return count, err
		}
		reset := 0
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("failed to update outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			reset++
		}
		count += int64(reset)
		if reset == 0 || len(entries) < retryAllPageSize {
			break
		}
	}

	s.logger.Info("retried dead letter entries", zap.Int64("count", count))
	return count, nil
}

// GetStats returns outbox statistics
func (s *OutboxService) GetStats(ctx context.Context) (OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to get outbox stats", zap.Error(err))
		return OutboxStatsDTO{}, err
	}
	return OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
		Total:      lo.Sum(lo.Values(counts)),
	}, nil
}

func toOutboxEntryDTO(entry *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		StreamVersion: entry.StreamVersion,
		CausedBy:      entry.CausedBy,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		OccurredAt:    entry.OccurredAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
