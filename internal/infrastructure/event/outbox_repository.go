package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

func toDomain(rows []models.OutboxEntryModel) []*shared.OutboxEntry {
	return lo.Map(rows, func(m models.OutboxEntryModel, _ int) *shared.OutboxEntry { return m.ToDomain() })
}

// Save persists one or more outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := lo.Map(entries, func(e *shared.OutboxEntry, _ int) *models.OutboxEntryModel {
		return models.OutboxEntryModelFromDomain(e)
	})
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending returns pending entries in append order, so events of one
// aggregate are delivered in stream order
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusPending).
		Order("created_at ASC").
		Order("aggregate_id ASC").
		Order("stream_version ASC").
		Limit(limit).
		Find(&rows).Error
	return toDomain(rows), err
}

// FindRetryable retrieves failed entries that are due for retry
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error
	return toDomain(rows), err
}

// MarkProcessing claims entries. Rows locked by another processor are skipped,
// so concurrent processors never deliver the same entry twice.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OutboxEntryModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, []shared.OutboxStatus{
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed,
			}).
			Order("created_at ASC").
			Order("stream_version ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		now := time.Now()
		rowIDs := lo.Map(rows, func(m models.OutboxEntryModel, _ int) uuid.UUID { return m.ID })
		if err := tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", rowIDs).
			Updates(map[string]any{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = toDomain(rows)
		for _, e := range claimed {
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}
		return nil
	})
	return claimed, err
}

// Update writes back the mutable delivery fields of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":        entry.Status,
			"retry_count":   entry.RetryCount,
			"last_error":    entry.LastError,
			"next_retry_at": entry.NextRetryAt,
			"processed_at":  entry.ProcessedAt,
			"updated_at":    entry.UpdatedAt,
		}).Error
}

// DeleteOlderThan deletes sent entries processed before the cutoff
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return result.RowsAffected, result.Error
}

// FindDead retrieves dead letter entries with pagination
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ?", shared.OutboxStatusDead).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	f := shared.Filter{Page: page, PageSize: pageSize}.Normalized()
	var rows []models.OutboxEntryModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomain(rows), total, nil
}

// FindByID retrieves a single outbox entry by ID
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEntryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewNotFoundError("OUTBOX_ENTRY_NOT_FOUND", fmt.Sprintf("Outbox entry %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

// CountByStatus returns count of entries for each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
