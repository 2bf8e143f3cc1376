package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSnapshotStore keeps one snapshot row per aggregate
type GormSnapshotStore struct {
	db *gorm.DB
}

// NewGormSnapshotStore creates a new GORM-backed snapshot store
func NewGormSnapshotStore(db *gorm.DB) *GormSnapshotStore {
	return &GormSnapshotStore{db: db}
}

// GetLatest returns the stored snapshot or (nil, nil)
func (s *GormSnapshotStore) GetLatest(ctx context.Context, aggregateID string) (*shared.Snapshot, error) {
	var row models.SnapshotModel
	err := s.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return row.ToDomain(), nil
}

// Save upserts the snapshot. An older version never replaces a newer one.
func (s *GormSnapshotStore) Save(ctx context.Context, snapshot shared.Snapshot) error {
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	row := models.SnapshotModelFromDomain(snapshot)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "aggregate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"aggregate_type", "tenant_id", "version", "state", "created_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "ledger_snapshots.version < excluded.version"},
		}},
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

var _ shared.SnapshotStore = (*GormSnapshotStore)(nil)
