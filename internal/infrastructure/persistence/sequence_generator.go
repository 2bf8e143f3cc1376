package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceGenerator keeps per tenant and scope counters in ledger_sequences.
// The upsert takes the row lock, so concurrent callers get distinct values.
type GormSequenceGenerator struct {
	db *gorm.DB
}

// NewGormSequenceGenerator creates a new GORM-backed sequence generator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db}
}

// Next increments and returns the counter, starting at 1
func (g *GormSequenceGenerator) Next(ctx context.Context, tenantID uuid.UUID, scope string) (int64, error) {
	if tenantID == uuid.Nil || scope == "" {
		return 0, shared.NewValidationError("INVALID_SEQUENCE_SCOPE", "Sequence needs a tenant and a scope")
	}

	var value int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "scope"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      gorm.Expr("ledger_sequences.value + 1"),
				"updated_at": now,
			}),
		}).Create(&models.SequenceModel{
			TenantID:  tenantID,
			Scope:     scope,
			Value:     1,
			UpdatedAt: now,
		}).Error; err != nil {
			return err
		}

		var row models.SequenceModel
		if err := tx.Where("tenant_id = ? AND scope = ?", tenantID, scope).First(&row).Error; err != nil {
			return err
		}
		value = row.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", scope, err)
	}
	return value, nil
}

var _ shared.SequenceGenerator = (*GormSequenceGenerator)(nil)
