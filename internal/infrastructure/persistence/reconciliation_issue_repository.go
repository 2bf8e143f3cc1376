package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/models"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReconciliationIssueRepository implements finance.ReconciliationIssueRepository using GORM
type GormReconciliationIssueRepository struct {
	db *tenant.TenantDB
}

// NewGormReconciliationIssueRepository creates a new GormReconciliationIssueRepository
func NewGormReconciliationIssueRepository(db *gorm.DB) *GormReconciliationIssueRepository {
	return &GormReconciliationIssueRepository{db: tenant.NewTenantDB(db)}
}

// Save inserts or updates an issue
func (r *GormReconciliationIssueRepository) Save(ctx context.Context, issue *finance.ReconciliationIssue) error {
	if issue.TenantID == uuid.Nil {
		return tenant.ErrTenantIDRequired
	}
	row, err := models.ReconciliationIssueModelFromDomain(issue)
	if err != nil {
		return fmt.Errorf("failed to encode reconciliation issue: %w", err)
	}
	err = r.db.Unscoped().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "error_code", "message", "details", "resolved_by", "resolution", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save reconciliation issue: %w", err)
	}
	return nil
}

// FindByIDForTenant finds an issue by ID within a tenant
func (r *GormReconciliationIssueRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.ReconciliationIssue, error) {
	var row models.ReconciliationIssueModel
	err := r.db.ForTenant(ctx, tenantID).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewNotFoundError("RECONCILIATION_ISSUE_NOT_FOUND",
			fmt.Sprintf("Reconciliation issue %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain()
}

// FindByPayment returns every issue raised for a payment, oldest first
func (r *GormReconciliationIssueRepository) FindByPayment(ctx context.Context, tenantID uuid.UUID, paymentID string) ([]finance.ReconciliationIssue, error) {
	var rows []models.ReconciliationIssueModel
	if err := r.db.ForTenant(ctx, tenantID).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return issuesToDomain(rows)
}

// FindAllForTenant lists issues with filtering and pagination
func (r *GormReconciliationIssueRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReconciliationIssueFilter) (shared.Paginated[finance.ReconciliationIssue], error) {
	f := filter.Filter.Normalized()
	scoped := func() *gorm.DB {
		return r.applyFilter(r.db.ForTenant(ctx, tenantID).Model(&models.ReconciliationIssueModel{}), filter)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return shared.Paginated[finance.ReconciliationIssue]{}, err
	}

	var rows []models.ReconciliationIssueModel
	if err := scoped().
		Order(orderClause(f.OrderBy, f.OrderDir, ReconciliationIssueSortFields, "created_at")).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[finance.ReconciliationIssue]{}, err
	}

	items, err := issuesToDomain(rows)
	if err != nil {
		return shared.Paginated[finance.ReconciliationIssue]{}, err
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// CountOpen counts unresolved issues for a tenant
func (r *GormReconciliationIssueRepository) CountOpen(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.ForTenant(ctx, tenantID).
		Model(&models.ReconciliationIssueModel{}).
		Where("status = ?", finance.IssueStatusOpen).
		Count(&count).Error
	return count, err
}

func (r *GormReconciliationIssueRepository) applyFilter(query *gorm.DB, filter finance.ReconciliationIssueFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	if filter.PaymentID != "" {
		query = query.Where("payment_id = ?", filter.PaymentID)
	}
	if filter.InvoiceID != "" {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	return query
}

func issuesToDomain(rows []models.ReconciliationIssueModel) ([]finance.ReconciliationIssue, error) {
	items := make([]finance.ReconciliationIssue, 0, len(rows))
	for i := range rows {
		issue, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, *issue)
	}
	return items, nil
}

var _ finance.ReconciliationIssueRepository = (*GormReconciliationIssueRepository)(nil)
