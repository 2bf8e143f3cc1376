package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// ReconciliationIssueRepository keeps issues by ID
type ReconciliationIssueRepository struct {
	mu     sync.RWMutex
	issues map[uuid.UUID]finance.ReconciliationIssue
}

// NewReconciliationIssueRepository creates an empty repository
func NewReconciliationIssueRepository() *ReconciliationIssueRepository {
	return &ReconciliationIssueRepository{issues: make(map[uuid.UUID]finance.ReconciliationIssue)}
}

// Save inserts or replaces an issue
func (r *ReconciliationIssueRepository) Save(_ context.Context, issue *finance.ReconciliationIssue) error {
	if issue.TenantID == uuid.Nil {
		return shared.NewValidationError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *issue
	c.Details = maps.Clone(issue.Details)
	r.issues[c.ID] = c
	return nil
}

// FindByIDForTenant returns a NOT_FOUND error for other tenants' issues
func (r *ReconciliationIssueRepository) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*finance.ReconciliationIssue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	issue, ok := r.issues[id]
	if !ok || issue.TenantID != tenantID {
		return nil, shared.NewNotFoundError("RECONCILIATION_ISSUE_NOT_FOUND",
			fmt.Sprintf("Reconciliation issue %s not found", id))
	}
	return &issue, nil
}

// FindByPayment returns the payment's issues, oldest first
func (r *ReconciliationIssueRepository) FindByPayment(_ context.Context, tenantID uuid.UUID, paymentID string) ([]finance.ReconciliationIssue, error) {
	out := r.filter(tenantID, func(i finance.ReconciliationIssue) bool { return i.PaymentID == paymentID })
	slices.SortFunc(out, func(a, b finance.ReconciliationIssue) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// FindAllForTenant filters, sorts and pages a tenant's issues
func (r *ReconciliationIssueRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter finance.ReconciliationIssueFilter) (shared.Paginated[finance.ReconciliationIssue], error) {
	f := filter.Filter.Normalized()
	out := r.filter(tenantID, func(i finance.ReconciliationIssue) bool {
		return (filter.Status == nil || i.Status == *filter.Status) &&
			(filter.Kind == nil || i.Kind == *filter.Kind) &&
			(filter.PaymentID == "" || i.PaymentID == filter.PaymentID) &&
			(filter.InvoiceID == "" || i.InvoiceID == filter.InvoiceID)
	})

	desc := !strings.EqualFold(strings.TrimSpace(f.OrderDir), "ASC")
	slices.SortStableFunc(out, func(a, b finance.ReconciliationIssue) int {
		c := compareIssues(a, b, f.OrderBy)
		if desc {
			return -c
		}
		return c
	})

	total := int64(len(out))
	start := min(f.Offset(), len(out))
	end := min(start+f.PageSize, len(out))
	return shared.NewPaginated(out[start:end], total, f.Page, f.PageSize), nil
}

// CountOpen counts unresolved issues
func (r *ReconciliationIssueRepository) CountOpen(_ context.Context, tenantID uuid.UUID) (int64, error) {
	return int64(len(r.filter(tenantID, func(i finance.ReconciliationIssue) bool { return i.IsOpen() }))), nil
}

func (r *ReconciliationIssueRepository) filter(tenantID uuid.UUID, match func(finance.ReconciliationIssue) bool) []finance.ReconciliationIssue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []finance.ReconciliationIssue
	for _, issue := range r.issues {
		if issue.TenantID == tenantID && match(issue) {
			out = append(out, issue)
		}
	}
	return out
}

func compareIssues(a, b finance.ReconciliationIssue, field string) int {
	switch field {
	case "kind":
		return cmp.Compare(a.Kind, b.Kind)
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "payment_id":
		return cmp.Compare(a.PaymentID, b.PaymentID)
	case "invoice_id":
		return cmp.Compare(a.InvoiceID, b.InvoiceID)
	case "amount":
		return a.Amount.Amount().Cmp(b.Amount.Amount())
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

var _ finance.ReconciliationIssueRepository = (*ReconciliationIssueRepository)(nil)
