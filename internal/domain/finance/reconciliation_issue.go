package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// IssueKind classifies why a completed payment could not be applied to its invoice
type IssueKind string

const (
	IssueKindOverpayment     IssueKind = "OVERPAYMENT"
	IssueKindInvoiceNotFound IssueKind = "INVOICE_NOT_FOUND"
	IssueKindInvalidStatus   IssueKind = "INVOICE_INVALID_STATUS"
	IssueKindOther           IssueKind = "OTHER"
)

type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "OPEN"
	IssueStatusResolved IssueStatus = "RESOLVED"
)

// ReconciliationIssue records a payment/invoice mismatch left for manual resolution.
// It is state-stored, not event-sourced.
type ReconciliationIssue struct {
	shared.BaseEntity
	Kind       IssueKind
	Status     IssueStatus
	PaymentID  string
	InvoiceID  string
	Amount     valueobject.Money
	ErrorCode  string
	Message    string
	Details    map[string]any
	ResolvedBy string
	Resolution string
}

// NewReconciliationIssue classifies cause and opens an issue for it
func NewReconciliationIssue(tenantID uuid.UUID, paymentID, invoiceID string, amount valueobject.Money, cause error) (*ReconciliationIssue, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if paymentID == "" {
		return nil, shared.NewValidationError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if cause == nil {
		return nil, shared.NewValidationError("INVALID_CAUSE", "A reconciliation issue needs a cause")
	}
	issue := &ReconciliationIssue{
		BaseEntity: shared.NewBaseEntity(tenantID, now()),
		Kind:       IssueKindOther,
		Status:     IssueStatusOpen,
		PaymentID:  paymentID,
		InvoiceID:  invoiceID,
		Amount:     amount,
		Message:    cause.Error(),
	}
	var de *shared.DomainError
	if errors.As(cause, &de) {
		issue.ErrorCode = de.Code
		issue.Details = de.Details
		switch {
		case de.Code == "OVERPAYMENT":
			issue.Kind = IssueKindOverpayment
		case de.Kind == shared.KindNotFound:
			issue.Kind = IssueKindInvoiceNotFound
		case de.Kind == shared.KindInvalidState:
			issue.Kind = IssueKindInvalidStatus
		}
	}
	return issue, nil
}

// Resolve closes an open issue
func (i *ReconciliationIssue) Resolve(resolvedBy, resolution string) error {
	if i.Status == IssueStatusResolved {
		return shared.NewInvalidStateError("ISSUE_ALREADY_RESOLVED",
			fmt.Sprintf("Reconciliation issue %s is already resolved", i.ID))
	}
	if strings.TrimSpace(resolvedBy) == "" {
		return shared.NewValidationError("INVALID_USER", "Resolver cannot be empty")
	}
	if strings.TrimSpace(resolution) == "" {
		return shared.NewValidationError("INVALID_RESOLUTION", "Resolution note is required")
	}
	i.Status = IssueStatusResolved
	i.ResolvedBy = resolvedBy
	i.Resolution = resolution
	i.Touch(now())
	return nil
}

// IsOpen reports whether the issue still needs attention
func (i *ReconciliationIssue) IsOpen() bool {
	return i.Status == IssueStatusOpen
}

// ReconciliationIssueFilter narrows issue listings
type ReconciliationIssueFilter struct {
	shared.Filter
	Status    *IssueStatus
	Kind      *IssueKind
	PaymentID string
	InvoiceID string
}

// ReconciliationIssueRepository persists reconciliation issues
type ReconciliationIssueRepository interface {
	Save(ctx context.Context, issue *ReconciliationIssue) error
	// FindByIDForTenant returns a NOT_FOUND DomainError when no issue matches
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ReconciliationIssue, error)
	FindByPayment(ctx context.Context, tenantID uuid.UUID, paymentID string) ([]ReconciliationIssue, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ReconciliationIssueFilter) (shared.Paginated[ReconciliationIssue], error)
	CountOpen(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
