package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"go.uber.org/zap"
)

// PaymentCompletedHandler applies a completed payment to its invoice.
//
// The payment is never rolled back. When the invoice rejects the payment a
// ReconciliationIssue is recorded instead and the event counts as handled.
// Infrastructure errors are returned so the outbox redelivers the event.
type PaymentCompletedHandler struct {
	invoices *AggregateRepository[*finance.Invoice]
	issues   finance.ReconciliationIssueRepository
	retry    RetryConfig
	metrics  Metrics
	logger   *zap.Logger
}

// NewPaymentCompletedHandler creates the payment-to-invoice workflow handler
func NewPaymentCompletedHandler(
	invoices *AggregateRepository[*finance.Invoice],
	issues finance.ReconciliationIssueRepository,
	deps HandlerDeps,
) *PaymentCompletedHandler {
	deps = deps.withDefaults()
	return &PaymentCompletedHandler{
		invoices: invoices,
		issues:   issues,
		retry:    deps.Retry,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentCompletedHandler) EventTypes() []string {
	return []string{finance.EventTypePaymentCompleted}
}

// Handle records the payment on the invoice
func (h *PaymentCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*finance.PaymentCompletedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", finance.EventTypePaymentCompleted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypePaymentCompleted, event.EventType())
	}
	paymentID := completed.AggregateID()
	tenantID := completed.TenantID()
	log := h.logger.With(
		zap.String("payment_id", paymentID),
		zap.String("invoice_id", completed.InvoiceID),
		zap.String("tenant_id", tenantID.String()),
	)

	onRetry := func(err error) {
		h.metrics.RecordConflictRetry(ctx, finance.AggregateTypeInvoice)
		log.Debug("invoice version conflict, reloading", zap.Error(err))
	}
	err := retryOnConflict(ctx, h.retry, onRetry, func(ctx context.Context) error {
		inv, err := h.invoices.Load(ctx, tenantID, completed.InvoiceID)
		if err != nil {
			return err
		}
		if err := inv.RecordPayment(paymentID, completed.Amount, completed.CausationUserID()); err != nil {
			return err
		}
		return h.invoices.Save(ctx, inv)
	})
	if err == nil {
		log.Info("payment applied to invoice", zap.String("amount", completed.Amount.String()))
		return nil
	}
	if errors.Is(err, &shared.DomainError{Code: "PAYMENT_ALREADY_RECORDED"}) {
		log.Info("payment already recorded on invoice, skipping")
		return nil
	}
	var de *shared.DomainError
	if !errors.As(err, &de) || de.Kind == shared.KindConcurrencyConflict {
		log.Error("failed to apply payment to invoice", zap.Error(err))
		return fmt.Errorf("failed to apply payment %s to invoice %s: %w", paymentID, completed.InvoiceID, err)
	}
	return h.openIssue(ctx, log, completed, err)
}

func (h *PaymentCompletedHandler) openIssue(ctx context.Context, log *zap.Logger, completed *finance.PaymentCompletedEvent, cause error) error {
	issue, err := finance.NewReconciliationIssue(completed.TenantID(), completed.AggregateID(),
		completed.InvoiceID, completed.Amount, cause)
	if err != nil {
		return err
	}
	if err := h.issues.Save(ctx, issue); err != nil {
		log.Error("failed to save reconciliation issue", zap.Error(err))
		return fmt.Errorf("failed to save reconciliation issue: %w", err)
	}
	h.metrics.RecordReconciliationIssue(ctx, string(issue.Kind))
	log.Warn("payment could not be applied, reconciliation issue opened",
		zap.String("issue_id", issue.ID.String()),
		zap.String("kind", string(issue.Kind)),
		zap.String("error_code", issue.ErrorCode),
		zap.Error(cause),
	)
	return nil
}
