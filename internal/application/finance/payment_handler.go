package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// PaymentCommandHandler handles payment commands
type PaymentCommandHandler struct {
	repo   *AggregateRepository[*finance.Payment]
	tax    *finance.TaxCalculationService
	runner commandRunner
}

// NewPaymentCommandHandler creates a payment command handler
func NewPaymentCommandHandler(repo *AggregateRepository[*finance.Payment], deps HandlerDeps) *PaymentCommandHandler {
	deps = deps.withDefaults()
	return &PaymentCommandHandler{
		repo:   repo,
		tax:    deps.Tax,
		runner: newCommandRunner("payment", finance.AggregateTypePayment, deps),
	}
}

func walletDetails(in *MobileWalletInput) *finance.MobileWalletDetails {
	if in == nil {
		return nil
	}
	return &finance.MobileWalletDetails{Provider: in.Provider, MobileNumber: in.MobileNumber}
}

// CreatePayment records a pending payment against an invoice. When the payee's
// vendor type is given, TDS and AIT are withheld from the gross amount.
func (h *PaymentCommandHandler) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (string, error) {
	ctx, finish, err := h.runner.begin(ctx, "CreatePayment", cmd, cmd.CommandMeta, "")
	if err != nil {
		return "", err
	}
	amount, err := valueobject.NewMoney(cmd.Amount, h.runner.currencyOr(cmd.Currency))
	if err != nil {
		return "", finish(shared.NewValidationError("INVALID_AMOUNT", err.Error()))
	}

	withholding := valueobject.Zero(amount.Currency())
	if cmd.VendorType != "" {
		res, err := h.tax.CalculateWithholding(amount, cmd.VendorType, cmd.PayeeHasTIN)
		if err != nil {
			return "", finish(err)
		}
		withholding = res.Total
	}

	payment, err := finance.CreatePayment(finance.CreatePaymentParams{
		TenantID:    cmd.TenantID,
		InvoiceID:   cmd.InvoiceID,
		Amount:      amount,
		Method:      cmd.Method,
		PaymentDate: cmd.PaymentDate,
		Details: finance.PaymentDetails{
			Reference:   cmd.Reference,
			CheckNumber: cmd.CheckNumber,
			Bank:        cmd.Bank,
			Wallet:      walletDetails(cmd.Wallet),
		},
		WithholdingTax: withholding,
		CreatedBy:      cmd.UserID,
	})
	if err != nil {
		return "", finish(err)
	}
	if err := h.repo.Save(ctx, payment); err != nil {
		return "", finish(err)
	}
	h.runner.logger.Info("payment created",
		zap.String("payment_id", payment.ID()),
		zap.String("invoice_id", payment.InvoiceID()),
		zap.String("amount", payment.Amount().String()),
		zap.String("withholding_tax", payment.WithholdingTax().String()),
		zap.String("method", string(payment.Method())),
	)
	return payment.ID(), finish(nil)
}

func (h *PaymentCommandHandler) StartPaymentProcessing(ctx context.Context, cmd StartPaymentProcessingCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "StartPaymentProcessing", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.StartProcessing(cmd.UserID)
		})
}

func (h *PaymentCommandHandler) UpdatePayment(ctx context.Context, cmd UpdatePaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "UpdatePayment", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.UpdateDetails(finance.UpdatePaymentParams{
				PaymentDate: cmd.PaymentDate,
				Reference:   cmd.Reference,
				CheckNumber: cmd.CheckNumber,
				Bank:        cmd.Bank,
				Wallet:      walletDetails(cmd.Wallet),
			}, cmd.UserID)
		})
}

// CompletePayment settles the payment. The PaymentCompleted event it raises is
// what applies the payment to the invoice.
func (h *PaymentCommandHandler) CompletePayment(ctx context.Context, cmd CompletePaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "CompletePayment", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.Complete(cmd.TransactionReference, cmd.UserID)
		})
}

func (h *PaymentCommandHandler) FailPayment(ctx context.Context, cmd FailPaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "FailPayment", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.Fail(cmd.Reason, cmd.UserID)
		})
}

// ReconcilePayment matches a completed payment against a bank statement
func (h *PaymentCommandHandler) ReconcilePayment(ctx context.Context, cmd ReconcilePaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "ReconcilePayment", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.Reconcile(cmd.Statement, cmd.UserID)
		})
}

func (h *PaymentCommandHandler) ReversePayment(ctx context.Context, cmd ReversePaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "ReversePayment", cmd, cmd.CommandMeta, cmd.PaymentID,
		func(_ context.Context, p *finance.Payment) error {
			return p.Reverse(cmd.UserID, cmd.Reason)
		})
}

func (h *PaymentCommandHandler) GetPayment(ctx context.Context, tenantID uuid.UUID, paymentID string) (finance.PaymentState, error) {
	p, err := h.repo.Load(ctx, tenantID, paymentID)
	if err != nil {
		return finance.PaymentState{}, err
	}
	return p.State(), nil
}
