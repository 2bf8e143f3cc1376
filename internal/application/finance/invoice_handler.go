package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// InvoiceCommandHandler turns invoice commands into persisted invoice events
type InvoiceCommandHandler struct {
	repo     *AggregateRepository[*finance.Invoice]
	sequence shared.SequenceGenerator
	tax      *finance.TaxCalculationService
	runner   commandRunner
}

// NewInvoiceCommandHandler creates an invoice command handler
func NewInvoiceCommandHandler(repo *AggregateRepository[*finance.Invoice], deps HandlerDeps) *InvoiceCommandHandler {
	deps = deps.withDefaults()
	return &InvoiceCommandHandler{
		repo:     repo,
		sequence: deps.Sequence,
		tax:      deps.Tax,
		runner:   newCommandRunner("invoice", finance.AggregateTypeInvoice, deps),
	}
}

func (h *InvoiceCommandHandler) toLineInputs(lines []InvoiceLine) []finance.LineItemInput {
	return lo.Map(lines, func(l InvoiceLine, _ int) finance.LineItemInput {
		sdRate := h.tax.SupplementaryDutyRate(l.ProductCategory, l.SupplementaryDutyRate)
		if l.ProductCategory == "" && l.SupplementaryDutyRate != nil {
			sdRate = *l.SupplementaryDutyRate
		}
		return finance.LineItemInput{
			Description:           l.Description,
			Quantity:              l.Quantity,
			UnitPrice:             l.UnitPrice,
			Amount:                l.Amount,
			VATCategory:           l.VATCategory,
			VATRate:               l.VATRate,
			HSCode:                l.HSCode,
			SupplementaryDutyRate: sdRate,
			AdvanceIncomeTaxRate:  l.AdvanceIncomeTaxRate,
		}
	})
}

// CreateInvoice drafts an invoice and returns its ID
func (h *InvoiceCommandHandler) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (string, error) {
	ctx, finish, err := h.runner.begin(ctx, "CreateInvoice", cmd, cmd.CommandMeta, "")
	if err != nil {
		return "", err
	}
	inv, err := finance.CreateInvoice(ctx, h.sequence, finance.CreateInvoiceParams{
		TenantID:    cmd.TenantID,
		VendorID:    cmd.VendorID,
		CustomerID:  cmd.CustomerID,
		InvoiceDate: cmd.InvoiceDate,
		DueDate:     cmd.DueDate,
		Currency:    h.runner.currencyOr(cmd.Currency),
		TaxInfo: finance.InvoiceTaxInfo{
			VendorTIN:   cmd.VendorTIN,
			VendorBIN:   cmd.VendorBIN,
			CustomerTIN: cmd.CustomerTIN,
			CustomerBIN: cmd.CustomerBIN,
		},
		LineItems: h.toLineInputs(cmd.LineItems),
		CreatedBy: cmd.UserID,
	})
	if err != nil {
		return "", finish(err)
	}
	// a new stream cannot conflict, so there is nothing to retry
	if err := h.repo.Save(ctx, inv); err != nil {
		return "", finish(err)
	}
	h.runner.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID()),
		zap.String("invoice_number", inv.InvoiceNumber()),
		zap.String("grand_total", inv.GrandTotal().String()),
		zap.Int("line_items", len(inv.LineItems())),
	)
	return inv.ID(), finish(nil)
}

// UpdateInvoice applies every supplied change to a draft invoice in one save
func (h *InvoiceCommandHandler) UpdateInvoice(ctx context.Context, cmd UpdateInvoiceCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "UpdateInvoice", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(_ context.Context, inv *finance.Invoice) error {
			if cmd.InvoiceDate != nil || cmd.DueDate != nil {
				s := inv.State()
				invoiceDate, dueDate := s.InvoiceDate, s.DueDate
				if cmd.InvoiceDate != nil {
					invoiceDate = *cmd.InvoiceDate
				}
				if cmd.DueDate != nil {
					dueDate = *cmd.DueDate
				}
				if err := inv.UpdateDates(invoiceDate, dueDate, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.VendorID != nil {
				info := inv.State().TaxInfo
				if err := inv.UpdateVendor(*cmd.VendorID, info.VendorTIN, info.VendorBIN, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.CustomerID != nil {
				info := inv.State().TaxInfo
				if err := inv.UpdateCustomer(*cmd.CustomerID, info.CustomerTIN, info.CustomerBIN, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.TaxInfo != nil {
				if err := inv.UpdateTaxInfo(*cmd.TaxInfo, cmd.UserID); err != nil {
					return err
				}
			}
			if cmd.LineItems != nil {
				if err := inv.UpdateLineItems(h.toLineInputs(cmd.LineItems), cmd.UserID); err != nil {
					return err
				}
			}
			for _, line := range h.toLineInputs(cmd.AddLines) {
				if err := inv.AddLineItem(line, cmd.UserID); err != nil {
					return err
				}
			}
			return nil
		})
}

func (h *InvoiceCommandHandler) SubmitInvoice(ctx context.Context, cmd SubmitInvoiceCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "SubmitInvoice", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(_ context.Context, inv *finance.Invoice) error {
			return inv.SubmitForApproval(cmd.UserID)
		})
}

// ApproveInvoice approves the invoice and assigns its Mushak-6.3 number
func (h *InvoiceCommandHandler) ApproveInvoice(ctx context.Context, cmd ApproveInvoiceCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "ApproveInvoice", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(ctx context.Context, inv *finance.Invoice) error {
			return inv.Approve(ctx, h.sequence, cmd.UserID)
		})
}

func (h *InvoiceCommandHandler) CancelInvoice(ctx context.Context, cmd CancelInvoiceCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "CancelInvoice", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(_ context.Context, inv *finance.Invoice) error {
			return inv.Cancel(cmd.UserID, cmd.Reason)
		})
}

// RecordInvoicePayment applies a payment amount to the invoice balance
func (h *InvoiceCommandHandler) RecordInvoicePayment(ctx context.Context, cmd RecordInvoicePaymentCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "RecordInvoicePayment", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(_ context.Context, inv *finance.Invoice) error {
			currency := valueobject.Currency(cmd.Currency)
			if currency == "" {
				currency = inv.Currency()
			}
			amount, err := valueobject.NewMoney(cmd.Amount, currency)
			if err != nil {
				return shared.NewValidationError("INVALID_AMOUNT", err.Error())
			}
			return inv.RecordPayment(cmd.PaymentID, amount, cmd.UserID)
		})
}

func (h *InvoiceCommandHandler) MarkInvoiceOverdue(ctx context.Context, cmd MarkInvoiceOverdueCommand) error {
	return mutateAggregate(ctx, h.runner, h.repo, "MarkInvoiceOverdue", cmd, cmd.CommandMeta, cmd.InvoiceID,
		func(_ context.Context, inv *finance.Invoice) error {
			return inv.MarkOverdue(cmd.AsOf, cmd.UserID)
		})
}

// GetInvoice loads the current state of an invoice
func (h *InvoiceCommandHandler) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID string) (finance.InvoiceState, error) {
	inv, err := h.repo.Load(ctx, tenantID, invoiceID)
	if err != nil {
		return finance.InvoiceState{}, err
	}
	return inv.State(), nil
}
