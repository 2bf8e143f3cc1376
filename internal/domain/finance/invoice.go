package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// AggregateTypeInvoice is the stream type for invoices
const AggregateTypeInvoice = "Invoice"

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft           InvoiceStatus = "DRAFT"
	InvoiceStatusPendingApproval InvoiceStatus = "PENDING_APPROVAL"
	InvoiceStatusApproved        InvoiceStatus = "APPROVED"
	InvoiceStatusPaid            InvoiceStatus = "PAID"
	InvoiceStatusCancelled       InvoiceStatus = "CANCELLED"
	InvoiceStatusOverdue         InvoiceStatus = "OVERDUE"
)

// IsValid checks if the status is a valid value
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPendingApproval, InvoiceStatusApproved,
		InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusOverdue:
		return true
	}
	return false
}

// CanModify returns true if line items, dates and parties may still change
func (s InvoiceStatus) CanModify() bool {
	return s == InvoiceStatusDraft
}

// CanApprove returns true if the invoice can be approved
func (s InvoiceStatus) CanApprove() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPendingApproval
}

// CanReceivePayment returns true if payments may be recorded against the invoice
func (s InvoiceStatus) CanReceivePayment() bool {
	return s != InvoiceStatusDraft && s != InvoiceStatusCancelled
}

// InvoiceTaxInfo holds the NBR registration numbers of both parties
type InvoiceTaxInfo struct {
	VendorTIN   string `json:"vendor_tin,omitempty"`
	VendorBIN   string `json:"vendor_bin,omitempty"`
	CustomerTIN string `json:"customer_tin,omitempty"`
	CustomerBIN string `json:"customer_bin,omitempty"`
}

func (t InvoiceTaxInfo) validate() error {
	for name, tin := range map[string]string{"vendor": t.VendorTIN, "customer": t.CustomerTIN} {
		if tin != "" && !valueobject.IsValidTIN(tin) {
			return shared.NewValidationError("INVALID_TIN", fmt.Sprintf("Invalid %s TIN: %s", name, tin))
		}
	}
	for name, bin := range map[string]string{"vendor": t.VendorBIN, "customer": t.CustomerBIN} {
		if bin != "" && !valueobject.IsValidBIN(bin) {
			return shared.NewValidationError("INVALID_BIN", fmt.Sprintf("Invalid %s BIN: %s", name, bin))
		}
	}
	return nil
}

// LineItem is a priced invoice line with its computed taxes
type LineItem struct {
	ID                string            `json:"id"`
	Description       string            `json:"description"`
	Quantity          decimal.Decimal   `json:"quantity"`
	UnitPrice         valueobject.Money `json:"unit_price"`
	Amount            valueobject.Money `json:"amount"`
	VATCategory       VATCategory       `json:"vat_category"`
	VATRate           decimal.Decimal   `json:"vat_rate"`
	VATAmount         valueobject.Money `json:"vat_amount"`
	HSCode            string            `json:"hs_code,omitempty"`
	SupplementaryDuty valueobject.Money `json:"supplementary_duty"`
	AdvanceIncomeTax  valueobject.Money `json:"advance_income_tax"`
}

// LineItemInput describes a line to add. Amounts are in the invoice currency.
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	// Amount overrides UnitPrice x Quantity when set
	Amount      *decimal.Decimal
	VATCategory VATCategory
	// VATRate overrides the category rate; it must still be a legal rate
	VATRate               *decimal.Decimal
	HSCode                string
	SupplementaryDutyRate decimal.Decimal
	AdvanceIncomeTaxRate  decimal.Decimal
}

// taxPlaces is the precision of computed VAT, SD and AIT amounts
const taxPlaces = 2

func buildLineItem(in LineItemInput, currency valueobject.Currency) (LineItem, error) {
	if strings.TrimSpace(in.Description) == "" {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "Line item description is required")
	}
	if !in.Quantity.IsPositive() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "Line item quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "Line item unit price cannot be negative")
	}
	if in.SupplementaryDutyRate.IsNegative() || in.AdvanceIncomeTaxRate.IsNegative() ||
		in.AdvanceIncomeTaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "Supplementary duty and AIT rates must be non-negative and AIT below 100%")
	}

	rate, ok := in.VATCategory.Rate()
	if !ok {
		return LineItem{}, shared.NewValidationError("INVALID_VAT_CATEGORY",
			fmt.Sprintf("Unknown VAT category: %s", in.VATCategory))
	}
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	if !IsAllowedVATRate(rate) {
		return LineItem{}, shared.NewBusinessRuleError("INVALID_VAT_RATE",
			fmt.Sprintf("Invalid VAT rate %s. Allowed rates are 0, 0.05, 0.075 and 0.15", rate.String())).
			WithDetail("vat_rate", rate.String())
	}

	unitPrice := moneyOf(in.UnitPrice, currency)
	amount := unitPrice.Multiply(in.Quantity)
	if in.Amount != nil {
		if in.Amount.IsNegative() {
			return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "Line item amount cannot be negative")
		}
		amount = moneyOf(*in.Amount, currency)
	}

	return LineItem{
		ID:                shared.NewIdentifier(shared.PrefixLineItem),
		Description:       strings.TrimSpace(in.Description),
		Quantity:          in.Quantity,
		UnitPrice:         unitPrice,
		Amount:            amount,
		VATCategory:       in.VATCategory,
		VATRate:           rate,
		VATAmount:         amount.Multiply(rate).Round(taxPlaces),
		HSCode:            in.HSCode,
		SupplementaryDuty: amount.Multiply(in.SupplementaryDutyRate).Round(taxPlaces),
		AdvanceIncomeTax:  amount.Multiply(in.AdvanceIncomeTaxRate).Round(taxPlaces),
	}, nil
}

func buildLineItems(inputs []LineItemInput, currency valueobject.Currency) ([]LineItem, error) {
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		item, err := buildLineItem(in, currency)
		if err != nil {
			if de, ok := shared.AsDomainError(err); ok {
				return nil, de.WithDetail("line_index", i)
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func moneyOf(amount decimal.Decimal, currency valueobject.Currency) valueobject.Money {
	m, _ := valueobject.NewMoney(amount, currency)
	return m
}

// InvoiceTotals are derived from the line items
type InvoiceTotals struct {
	Subtotal          valueobject.Money `json:"subtotal"`
	VATAmount         valueobject.Money `json:"vat_amount"`
	SupplementaryDuty valueobject.Money `json:"supplementary_duty"`
	AdvanceIncomeTax  valueobject.Money `json:"advance_income_tax"`
	GrandTotal        valueobject.Money `json:"grand_total"`
}

// calculateTotals computes grandTotal = subtotal + VAT + SD - AIT
func calculateTotals(items []LineItem, currency valueobject.Currency) InvoiceTotals {
	t := InvoiceTotals{
		Subtotal:          valueobject.Zero(currency),
		VATAmount:         valueobject.Zero(currency),
		SupplementaryDuty: valueobject.Zero(currency),
		AdvanceIncomeTax:  valueobject.Zero(currency),
	}
	for _, li := range items {
		t.Subtotal = t.Subtotal.MustAdd(li.Amount)
		t.VATAmount = t.VATAmount.MustAdd(li.VATAmount)
		t.SupplementaryDuty = t.SupplementaryDuty.MustAdd(li.SupplementaryDuty)
		t.AdvanceIncomeTax = t.AdvanceIncomeTax.MustAdd(li.AdvanceIncomeTax)
	}
	t.GrandTotal = t.Subtotal.MustAdd(t.VATAmount).MustAdd(t.SupplementaryDuty).MustSubtract(t.AdvanceIncomeTax)
	return t
}

// InvoiceState is the full serializable state of an invoice
type InvoiceState struct {
	ID                 string               `json:"id"`
	TenantID           uuid.UUID            `json:"tenant_id"`
	InvoiceNumber      string               `json:"invoice_number"`
	VendorID           string               `json:"vendor_id"`
	CustomerID         string               `json:"customer_id"`
	Currency           valueobject.Currency `json:"currency"`
	LineItems          []LineItem           `json:"line_items"`
	Totals             InvoiceTotals        `json:"totals"`
	PaidAmount         valueobject.Money    `json:"paid_amount"`
	PaymentIDs         []string             `json:"payment_ids"`
	Status             InvoiceStatus        `json:"status"`
	MushakNumber       string               `json:"mushak_number,omitempty"`
	InvoiceDate        time.Time            `json:"invoice_date"`
	DueDate            time.Time            `json:"due_date"`
	FiscalYear         string               `json:"fiscal_year"`
	TaxInfo            InvoiceTaxInfo       `json:"tax_info"`
	CreatedBy          string               `json:"created_by"`
	ApprovedBy         string               `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
	CancelledBy        string               `json:"cancelled_by,omitempty"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
}

// Invoice is the event-sourced aggregate for sales and purchase invoices
type Invoice struct {
	shared.AggregateRoot[InvoiceEvent]
	state InvoiceState
}

// NewInvoiceAggregate returns an empty invoice ready for replay or snapshot restore
func NewInvoiceAggregate() *Invoice {
	return &Invoice{}
}

// CreateInvoiceParams holds the input of CreateInvoice
type CreateInvoiceParams struct {
	TenantID    uuid.UUID
	VendorID    string
	CustomerID  string
	InvoiceDate time.Time
	DueDate     time.Time
	Currency    valueobject.Currency
	TaxInfo     InvoiceTaxInfo
	LineItems   []LineItemInput
	CreatedBy   string
}

// CreateInvoice drafts a new invoice, numbering it from the tenant's invoice sequence
func CreateInvoice(ctx context.Context, seq shared.SequenceGenerator, p CreateInvoiceParams) (*Invoice, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if strings.TrimSpace(p.VendorID) == "" {
		return nil, shared.NewValidationError("INVALID_VENDOR", "Vendor ID cannot be empty")
	}
	if strings.TrimSpace(p.CustomerID) == "" {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if err := validateInvoiceDates(p.InvoiceDate, p.DueDate); err != nil {
		return nil, err
	}
	if err := p.TaxInfo.validate(); err != nil {
		return nil, err
	}
	currency := p.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	items, err := buildLineItems(p.LineItems, currency)
	if err != nil {
		return nil, err
	}

	number, err := nextNumber(ctx, seq, p.TenantID, invoiceNumberScope(p.InvoiceDate))
	if err != nil {
		return nil, err
	}

	inv := NewInvoiceAggregate()
	inv.SetIdentity(shared.NewIdentifier(shared.PrefixInvoice), AggregateTypeInvoice, p.TenantID)
	if err := inv.raise(&InvoiceCreatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceCreated, p.CreatedBy),
		InvoiceNumber:   number,
		VendorID:        p.VendorID,
		CustomerID:      p.CustomerID,
		InvoiceDate:     p.InvoiceDate,
		DueDate:         p.DueDate,
		FiscalYear:      valueobject.FiscalYear(p.InvoiceDate),
		Currency:        currency,
		TaxInfo:         p.TaxInfo,
	}); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := inv.appendLineItem(item, p.CreatedBy); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

func validateInvoiceDates(invoiceDate, dueDate time.Time) error {
	if invoiceDate.IsZero() {
		return shared.NewValidationError("INVALID_DATE", "Invoice date is required")
	}
	if dueDate.IsZero() {
		return shared.NewValidationError("INVALID_DATE", "Due date is required")
	}
	if dueDate.Before(invoiceDate) {
		return shared.NewValidationError("INVALID_DATE", "Due date cannot be before invoice date")
	}
	return nil
}

func (inv *Invoice) raise(e InvoiceEvent) error {
	return inv.Raise(e, inv.when)
}

func (inv *Invoice) requireStatus(op string, allowed ...InvoiceStatus) error {
	if slices.Contains(allowed, inv.state.Status) {
		return nil
	}
	return shared.NewInvalidStateError("INVALID_STATUS",
		fmt.Sprintf("Cannot %s invoice %s in %s status", op, inv.state.InvoiceNumber, inv.state.Status)).
		WithDetail("invoice_id", inv.state.ID).
		WithDetail("status", string(inv.state.Status))
}

// AddLineItem validates and adds a line item, then recalculates totals. DRAFT only.
func (inv *Invoice) AddLineItem(in LineItemInput, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	item, err := buildLineItem(in, inv.state.Currency)
	if err != nil {
		return err
	}
	return inv.appendLineItem(item, userID)
}

func (inv *Invoice) appendLineItem(item LineItem, userID string) error {
	if err := inv.raise(&LineItemAddedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeLineItemAdded, userID),
		LineItem:        item,
	}); err != nil {
		return err
	}
	return inv.recalculate(userID)
}

func (inv *Invoice) recalculate(userID string) error {
	return inv.raise(&InvoiceCalculatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceCalculated, userID),
		Totals:          calculateTotals(inv.state.LineItems, inv.state.Currency),
	})
}

// UpdateLineItems replaces all line items of a draft invoice
func (inv *Invoice) UpdateLineItems(inputs []LineItemInput, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	items, err := buildLineItems(inputs, inv.state.Currency)
	if err != nil {
		return err
	}
	if err := inv.raise(&InvoiceLineItemsUpdatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceLineItemsUpdated, userID),
		LineItems:       items,
	}); err != nil {
		return err
	}
	return inv.recalculate(userID)
}

// UpdateDates changes invoice and due dates and recomputes the fiscal year
func (inv *Invoice) UpdateDates(invoiceDate, dueDate time.Time, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	if err := validateInvoiceDates(invoiceDate, dueDate); err != nil {
		return err
	}
	return inv.raise(&InvoiceDatesUpdatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceDatesUpdated, userID),
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		FiscalYear:      valueobject.FiscalYear(invoiceDate),
	})
}

// UpdateCustomer changes the billed customer and its registration numbers
func (inv *Invoice) UpdateCustomer(customerID, tin, bin, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	if strings.TrimSpace(customerID) == "" {
		return shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	info := inv.state.TaxInfo
	info.CustomerTIN, info.CustomerBIN = tin, bin
	if err := info.validate(); err != nil {
		return err
	}
	return inv.raise(&InvoiceCustomerUpdatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceCustomerUpdated, userID),
		CustomerID:      customerID,
		CustomerTIN:     tin,
		CustomerBIN:     bin,
	})
}

// UpdateVendor changes the issuing vendor and its registration numbers
func (inv *Invoice) UpdateVendor(vendorID, tin, bin, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	if strings.TrimSpace(vendorID) == "" {
		return shared.NewValidationError("INVALID_VENDOR", "Vendor ID cannot be empty")
	}
	info := inv.state.TaxInfo
	info.VendorTIN, info.VendorBIN = tin, bin
	if err := info.validate(); err != nil {
		return err
	}
	return inv.raise(&InvoiceVendorUpdatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceVendorUpdated, userID),
		VendorID:        vendorID,
		VendorTIN:       tin,
		VendorBIN:       bin,
	})
}

// UpdateTaxInfo replaces the TIN/BIN numbers of both parties
func (inv *Invoice) UpdateTaxInfo(info InvoiceTaxInfo, userID string) error {
	if err := inv.requireStatus("modify", InvoiceStatusDraft); err != nil {
		return err
	}
	if err := info.validate(); err != nil {
		return err
	}
	return inv.raise(&InvoiceTaxInfoUpdatedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceTaxInfoUpdated, userID),
		TaxInfo:         info,
	})
}

// SubmitForApproval moves a draft with at least one line into PENDING_APPROVAL
func (inv *Invoice) SubmitForApproval(userID string) error {
	if err := inv.requireStatus("submit", InvoiceStatusDraft); err != nil {
		return err
	}
	if err := inv.requireLines(); err != nil {
		return err
	}
	return inv.raise(&InvoiceSubmittedForApprovalEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceSubmittedForApproval, userID),
		SubmittedBy:     userID,
		SubmittedAt:     now(),
	})
}

func (inv *Invoice) requireLines() error {
	if len(inv.state.LineItems) == 0 {
		return shared.NewBusinessRuleError("NO_LINE_ITEMS", "Invoice must have at least one line item").
			WithDetail("invoice_id", inv.state.ID)
	}
	return nil
}

// Approve approves the invoice and assigns its Mushak-6.3 number
func (inv *Invoice) Approve(ctx context.Context, seq shared.SequenceGenerator, approvedBy string) error {
	if err := inv.requireStatus("approve", InvoiceStatusDraft, InvoiceStatusPendingApproval); err != nil {
		return err
	}
	if strings.TrimSpace(approvedBy) == "" {
		return shared.NewValidationError("INVALID_APPROVER", "Approver is required")
	}
	if err := inv.requireLines(); err != nil {
		return err
	}
	mushak, err := nextNumber(ctx, seq, inv.state.TenantID, mushakNumberScope(inv.state.InvoiceDate))
	if err != nil {
		return err
	}
	return inv.raise(&InvoiceApprovedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceApproved, approvedBy),
		ApprovedBy:      approvedBy,
		ApprovedAt:      now(),
		MushakNumber:    mushak,
	})
}

// RecordPayment applies a completed payment. The paid amount can never exceed the grand total.
// A payment ID is recorded at most once.
func (inv *Invoice) RecordPayment(paymentID string, amount valueobject.Money, userID string) error {
	if !inv.state.Status.CanReceivePayment() {
		return shared.NewInvalidStateError("INVALID_STATUS",
			fmt.Sprintf("Cannot record payment on invoice %s in %s status", inv.state.InvoiceNumber, inv.state.Status)).
			WithDetail("invoice_id", inv.state.ID).
			WithDetail("status", string(inv.state.Status))
	}
	if strings.TrimSpace(paymentID) == "" {
		return shared.NewValidationError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if slices.Contains(inv.state.PaymentIDs, paymentID) {
		return shared.NewBusinessRuleError("PAYMENT_ALREADY_RECORDED",
			fmt.Sprintf("Payment %s is already recorded on invoice %s", paymentID, inv.state.InvoiceNumber)).
			WithDetail("invoice_id", inv.state.ID).
			WithDetail("payment_id", paymentID)
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if amount.Currency() != inv.state.Currency {
		return shared.NewValidationError("CURRENCY_MISMATCH",
			fmt.Sprintf("Payment currency %s does not match invoice currency %s", amount.Currency(), inv.state.Currency))
	}

	grandTotal := inv.state.Totals.GrandTotal
	newPaid := inv.state.PaidAmount.MustAdd(amount)
	if over, _ := newPaid.GreaterThan(grandTotal); over {
		return shared.NewBusinessRuleError("OVERPAYMENT",
			fmt.Sprintf("Payment of %s exceeds outstanding balance of invoice %s. Grand total: %s, paid: %s",
				amount.Amount().String(), inv.state.InvoiceNumber,
				grandTotal.Amount().String(), inv.state.PaidAmount.Amount().String())).
			WithDetail("invoice_id", inv.state.ID).
			WithDetail("payment_id", paymentID).
			WithDetail("grand_total", grandTotal.Amount().String()).
			WithDetail("paid_amount", inv.state.PaidAmount.Amount().String()).
			WithDetail("attempted_amount", amount.Amount().String()).
			WithDetail("status", string(inv.state.Status))
	}

	remaining := grandTotal.MustSubtract(newPaid)
	if err := inv.raise(&InvoicePaymentRecordedEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoicePaymentRecorded, userID),
		PaymentID:       paymentID,
		Amount:          amount,
		PaidAmount:      newPaid,
		Remaining:       remaining,
	}); err != nil {
		return err
	}
	if remaining.IsZero() {
		return inv.raise(&InvoiceFullyPaidEvent{
			BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceFullyPaid, userID),
			GrandTotal:      grandTotal,
			PaidAt:          now(),
		})
	}
	return nil
}

// Cancel cancels the invoice unless it is already cancelled or paid
func (inv *Invoice) Cancel(cancelledBy, reason string) error {
	switch inv.state.Status {
	case InvoiceStatusCancelled:
		return shared.NewInvalidStateError("ALREADY_CANCELLED",
			fmt.Sprintf("Invoice %s is already cancelled", inv.state.InvoiceNumber)).
			WithDetail("invoice_id", inv.state.ID)
	case InvoiceStatusPaid:
		return shared.NewInvalidStateError("INVALID_STATUS",
			fmt.Sprintf("Cannot cancel paid invoice %s", inv.state.InvoiceNumber)).
			WithDetail("invoice_id", inv.state.ID).
			WithDetail("status", string(inv.state.Status))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancellation reason is required")
	}
	return inv.raise(&InvoiceCancelledEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceCancelled, cancelledBy),
		CancelledBy:     cancelledBy,
		Reason:          reason,
		CancelledAt:     now(),
	})
}

// MarkOverdue flags an approved invoice whose due date passed with a balance outstanding
func (inv *Invoice) MarkOverdue(asOf time.Time, userID string) error {
	if err := inv.requireStatus("mark overdue", InvoiceStatusApproved, InvoiceStatusPendingApproval); err != nil {
		return err
	}
	if !asOf.After(inv.state.DueDate) {
		return shared.NewBusinessRuleError("NOT_YET_DUE",
			fmt.Sprintf("Invoice %s is not past its due date %s", inv.state.InvoiceNumber, inv.state.DueDate.Format(time.DateOnly)))
	}
	outstanding := inv.RemainingAmount()
	if !outstanding.IsPositive() {
		return shared.NewBusinessRuleError("NOTHING_OUTSTANDING",
			fmt.Sprintf("Invoice %s has no outstanding balance", inv.state.InvoiceNumber))
	}
	return inv.raise(&InvoiceMarkedOverdueEvent{
		BaseDomainEvent: newInvoiceBase(inv, EventTypeInvoiceMarkedOverdue, userID),
		AsOf:            asOf,
		Outstanding:     outstanding,
	})
}

// when applies an event to the invoice state
func (inv *Invoice) when(e InvoiceEvent) error {
	s := &inv.state
	switch ev := e.(type) {
	case *InvoiceCreatedEvent:
		*s = InvoiceState{
			ID:            ev.AggregateID(),
			TenantID:      ev.TenantID(),
			InvoiceNumber: ev.InvoiceNumber,
			VendorID:      ev.VendorID,
			CustomerID:    ev.CustomerID,
			Currency:      ev.Currency,
			LineItems:     []LineItem{},
			Totals:        calculateTotals(nil, ev.Currency),
			PaidAmount:    valueobject.Zero(ev.Currency),
			PaymentIDs:    []string{},
			Status:        InvoiceStatusDraft,
			InvoiceDate:   ev.InvoiceDate,
			DueDate:       ev.DueDate,
			FiscalYear:    ev.FiscalYear,
			TaxInfo:       ev.TaxInfo,
			CreatedBy:     ev.CausationUserID(),
		}
	case *LineItemAddedEvent:
		s.LineItems = append(s.LineItems, ev.LineItem)
	case *InvoiceCalculatedEvent:
		s.Totals = ev.Totals
	case *InvoiceLineItemsUpdatedEvent:
		s.LineItems = slices.Clone(ev.LineItems)
	case *InvoiceDatesUpdatedEvent:
		s.InvoiceDate = ev.InvoiceDate
		s.DueDate = ev.DueDate
		s.FiscalYear = ev.FiscalYear
	case *InvoiceCustomerUpdatedEvent:
		s.CustomerID = ev.CustomerID
		s.TaxInfo.CustomerTIN = ev.CustomerTIN
		s.TaxInfo.CustomerBIN = ev.CustomerBIN
	case *InvoiceVendorUpdatedEvent:
		s.VendorID = ev.VendorID
		s.TaxInfo.VendorTIN = ev.VendorTIN
		s.TaxInfo.VendorBIN = ev.VendorBIN
	case *InvoiceTaxInfoUpdatedEvent:
		s.TaxInfo = ev.TaxInfo
	case *InvoiceSubmittedForApprovalEvent:
		s.Status = InvoiceStatusPendingApproval
	case *InvoiceApprovedEvent:
		s.Status = InvoiceStatusApproved
		s.MushakNumber = ev.MushakNumber
		s.ApprovedBy = ev.ApprovedBy
		approvedAt := ev.ApprovedAt
		s.ApprovedAt = &approvedAt
	case *InvoicePaymentRecordedEvent:
		s.PaidAmount = ev.PaidAmount
		s.PaymentIDs = append(s.PaymentIDs, ev.PaymentID)
	case *InvoiceFullyPaidEvent:
		s.Status = InvoiceStatusPaid
	case *InvoiceCancelledEvent:
		s.Status = InvoiceStatusCancelled
		s.CancelledBy = ev.CancelledBy
		s.CancellationReason = ev.Reason
	case *InvoiceMarkedOverdueEvent:
		s.Status = InvoiceStatusOverdue
	default:
		return fmt.Errorf("invoice: unhandled event %s (%T)", e.EventType(), e)
	}
	return nil
}

// ReplayEvent applies a stored event during reconstruction
func (inv *Invoice) ReplayEvent(e shared.DomainEvent) error {
	ev, ok := e.(InvoiceEvent)
	if !ok {
		return fmt.Errorf("invoice: unexpected event %s (%T)", e.EventType(), e)
	}
	if inv.AggregateID() == "" {
		inv.SetIdentity(ev.AggregateID(), AggregateTypeInvoice, ev.TenantID())
	}
	return inv.Replay(ev, inv.when)
}

// ToSnapshot serializes the full invoice state
func (inv *Invoice) ToSnapshot() ([]byte, error) {
	return json.Marshal(inv.state)
}

// RestoreSnapshot restores state directly, bypassing replay
func (inv *Invoice) RestoreSnapshot(data []byte, version int) error {
	var s InvoiceState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to restore invoice snapshot: %w", err)
	}
	inv.state = s
	inv.SetIdentity(s.ID, AggregateTypeInvoice, s.TenantID)
	inv.RestoreVersion(version)
	return nil
}

// State returns a copy of the invoice state
func (inv *Invoice) State() InvoiceState {
	s := inv.state
	s.LineItems = slices.Clone(inv.state.LineItems)
	s.PaymentIDs = slices.Clone(inv.state.PaymentIDs)
	return s
}

func (inv *Invoice) ID() string                       { return inv.state.ID }
func (inv *Invoice) TenantID() uuid.UUID              { return inv.state.TenantID }
func (inv *Invoice) InvoiceNumber() string            { return inv.state.InvoiceNumber }
func (inv *Invoice) Status() InvoiceStatus            { return inv.state.Status }
func (inv *Invoice) MushakNumber() string             { return inv.state.MushakNumber }
func (inv *Invoice) FiscalYear() string               { return inv.state.FiscalYear }
func (inv *Invoice) Currency() valueobject.Currency   { return inv.state.Currency }
func (inv *Invoice) LineItems() []LineItem            { return slices.Clone(inv.state.LineItems) }
func (inv *Invoice) Subtotal() valueobject.Money      { return inv.state.Totals.Subtotal }
func (inv *Invoice) VATAmount() valueobject.Money     { return inv.state.Totals.VATAmount }
func (inv *Invoice) GrandTotal() valueobject.Money    { return inv.state.Totals.GrandTotal }
func (inv *Invoice) PaidAmount() valueobject.Money    { return inv.state.PaidAmount }
func (inv *Invoice) Totals() InvoiceTotals            { return inv.state.Totals }
func (inv *Invoice) HasPayment(paymentID string) bool { return slices.Contains(inv.state.PaymentIDs, paymentID) }
func (inv *Invoice) DueDate() time.Time               { return inv.state.DueDate }

// RemainingAmount returns grand total minus paid amount
func (inv *Invoice) RemainingAmount() valueobject.Money {
	return inv.state.Totals.GrandTotal.MustSubtract(inv.state.PaidAmount)
}

var _ shared.Snapshottable = (*Invoice)(nil)
