package finance

import (
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// Invoice event type names. Persisted streams depend on them; never rename.
const (
	EventTypeInvoiceCreated              = "InvoiceCreated"
	EventTypeLineItemAdded               = "LineItemAdded"
	EventTypeInvoiceCalculated           = "InvoiceCalculated"
	EventTypeInvoiceLineItemsUpdated     = "InvoiceLineItemsUpdated"
	EventTypeInvoiceDatesUpdated         = "InvoiceDatesUpdated"
	EventTypeInvoiceCustomerUpdated      = "InvoiceCustomerUpdated"
	EventTypeInvoiceVendorUpdated        = "InvoiceVendorUpdated"
	EventTypeInvoiceTaxInfoUpdated       = "InvoiceTaxInfoUpdated"
	EventTypeInvoiceSubmittedForApproval = "InvoiceSubmittedForApproval"
	EventTypeInvoiceApproved             = "InvoiceApproved"
	EventTypeInvoicePaymentRecorded      = "InvoicePaymentRecorded"
	EventTypeInvoiceFullyPaid            = "InvoiceFullyPaid"
	EventTypeInvoiceCancelled            = "InvoiceCancelled"
	EventTypeInvoiceMarkedOverdue        = "InvoiceMarkedOverdue"
)

// InvoiceEvent is the closed set of events an Invoice accepts
type InvoiceEvent interface {
	shared.DomainEvent
	isInvoiceEvent()
}

func newInvoiceBase(inv *Invoice, eventType, userID string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, inv.AggregateID(), inv.AggregateTenantID(), userID)
}

// InvoiceCreatedEvent is raised when a new invoice is drafted
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string               `json:"invoice_number"`
	VendorID      string               `json:"vendor_id"`
	CustomerID    string               `json:"customer_id"`
	InvoiceDate   time.Time            `json:"invoice_date"`
	DueDate       time.Time            `json:"due_date"`
	FiscalYear    string               `json:"fiscal_year"`
	Currency      valueobject.Currency `json:"currency"`
	TaxInfo       InvoiceTaxInfo       `json:"tax_info"`
}

// LineItemAddedEvent is raised for each line added to a draft invoice
type LineItemAddedEvent struct {
	shared.BaseDomainEvent
	LineItem LineItem `json:"line_item"`
}

// InvoiceCalculatedEvent carries the recalculated invoice totals
type InvoiceCalculatedEvent struct {
	shared.BaseDomainEvent
	Totals InvoiceTotals `json:"totals"`
}

// InvoiceLineItemsUpdatedEvent replaces all line items of a draft invoice
type InvoiceLineItemsUpdatedEvent struct {
	shared.BaseDomainEvent
	LineItems []LineItem `json:"line_items"`
}

// InvoiceDatesUpdatedEvent is raised when invoice or due date change
type InvoiceDatesUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceDate time.Time `json:"invoice_date"`
	DueDate     time.Time `json:"due_date"`
	FiscalYear  string    `json:"fiscal_year"`
}

// InvoiceCustomerUpdatedEvent is raised when the billed customer changes
type InvoiceCustomerUpdatedEvent struct {
	shared.BaseDomainEvent
	CustomerID  string `json:"customer_id"`
	CustomerTIN string `json:"customer_tin,omitempty"`
	CustomerBIN string `json:"customer_bin,omitempty"`
}

// InvoiceVendorUpdatedEvent is raised when the issuing vendor changes
type InvoiceVendorUpdatedEvent struct {
	shared.BaseDomainEvent
	VendorID  string `json:"vendor_id"`
	VendorTIN string `json:"vendor_tin,omitempty"`
	VendorBIN string `json:"vendor_bin,omitempty"`
}

// InvoiceTaxInfoUpdatedEvent is raised when TIN/BIN registration numbers change
type InvoiceTaxInfoUpdatedEvent struct {
	shared.BaseDomainEvent
	TaxInfo InvoiceTaxInfo `json:"tax_info"`
}

// InvoiceSubmittedForApprovalEvent moves a draft into the approval queue
type InvoiceSubmittedForApprovalEvent struct {
	shared.BaseDomainEvent
	SubmittedBy string    `json:"submitted_by"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// InvoiceApprovedEvent is raised when an invoice is approved and receives its Mushak number
type InvoiceApprovedEvent struct {
	shared.BaseDomainEvent
	ApprovedBy   string    `json:"approved_by"`
	ApprovedAt   time.Time `json:"approved_at"`
	MushakNumber string    `json:"mushak_number"`
}

// InvoicePaymentRecordedEvent is raised when a payment is applied to an invoice
type InvoicePaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID  string            `json:"payment_id"`
	Amount     valueobject.Money `json:"amount"`
	PaidAmount valueobject.Money `json:"paid_amount"`
	Remaining  valueobject.Money `json:"remaining"`
}

// InvoiceFullyPaidEvent is raised when the outstanding balance reaches zero
type InvoiceFullyPaidEvent struct {
	shared.BaseDomainEvent
	GrandTotal valueobject.Money `json:"grand_total"`
	PaidAt     time.Time         `json:"paid_at"`
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// InvoiceMarkedOverdueEvent is raised when an unpaid invoice passes its due date
type InvoiceMarkedOverdueEvent struct {
	shared.BaseDomainEvent
	AsOf        time.Time         `json:"as_of"`
	Outstanding valueobject.Money `json:"outstanding"`
}

func (*InvoiceCreatedEvent) isInvoiceEvent()              {}
func (*LineItemAddedEvent) isInvoiceEvent()               {}
func (*InvoiceCalculatedEvent) isInvoiceEvent()           {}
func (*InvoiceLineItemsUpdatedEvent) isInvoiceEvent()     {}
func (*InvoiceDatesUpdatedEvent) isInvoiceEvent()         {}
func (*InvoiceCustomerUpdatedEvent) isInvoiceEvent()      {}
func (*InvoiceVendorUpdatedEvent) isInvoiceEvent()        {}
func (*InvoiceTaxInfoUpdatedEvent) isInvoiceEvent()       {}
func (*InvoiceSubmittedForApprovalEvent) isInvoiceEvent() {}
func (*InvoiceApprovedEvent) isInvoiceEvent()             {}
func (*InvoicePaymentRecordedEvent) isInvoiceEvent()      {}
func (*InvoiceFullyPaidEvent) isInvoiceEvent()            {}
func (*InvoiceCancelledEvent) isInvoiceEvent()            {}
func (*InvoiceMarkedOverdueEvent) isInvoiceEvent()        {}
