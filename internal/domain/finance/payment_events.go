package finance

import (
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// Payment event type names. Persisted streams depend on them; never rename.
const (
	EventTypePaymentCreated           = "PaymentCreated"
	EventTypePaymentProcessingStarted = "PaymentProcessingStarted"
	EventTypePaymentDetailsUpdated    = "PaymentDetailsUpdated"
	EventTypePaymentCompleted         = "PaymentCompleted"
	EventTypePaymentFailed            = "PaymentFailed"
	EventTypePaymentReconciled        = "PaymentReconciled"
	EventTypePaymentReversed          = "PaymentReversed"
)

// PaymentEvent is the closed set of events a Payment accepts
type PaymentEvent interface {
	shared.DomainEvent
	isPaymentEvent()
}

func newPaymentBase(p *Payment, eventType, userID string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypePayment, p.AggregateID(), p.AggregateTenantID(), userID)
}

// PaymentCreatedEvent is raised when a payment is registered against an invoice
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      string            `json:"invoice_id"`
	Amount         valueobject.Money `json:"amount"`
	WithholdingTax valueobject.Money `json:"withholding_tax"`
	NetAmount      valueobject.Money `json:"net_amount"`
	Method         PaymentMethod     `json:"payment_method"`
	PaymentDate    time.Time         `json:"payment_date"`
	Details        PaymentDetails    `json:"details"`
}

// PaymentProcessingStartedEvent is raised when the payment is handed to the bank or wallet provider
type PaymentProcessingStartedEvent struct {
	shared.BaseDomainEvent
	StartedAt time.Time `json:"started_at"`
}

// PaymentDetailsUpdatedEvent replaces the editable details of a pending payment
type PaymentDetailsUpdatedEvent struct {
	shared.BaseDomainEvent
	PaymentDate time.Time      `json:"payment_date"`
	Details     PaymentDetails `json:"details"`
}

// PaymentCompletedEvent is raised when funds are confirmed.
// It carries the invoice link so downstream workflows need not load the payment.
type PaymentCompletedEvent struct {
	shared.BaseDomainEvent
	InvoiceID            string            `json:"invoice_id"`
	Amount               valueobject.Money `json:"amount"`
	NetAmount            valueobject.Money `json:"net_amount"`
	TransactionReference string            `json:"transaction_reference"`
	CompletedAt          time.Time         `json:"completed_at"`
}

// PaymentFailedEvent is raised when the payment could not be completed
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// PaymentReconciledEvent links a completed payment to a bank statement line
type PaymentReconciledEvent struct {
	shared.BaseDomainEvent
	BankStatementID   string    `json:"bank_statement_id"`
	BankTransactionID string    `json:"bank_transaction_id"`
	ReconciledBy      string    `json:"reconciled_by"`
	ReconciledAt      time.Time `json:"reconciled_at"`
}

// PaymentReversedEvent is the compensating record for a completed payment
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	InvoiceID          string            `json:"invoice_id"`
	CompensatingAmount valueobject.Money `json:"compensating_amount"`
	PreviousStatus     PaymentStatus     `json:"previous_status"`
	ReversedBy         string            `json:"reversed_by"`
	Reason             string            `json:"reason"`
	ReversedAt         time.Time         `json:"reversed_at"`
}

func (*PaymentCreatedEvent) isPaymentEvent()           {}
func (*PaymentProcessingStartedEvent) isPaymentEvent() {}
func (*PaymentDetailsUpdatedEvent) isPaymentEvent()    {}
func (*PaymentCompletedEvent) isPaymentEvent()         {}
func (*PaymentFailedEvent) isPaymentEvent()            {}
func (*PaymentReconciledEvent) isPaymentEvent()        {}
func (*PaymentReversedEvent) isPaymentEvent()          {}
