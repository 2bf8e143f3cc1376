package finance

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// AggregateTypePayment is the stream type for payments
const AggregateTypePayment = "Payment"

// MinFailureReasonLength is the shortest accepted failure reason
const MinFailureReasonLength = 10

// PaymentMethod represents how a payment is made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodMobileWallet PaymentMethod = "MOBILE_WALLET"
	PaymentMethodCard         PaymentMethod = "CARD"
)

// IsValid checks if the payment method is a valid value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck,
		PaymentMethodMobileWallet, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentStatus represents the lifecycle status of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusReconciled PaymentStatus = "RECONCILED"
	PaymentStatusReversed   PaymentStatus = "REVERSED"
)

// IsSettled returns true once funds were confirmed
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusReconciled
}

// WalletProvider identifies a Bangladesh mobile financial service
type WalletProvider string

const (
	WalletBKash  WalletProvider = "BKASH"
	WalletNagad  WalletProvider = "NAGAD"
	WalletRocket WalletProvider = "ROCKET"
	WalletUpay   WalletProvider = "UPAY"
)

// BankAccountDetails identifies the bank account used for a transfer
type BankAccountDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	BranchName    string `json:"branch_name,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// MobileWalletDetails identifies the wallet used for a mobile payment
type MobileWalletDetails struct {
	Provider     WalletProvider `json:"provider"`
	MobileNumber string         `json:"mobile_number"`
}

// PaymentDetails are the method-specific fields of a payment
type PaymentDetails struct {
	Reference   string               `json:"reference,omitempty"`
	CheckNumber string               `json:"check_number,omitempty"`
	Bank        *BankAccountDetails  `json:"bank,omitempty"`
	Wallet      *MobileWalletDetails `json:"wallet,omitempty"`
}

func (d PaymentDetails) validateFor(method PaymentMethod) error {
	switch method {
	case PaymentMethodBankTransfer:
		if d.Bank == nil || strings.TrimSpace(d.Bank.AccountNumber) == "" {
			return shared.NewValidationError("BANK_ACCOUNT_REQUIRED", "Bank account number is required for bank transfers")
		}
	case PaymentMethodCheck:
		if strings.TrimSpace(d.CheckNumber) == "" {
			return shared.NewValidationError("CHECK_NUMBER_REQUIRED", "Check number is required for check payments")
		}
	case PaymentMethodMobileWallet:
		if d.Wallet == nil || !valueobject.IsBangladeshMobile(d.Wallet.MobileNumber) {
			return shared.NewValidationError("INVALID_MOBILE_NUMBER", "A valid Bangladesh mobile number is required for mobile wallet payments")
		}
	}
	return nil
}

func (d PaymentDetails) clone() PaymentDetails {
	if d.Bank != nil {
		b := *d.Bank
		d.Bank = &b
	}
	if d.Wallet != nil {
		w := *d.Wallet
		d.Wallet = &w
	}
	return d
}

// PaymentState is the full serializable state of a payment
type PaymentState struct {
	ID                   string            `json:"id"`
	TenantID             uuid.UUID         `json:"tenant_id"`
	InvoiceID            string            `json:"invoice_id"`
	Amount               valueobject.Money `json:"amount"`
	WithholdingTax       valueobject.Money `json:"withholding_tax"`
	NetAmount            valueobject.Money `json:"net_amount"`
	Method               PaymentMethod     `json:"payment_method"`
	Status               PaymentStatus     `json:"status"`
	PaymentDate          time.Time         `json:"payment_date"`
	Details              PaymentDetails    `json:"details"`
	TransactionReference string            `json:"transaction_reference,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	BankStatementID      string            `json:"bank_statement_id,omitempty"`
	BankTransactionID    string            `json:"bank_transaction_id,omitempty"`
	ReconciledBy         string            `json:"reconciled_by,omitempty"`
	ReconciledAt         *time.Time        `json:"reconciled_at,omitempty"`
	ReversedBy           string            `json:"reversed_by,omitempty"`
	ReversalReason       string            `json:"reversal_reason,omitempty"`
	CreatedBy            string            `json:"created_by"`
}

// Payment is the event-sourced aggregate for a single payment against one invoice
type Payment struct {
	shared.AggregateRoot[PaymentEvent]
	state PaymentState
}

// NewPaymentAggregate returns an empty payment ready for replay or snapshot restore
func NewPaymentAggregate() *Payment {
	return &Payment{}
}

// CreatePaymentParams holds the input of CreatePayment
type CreatePaymentParams struct {
	TenantID    uuid.UUID
	InvoiceID   string
	Amount      valueobject.Money
	Method      PaymentMethod
	PaymentDate time.Time
	Details     PaymentDetails
	// WithholdingTax is the TDS/AIT deducted at source, zero when none applies
	WithholdingTax valueobject.Money
	CreatedBy      string
}

// CreatePayment registers a pending payment
func CreatePayment(p CreatePaymentParams) (*Payment, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if strings.TrimSpace(p.InvoiceID) == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if !p.Amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !p.Method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Invalid payment method: %s", p.Method))
	}
	if p.PaymentDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Payment date is required")
	}
	if err := p.Details.validateFor(p.Method); err != nil {
		return nil, err
	}
	if p.Details.Wallet != nil {
		wallet := *p.Details.Wallet
		wallet.MobileNumber = valueobject.NormalizeMobile(wallet.MobileNumber)
		p.Details.Wallet = &wallet
	}

	withholding := p.WithholdingTax
	if withholding.Currency() == "" {
		withholding = valueobject.Zero(p.Amount.Currency())
	}
	if withholding.IsNegative() {
		return nil, shared.NewValidationError("INVALID_WITHHOLDING", "Withholding tax cannot be negative")
	}
	net, err := p.Amount.Subtract(withholding)
	if err != nil {
		return nil, shared.NewValidationError("CURRENCY_MISMATCH", err.Error())
	}
	if !net.IsPositive() {
		return nil, shared.NewValidationError("INVALID_WITHHOLDING", "Withholding tax must be less than the payment amount")
	}

	pay := NewPaymentAggregate()
	pay.SetIdentity(shared.NewIdentifier(shared.PrefixPayment), AggregateTypePayment, p.TenantID)
	if err := pay.raise(&PaymentCreatedEvent{
		BaseDomainEvent: newPaymentBase(pay, EventTypePaymentCreated, p.CreatedBy),
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		WithholdingTax:  withholding,
		NetAmount:       net,
		Method:          p.Method,
		PaymentDate:     p.PaymentDate,
		Details:         p.Details.clone(),
	}); err != nil {
		return nil, err
	}
	return pay, nil
}

func (p *Payment) raise(e PaymentEvent) error {
	return p.Raise(e, p.when)
}

func (p *Payment) invalidStatus(op string) error {
	return shared.NewInvalidStateError("INVALID_STATUS",
		fmt.Sprintf("Cannot %s payment %s in %s status", op, p.state.ID, p.state.Status)).
		WithDetail("payment_id", p.state.ID).
		WithDetail("status", string(p.state.Status))
}

// StartProcessing moves a pending payment to PROCESSING
func (p *Payment) StartProcessing(userID string) error {
	if p.state.Status != PaymentStatusPending {
		return p.invalidStatus("start processing")
	}
	return p.raise(&PaymentProcessingStartedEvent{
		BaseDomainEvent: newPaymentBase(p, EventTypePaymentProcessingStarted, userID),
		StartedAt:       now(),
	})
}

// UpdatePaymentParams lists the editable fields of a pending payment. Nil fields are left unchanged.
type UpdatePaymentParams struct {
	PaymentDate *time.Time
	Reference   *string
	CheckNumber *string
	Bank        *BankAccountDetails
	Wallet      *MobileWalletDetails
}

// UpdateDetails edits a pending payment. Amount and method are never editable.
func (p *Payment) UpdateDetails(u UpdatePaymentParams, userID string) error {
	if p.state.Status != PaymentStatusPending {
		return p.invalidStatus("update")
	}
	details := p.state.Details.clone()
	date := p.state.PaymentDate
	if u.PaymentDate != nil {
		if u.PaymentDate.IsZero() {
			return shared.NewValidationError("INVALID_DATE", "Payment date is required")
		}
		date = *u.PaymentDate
	}
	if u.Reference != nil {
		details.Reference = *u.Reference
	}
	if u.CheckNumber != nil {
		details.CheckNumber = *u.CheckNumber
	}
	if u.Bank != nil {
		b := *u.Bank
		details.Bank = &b
	}
	if u.Wallet != nil {
		w := *u.Wallet
		w.MobileNumber = valueobject.NormalizeMobile(w.MobileNumber)
		details.Wallet = &w
	}
	if err := details.validateFor(p.state.Method); err != nil {
		return err
	}
	return p.raise(&PaymentDetailsUpdatedEvent{
		BaseDomainEvent: newPaymentBase(p, EventTypePaymentDetailsUpdated, userID),
		PaymentDate:     date,
		Details:         details,
	})
}

// Complete confirms the payment with the bank or provider transaction reference
func (p *Payment) Complete(transactionReference, userID string) error {
	if p.state.Status.IsSettled() {
		return shared.NewInvalidStateError("PAYMENT_ALREADY_COMPLETED",
			fmt.Sprintf("Payment %s is already completed", p.state.ID)).
			WithDetail("payment_id", p.state.ID).
			WithDetail("status", string(p.state.Status))
	}
	if p.state.Status != PaymentStatusPending && p.state.Status != PaymentStatusProcessing {
		return p.invalidStatus("complete")
	}
	if strings.TrimSpace(transactionReference) == "" {
		return shared.NewValidationError("INVALID_REFERENCE", "Transaction reference is required")
	}
	return p.raise(&PaymentCompletedEvent{
		BaseDomainEvent:      newPaymentBase(p, EventTypePaymentCompleted, userID),
		InvoiceID:            p.state.InvoiceID,
		Amount:               p.state.Amount,
		NetAmount:            p.state.NetAmount,
		TransactionReference: transactionReference,
		CompletedAt:          now(),
	})
}

// Fail marks a pending or processing payment as failed
func (p *Payment) Fail(reason, userID string) error {
	if p.state.Status != PaymentStatusPending && p.state.Status != PaymentStatusProcessing {
		return p.invalidStatus("fail")
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < MinFailureReasonLength {
		return shared.NewValidationError("INVALID_REASON",
			fmt.Sprintf("Failure reason must be at least %d characters", MinFailureReasonLength))
	}
	return p.raise(&PaymentFailedEvent{
		BaseDomainEvent: newPaymentBase(p, EventTypePaymentFailed, userID),
		Reason:          reason,
		FailedAt:        now(),
	})
}

// Reconcile matches a completed payment to a bank statement transaction.
// The bank credits the net amount, so that is what must match.
func (p *Payment) Reconcile(statement BankStatement, reconciledBy string) error {
	if p.state.Status == PaymentStatusReconciled {
		return shared.NewInvalidStateError("PAYMENT_ALREADY_RECONCILED",
			fmt.Sprintf("Payment %s is already reconciled", p.state.ID)).
			WithDetail("payment_id", p.state.ID)
	}
	if p.state.Status != PaymentStatusCompleted {
		return p.invalidStatus("reconcile")
	}
	tx, ok := statement.FindMatch(p.state.NetAmount, p.state.TransactionReference, p.state.Details.Reference)
	if !ok {
		return shared.NewBusinessRuleError("NO_MATCHING_TRANSACTION",
			fmt.Sprintf("No transaction in bank statement %s matches payment %s", statement.ID, p.state.ID)).
			WithDetail("payment_id", p.state.ID).
			WithDetail("amount", p.state.NetAmount.Amount().String()).
			WithDetail("transaction_reference", p.state.TransactionReference)
	}
	return p.raise(&PaymentReconciledEvent{
		BaseDomainEvent:   newPaymentBase(p, EventTypePaymentReconciled, reconciledBy),
		BankStatementID:   statement.ID,
		BankTransactionID: tx.ID,
		ReconciledBy:      reconciledBy,
		ReconciledAt:      now(),
	})
}

// Reverse records a compensating entry for a completed or reconciled payment
func (p *Payment) Reverse(reversedBy, reason string) error {
	if !p.state.Status.IsSettled() {
		return p.invalidStatus("reverse")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Reversal reason is required")
	}
	return p.raise(&PaymentReversedEvent{
		BaseDomainEvent:    newPaymentBase(p, EventTypePaymentReversed, reversedBy),
		InvoiceID:          p.state.InvoiceID,
		CompensatingAmount: p.state.Amount.Negate(),
		PreviousStatus:     p.state.Status,
		ReversedBy:         reversedBy,
		Reason:             reason,
		ReversedAt:         now(),
	})
}

// when applies an event to the payment state
func (p *Payment) when(e PaymentEvent) error {
	s := &p.state
	switch ev := e.(type) {
	case *PaymentCreatedEvent:
		*s = PaymentState{
			ID:             ev.AggregateID(),
			TenantID:       ev.TenantID(),
			InvoiceID:      ev.InvoiceID,
			Amount:         ev.Amount,
			WithholdingTax: ev.WithholdingTax,
			NetAmount:      ev.NetAmount,
			Method:         ev.Method,
			Status:         PaymentStatusPending,
			PaymentDate:    ev.PaymentDate,
			Details:        ev.Details.clone(),
			CreatedBy:      ev.CausationUserID(),
		}
	case *PaymentProcessingStartedEvent:
		s.Status = PaymentStatusProcessing
	case *PaymentDetailsUpdatedEvent:
		s.PaymentDate = ev.PaymentDate
		s.Details = ev.Details.clone()
	case *PaymentCompletedEvent:
		s.Status = PaymentStatusCompleted
		s.TransactionReference = ev.TransactionReference
		completedAt := ev.CompletedAt
		s.CompletedAt = &completedAt
	case *PaymentFailedEvent:
		s.Status = PaymentStatusFailed
		s.FailureReason = ev.Reason
	case *PaymentReconciledEvent:
		s.Status = PaymentStatusReconciled
		s.BankStatementID = ev.BankStatementID
		s.BankTransactionID = ev.BankTransactionID
		s.ReconciledBy = ev.ReconciledBy
		reconciledAt := ev.ReconciledAt
		s.ReconciledAt = &reconciledAt
	case *PaymentReversedEvent:
		s.Status = PaymentStatusReversed
		s.ReversedBy = ev.ReversedBy
		s.ReversalReason = ev.Reason
	default:
		return fmt.Errorf("payment: unhandled event %s (%T)", e.EventType(), e)
	}
	return nil
}

// ReplayEvent applies a stored event during reconstruction
func (p *Payment) ReplayEvent(e shared.DomainEvent) error {
	ev, ok := e.(PaymentEvent)
	if !ok {
		return fmt.Errorf("payment: unexpected event %s (%T)", e.EventType(), e)
	}
	if p.AggregateID() == "" {
		p.SetIdentity(ev.AggregateID(), AggregateTypePayment, ev.TenantID())
	}
	return p.Replay(ev, p.when)
}

// ToSnapshot serializes the full payment state
func (p *Payment) ToSnapshot() ([]byte, error) {
	return json.Marshal(p.state)
}

// RestoreSnapshot restores state directly, bypassing replay
func (p *Payment) RestoreSnapshot(data []byte, version int) error {
	var s PaymentState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to restore payment snapshot: %w", err)
	}
	p.state = s
	p.SetIdentity(s.ID, AggregateTypePayment, s.TenantID)
	p.RestoreVersion(version)
	return nil
}

// State returns a copy of the payment state
func (p *Payment) State() PaymentState {
	s := p.state
	s.Details = p.state.Details.clone()
	return s
}

func (p *Payment) ID() string                        { return p.state.ID }
func (p *Payment) TenantID() uuid.UUID               { return p.state.TenantID }
func (p *Payment) InvoiceID() string                 { return p.state.InvoiceID }
func (p *Payment) Status() PaymentStatus             { return p.state.Status }
func (p *Payment) Amount() valueobject.Money         { return p.state.Amount }
func (p *Payment) NetAmount() valueobject.Money      { return p.state.NetAmount }
func (p *Payment) WithholdingTax() valueobject.Money { return p.state.WithholdingTax }
func (p *Payment) Method() PaymentMethod             { return p.state.Method }

// IsTerminal reports whether no further transition is possible
func (p *Payment) IsTerminal() bool {
	return slices.Contains([]PaymentStatus{PaymentStatusFailed, PaymentStatusReversed}, p.state.Status)
}

var _ shared.Snapshottable = (*Payment)(nil)
