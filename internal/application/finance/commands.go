package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
)

// CommandMeta identifies the tenant and the user behind a command
type CommandMeta struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	UserID   string    `json:"user_id" validate:"required"`
}

// InvoiceLine is a line item as submitted by a caller. The product category
// selects the supplementary duty rate unless SupplementaryDutyRate overrides it.
type InvoiceLine struct {
	Description           string                  `json:"description" validate:"required"`
	Quantity              decimal.Decimal         `json:"quantity"`
	UnitPrice             decimal.Decimal         `json:"unit_price"`
	Amount                *decimal.Decimal        `json:"amount,omitempty"`
	VATCategory           finance.VATCategory     `json:"vat_category" validate:"required,oneof=STANDARD REDUCED TRUNCATED ZERO_RATED EXEMPT"`
	VATRate               *decimal.Decimal        `json:"vat_rate,omitempty"`
	HSCode                string                  `json:"hs_code,omitempty"`
	ProductCategory       finance.ProductCategory `json:"product_category,omitempty" validate:"omitempty,oneof=GENERAL LUXURY TOBACCO BEVERAGE ELECTRONICS"`
	SupplementaryDutyRate *decimal.Decimal        `json:"supplementary_duty_rate,omitempty"`
	AdvanceIncomeTaxRate  decimal.Decimal         `json:"advance_income_tax_rate"`
}

type CreateInvoiceCommand struct {
	CommandMeta
	VendorID    string        `json:"vendor_id" validate:"required"`
	CustomerID  string        `json:"customer_id" validate:"required"`
	InvoiceDate time.Time     `json:"invoice_date" validate:"required"`
	DueDate     time.Time     `json:"due_date" validate:"required,gtefield=InvoiceDate"`
	Currency    string        `json:"currency,omitempty" validate:"omitempty,oneof=BDT USD EUR"`
	VendorTIN   string        `json:"vendor_tin,omitempty" validate:"omitempty,tin"`
	VendorBIN   string        `json:"vendor_bin,omitempty" validate:"omitempty,bin"`
	CustomerTIN string        `json:"customer_tin,omitempty" validate:"omitempty,tin"`
	CustomerBIN string        `json:"customer_bin,omitempty" validate:"omitempty,bin"`
	LineItems   []InvoiceLine `json:"line_items" validate:"dive"`
}

// UpdateInvoiceCommand edits a draft invoice. Nil fields are left unchanged.
type UpdateInvoiceCommand struct {
	CommandMeta
	InvoiceID   string                  `json:"invoice_id" validate:"required"`
	InvoiceDate *time.Time              `json:"invoice_date,omitempty"`
	DueDate     *time.Time              `json:"due_date,omitempty"`
	VendorID    *string                 `json:"vendor_id,omitempty" validate:"omitempty,min=1"`
	CustomerID  *string                 `json:"customer_id,omitempty" validate:"omitempty,min=1"`
	TaxInfo     *finance.InvoiceTaxInfo `json:"tax_info,omitempty"`
	LineItems   []InvoiceLine           `json:"line_items,omitempty" validate:"omitempty,dive"`
	AddLines    []InvoiceLine           `json:"add_lines,omitempty" validate:"omitempty,dive"`
}

type SubmitInvoiceCommand struct {
	CommandMeta
	InvoiceID string `json:"invoice_id" validate:"required"`
}

type ApproveInvoiceCommand struct {
	CommandMeta
	InvoiceID string `json:"invoice_id" validate:"required"`
}

type CancelInvoiceCommand struct {
	CommandMeta
	InvoiceID string `json:"invoice_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

type RecordInvoicePaymentCommand struct {
	CommandMeta
	InvoiceID string          `json:"invoice_id" validate:"required"`
	PaymentID string          `json:"payment_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty" validate:"omitempty,oneof=BDT USD EUR"`
}

type MarkInvoiceOverdueCommand struct {
	CommandMeta
	InvoiceID string    `json:"invoice_id" validate:"required"`
	AsOf      time.Time `json:"as_of" validate:"required"`
}

type CreatePaymentCommand struct {
	CommandMeta
	InvoiceID   string                      `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal             `json:"amount"`
	Currency    string                      `json:"currency,omitempty" validate:"omitempty,oneof=BDT USD EUR"`
	Method      finance.PaymentMethod       `json:"payment_method" validate:"required,oneof=CASH BANK_TRANSFER CHECK MOBILE_WALLET CARD"`
	PaymentDate time.Time                   `json:"payment_date" validate:"required"`
	Reference   string                      `json:"reference,omitempty"`
	CheckNumber string                      `json:"check_number,omitempty" validate:"required_if=Method CHECK"`
	Bank        *finance.BankAccountDetails `json:"bank,omitempty" validate:"required_if=Method BANK_TRANSFER"`
	Wallet      *MobileWalletInput          `json:"wallet,omitempty" validate:"required_if=Method MOBILE_WALLET"`

	// VendorType enables TDS/AIT withholding through the tax service
	VendorType  finance.VendorType `json:"vendor_type,omitempty" validate:"omitempty,oneof=SUPPLIER CONTRACTOR PROFESSIONAL RENT TRANSPORT IMPORTER EXPORTER"`
	PayeeHasTIN bool               `json:"payee_has_tin"`
}

type MobileWalletInput struct {
	Provider     finance.WalletProvider `json:"provider" validate:"required,oneof=BKASH NAGAD ROCKET UPAY"`
	MobileNumber string                 `json:"mobile_number" validate:"required,bd_mobile"`
}

type StartPaymentProcessingCommand struct {
	CommandMeta
	PaymentID string `json:"payment_id" validate:"required"`
}

// UpdatePaymentCommand edits a pending payment. Nil fields are left unchanged.
type UpdatePaymentCommand struct {
	CommandMeta
	PaymentID   string                      `json:"payment_id" validate:"required"`
	PaymentDate *time.Time                  `json:"payment_date,omitempty"`
	Reference   *string                     `json:"reference,omitempty"`
	CheckNumber *string                     `json:"check_number,omitempty"`
	Bank        *finance.BankAccountDetails `json:"bank,omitempty"`
	Wallet      *MobileWalletInput          `json:"wallet,omitempty"`
}

type CompletePaymentCommand struct {
	CommandMeta
	PaymentID            string `json:"payment_id" validate:"required"`
	TransactionReference string `json:"transaction_reference" validate:"required"`
}

type FailPaymentCommand struct {
	CommandMeta
	PaymentID string `json:"payment_id" validate:"required"`
	Reason    string `json:"reason" validate:"required,min=10"`
}

type ReconcilePaymentCommand struct {
	CommandMeta
	PaymentID string                `json:"payment_id" validate:"required"`
	Statement finance.BankStatement `json:"statement"`
}

type ReversePaymentCommand struct {
	CommandMeta
	PaymentID string `json:"payment_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

type JournalLine struct {
	AccountID   string          `json:"account_id" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	CostCenter  string          `json:"cost_center,omitempty"`
	Project     string          `json:"project,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	TaxCode     string          `json:"tax_code,omitempty"`
}

type CreateJournalCommand struct {
	CommandMeta
	JournalDate time.Time           `json:"journal_date" validate:"required"`
	JournalType finance.JournalType `json:"journal_type" validate:"required,oneof=GENERAL SALES PURCHASE CASH_RECEIPT CASH_PAYMENT ADJUSTMENT REVERSING"`
	Description string              `json:"description,omitempty"`
	Reference   string              `json:"reference,omitempty"`
	Currency    string              `json:"currency,omitempty" validate:"omitempty,oneof=BDT USD EUR"`
	Lines       []JournalLine       `json:"lines" validate:"dive"`
	AutoPost    bool                `json:"auto_post"`
}

type AddJournalLineCommand struct {
	CommandMeta
	JournalID string      `json:"journal_id" validate:"required"`
	Line      JournalLine `json:"line"`
}

type PostJournalCommand struct {
	CommandMeta
	JournalID string `json:"journal_id" validate:"required"`
}

// ReverseJournalCommand reverses a posted journal. The reversing journal is
// posted immediately unless LeaveDraft is set.
type ReverseJournalCommand struct {
	CommandMeta
	JournalID     string    `json:"journal_id" validate:"required"`
	ReversingDate time.Time `json:"reversing_date" validate:"required"`
	LeaveDraft    bool      `json:"leave_draft"`
}

// UpdateJournalCommand edits a draft journal. Nil fields are left unchanged.
type UpdateJournalCommand struct {
	CommandMeta
	JournalID   string        `json:"journal_id" validate:"required"`
	Description *string       `json:"description,omitempty"`
	Reference   *string       `json:"reference,omitempty"`
	JournalDate *time.Time    `json:"journal_date,omitempty"`
	Lines       []JournalLine `json:"lines,omitempty" validate:"omitempty,dive"`
}

type CancelJournalCommand struct {
	CommandMeta
	JournalID string `json:"journal_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

type ResolveReconciliationIssueCommand struct {
	CommandMeta
	IssueID    uuid.UUID `json:"issue_id" validate:"required"`
	Resolution string    `json:"resolution" validate:"required"`
}
