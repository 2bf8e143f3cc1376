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

// AggregateTypeJournal is the stream type for journal entries
const AggregateTypeJournal = "JournalEntry"

// JournalType classifies a journal and selects its number prefix
type JournalType string

const (
	JournalTypeGeneral     JournalType = "GENERAL"
	JournalTypeSales       JournalType = "SALES"
	JournalTypePurchase    JournalType = "PURCHASE"
	JournalTypeCashReceipt JournalType = "CASH_RECEIPT"
	JournalTypeCashPayment JournalType = "CASH_PAYMENT"
	JournalTypeAdjustment  JournalType = "ADJUSTMENT"
	JournalTypeReversing   JournalType = "REVERSING"
)

var journalPrefixes = map[JournalType]string{
	JournalTypeGeneral:     "GJ",
	JournalTypeSales:       "SJ",
	JournalTypePurchase:    "PJ",
	JournalTypeCashReceipt: "CR",
	JournalTypeCashPayment: "CP",
	JournalTypeAdjustment:  "AJ",
	JournalTypeReversing:   "RJ",
}

// IsValid checks if the journal type is a valid value
func (t JournalType) IsValid() bool {
	_, ok := journalPrefixes[t]
	return ok
}

// Prefix returns the journal number prefix, GJ for unknown types
func (t JournalType) Prefix() string {
	if p, ok := journalPrefixes[t]; ok {
		return p
	}
	return "GJ"
}

// JournalStatus represents the lifecycle status of a journal entry
type JournalStatus string

const (
	JournalStatusDraft     JournalStatus = "DRAFT"
	JournalStatusPosted    JournalStatus = "POSTED"
	JournalStatusReversed  JournalStatus = "REVERSED"
	JournalStatusCancelled JournalStatus = "CANCELLED"
)

// MinJournalLines is the fewest lines a journal can be posted with
const MinJournalLines = 2

// JournalLine is one debit or credit posting to an account
type JournalLine struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id"`
	DebitAmount  valueobject.Money `json:"debit_amount"`
	CreditAmount valueobject.Money `json:"credit_amount"`
	Description  string            `json:"description,omitempty"`
	CostCenter   string            `json:"cost_center,omitempty"`
	Project      string            `json:"project,omitempty"`
	Reference    string            `json:"reference,omitempty"`
	TaxCode      string            `json:"tax_code,omitempty"`
}

// IsDebit reports whether the line posts to the debit side
func (l JournalLine) IsDebit() bool {
	return l.DebitAmount.IsPositive()
}

// JournalLineInput describes a line before validation. Exactly one of Debit
// and Credit must be non-zero.
type JournalLineInput struct {
	AccountID   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	CostCenter  string
	Project     string
	Reference   string
	TaxCode     string
}

func buildJournalLine(in JournalLineInput, currency valueobject.Currency) (JournalLine, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return JournalLine{}, shared.NewValidationError("INVALID_ACCOUNT", "Journal line account ID cannot be empty")
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return JournalLine{}, shared.NewValidationError("NEGATIVE_AMOUNT", "Journal line amounts cannot be negative").
			WithDetail("account_id", in.AccountID)
	}
	hasDebit, hasCredit := !in.Debit.IsZero(), !in.Credit.IsZero()
	if hasDebit && hasCredit {
		return JournalLine{}, shared.NewValidationError("INVALID_JOURNAL_LINE",
			"Journal line cannot have both debit and credit amounts").
			WithDetail("account_id", in.AccountID)
	}
	if !hasDebit && !hasCredit {
		return JournalLine{}, shared.NewValidationError("INVALID_JOURNAL_LINE",
			"Journal line must have either a debit or a credit amount").
			WithDetail("account_id", in.AccountID)
	}
	return JournalLine{
		ID:           shared.NewIdentifier(shared.PrefixJournalLine),
		AccountID:    in.AccountID,
		DebitAmount:  moneyOf(in.Debit, currency),
		CreditAmount: moneyOf(in.Credit, currency),
		Description:  in.Description,
		CostCenter:   in.CostCenter,
		Project:      in.Project,
		Reference:    in.Reference,
		TaxCode:      in.TaxCode,
	}, nil
}

func buildJournalLines(inputs []JournalLineInput, currency valueobject.Currency) ([]JournalLine, error) {
	lines := make([]JournalLine, 0, len(inputs))
	for i, in := range inputs {
		line, err := buildJournalLine(in, currency)
		if err != nil {
			if de, ok := shared.AsDomainError(err); ok {
				return nil, de.WithDetail("line_index", i)
			}
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// sumLines returns the debit and credit totals of lines
func sumLines(lines []JournalLine, currency valueobject.Currency) (valueobject.Money, valueobject.Money) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.DebitAmount.Amount())
		credit = credit.Add(l.CreditAmount.Amount())
	}
	return moneyOf(debit, currency), moneyOf(credit, currency)
}

// JournalState is the full serializable state of a journal entry
type JournalState struct {
	ID                 string               `json:"id"`
	TenantID           uuid.UUID            `json:"tenant_id"`
	JournalNumber      string               `json:"journal_number"`
	JournalDate        time.Time            `json:"journal_date"`
	JournalType        JournalType          `json:"journal_type"`
	Description        string               `json:"description,omitempty"`
	Reference          string               `json:"reference,omitempty"`
	Status             JournalStatus        `json:"status"`
	Currency           valueobject.Currency `json:"currency"`
	Lines              []JournalLine        `json:"lines"`
	TotalDebit         valueobject.Money    `json:"total_debit"`
	TotalCredit        valueobject.Money    `json:"total_credit"`
	FiscalPeriod       string               `json:"fiscal_period"`
	OriginalJournalID  string               `json:"original_journal_id,omitempty"`
	ReversingJournalID string               `json:"reversing_journal_id,omitempty"`
	CreatedBy          string               `json:"created_by"`
	PostedBy           string               `json:"posted_by,omitempty"`
	PostedAt           *time.Time           `json:"posted_at,omitempty"`
	ReversedBy         string               `json:"reversed_by,omitempty"`
	CancelledBy        string               `json:"cancelled_by,omitempty"`
	CancellationReason string               `json:"cancellation_reason,omitempty"`
}

// JournalEntry is the event-sourced double-entry journal aggregate
type JournalEntry struct {
	shared.AggregateRoot[JournalEvent]
	state JournalState
}

// NewJournalEntryAggregate returns an empty journal ready for replay or snapshot restore
func NewJournalEntryAggregate() *JournalEntry {
	return &JournalEntry{}
}

// CreateJournalParams holds the input of CreateJournal
type CreateJournalParams struct {
	TenantID    uuid.UUID
	JournalDate time.Time
	JournalType JournalType
	Description string
	Reference   string
	Currency    valueobject.Currency
	Lines       []JournalLineInput
	// AutoPost posts the journal right away when the supplied lines balance
	AutoPost          bool
	OriginalJournalID string
	Window            valueobject.OpenPeriodWindow
	CreatedBy         string
}

func checkOpenPeriod(date time.Time, window valueobject.OpenPeriodWindow) error {
	current := now()
	if window.Contains(date, current) {
		return nil
	}
	return shared.NewBusinessRuleError("CLOSED_PERIOD",
		fmt.Sprintf("Date %s is outside the open accounting period (%s to %s)",
			date.Format(time.DateOnly),
			window.Earliest(current).Format(time.DateOnly),
			window.Latest(current).Format(time.DateOnly))).
		WithDetail("date", date.Format(time.DateOnly)).
		WithDetail("fiscal_period", valueobject.FiscalPeriod(date))
}

// CreateJournal drafts a journal numbered from the tenant's per-type sequence
func CreateJournal(ctx context.Context, seq shared.SequenceGenerator, p CreateJournalParams) (*JournalEntry, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !p.JournalType.IsValid() {
		return nil, shared.NewValidationError("INVALID_JOURNAL_TYPE", fmt.Sprintf("Invalid journal type: %s", p.JournalType))
	}
	if p.JournalDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Journal date is required")
	}
	if err := checkOpenPeriod(p.JournalDate, p.Window); err != nil {
		return nil, err
	}
	currency := p.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	lines, err := buildJournalLines(p.Lines, currency)
	if err != nil {
		return nil, err
	}

	number, err := nextNumber(ctx, seq, p.TenantID, journalNumberScope(p.JournalType, p.JournalDate))
	if err != nil {
		return nil, err
	}

	j := NewJournalEntryAggregate()
	j.SetIdentity(shared.NewIdentifier(shared.PrefixJournal), AggregateTypeJournal, p.TenantID)
	if err := j.raise(&JournalCreatedEvent{
		BaseDomainEvent:   newJournalBase(j, EventTypeJournalCreated, p.CreatedBy),
		JournalNumber:     number,
		JournalDate:       p.JournalDate,
		JournalType:       p.JournalType,
		Description:       p.Description,
		Reference:         p.Reference,
		Currency:          currency,
		FiscalPeriod:      valueobject.FiscalPeriod(p.JournalDate),
		OriginalJournalID: p.OriginalJournalID,
	}); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if err := j.raise(&JournalLineAddedEvent{
			BaseDomainEvent: newJournalBase(j, EventTypeJournalLineAdded, p.CreatedBy),
			Line:            line,
		}); err != nil {
			return nil, err
		}
	}
	if p.AutoPost && j.ValidateBalance() == nil {
		if err := j.Post(p.CreatedBy); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *JournalEntry) raise(e JournalEvent) error {
	return j.Raise(e, j.when)
}

func (j *JournalEntry) requireStatus(op string, allowed ...JournalStatus) error {
	if slices.Contains(allowed, j.state.Status) {
		return nil
	}
	return shared.NewInvalidStateError("INVALID_STATUS",
		fmt.Sprintf("Cannot %s journal %s in %s status", op, j.state.JournalNumber, j.state.Status)).
		WithDetail("journal_id", j.state.ID).
		WithDetail("status", string(j.state.Status))
}

// AddJournalLine validates and appends one line. DRAFT only.
func (j *JournalEntry) AddJournalLine(in JournalLineInput, userID string) error {
	if err := j.requireStatus("modify", JournalStatusDraft); err != nil {
		return err
	}
	line, err := buildJournalLine(in, j.state.Currency)
	if err != nil {
		return err
	}
	return j.raise(&JournalLineAddedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalLineAdded, userID),
		Line:            line,
	})
}

// UpdateLines replaces every line. DRAFT only; the journal must balance again before posting.
func (j *JournalEntry) UpdateLines(inputs []JournalLineInput, userID string) error {
	if err := j.requireStatus("modify", JournalStatusDraft); err != nil {
		return err
	}
	lines, err := buildJournalLines(inputs, j.state.Currency)
	if err != nil {
		return err
	}
	return j.raise(&JournalLinesUpdatedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalLinesUpdated, userID),
		Lines:           lines,
	})
}

func (j *JournalEntry) UpdateDescription(description, userID string) error {
	if err := j.requireStatus("modify", JournalStatusDraft); err != nil {
		return err
	}
	return j.raise(&JournalDescriptionUpdatedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalDescriptionUpdated, userID),
		Description:     description,
	})
}

func (j *JournalEntry) UpdateReference(reference, userID string) error {
	if err := j.requireStatus("modify", JournalStatusDraft); err != nil {
		return err
	}
	return j.raise(&JournalReferenceUpdatedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalReferenceUpdated, userID),
		Reference:       reference,
	})
}

// UpdateJournalDate moves a draft journal and recomputes its fiscal period.
// The journal number keeps the fiscal year it was drawn in.
func (j *JournalEntry) UpdateJournalDate(date time.Time, window valueobject.OpenPeriodWindow, userID string) error {
	if err := j.requireStatus("modify", JournalStatusDraft); err != nil {
		return err
	}
	if date.IsZero() {
		return shared.NewValidationError("INVALID_DATE", "Journal date is required")
	}
	if err := checkOpenPeriod(date, window); err != nil {
		return err
	}
	return j.raise(&JournalDateUpdatedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalDateUpdated, userID),
		JournalDate:     date,
		FiscalPeriod:    valueobject.FiscalPeriod(date),
	})
}

// ValidateBalance checks the double-entry rule without changing state
func (j *JournalEntry) ValidateBalance() error {
	if len(j.state.Lines) < MinJournalLines {
		return shared.NewBusinessRuleError("INSUFFICIENT_LINES",
			fmt.Sprintf("Journal entry must have at least %d lines", MinJournalLines)).
			WithDetail("line_count", len(j.state.Lines))
	}
	debit, credit := sumLines(j.state.Lines, j.state.Currency)
	if !debit.Amount().Equal(credit.Amount()) {
		return shared.NewBusinessRuleError("UNBALANCED_JOURNAL",
			fmt.Sprintf("Journal entry is not balanced. Debit: %s, Credit: %s", debit.Amount(), credit.Amount())).
			WithDetail("debit", debit.Amount().String()).
			WithDetail("credit", credit.Amount().String()).
			WithDetail("difference", debit.Amount().Sub(credit.Amount()).String())
	}
	return nil
}

// IsBalanced reports whether ValidateBalance would pass
func (j *JournalEntry) IsBalanced() bool {
	return j.ValidateBalance() == nil
}

// Post posts a balanced draft journal. Posted lines are immutable.
func (j *JournalEntry) Post(postedBy string) error {
	if err := j.requireStatus("post", JournalStatusDraft); err != nil {
		return err
	}
	if err := j.ValidateBalance(); err != nil {
		return err
	}
	return j.raise(&JournalPostedEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalPosted, postedBy),
		PostedBy:        postedBy,
		PostedAt:        now(),
		TotalDebit:      j.state.TotalDebit,
		TotalCredit:     j.state.TotalCredit,
	})
}

// ReversalParams holds the input of CreateReversingEntry
type ReversalParams struct {
	Date       time.Time
	ReversedBy string
	Window     valueobject.OpenPeriodWindow
	// AutoPost posts the reversing journal immediately
	AutoPost bool
}

// CreateReversingEntry builds a new REVERSING journal whose lines swap debit
// and credit of this journal line for line, and marks this journal REVERSED.
// The caller persists both aggregates.
func (j *JournalEntry) CreateReversingEntry(ctx context.Context, seq shared.SequenceGenerator, p ReversalParams) (*JournalEntry, error) {
	reversing, err := j.BuildReversingEntry(ctx, seq, p)
	if err != nil {
		return nil, err
	}
	if err := j.MarkReversed(reversing.ID(), p.Date, p.ReversedBy); err != nil {
		return nil, err
	}
	return reversing, nil
}

// BuildReversingEntry creates the REVERSING journal for this one without
// touching this journal. MarkReversed completes the reversal once the new
// journal is stored.
func (j *JournalEntry) BuildReversingEntry(ctx context.Context, seq shared.SequenceGenerator, p ReversalParams) (*JournalEntry, error) {
	if err := j.requireReversible(); err != nil {
		return nil, err
	}
	if p.Date.IsZero() {
		return nil, shared.NewValidationError("INVALID_DATE", "Reversing date is required")
	}
	if p.Date.Before(j.state.JournalDate) {
		return nil, shared.NewBusinessRuleError("INVALID_REVERSAL_DATE",
			fmt.Sprintf("Reversing date %s cannot precede journal date %s",
				p.Date.Format(time.DateOnly), j.state.JournalDate.Format(time.DateOnly)))
	}

	inputs := make([]JournalLineInput, 0, len(j.state.Lines))
	for _, l := range j.state.Lines {
		inputs = append(inputs, JournalLineInput{
			AccountID:   l.AccountID,
			Debit:       l.CreditAmount.Amount(),
			Credit:      l.DebitAmount.Amount(),
			Description: l.Description,
			CostCenter:  l.CostCenter,
			Project:     l.Project,
			Reference:   l.Reference,
			TaxCode:     l.TaxCode,
		})
	}
	return CreateJournal(ctx, seq, CreateJournalParams{
		TenantID:          j.state.TenantID,
		JournalDate:       p.Date,
		JournalType:       JournalTypeReversing,
		Description:       fmt.Sprintf("Reversal of %s", j.state.JournalNumber),
		Reference:         j.state.JournalNumber,
		Currency:          j.state.Currency,
		Lines:             inputs,
		AutoPost:          p.AutoPost,
		OriginalJournalID: j.state.ID,
		Window:            p.Window,
		CreatedBy:         p.ReversedBy,
	})
}

// MarkReversed records that reversingJournalID reverses this posted journal
func (j *JournalEntry) MarkReversed(reversingJournalID string, date time.Time, reversedBy string) error {
	if err := j.requireReversible(); err != nil {
		return err
	}
	if reversingJournalID == "" {
		return shared.NewValidationError("INVALID_REVERSING_JOURNAL", "Reversing journal ID is required")
	}
	return j.raise(&JournalReversedEvent{
		BaseDomainEvent:    newJournalBase(j, EventTypeJournalReversed, reversedBy),
		ReversingJournalID: reversingJournalID,
		ReversalDate:       date,
		ReversedBy:         reversedBy,
	})
}

func (j *JournalEntry) requireReversible() error {
	if j.state.Status != JournalStatusPosted {
		return shared.NewBusinessRuleError("JOURNAL_NOT_POSTED",
			fmt.Sprintf("Only posted journals can be reversed; journal %s is %s", j.state.JournalNumber, j.state.Status)).
			WithDetail("journal_id", j.state.ID).
			WithDetail("status", string(j.state.Status))
	}
	return nil
}

// Cancel abandons a draft journal
func (j *JournalEntry) Cancel(cancelledBy, reason string) error {
	if err := j.requireStatus("cancel", JournalStatusDraft); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancellation reason is required")
	}
	return j.raise(&JournalCancelledEvent{
		BaseDomainEvent: newJournalBase(j, EventTypeJournalCancelled, cancelledBy),
		CancelledBy:     cancelledBy,
		Reason:          reason,
	})
}

func (j *JournalEntry) setLines(lines []JournalLine) {
	j.state.Lines = lines
	j.state.TotalDebit, j.state.TotalCredit = sumLines(lines, j.state.Currency)
}

// when applies an event to the journal state
func (j *JournalEntry) when(e JournalEvent) error {
	s := &j.state
	switch ev := e.(type) {
	case *JournalCreatedEvent:
		*s = JournalState{
			ID:                ev.AggregateID(),
			TenantID:          ev.TenantID(),
			JournalNumber:     ev.JournalNumber,
			JournalDate:       ev.JournalDate,
			JournalType:       ev.JournalType,
			Description:       ev.Description,
			Reference:         ev.Reference,
			Status:            JournalStatusDraft,
			Currency:          ev.Currency,
			FiscalPeriod:      ev.FiscalPeriod,
			OriginalJournalID: ev.OriginalJournalID,
			CreatedBy:         ev.CausationUserID(),
		}
		j.setLines([]JournalLine{})
	case *JournalLineAddedEvent:
		j.setLines(append(s.Lines, ev.Line))
	case *JournalLinesUpdatedEvent:
		j.setLines(slices.Clone(ev.Lines))
	case *JournalDescriptionUpdatedEvent:
		s.Description = ev.Description
	case *JournalReferenceUpdatedEvent:
		s.Reference = ev.Reference
	case *JournalDateUpdatedEvent:
		s.JournalDate = ev.JournalDate
		s.FiscalPeriod = ev.FiscalPeriod
	case *JournalPostedEvent:
		s.Status = JournalStatusPosted
		s.PostedBy = ev.PostedBy
		postedAt := ev.PostedAt
		s.PostedAt = &postedAt
	case *JournalReversedEvent:
		s.Status = JournalStatusReversed
		s.ReversingJournalID = ev.ReversingJournalID
		s.ReversedBy = ev.ReversedBy
	case *JournalCancelledEvent:
		s.Status = JournalStatusCancelled
		s.CancelledBy = ev.CancelledBy
		s.CancellationReason = ev.Reason
	default:
		return fmt.Errorf("journal: unhandled event %s (%T)", e.EventType(), e)
	}
	return nil
}

// ReplayEvent applies a stored event during reconstruction
func (j *JournalEntry) ReplayEvent(e shared.DomainEvent) error {
	ev, ok := e.(JournalEvent)
	if !ok {
		return fmt.Errorf("journal: unexpected event %s (%T)", e.EventType(), e)
	}
	if j.AggregateID() == "" {
		j.SetIdentity(ev.AggregateID(), AggregateTypeJournal, ev.TenantID())
	}
	return j.Replay(ev, j.when)
}

// ToSnapshot serializes the full journal state
func (j *JournalEntry) ToSnapshot() ([]byte, error) {
	return json.Marshal(j.state)
}

// RestoreSnapshot restores state directly, bypassing replay
func (j *JournalEntry) RestoreSnapshot(data []byte, version int) error {
	var s JournalState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to restore journal snapshot: %w", err)
	}
	j.state = s
	j.SetIdentity(s.ID, AggregateTypeJournal, s.TenantID)
	j.RestoreVersion(version)
	return nil
}

// State returns a copy of the journal state
func (j *JournalEntry) State() JournalState {
	s := j.state
	s.Lines = slices.Clone(j.state.Lines)
	return s
}

func (j *JournalEntry) ID() string                     { return j.state.ID }
func (j *JournalEntry) TenantID() uuid.UUID            { return j.state.TenantID }
func (j *JournalEntry) JournalNumber() string          { return j.state.JournalNumber }
func (j *JournalEntry) JournalType() JournalType       { return j.state.JournalType }
func (j *JournalEntry) JournalDate() time.Time         { return j.state.JournalDate }
func (j *JournalEntry) Status() JournalStatus          { return j.state.Status }
func (j *JournalEntry) FiscalPeriod() string           { return j.state.FiscalPeriod }
func (j *JournalEntry) Lines() []JournalLine           { return slices.Clone(j.state.Lines) }
func (j *JournalEntry) TotalDebit() valueobject.Money  { return j.state.TotalDebit }
func (j *JournalEntry) TotalCredit() valueobject.Money { return j.state.TotalCredit }
func (j *JournalEntry) OriginalJournalID() string      { return j.state.OriginalJournalID }
func (j *JournalEntry) ReversingJournalID() string     { return j.state.ReversingJournalID }

var _ shared.Snapshottable = (*JournalEntry)(nil)
