package finance

import (
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// Journal event type names. Persisted streams depend on them; never rename.
const (
	EventTypeJournalCreated            = "JournalCreated"
	EventTypeJournalLineAdded          = "JournalLineAdded"
	EventTypeJournalLinesUpdated       = "JournalLinesUpdated"
	EventTypeJournalDescriptionUpdated = "JournalDescriptionUpdated"
	EventTypeJournalReferenceUpdated   = "JournalReferenceUpdated"
	EventTypeJournalDateUpdated        = "JournalDateUpdated"
	EventTypeJournalPosted             = "JournalPosted"
	EventTypeJournalReversed           = "JournalReversed"
	EventTypeJournalCancelled          = "JournalCancelled"
)

// JournalEvent is the closed set of events a JournalEntry accepts
type JournalEvent interface {
	shared.DomainEvent
	isJournalEvent()
}

func newJournalBase(j *JournalEntry, eventType, userID string) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeJournal, j.AggregateID(), j.AggregateTenantID(), userID)
}

// JournalCreatedEvent is raised when a journal is drafted
type JournalCreatedEvent struct {
	shared.BaseDomainEvent
	JournalNumber     string               `json:"journal_number"`
	JournalDate       time.Time            `json:"journal_date"`
	JournalType       JournalType          `json:"journal_type"`
	Description       string               `json:"description,omitempty"`
	Reference         string               `json:"reference,omitempty"`
	Currency          valueobject.Currency `json:"currency"`
	FiscalPeriod      string               `json:"fiscal_period"`
	OriginalJournalID string               `json:"original_journal_id,omitempty"`
}

// JournalLineAddedEvent is raised once per line added to a draft journal
type JournalLineAddedEvent struct {
	shared.BaseDomainEvent
	Line JournalLine `json:"line"`
}

// JournalLinesUpdatedEvent replaces all lines of a draft journal
type JournalLinesUpdatedEvent struct {
	shared.BaseDomainEvent
	Lines []JournalLine `json:"lines"`
}

type JournalDescriptionUpdatedEvent struct {
	shared.BaseDomainEvent
	Description string `json:"description"`
}

type JournalReferenceUpdatedEvent struct {
	shared.BaseDomainEvent
	Reference string `json:"reference"`
}

// JournalDateUpdatedEvent carries the recomputed fiscal period with the new date
type JournalDateUpdatedEvent struct {
	shared.BaseDomainEvent
	JournalDate  time.Time `json:"journal_date"`
	FiscalPeriod string    `json:"fiscal_period"`
}

// JournalPostedEvent is raised when a balanced journal is posted to the ledger
type JournalPostedEvent struct {
	shared.BaseDomainEvent
	PostedBy    string            `json:"posted_by"`
	PostedAt    time.Time         `json:"posted_at"`
	TotalDebit  valueobject.Money `json:"total_debit"`
	TotalCredit valueobject.Money `json:"total_credit"`
}

// JournalReversedEvent links a posted journal to the journal that reverses it
type JournalReversedEvent struct {
	shared.BaseDomainEvent
	ReversingJournalID string    `json:"reversing_journal_id"`
	ReversalDate       time.Time `json:"reversal_date"`
	ReversedBy         string    `json:"reversed_by"`
}

type JournalCancelledEvent struct {
	shared.BaseDomainEvent
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

func (*JournalCreatedEvent) isJournalEvent()            {}
func (*JournalLineAddedEvent) isJournalEvent()          {}
func (*JournalLinesUpdatedEvent) isJournalEvent()       {}
func (*JournalDescriptionUpdatedEvent) isJournalEvent() {}
func (*JournalReferenceUpdatedEvent) isJournalEvent()   {}
func (*JournalDateUpdatedEvent) isJournalEvent()        {}
func (*JournalPostedEvent) isJournalEvent()             {}
func (*JournalReversedEvent) isJournalEvent()           {}
func (*JournalCancelledEvent) isJournalEvent()          {}
