package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/event"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence/memory"
)

type recordingMetrics struct {
	mu       sync.Mutex
	commands map[string]int
	failures map[string]int
	retries  map[string]int
	issues   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		commands: map[string]int{},
		failures: map[string]int{},
		retries:  map[string]int{},
		issues:   map[string]int{},
	}
}

func (m *recordingMetrics) RecordCommand(_ context.Context, command string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[command]++
	if err != nil {
		m.failures[command]++
	}
}

func (m *recordingMetrics) RecordConflictRetry(_ context.Context, aggregateType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[aggregateType]++
}

func (m *recordingMetrics) RecordReconciliationIssue(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[kind]++
}

func (m *recordingMetrics) get(counts map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return counts[key]
}

// conflictingStore rejects the next n appends with a stale-version error, or
// with err when set. A non-empty target limits rejections to that stream.
type conflictingStore struct {
	shared.EventStore
	mu      sync.Mutex
	pending int
	target  string
	err     error
	appends int
}

func (s *conflictingStore) Append(ctx context.Context, aggregateID string, expected int, events ...shared.EventEnvelope) error {
	s.mu.Lock()
	s.appends++
	reject := s.pending > 0 && (s.target == "" || s.target == aggregateID)
	if reject {
		s.pending--
	}
	failure := s.err
	s.mu.Unlock()
	if reject {
		if failure != nil {
			return failure
		}
		return shared.ErrStreamConflict(aggregateID, expected, expected+1)
	}
	return s.EventStore.Append(ctx, aggregateID, expected, events...)
}

type harness struct {
	tenantID  uuid.UUID
	meta      CommandMeta
	store     *memory.EventStore
	events    *conflictingStore
	outbox    *memory.OutboxRepository
	snapshots *memory.SnapshotStore
	sequence  *memory.SequenceGenerator
	issues    *memory.ReconciliationIssueRepository
	codec     *event.EventSerializer
	metrics   *recordingMetrics
	deps      HandlerDeps

	invoiceRepo *AggregateRepository[*finance.Invoice]
	paymentRepo *AggregateRepository[*finance.Payment]
	journalRepo *AggregateRepository[*finance.JournalEntry]

	invoices *InvoiceCommandHandler
	payments *PaymentCommandHandler
	journals *JournalCommandHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tenantID:  uuid.New(),
		outbox:    memory.NewOutboxRepository(),
		snapshots: memory.NewSnapshotStore(),
		sequence:  memory.NewSequenceGenerator(),
		issues:    memory.NewReconciliationIssueRepository(),
		codec:     event.NewFinanceSerializer(),
		metrics:   newRecordingMetrics(),
	}
	h.meta = CommandMeta{TenantID: h.tenantID, UserID: "accountant-1"}
	h.store = memory.NewEventStore(h.outbox)
	h.events = &conflictingStore{EventStore: h.store}
	h.deps = HandlerDeps{
		Sequence: h.sequence,
		Retry:    RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Metrics:  h.metrics,
		Window:   valueobject.DefaultOpenPeriodWindow(),
	}

	h.invoiceRepo = NewAggregateRepository(h.events, h.codec, finance.AggregateTypeInvoice,
		finance.NewInvoiceAggregate, WithSnapshots(h.snapshots, 5))
	h.paymentRepo = NewAggregateRepository(h.events, h.codec, finance.AggregateTypePayment,
		finance.NewPaymentAggregate, WithSnapshots(h.snapshots, 5))
	h.journalRepo = NewAggregateRepository(h.events, h.codec, finance.AggregateTypeJournal,
		finance.NewJournalEntryAggregate, WithSnapshots(h.snapshots, 5))

	h.invoices = NewInvoiceCommandHandler(h.invoiceRepo, h.deps)
	h.payments = NewPaymentCommandHandler(h.paymentRepo, h.deps)
	h.journals = NewJournalCommandHandler(h.journalRepo, h.deps)
	return h
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// cementLine is 10 x 100 at 15% VAT, 1150.00 gross
func cementLine() InvoiceLine {
	return InvoiceLine{
		Description: "Portland cement, 50kg bag",
		Quantity:    dec("10"),
		UnitPrice:   dec("100"),
		VATCategory: finance.VATCategoryStandard,
		HSCode:      "2523.29.00",
	}
}

func (h *harness) createInvoiceCommand(lines ...InvoiceLine) CreateInvoiceCommand {
	return CreateInvoiceCommand{
		CommandMeta: h.meta,
		VendorID:    "VENDOR-1",
		CustomerID:  "CUSTOMER-1",
		InvoiceDate: today(),
		DueDate:     today().AddDate(0, 0, 30),
		LineItems:   lines,
	}
}

// approvedInvoice creates, submits and approves a 1150.00 invoice
func (h *harness) approvedInvoice(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(cementLine()))
	require.NoError(t, err)
	require.NoError(t, h.invoices.SubmitInvoice(ctx, SubmitInvoiceCommand{CommandMeta: h.meta, InvoiceID: id}))
	require.NoError(t, h.invoices.ApproveInvoice(ctx, ApproveInvoiceCommand{CommandMeta: h.meta, InvoiceID: id}))
	return id
}

// completedPayment creates and completes a cash payment and returns its
// PaymentCompleted event as read back from the event store
func (h *harness) completedPayment(t *testing.T, invoiceID, amount string) *finance.PaymentCompletedEvent {
	t.Helper()
	ctx := context.Background()
	id, err := h.payments.CreatePayment(ctx, CreatePaymentCommand{
		CommandMeta: h.meta,
		InvoiceID:   invoiceID,
		Amount:      dec(amount),
		Method:      finance.PaymentMethodCash,
		PaymentDate: today(),
	})
	require.NoError(t, err)
	require.NoError(t, h.payments.CompletePayment(ctx, CompletePaymentCommand{
		CommandMeta: h.meta, PaymentID: id, TransactionReference: "CASH-" + id,
	}))

	envs, err := h.store.Load(ctx, id, 0)
	require.NoError(t, err)
	last := envs[len(envs)-1]
	require.Equal(t, finance.EventTypePaymentCompleted, last.EventType)
	decoded, err := h.codec.Decode(last)
	require.NoError(t, err)
	completed, ok := decoded.(*finance.PaymentCompletedEvent)
	require.True(t, ok)
	return completed
}

func requireKind(t *testing.T, err error, kind shared.ErrorKind) *shared.DomainError {
	t.Helper()
	require.Error(t, err)
	de, ok := shared.AsDomainError(err)
	require.True(t, ok, "expected a DomainError, got %T: %v", err, err)
	require.Equal(t, kind, de.Kind, de.Message)
	return de
}
