package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"github.com/vextrus/vextrus-erp-sub014/internal/testutil"
)

func paymentFailed(t *testing.T) *finance.PaymentFailedEvent {
	t.Helper()
	e := &finance.PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypePaymentFailed,
			finance.AggregateTypePayment, "PAY-1700000000000-ABCDEF", uuid.New(), "user-7"),
		Reason:   "insufficient funds in account",
		FailedAt: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	e.Version = 3
	return e
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewFinanceSerializer()
	original := paymentFailed(t)

	env, err := s.Encode(original)
	require.NoError(t, err)
	assert.Equal(t, finance.EventTypePaymentFailed, env.EventType)
	assert.Equal(t, 3, env.Version)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, "user-7", env.CausationUserID)

	decoded, err := s.Decode(env)
	require.NoError(t, err)
	failed, ok := decoded.(*finance.PaymentFailedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), failed.EventID())
	assert.Equal(t, original.AggregateID(), failed.AggregateID())
	assert.Equal(t, 3, failed.StreamVersion())
	assert.Equal(t, "user-7", failed.CausationUserID())
	assert.Equal(t, original.Reason, failed.Reason)
	assert.True(t, original.FailedAt.Equal(failed.FailedAt))
}

func TestEventSerializer_EnvelopeIsAuthoritative(t *testing.T) {
	s := NewFinanceSerializer()
	env, err := s.Encode(paymentFailed(t))
	require.NoError(t, err)

	env.Version = 9
	env.CausationUserID = "user-9"
	decoded, err := s.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, 9, decoded.StreamVersion())
	assert.Equal(t, "user-9", decoded.CausationUserID())
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()

	_, err := s.Encode(testutil.NewTestEvent("Unregistered", "X-1", uuid.New(), 1))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = s.Decode(shared.EventEnvelope{EventType: "Unregistered", Payload: []byte(`{}`)})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestEventSerializer_RegistersAllFinanceEvents(t *testing.T) {
	types := NewFinanceSerializer().RegisteredTypes()
	assert.Len(t, types, 30)
	assert.Contains(t, types, finance.EventTypeInvoiceCreated)
	assert.Contains(t, types, finance.EventTypePaymentCompleted)
	assert.Contains(t, types, finance.EventTypeJournalReversed)
}

func TestEventSerializer_UpgradesOldPayloads(t *testing.T) {
	s := NewEventSerializer()
	s.Register("TestHappened", &testutil.TestEvent{})
	require.NoError(t, s.RegisterUpgraders("TestHappened",
		RenameField(1, "payload", "legacy"),
		NewFieldUpgrader(2, func(fields map[string]any) error {
			fields["data"] = fields["legacy"]
			delete(fields, "legacy")
			return nil
		}),
	))
	current, ok := s.CurrentVersion("TestHappened")
	require.True(t, ok)
	assert.Equal(t, 3, current)

	env := shared.EventEnvelope{
		EventID:       uuid.New(),
		AggregateID:   "X-1",
		EventType:     "TestHappened",
		Version:       1,
		SchemaVersion: 1,
		Payload:       []byte(`{"payload":"from-v1"}`),
	}
	decoded, err := s.Decode(env)
	require.NoError(t, err)
	ev := decoded.(*testutil.TestEvent)
	assert.Equal(t, "from-v1", ev.Data)
	assert.Equal(t, 3, ev.SchemaVersion())

	env.SchemaVersion = 4
	_, err = s.Decode(env)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestEventSerializer_FreshEventsSkipUpgraders(t *testing.T) {
	s := NewEventSerializer()
	s.Register("TestHappened", &testutil.TestEvent{})
	require.NoError(t, s.RegisterUpgraders("TestHappened", RemoveField(1, "data")))

	ev := testutil.NewTestEvent("TestHappened", "X-1", uuid.New(), 1)
	ev.Data = "fresh"
	env, err := s.Encode(ev)
	require.NoError(t, err)
	assert.Equal(t, 2, env.SchemaVersion)

	decoded, err := s.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, "fresh", decoded.(*testutil.TestEvent).Data)
	assert.Equal(t, 2, decoded.SchemaVersion())
}

func TestFinanceSerializer_UpgradesPaymentsWithoutWithholding(t *testing.T) {
	s := NewFinanceSerializer()

	for _, eventType := range []string{finance.EventTypePaymentCreated, finance.EventTypePaymentCompleted} {
		current, ok := s.CurrentVersion(eventType)
		require.True(t, ok)
		assert.Equal(t, 2, current, eventType)
	}

	created, err := s.Decode(shared.EventEnvelope{
		EventID:       uuid.New(),
		AggregateID:   "PAY-1",
		AggregateType: finance.AggregateTypePayment,
		EventType:     finance.EventTypePaymentCreated,
		Version:       1,
		SchemaVersion: 1,
		Payload:       []byte(`{"invoice_id":"INV-1","amount":{"amount":"3150","currency":"BDT"},"payment_method":"BANK_TRANSFER"}`),
	})
	require.NoError(t, err)
	pc := created.(*finance.PaymentCreatedEvent)
	assert.True(t, pc.WithholdingTax.IsZero())
	assert.Equal(t, valueobject.BDT, pc.WithholdingTax.Currency())
	assert.True(t, pc.NetAmount.Equals(pc.Amount))
	assert.Equal(t, "3150", pc.NetAmount.Amount().String())

	completed, err := s.Decode(shared.EventEnvelope{
		EventID:       uuid.New(),
		AggregateID:   "PAY-1",
		AggregateType: finance.AggregateTypePayment,
		EventType:     finance.EventTypePaymentCompleted,
		Version:       2,
		SchemaVersion: 1,
		Payload:       []byte(`{"invoice_id":"INV-1","amount":{"amount":"3150","currency":"BDT"},"transaction_reference":"TXN-9"}`),
	})
	require.NoError(t, err)
	pd := completed.(*finance.PaymentCompletedEvent)
	assert.True(t, pd.NetAmount.Equals(pd.Amount))
}

func TestFinanceSerializer_CurrentPaymentsKeepWithholding(t *testing.T) {
	s := NewFinanceSerializer()
	original := &finance.PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypePaymentCreated,
			finance.AggregateTypePayment, "PAY-2", uuid.New(), "user-1"),
		InvoiceID:      "INV-2",
		Amount:         valueobject.MustBDT("10000"),
		WithholdingTax: valueobject.MustBDT("1000"),
		NetAmount:      valueobject.MustBDT("9000"),
	}

	env, err := s.Encode(original)
	require.NoError(t, err)
	assert.Equal(t, 2, env.SchemaVersion)

	decoded, err := s.Decode(env)
	require.NoError(t, err)
	pc := decoded.(*finance.PaymentCreatedEvent)
	assert.Equal(t, "1000", pc.WithholdingTax.Amount().String())
	assert.Equal(t, "9000", pc.NetAmount.Amount().String())
}

func TestEventSerializer_RejectsGappedUpgraders(t *testing.T) {
	s := NewEventSerializer()
	s.Register("TestHappened", &testutil.TestEvent{})

	err := s.RegisterUpgraders("TestHappened", AddField(2, "data", ""))
	assert.ErrorContains(t, err, "missing upgrader")
	assert.Error(t, s.RegisterUpgraders("Nope", AddField(1, "x", 1)))
}

func TestFieldUpgraders(t *testing.T) {
	out, err := AddField(1, "currency", "BDT").Upgrade([]byte(`{"amount":"10"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10","currency":"BDT"}`, string(out))

	out, err = AddField(1, "currency", "BDT").Upgrade([]byte(`{"currency":"USD"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"USD"}`, string(out))

	out, err = RemoveField(1, "obsolete").Upgrade([]byte(`{"obsolete":true,"keep":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"keep":1}`, string(out))

	_, err = RenameField(1, "a", "b").Upgrade([]byte(`[1,2]`))
	assert.Error(t, err)
}
