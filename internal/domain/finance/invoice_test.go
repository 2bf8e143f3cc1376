package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

func standardLine(amount string) LineItemInput {
	return LineItemInput{
		Description: "Consulting services",
		Quantity:    dec("1"),
		UnitPrice:   dec(amount),
		VATCategory: VATCategoryStandard,
	}
}

func zeroRatedLine(amount string) LineItemInput {
	return LineItemInput{
		Description: "Export goods",
		Quantity:    dec("2"),
		UnitPrice:   dec(amount).Div(dec("2")),
		VATCategory: VATCategoryZeroRated,
	}
}

func createTestInvoice(t *testing.T, seq *stubSequence, lines ...LineItemInput) *Invoice {
	t.Helper()
	inv, err := CreateInvoice(context.Background(), seq, CreateInvoiceParams{
		TenantID:    uuid.New(),
		VendorID:    "VENDOR-001",
		CustomerID:  "CUSTOMER-001",
		InvoiceDate: day(2025, time.January, 10),
		DueDate:     day(2025, time.February, 10),
		TaxInfo:     InvoiceTaxInfo{VendorTIN: "123456789012", VendorBIN: "0001234560101"},
		LineItems:   lines,
		CreatedBy:   "user-1",
	})
	require.NoError(t, err)
	return inv
}

func approvedInvoice(t *testing.T, seq *stubSequence) *Invoice {
	t.Helper()
	inv := createTestInvoice(t, seq, standardLine("1000"), zeroRatedLine("2000"))
	require.NoError(t, inv.Approve(context.Background(), seq, "approver-1"))
	return inv
}

func TestCreateInvoice(t *testing.T) {
	t.Run("two lines with standard and zero-rated VAT", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence(), standardLine("1000"), zeroRatedLine("2000"))

		assert.Equal(t, InvoiceStatusDraft, inv.Status())
		assert.Equal(t, "3000", inv.Subtotal().Amount().String())
		assert.Equal(t, "150", inv.VATAmount().Amount().String())
		assert.Equal(t, "3150", inv.GrandTotal().Amount().String())
		assert.Equal(t, valueobject.BDT, inv.GrandTotal().Currency())
		assert.True(t, inv.PaidAmount().IsZero())
		assert.Equal(t, "2024-2025", inv.FiscalYear())
		assert.Equal(t, "INV-2024-2025-000001", inv.InvoiceNumber())
		assert.True(t, shared.HasPrefix(inv.ID(), shared.PrefixInvoice))

		types := make([]string, 0)
		for _, e := range inv.GetUncommittedEvents() {
			types = append(types, e.EventType())
		}
		assert.Equal(t, []string{
			EventTypeInvoiceCreated,
			EventTypeLineItemAdded, EventTypeInvoiceCalculated,
			EventTypeLineItemAdded, EventTypeInvoiceCalculated,
		}, types)
		assert.Equal(t, 5, inv.GetVersion())
	})

	t.Run("invoice numbers are sequential per fiscal year", func(t *testing.T) {
		seq := newStubSequence()
		tenantID := uuid.New()
		params := CreateInvoiceParams{
			TenantID: tenantID, VendorID: "V", CustomerID: "C",
			InvoiceDate: day(2024, time.June, 30), DueDate: day(2024, time.July, 30),
		}
		first, err := CreateInvoice(context.Background(), seq, params)
		require.NoError(t, err)
		second, err := CreateInvoice(context.Background(), seq, params)
		require.NoError(t, err)

		assert.Equal(t, "INV-2023-2024-000001", first.InvoiceNumber())
		assert.Equal(t, "INV-2023-2024-000002", second.InvoiceNumber())
	})

	t.Run("grand total subtracts AIT and adds SD", func(t *testing.T) {
		line := standardLine("1000")
		line.SupplementaryDutyRate = dec("0.20")
		line.AdvanceIncomeTaxRate = dec("0.05")
		inv := createTestInvoice(t, newStubSequence(), line)

		totals := inv.Totals()
		assert.Equal(t, "200", totals.SupplementaryDuty.Amount().String())
		assert.Equal(t, "50", totals.AdvanceIncomeTax.Amount().String())
		// 1000 + 150 + 200 - 50
		assert.Equal(t, "1300", totals.GrandTotal.Amount().String())
	})

	t.Run("validation errors", func(t *testing.T) {
		seq := newStubSequence()
		base := CreateInvoiceParams{
			TenantID: uuid.New(), VendorID: "V", CustomerID: "C",
			InvoiceDate: day(2025, time.January, 10), DueDate: day(2025, time.January, 20),
		}

		p := base
		p.VendorID = ""
		_, err := CreateInvoice(context.Background(), seq, p)
		requireKind(t, err, shared.KindValidation)

		p = base
		p.DueDate = day(2025, time.January, 1)
		_, err = CreateInvoice(context.Background(), seq, p)
		requireKind(t, err, shared.KindValidation)

		p = base
		p.TaxInfo.CustomerTIN = "123"
		_, err = CreateInvoice(context.Background(), seq, p)
		assert.True(t, errors.Is(err, shared.NewValidationError("INVALID_TIN", "")))

		assert.Empty(t, seq.values, "no number is consumed by rejected invoices")
	})

	t.Run("sequence failure is returned", func(t *testing.T) {
		seq := newStubSequence()
		seq.err = errors.New("redis down")
		_, err := CreateInvoice(context.Background(), seq, CreateInvoiceParams{
			TenantID: uuid.New(), VendorID: "V", CustomerID: "C",
			InvoiceDate: day(2025, time.January, 10), DueDate: day(2025, time.January, 20),
		})
		assert.ErrorContains(t, err, "redis down")
	})
}

func TestInvoice_AddLineItem(t *testing.T) {
	t.Run("VAT by category", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence())
		cases := map[VATCategory]string{
			VATCategoryStandard:  "150",
			VATCategoryReduced:   "75",
			VATCategoryTruncated: "50",
			VATCategoryZeroRated: "0",
			VATCategoryExempt:    "0",
		}
		for category, vat := range cases {
			line := standardLine("1000")
			line.VATCategory = category
			require.NoError(t, inv.AddLineItem(line, "user-1"))
			items := inv.LineItems()
			assert.Equal(t, vat, items[len(items)-1].VATAmount.Amount().String(), category)
		}
		assert.Equal(t, "5000", inv.Subtotal().Amount().String())
		assert.Equal(t, "275", inv.VATAmount().Amount().String())
	})

	t.Run("rejects VAT rates outside the legal set", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence())
		for _, rate := range []string{"0.10", "0.2", "0.074", "-0.15"} {
			line := standardLine("1000")
			r := dec(rate)
			line.VATRate = &r
			err := inv.AddLineItem(line, "user-1")
			de := requireKind(t, err, shared.KindBusinessRule)
			assert.Equal(t, "INVALID_VAT_RATE", de.Code)
		}
		assert.Empty(t, inv.LineItems())
	})

	t.Run("accepts explicit legal rate", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence())
		line := standardLine("1000")
		r := dec("0.075")
		line.VATRate = &r
		require.NoError(t, inv.AddLineItem(line, "user-1"))
		assert.Equal(t, "75", inv.VATAmount().Amount().String())
	})

	t.Run("amount override", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence())
		line := standardLine("1000")
		line.Quantity = dec("3")
		override := dec("2500")
		line.Amount = &override
		require.NoError(t, inv.AddLineItem(line, "user-1"))
		assert.Equal(t, "2500", inv.Subtotal().Amount().String())
	})

	t.Run("rejected after approval", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())
		version := inv.GetVersion()

		err := inv.AddLineItem(standardLine("10"), "user-1")

		requireKind(t, err, shared.KindInvalidState)
		assert.Equal(t, version, inv.GetVersion())
	})
}

func TestInvoice_Updates(t *testing.T) {
	t.Run("draft invoices accept updates", func(t *testing.T) {
		inv := createTestInvoice(t, newStubSequence(), standardLine("1000"))

		require.NoError(t, inv.UpdateLineItems([]LineItemInput{standardLine("200"), zeroRatedLine("300")}, "user-1"))
		assert.Equal(t, "500", inv.Subtotal().Amount().String())
		assert.Equal(t, "530", inv.GrandTotal().Amount().String())
		assert.Len(t, inv.LineItems(), 2)

		require.NoError(t, inv.UpdateDates(day(2025, time.August, 1), day(2025, time.August, 31), "user-1"))
		assert.Equal(t, "2025-2026", inv.FiscalYear())

		require.NoError(t, inv.UpdateCustomer("CUSTOMER-002", "210987654321", "", "user-1"))
		require.NoError(t, inv.UpdateVendor("VENDOR-002", "", "000999888", "user-1"))
		require.NoError(t, inv.UpdateTaxInfo(InvoiceTaxInfo{CustomerTIN: "111122223333"}, "user-1"))

		s := inv.State()
		assert.Equal(t, "CUSTOMER-002", s.CustomerID)
		assert.Equal(t, "VENDOR-002", s.VendorID)
		assert.Equal(t, InvoiceTaxInfo{CustomerTIN: "111122223333"}, s.TaxInfo)
	})

	t.Run("non-draft invoices reject updates", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())

		requireKind(t, inv.UpdateLineItems([]LineItemInput{standardLine("1")}, "u"), shared.KindInvalidState)
		requireKind(t, inv.UpdateDates(day(2025, time.January, 1), day(2025, time.January, 2), "u"), shared.KindInvalidState)
		requireKind(t, inv.UpdateCustomer("C", "", "", "u"), shared.KindInvalidState)
		requireKind(t, inv.UpdateVendor("V", "", "", "u"), shared.KindInvalidState)
		requireKind(t, inv.UpdateTaxInfo(InvoiceTaxInfo{}, "u"), shared.KindInvalidState)
	})
}

func TestInvoice_Approve(t *testing.T) {
	t.Run("assigns Mushak number", func(t *testing.T) {
		freezeClock(t, day(2025, time.January, 12))
		inv := approvedInvoice(t, newStubSequence())

		assert.Equal(t, InvoiceStatusApproved, inv.Status())
		assert.Equal(t, "MUSHAK-6.3-2024-2025-000001", inv.MushakNumber())
		s := inv.State()
		assert.Equal(t, "approver-1", s.ApprovedBy)
		require.NotNil(t, s.ApprovedAt)
		assert.Equal(t, day(2025, time.January, 12), *s.ApprovedAt)
	})

	t.Run("approving twice fails", func(t *testing.T) {
		seq := newStubSequence()
		inv := approvedInvoice(t, seq)
		err := inv.Approve(context.Background(), seq, "approver-1")
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})

	t.Run("via pending approval", func(t *testing.T) {
		seq := newStubSequence()
		inv := createTestInvoice(t, seq, standardLine("100"))
		require.NoError(t, inv.SubmitForApproval("user-1"))
		assert.Equal(t, InvoiceStatusPendingApproval, inv.Status())
		requireKind(t, inv.AddLineItem(standardLine("1"), "user-1"), shared.KindInvalidState)
		require.NoError(t, inv.Approve(context.Background(), seq, "approver-1"))
		assert.Equal(t, InvoiceStatusApproved, inv.Status())
	})

	t.Run("empty invoice cannot be approved", func(t *testing.T) {
		seq := newStubSequence()
		inv := createTestInvoice(t, seq)
		requireKind(t, inv.Approve(context.Background(), seq, "approver-1"), shared.KindBusinessRule)
		requireKind(t, inv.SubmitForApproval("user-1"), shared.KindBusinessRule)
	})
}

func TestInvoice_RecordPayment(t *testing.T) {
	t.Run("full payment transitions to paid", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())

		require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("3150"), "user-1"))

		assert.Equal(t, InvoiceStatusPaid, inv.Status())
		assert.True(t, inv.RemainingAmount().IsZero())
		events := inv.GetUncommittedEvents()
		assert.Equal(t, EventTypeInvoicePaymentRecorded, events[len(events)-2].EventType())
		assert.Equal(t, EventTypeInvoiceFullyPaid, events[len(events)-1].EventType())
	})

	t.Run("overpayment after full payment is rejected", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())
		require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("3150"), "user-1"))
		version := inv.GetVersion()

		err := inv.RecordPayment("PAY-2", valueobject.MustBDT("1"), "user-1")

		de := requireKind(t, err, shared.KindBusinessRule)
		assert.Equal(t, "OVERPAYMENT", de.Code)
		assert.Equal(t, "3150", de.Details["grand_total"])
		assert.Equal(t, "1", de.Details["attempted_amount"])
		assert.Equal(t, inv.ID(), de.Details["invoice_id"])
		assert.Equal(t, version, inv.GetVersion())
		assert.Equal(t, "3150", inv.PaidAmount().Amount().String())
	})

	t.Run("partial payments accumulate and never exceed the total", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())

		require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("1000.50"), "user-1"))
		assert.Equal(t, InvoiceStatusApproved, inv.Status())
		assert.Equal(t, "2149.5", inv.RemainingAmount().Amount().String())

		err := inv.RecordPayment("PAY-2", valueobject.MustBDT("2149.51"), "user-1")
		requireKind(t, err, shared.KindBusinessRule)

		require.NoError(t, inv.RecordPayment("PAY-3", valueobject.MustBDT("2149.50"), "user-1"))
		assert.Equal(t, InvoiceStatusPaid, inv.Status())
	})

	t.Run("duplicate payment ID is rejected", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())
		require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("100"), "user-1"))

		err := inv.RecordPayment("PAY-1", valueobject.MustBDT("100"), "user-1")

		assert.True(t, errors.Is(err, shared.NewBusinessRuleError("PAYMENT_ALREADY_RECORDED", "")))
		assert.True(t, inv.HasPayment("PAY-1"))
		assert.Equal(t, "100", inv.PaidAmount().Amount().String())
	})

	t.Run("draft and cancelled invoices reject payments", func(t *testing.T) {
		seq := newStubSequence()
		draft := createTestInvoice(t, seq, standardLine("100"))
		requireKind(t, draft.RecordPayment("PAY-1", valueobject.MustBDT("1"), "u"), shared.KindInvalidState)

		cancelled := approvedInvoice(t, seq)
		require.NoError(t, cancelled.Cancel("user-1", "Customer withdrew order"))
		requireKind(t, cancelled.RecordPayment("PAY-1", valueobject.MustBDT("1"), "u"), shared.KindInvalidState)
	})

	t.Run("currency must match", func(t *testing.T) {
		inv := approvedInvoice(t, newStubSequence())
		usd, err := valueobject.NewMoneyFromInt(10, valueobject.USD)
		require.NoError(t, err)
		requireKind(t, inv.RecordPayment("PAY-1", usd, "u"), shared.KindValidation)
	})
}

func TestInvoice_Cancel(t *testing.T) {
	seq := newStubSequence()

	inv := createTestInvoice(t, seq, standardLine("100"))
	requireKind(t, inv.Cancel("user-1", ""), shared.KindValidation)
	require.NoError(t, inv.Cancel("user-1", "Duplicate invoice"))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status())

	err := inv.Cancel("user-1", "Duplicate invoice")
	assert.True(t, errors.Is(err, shared.NewInvalidStateError("ALREADY_CANCELLED", "")))

	paid := approvedInvoice(t, seq)
	require.NoError(t, paid.RecordPayment("PAY-1", valueobject.MustBDT("3150"), "u"))
	requireKind(t, paid.Cancel("user-1", "Too late"), shared.KindInvalidState)
}

func TestInvoice_MarkOverdue(t *testing.T) {
	seq := newStubSequence()
	inv := approvedInvoice(t, seq)

	requireKind(t, inv.MarkOverdue(day(2025, time.February, 10), "system"), shared.KindBusinessRule)
	require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("150"), "u"))
	require.NoError(t, inv.MarkOverdue(day(2025, time.February, 11), "system"))
	assert.Equal(t, InvoiceStatusOverdue, inv.Status())

	// payments are still accepted once overdue
	require.NoError(t, inv.RecordPayment("PAY-2", valueobject.MustBDT("3000"), "u"))
	assert.Equal(t, InvoiceStatusPaid, inv.Status())

	draft := createTestInvoice(t, seq, standardLine("100"))
	requireKind(t, draft.MarkOverdue(day(2026, time.January, 1), "system"), shared.KindInvalidState)
}

func TestInvoice_ReplayDeterminism(t *testing.T) {
	seq := newStubSequence()
	inv := approvedInvoice(t, seq)
	require.NoError(t, inv.RecordPayment("PAY-1", valueobject.MustBDT("1000"), "user-1"))
	require.NoError(t, inv.RecordPayment("PAY-2", valueobject.MustBDT("2150"), "user-1"))

	t.Run("full replay", func(t *testing.T) {
		replayed := roundTrip(t, inv, NewInvoiceAggregate())
		assertSameState(t, inv.State(), replayed.State())
		assert.Equal(t, inv.GetVersion(), replayed.GetVersion())
		assert.Empty(t, replayed.GetUncommittedEvents())
	})

	t.Run("snapshot plus tail", func(t *testing.T) {
		events := inv.GetUncommittedEvents()
		const cut = 6

		prefix := NewInvoiceAggregate()
		for _, e := range events[:cut] {
			require.NoError(t, prefix.ReplayEvent(e))
		}
		snap, err := prefix.ToSnapshot()
		require.NoError(t, err)

		restored := NewInvoiceAggregate()
		require.NoError(t, restored.RestoreSnapshot(snap, cut))
		for _, e := range events[cut:] {
			require.NoError(t, restored.ReplayEvent(e))
		}

		assertSameState(t, inv.State(), restored.State())
		assert.Equal(t, inv.GetVersion(), restored.GetVersion())
		assert.Equal(t, inv.AggregateID(), restored.AggregateID())
		assert.Equal(t, inv.AggregateTenantID(), restored.AggregateTenantID())
	})

	t.Run("foreign events are rejected", func(t *testing.T) {
		journal := NewJournalEntryAggregate()
		err := journal.ReplayEvent(inv.GetUncommittedEvents()[0])
		assert.Error(t, err)
	})
}
