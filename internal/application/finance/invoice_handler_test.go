package finance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

func TestInvoiceCommandHandler_Lifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fy := valueobject.FiscalYear(today())

	id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(cementLine()))
	require.NoError(t, err)
	assert.True(t, shared.HasPrefix(id, shared.PrefixInvoice))

	st, err := h.invoices.GetInvoice(ctx, h.tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusDraft, st.Status)
	assert.Equal(t, "INV-"+fy+"-000001", st.InvoiceNumber)
	assert.Equal(t, fy, st.FiscalYear)
	assert.True(t, st.Totals.Subtotal.Equals(valueobject.MustBDT("1000.00")))
	assert.True(t, st.Totals.VATAmount.Equals(valueobject.MustBDT("150.00")))
	assert.True(t, st.Totals.GrandTotal.Equals(valueobject.MustBDT("1150.00")))
	assert.Empty(t, st.MushakNumber)

	require.NoError(t, h.invoices.SubmitInvoice(ctx, SubmitInvoiceCommand{CommandMeta: h.meta, InvoiceID: id}))
	require.NoError(t, h.invoices.ApproveInvoice(ctx, ApproveInvoiceCommand{CommandMeta: h.meta, InvoiceID: id}))

	st, err = h.invoices.GetInvoice(ctx, h.tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusApproved, st.Status)
	assert.Equal(t, "MUSHAK-6.3-"+fy+"-000001", st.MushakNumber)
	assert.Equal(t, "accountant-1", st.ApprovedBy)

	// every stored event has a matching outbox entry
	envs, err := h.store.Load(ctx, id, 0)
	require.NoError(t, err)
	pending, err := h.outbox.FindPending(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, pending, len(envs))

	assert.Equal(t, 1, h.metrics.get(h.metrics.commands, "ApproveInvoice"))
	assert.Zero(t, h.metrics.get(h.metrics.failures, "ApproveInvoice"))
}

func TestInvoiceCommandHandler_NumbersAreSequentialPerTenant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fy := valueobject.FiscalYear(today())

	for i, want := range []string{"000001", "000002", "000003"} {
		id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(cementLine()))
		require.NoError(t, err, "invoice %d", i)
		st, err := h.invoices.GetInvoice(ctx, h.tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, "INV-"+fy+"-"+want, st.InvoiceNumber)
	}

	other := h.createInvoiceCommand(cementLine())
	other.TenantID = uuid.New()
	id, err := h.invoices.CreateInvoice(ctx, other)
	require.NoError(t, err)
	st, err := h.invoices.GetInvoice(ctx, other.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "INV-"+fy+"-000001", st.InvoiceNumber)
}

func TestInvoiceCommandHandler_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("missing vendor and tenant", func(t *testing.T) {
		cmd := h.createInvoiceCommand(cementLine())
		cmd.VendorID = ""
		cmd.TenantID = uuid.Nil
		_, err := h.invoices.CreateInvoice(ctx, cmd)
		de := requireKind(t, err, shared.KindValidation)
		assert.Equal(t, "INVALID_COMMAND", de.Code)
		assert.GreaterOrEqual(t, len(de.Details), 2)
	})

	t.Run("due date before invoice date", func(t *testing.T) {
		cmd := h.createInvoiceCommand(cementLine())
		cmd.DueDate = cmd.InvoiceDate.AddDate(0, 0, -1)
		_, err := h.invoices.CreateInvoice(ctx, cmd)
		requireKind(t, err, shared.KindValidation)
	})

	t.Run("malformed vendor TIN", func(t *testing.T) {
		cmd := h.createInvoiceCommand(cementLine())
		cmd.VendorTIN = "12345"
		_, err := h.invoices.CreateInvoice(ctx, cmd)
		requireKind(t, err, shared.KindValidation)
	})

	t.Run("illegal VAT rate override", func(t *testing.T) {
		line := cementLine()
		rate := dec("0.12")
		line.VATRate = &rate
		_, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(line))
		de := requireKind(t, err, shared.KindBusinessRule)
		assert.Equal(t, "INVALID_VAT_RATE", de.Code)
	})

	t.Run("approving an invoice without lines", func(t *testing.T) {
		id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand())
		require.NoError(t, err)
		err = h.invoices.ApproveInvoice(ctx, ApproveInvoiceCommand{CommandMeta: h.meta, InvoiceID: id})
		de := requireKind(t, err, shared.KindBusinessRule)
		assert.Equal(t, "NO_LINE_ITEMS", de.Code)
		assert.Equal(t, 1, h.metrics.get(h.metrics.failures, "ApproveInvoice"))
	})

	t.Run("no events are written for rejected commands", func(t *testing.T) {
		before := h.events.appends
		_, err := h.invoices.CreateInvoice(ctx, CreateInvoiceCommand{})
		requireKind(t, err, shared.KindValidation)
		assert.Equal(t, before, h.events.appends)
	})
}

func TestInvoiceCommandHandler_UpdateDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(cementLine()))
	require.NoError(t, err)

	luxury := InvoiceLine{
		Description:     "Imported chandelier",
		Quantity:        dec("1"),
		UnitPrice:       dec("1000"),
		VATCategory:     finance.VATCategoryStandard,
		ProductCategory: finance.ProductCategoryGeneral,
	}
	customer := "CUSTOMER-2"
	due := today().AddDate(0, 0, 45)
	require.NoError(t, h.invoices.UpdateInvoice(ctx, UpdateInvoiceCommand{
		CommandMeta: h.meta,
		InvoiceID:   id,
		CustomerID:  &customer,
		DueDate:     &due,
		AddLines:    []InvoiceLine{luxury},
	}))

	st, err := h.invoices.GetInvoice(ctx, h.tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOMER-2", st.CustomerID)
	assert.True(t, st.DueDate.Equal(due))
	require.Len(t, st.LineItems, 2)
	assert.True(t, st.Totals.Subtotal.Equals(valueobject.MustBDT("2000.00")))

	require.NoError(t, h.invoices.CancelInvoice(ctx, CancelInvoiceCommand{
		CommandMeta: h.meta, InvoiceID: id, Reason: "customer withdrew the order",
	}))
	err = h.invoices.UpdateInvoice(ctx, UpdateInvoiceCommand{CommandMeta: h.meta, InvoiceID: id, CustomerID: &customer})
	requireKind(t, err, shared.KindInvalidState)
}

func TestInvoiceCommandHandler_RecordInvoicePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.approvedInvoice(t)

	require.NoError(t, h.invoices.RecordInvoicePayment(ctx, RecordInvoicePaymentCommand{
		CommandMeta: h.meta, InvoiceID: id, PaymentID: "PAY-A", Amount: dec("150.00"),
	}))
	err := h.invoices.RecordInvoicePayment(ctx, RecordInvoicePaymentCommand{
		CommandMeta: h.meta, InvoiceID: id, PaymentID: "PAY-B", Amount: dec("1000.01"),
	})
	de := requireKind(t, err, shared.KindBusinessRule)
	assert.Equal(t, "OVERPAYMENT", de.Code)

	require.NoError(t, h.invoices.RecordInvoicePayment(ctx, RecordInvoicePaymentCommand{
		CommandMeta: h.meta, InvoiceID: id, PaymentID: "PAY-C", Amount: dec("1000.00"),
	}))
	st, err := h.invoices.GetInvoice(ctx, h.tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusPaid, st.Status)
	assert.Equal(t, []string{"PAY-A", "PAY-C"}, st.PaymentIDs)
}

func TestInvoiceCommandHandler_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.approvedInvoice(t)

	_, err := h.invoices.GetInvoice(ctx, uuid.New(), id)
	de := requireKind(t, err, shared.KindNotFound)
	assert.Equal(t, "INVOICE_NOT_FOUND", de.Code)

	stranger := CommandMeta{TenantID: uuid.New(), UserID: "intruder"}
	err = h.invoices.CancelInvoice(ctx, CancelInvoiceCommand{CommandMeta: stranger, InvoiceID: id, Reason: "nope"})
	requireKind(t, err, shared.KindNotFound)

	_, err = h.invoices.GetInvoice(ctx, h.tenantID, "INV-404")
	requireKind(t, err, shared.KindNotFound)
}

func TestInvoiceCommandHandler_RetriesOnConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, err := h.invoices.CreateInvoice(ctx, h.createInvoiceCommand(cementLine()))
	require.NoError(t, err)

	h.events.pending = 2
	require.NoError(t, h.invoices.SubmitInvoice(ctx, SubmitInvoiceCommand{CommandMeta: h.meta, InvoiceID: id}))
	assert.Equal(t, 2, h.metrics.get(h.metrics.retries, finance.AggregateTypeInvoice))

	st, err := h.invoices.GetInvoice(ctx, h.tenantID, id)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusPendingApproval, st.Status)

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		h.events.pending = 10
		before := h.events.appends
		err := h.invoices.ApproveInvoice(ctx, ApproveInvoiceCommand{CommandMeta: h.meta, InvoiceID: id})
		requireKind(t, err, shared.KindConcurrencyConflict)
		assert.Equal(t, h.deps.Retry.MaxAttempts, h.events.appends-before)
		h.events.pending = 0
	})
}
