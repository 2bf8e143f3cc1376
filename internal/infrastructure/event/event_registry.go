package event

import (
	"fmt"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
)

// RegisterFinanceEvents registers every ledger event type with the serializer.
// Streams and the outbox cannot be read back without it.
func RegisterFinanceEvents(s *EventSerializer) {
	// Invoice
	s.Register(finance.EventTypeInvoiceCreated, &finance.InvoiceCreatedEvent{})
	s.Register(finance.EventTypeLineItemAdded, &finance.LineItemAddedEvent{})
	s.Register(finance.EventTypeInvoiceCalculated, &finance.InvoiceCalculatedEvent{})
	s.Register(finance.EventTypeInvoiceLineItemsUpdated, &finance.InvoiceLineItemsUpdatedEvent{})
	s.Register(finance.EventTypeInvoiceDatesUpdated, &finance.InvoiceDatesUpdatedEvent{})
	s.Register(finance.EventTypeInvoiceCustomerUpdated, &finance.InvoiceCustomerUpdatedEvent{})
	s.Register(finance.EventTypeInvoiceVendorUpdated, &finance.InvoiceVendorUpdatedEvent{})
	s.Register(finance.EventTypeInvoiceTaxInfoUpdated, &finance.InvoiceTaxInfoUpdatedEvent{})
	s.Register(finance.EventTypeInvoiceSubmittedForApproval, &finance.InvoiceSubmittedForApprovalEvent{})
	s.Register(finance.EventTypeInvoiceApproved, &finance.InvoiceApprovedEvent{})
	s.Register(finance.EventTypeInvoicePaymentRecorded, &finance.InvoicePaymentRecordedEvent{})
	s.Register(finance.EventTypeInvoiceFullyPaid, &finance.InvoiceFullyPaidEvent{})
	s.Register(finance.EventTypeInvoiceCancelled, &finance.InvoiceCancelledEvent{})
	s.Register(finance.EventTypeInvoiceMarkedOverdue, &finance.InvoiceMarkedOverdueEvent{})

	// Payment
	s.Register(finance.EventTypePaymentCreated, &finance.PaymentCreatedEvent{})
	s.Register(finance.EventTypePaymentProcessingStarted, &finance.PaymentProcessingStartedEvent{})
	s.Register(finance.EventTypePaymentDetailsUpdated, &finance.PaymentDetailsUpdatedEvent{})
	s.Register(finance.EventTypePaymentCompleted, &finance.PaymentCompletedEvent{})
	s.Register(finance.EventTypePaymentFailed, &finance.PaymentFailedEvent{})
	s.Register(finance.EventTypePaymentReconciled, &finance.PaymentReconciledEvent{})
	s.Register(finance.EventTypePaymentReversed, &finance.PaymentReversedEvent{})

	// Journal entry
	s.Register(finance.EventTypeJournalCreated, &finance.JournalCreatedEvent{})
	s.Register(finance.EventTypeJournalLineAdded, &finance.JournalLineAddedEvent{})
	s.Register(finance.EventTypeJournalLinesUpdated, &finance.JournalLinesUpdatedEvent{})
	s.Register(finance.EventTypeJournalDescriptionUpdated, &finance.JournalDescriptionUpdatedEvent{})
	s.Register(finance.EventTypeJournalReferenceUpdated, &finance.JournalReferenceUpdatedEvent{})
	s.Register(finance.EventTypeJournalDateUpdated, &finance.JournalDateUpdatedEvent{})
	s.Register(finance.EventTypeJournalPosted, &finance.JournalPostedEvent{})
	s.Register(finance.EventTypeJournalReversed, &finance.JournalReversedEvent{})
	s.Register(finance.EventTypeJournalCancelled, &finance.JournalCancelledEvent{})

	for eventType, chain := range financeUpgraders() {
		if err := s.RegisterUpgraders(eventType, chain...); err != nil {
			panic(fmt.Sprintf("finance upgrader chain: %v", err))
		}
	}
}

// financeUpgraders lists the schema history of ledger events.
//
// PaymentCreated v1 and PaymentCompleted v1 predate withholding: the payee
// received the full amount, so withholding is zero and net equals gross.
func financeUpgraders() map[string][]EventUpgrader {
	return map[string][]EventUpgrader{
		finance.EventTypePaymentCreated: {
			NewFieldUpgrader(1, func(fields map[string]any) error {
				amount, ok := fields["amount"].(map[string]any)
				if !ok {
					return fmt.Errorf("%s v1 payload has no amount", finance.EventTypePaymentCreated)
				}
				if _, ok := fields["withholding_tax"]; !ok {
					fields["withholding_tax"] = map[string]any{"amount": "0", "currency": amount["currency"]}
				}
				if _, ok := fields["net_amount"]; !ok {
					fields["net_amount"] = amount
				}
				return nil
			}),
		},
		finance.EventTypePaymentCompleted: {
			NewFieldUpgrader(1, func(fields map[string]any) error {
				if _, ok := fields["net_amount"]; !ok {
					fields["net_amount"] = fields["amount"]
				}
				return nil
			}),
		},
	}
}

// NewFinanceSerializer returns a serializer with all ledger events registered
func NewFinanceSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterFinanceEvents(s)
	return s
}
