// Package finance holds the event-sourced ledger aggregates (Invoice, Payment,
// JournalEntry) and the Bangladesh tax rules they enforce.
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// now is the clock used for approval, posting and open-period checks
var now = time.Now

// nextNumber draws the next value of scope and formats it as {scope}-{%06d}
func nextNumber(ctx context.Context, seq shared.SequenceGenerator, tenantID uuid.UUID, scope string) (string, error) {
	if seq == nil {
		return "", fmt.Errorf("sequence generator is required")
	}
	n, err := seq.Next(ctx, tenantID, scope)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", scope, err)
	}
	return fmt.Sprintf("%s-%06d", scope, n), nil
}

func invoiceNumberScope(date time.Time) string {
	return "INV-" + valueobject.FiscalYear(date)
}

func mushakNumberScope(date time.Time) string {
	return "MUSHAK-6.3-" + valueobject.FiscalYear(date)
}

func journalNumberScope(t JournalType, date time.Time) string {
	return t.Prefix() + "-" + valueobject.FiscalYear(date)
}
