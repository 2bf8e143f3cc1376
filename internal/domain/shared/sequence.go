package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SequenceGenerator hands out monotonically increasing numbers per tenant and scope.
// Scopes are free-form, e.g. "INV-2024-2025" or "MUSHAK-6.3-2024-2025".
type SequenceGenerator interface {
	Next(ctx context.Context, tenantID uuid.UUID, scope string) (int64, error)
}

// Identifier prefixes
const (
	PrefixInvoice     = "INV"
	PrefixPayment     = "PAY"
	PrefixJournal     = "JRN"
	PrefixAccount     = "ACC"
	PrefixLineItem    = "LI"
	PrefixJournalLine = "JL"
)

// NewIdentifier generates an opaque {prefix}-{unixMillis}-{random} identifier
func NewIdentifier(prefix string) string {
	id := uuid.New()
	random := strings.ToUpper(fmt.Sprintf("%x", id[:6]))
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), random)
}

// HasPrefix reports whether id was generated with the given prefix
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
