package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

type sequenceKey struct {
	tenantID uuid.UUID
	scope    string
}

// SequenceGenerator counts per tenant and scope from 1
type SequenceGenerator struct {
	mu     sync.Mutex
	values map[sequenceKey]int64
}

// NewSequenceGenerator creates a generator with every counter at zero
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{values: make(map[sequenceKey]int64)}
}

// Next increments and returns the counter
func (g *SequenceGenerator) Next(_ context.Context, tenantID uuid.UUID, scope string) (int64, error) {
	if tenantID == uuid.Nil || scope == "" {
		return 0, shared.NewValidationError("INVALID_SEQUENCE_SCOPE", "Sequence needs a tenant and a scope")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	key := sequenceKey{tenantID: tenantID, scope: scope}
	g.values[key]++
	return g.values[key], nil
}

var _ shared.SequenceGenerator = (*SequenceGenerator)(nil)
