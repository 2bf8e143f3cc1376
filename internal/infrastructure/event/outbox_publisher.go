package event

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxRecorder writes appended events to the outbox table using the event
// store's transaction, so an event is never committed without its outbox row.
type OutboxRecorder struct{}

// NewOutboxRecorder creates an OutboxRecorder
func NewOutboxRecorder() *OutboxRecorder {
	return &OutboxRecorder{}
}

// Record implements shared.EventRecorder. txProvider must be the *gorm.DB
// transaction of the append.
func (p *OutboxRecorder) Record(ctx context.Context, txProvider any, envelopes ...shared.EventEnvelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("txProvider must be a *gorm.DB, got %T", txProvider)
	}
	entries := lo.Map(envelopes, func(env shared.EventEnvelope, _ int) *shared.OutboxEntry {
		return shared.NewOutboxEntry(env)
	})
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

var _ shared.EventRecorder = (*OutboxRecorder)(nil)
