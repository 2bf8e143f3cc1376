package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// OutboxRepository keeps outbox entries in append order
type OutboxRepository struct {
	mu      sync.Mutex
	entries []*shared.OutboxEntry
}

// NewOutboxRepository creates an empty outbox
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

// Record implements shared.EventRecorder; txProvider is ignored
func (r *OutboxRepository) Record(ctx context.Context, _ any, envelopes ...shared.EventEnvelope) error {
	entries := make([]*shared.OutboxEntry, 0, len(envelopes))
	for _, env := range envelopes {
		entries = append(entries, shared.NewOutboxEntry(env))
	}
	return r.Save(ctx, entries...)
}

// Save stores copies of the entries
func (r *OutboxRepository) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		c := *e
		r.entries = append(r.entries, &c)
	}
	return nil
}

// FindPending returns pending entries in append order
func (r *OutboxRepository) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(limit, func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusPending
	}), nil
}

// FindRetryable returns failed entries due before the given time
func (r *OutboxRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(limit, func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}), nil
}

// FindDead pages through dead letters, most recently updated first
func (r *OutboxRepository) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.find(0, (*shared.OutboxEntry).IsDead)
	slices.SortStableFunc(dead, func(a, b *shared.OutboxEntry) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	f := shared.Filter{Page: page, PageSize: pageSize}.Normalized()
	start := min(f.Offset(), len(dead))
	end := min(start+f.PageSize, len(dead))
	return dead[start:end], int64(len(dead)), nil
}

// FindByID returns a copy of one entry
func (r *OutboxRepository) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, shared.NewNotFoundError("OUTBOX_ENTRY_NOT_FOUND", fmt.Sprintf("Outbox entry %s not found", id))
}

// MarkProcessing claims pending or failed entries among ids
func (r *OutboxRepository) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*shared.OutboxEntry
	for _, e := range r.entries {
		if !slices.Contains(ids, e.ID) {
			continue
		}
		if err := e.MarkProcessing(); err != nil {
			continue
		}
		c := *e
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

// Update replaces the stored entry with the same ID
func (r *OutboxRepository) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == entry.ID {
			c := *entry
			r.entries[i] = &c
			return nil
		}
	}
	return shared.NewNotFoundError("OUTBOX_ENTRY_NOT_FOUND", fmt.Sprintf("Outbox entry %s not found", entry.ID))
}

// DeleteOlderThan drops sent entries processed before the given time
func (r *OutboxRepository) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = slices.DeleteFunc(r.entries, func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before)
	})
	return int64(n - len(r.entries)), nil
}

// CountByStatus counts entries per status
func (r *OutboxRepository) CountByStatus(_ context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *OutboxRepository) find(limit int, match func(*shared.OutboxEntry) bool) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if !match(e) {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

var (
	_ shared.OutboxRepository = (*OutboxRepository)(nil)
	_ shared.EventRecorder    = (*OutboxRepository)(nil)
)
