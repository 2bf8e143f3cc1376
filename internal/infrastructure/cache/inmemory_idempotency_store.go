package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps consumer keys in a map of expiry times.
// State is per process, so it only deduplicates within a single ledger worker;
// the cache factory falls back to it when Redis is not configured.
type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*InMemoryIdempotencyStore)

// WithSweepInterval sets how often expired keys are dropped
func WithSweepInterval(d time.Duration) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expires:    make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: defaultSweepInterval,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// MarkProcessed claims key until ttl elapses. It reports false while an
// unexpired claim already exists.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key holds an unexpired claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.expires[key]
	return ok && s.now().Before(until), nil
}

// Unmark drops the claim so a failed delivery is handled again
func (s *InMemoryIdempotencyStore) Unmark(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expires, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of keys held, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired keys and returns how many were removed
func (s *InMemoryIdempotencyStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, until := range s.expires {
		if !now.Before(until) {
			delete(s.expires, key)
			removed++
		}
	}
	return removed
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
