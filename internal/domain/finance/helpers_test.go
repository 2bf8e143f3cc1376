package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

type stubSequence struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newStubSequence() *stubSequence {
	return &stubSequence{values: make(map[string]int64)}
}

func (s *stubSequence) Next(_ context.Context, tenantID uuid.UUID, scope string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%s", tenantID, scope)
	s.values[key]++
	return s.values[key], nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// freezeClock pins the package clock for the duration of a test
func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

// roundTrip replays the uncommitted events of an aggregate into a fresh one
func roundTrip[T shared.EventSourced](t *testing.T, source shared.EventSourced, fresh T) T {
	t.Helper()
	for _, e := range source.GetUncommittedEvents() {
		require.NoError(t, fresh.ReplayEvent(e))
	}
	return fresh
}

func requireKind(t *testing.T, err error, kind shared.ErrorKind) *shared.DomainError {
	t.Helper()
	require.Error(t, err)
	de, ok := shared.AsDomainError(err)
	require.True(t, ok, "expected a DomainError, got %T: %v", err, err)
	require.Equal(t, kind, de.Kind, de.Message)
	return de
}

// assertSameState compares observable state through its serialized form, so
// decimals with different internal scale but equal value compare equal
func assertSameState(t *testing.T, expected, actual any) {
	t.Helper()
	want, err := json.Marshal(expected)
	require.NoError(t, err)
	got, err := json.Marshal(actual)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}
