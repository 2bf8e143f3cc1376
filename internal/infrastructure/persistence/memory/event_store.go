package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// EventStore keeps every stream in a map guarded by one mutex
type EventStore struct {
	mu       sync.RWMutex
	streams  map[string][]shared.EventEnvelope
	recorder shared.EventRecorder
}

// NewEventStore creates an empty store. recorder may be nil; when set it is
// called under the store lock with the store itself as the tx provider.
func NewEventStore(recorder shared.EventRecorder) *EventStore {
	return &EventStore{
		streams:  make(map[string][]shared.EventEnvelope),
		recorder: recorder,
	}
}

// Append adds events when the stream is still at expectedVersion
func (s *EventStore) Append(ctx context.Context, aggregateID string, expectedVersion int, events ...shared.EventEnvelope) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[aggregateID])
	if current != expectedVersion {
		return shared.ErrStreamConflict(aggregateID, expectedVersion, current)
	}
	for i, env := range events {
		if env.AggregateID != aggregateID || env.Version != expectedVersion+i+1 {
			return shared.NewValidationError("EVENT_VERSION_GAP",
				fmt.Sprintf("Event %s does not continue stream %s at version %d", env.EventID, aggregateID, expectedVersion+i+1))
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, s, events...); err != nil {
			return err
		}
	}
	s.streams[aggregateID] = append(s.streams[aggregateID], events...)
	return nil
}

// Load returns a copy of the events after afterVersion
func (s *EventStore) Load(_ context.Context, aggregateID string, afterVersion int) ([]shared.EventEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	if afterVersion < 0 {
		afterVersion = 0
	}
	if afterVersion >= len(stream) {
		return nil, nil
	}
	return slices.Clone(stream[afterVersion:]), nil
}

// All returns every stored event, streams in no particular order
func (s *EventStore) All() []shared.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shared.EventEnvelope
	for _, stream := range s.streams {
		out = append(out, stream...)
	}
	return out
}

var _ shared.EventStore = (*EventStore)(nil)
