package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// MockEventHandler records the events it receives
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewMockEventHandler creates a handler subscribed to eventTypes
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{eventTypes: eventTypes}
}

// EventTypes implements shared.EventHandler
func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records event and returns the configured error
func (h *MockEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns a copy of the received events
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.handled))
	copy(out, h.handled)
	return out
}

// HandledCount returns the number of received events
func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError sets the error Handle returns
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// TestEvent is a minimal domain event
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewTestEvent creates a TestEvent at the given stream version
func NewTestEvent(eventType, aggregateID string, tenantID uuid.UUID, version int) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:            uuid.New(),
			Type:          eventType,
			Timestamp:     time.Now().UTC(),
			AggID:         aggregateID,
			AggType:       "TestAggregate",
			TenantIDValue: tenantID,
			Version:       version,
			Schema:        1,
		},
		Data: "test-data",
	}
}
