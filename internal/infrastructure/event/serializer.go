package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

type registration struct {
	typ       reflect.Type
	upgraders map[int]EventUpgrader
	current   int
}

// EventSerializer is the JSON EventCodec. Every persisted event type must be
// registered; payloads written under an older schema version are upgraded
// on decode.
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]*registration
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{registry: make(map[string]*registration)}
}

// Register binds an event type name to its Go type at schema version 1
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[eventType] = &registration{
		typ:       t,
		upgraders: make(map[int]EventUpgrader),
		current:   1,
	}
}

// RegisterUpgraders adds schema upgraders to a registered type. The chain must
// be contiguous from version 1; the current version becomes len(upgraders)+1.
func (s *EventSerializer) RegisterUpgraders(eventType string, upgraders ...EventUpgrader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registry[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	chain := make(map[int]EventUpgrader, len(upgraders))
	for _, u := range upgraders {
		chain[u.SourceVersion()] = u
	}
	for v := 1; v <= len(upgraders); v++ {
		if _, ok := chain[v]; !ok {
			return fmt.Errorf("missing upgrader for %s v%d -> v%d", eventType, v, v+1)
		}
	}
	reg.upgraders = chain
	reg.current = len(upgraders) + 1
	return nil
}

// CurrentVersion returns the schema version new events of eventType are decoded to
func (s *EventSerializer) CurrentVersion(eventType string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registry[eventType]
	if !ok {
		return 0, false
	}
	return reg.current, true
}

// Encode implements shared.EventCodec. New payloads are always written in the
// current schema, so the envelope is stamped with the registry's version.
func (s *EventSerializer) Encode(event shared.DomainEvent) (shared.EventEnvelope, error) {
	current, ok := s.CurrentVersion(event.EventType())
	if !ok {
		return shared.EventEnvelope{}, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return shared.EventEnvelope{}, fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
	}
	env := shared.NewEnvelope(event, payload)
	env.SchemaVersion = current
	return env, nil
}

// Decode implements shared.EventCodec
func (s *EventSerializer) Decode(env shared.EventEnvelope) (shared.DomainEvent, error) {
	s.mu.RLock()
	reg, ok := s.registry[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	payload := []byte(env.Payload)
	version := env.SchemaVersion
	if version < 1 {
		version = 1
	}
	if version > reg.current {
		return nil, fmt.Errorf("%s schema v%d is newer than supported v%d", env.EventType, version, reg.current)
	}
	for ; version < reg.current; version++ {
		upgraded, err := reg.upgraders[version].Upgrade(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to upgrade %s v%d -> v%d: %w", env.EventType, version, version+1, err)
		}
		payload = upgraded
	}

	ptr := reflect.New(reg.typ).Interface()
	if err := json.Unmarshal(payload, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", env.EventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", reg.typ)
	}
	env.SchemaVersion = version
	shared.RestoreHeader(event, env)
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var _ shared.EventCodec = (*EventSerializer)(nil)
