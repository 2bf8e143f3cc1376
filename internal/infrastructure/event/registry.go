package event

import (
	"slices"
	"sync"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
)

// HandlerRegistry maps event types to their subscribed handlers
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]shared.EventHandler)}
}

// Register adds handler for eventTypes, or for every event when none are given.
// Registering the same handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(eventTypes) == 0 {
		if !slices.Contains(r.wildcard, handler) {
			r.wildcard = append(r.wildcard, handler)
		}
		return
	}
	for _, t := range eventTypes {
		if !slices.Contains(r.handlers[t], handler) {
			r.handlers[t] = append(r.handlers[t], handler)
		}
	}
}

// Unregister removes handler everywhere it is registered
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wildcard = slices.DeleteFunc(r.wildcard, func(h shared.EventHandler) bool { return h == handler })
	for t, hs := range r.handlers {
		hs = slices.DeleteFunc(hs, func(h shared.EventHandler) bool { return h == handler })
		if len(hs) == 0 {
			delete(r.handlers, t)
			continue
		}
		r.handlers[t] = hs
	}
}

// GetHandlers returns the type-specific handlers followed by the wildcard ones
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]shared.EventHandler, 0, len(r.handlers[eventType])+len(r.wildcard))
	out = append(out, r.handlers[eventType]...)
	return append(out, r.wildcard...)
}

// Len returns the number of distinct handlers registered
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[shared.EventHandler]struct{})
	for _, h := range r.wildcard {
		seen[h] = struct{}{}
	}
	for _, hs := range r.handlers {
		for _, h := range hs {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}
