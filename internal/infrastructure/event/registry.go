package event

import (
	"strings"
	"sync"

	"github.com/minicrm/backend/internal/domain/shared"
)

// HandlerRegistry manages event handler registrations.
//
// A registration is either an exact event type ("order.created"), a prefix
// pattern ending in ".*" ("order.*"), or no type at all for every event.
// Handlers are returned in registration order.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler // exact type -> handlers
	prefixes []prefixRegistration
	wildcard []shared.EventHandler
}

type prefixRegistration struct {
	prefix  string
	handler shared.EventHandler
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.EventHandler),
	}
}

// Register adds a handler for specific event types.
// If no event types are provided, the handler receives all events.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}

	for _, eventType := range eventTypes {
		if prefix, ok := strings.CutSuffix(eventType, "*"); ok {
			r.prefixes = append(r.prefixes, prefixRegistration{prefix: prefix, handler: handler})
			continue
		}
		r.handlers[eventType] = append(r.handlers[eventType], handler)
	}
}

// Unregister removes a handler from all event types
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeHandler(r.wildcard, handler)

	prefixes := r.prefixes[:0]
	for _, p := range r.prefixes {
		if p.handler != handler {
			prefixes = append(prefixes, p)
		}
	}
	r.prefixes = prefixes

	for eventType, handlers := range r.handlers {
		r.handlers[eventType] = removeHandler(handlers, handler)
		if len(r.handlers[eventType]) == 0 {
			delete(r.handlers, eventType)
		}
	}
}

// GetHandlers returns every handler matching the event type. A handler
// registered through several matching patterns is returned once.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exact := r.handlers[eventType]
	result := make([]shared.EventHandler, 0, len(exact)+len(r.wildcard))
	seen := make(map[shared.EventHandler]struct{}, cap(result))
	add := func(h shared.EventHandler) {
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		result = append(result, h)
	}

	for _, h := range exact {
		add(h)
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(eventType, p.prefix) {
			add(p.handler)
		}
	}
	for _, h := range r.wildcard {
		add(h)
	}
	return result
}

// Count returns the number of distinct registered handlers
func (r *HandlerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[shared.EventHandler]struct{})
	for _, h := range r.wildcard {
		seen[h] = struct{}{}
	}
	for _, p := range r.prefixes {
		seen[p.handler] = struct{}{}
	}
	for _, handlers := range r.handlers {
		for _, h := range handlers {
			seen[h] = struct{}{}
		}
	}
	return len(seen)
}

func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}
