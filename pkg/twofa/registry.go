package twofa

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DeliveryHandler transmits token to the channel described by method. It
// reports whether the token was handed off successfully.
type DeliveryHandler func(ctx context.Context, user User, token string, method MethodData) (bool, error)

type deliveryHandlerEntry struct {
	methodType string
	handler    DeliveryHandler
}

// Registry maps method types to delivery handlers. Registrations accumulate:
// registering a type twice keeps both entries and Lookup returns the first.
// Lookups read an immutable snapshot and never take the lock.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]deliveryHandlerEntry]
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.entries.Store(&[]deliveryHandlerEntry{})
	return r
}

// Register appends a handler for methodType
func (r *Registry) Register(methodType string, handler DeliveryHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot()
	for _, e := range current {
		if e.methodType == methodType {
			slog.Warn("Delivery handler already registered, first registration wins", "type", methodType)
			break
		}
	}
	next := make([]deliveryHandlerEntry, len(current), len(current)+1)
	copy(next, current)
	next = append(next, deliveryHandlerEntry{methodType: methodType, handler: handler})
	r.entries.Store(&next)
}

// Lookup returns the first handler registered for methodType
func (r *Registry) Lookup(methodType string) (DeliveryHandler, bool) {
	for _, e := range r.snapshot() {
		if e.methodType == methodType {
			return e.handler, true
		}
	}
	return nil, false
}

// Types lists the registered method types in registration order, without duplicates
func (r *Registry) Types() []string {
	entries := r.snapshot()
	seen := make(map[string]bool, len(entries))
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		if !seen[e.methodType] {
			seen[e.methodType] = true
			types = append(types, e.methodType)
		}
	}
	return types
}

func (r *Registry) snapshot() []deliveryHandlerEntry {
	if p := r.entries.Load(); p != nil {
		return *p
	}
	return nil
}
