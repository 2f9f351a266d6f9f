package ecs

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event channel for one event type T. Events sent
// during tick T are not visible to readers until Swap is called at the
// start of tick T+1, and are force-cleared by the Swap that starts tick
// T+2 whether or not a reader drained them in the meantime. This bounds
// memory growth from events nobody reads without ever delivering an event
// twice within the window it is guaranteed visible.
type Bus[T any] struct {
	mu       sync.Mutex
	pending  []T
	readable []T
}

// Events returns the Bus[T] for the given store, creating it on first use.
func Events[T any](s *Store) *Bus[T] {
	key := reflect.TypeOf((*T)(nil))

	s.busesMu.Lock()
	defer s.busesMu.Unlock()

	if existing, ok := s.buses[key]; ok {
		return existing.(*Bus[T])
	}
	b := &Bus[T]{}
	s.buses[key] = b
	return b
}

// Send enqueues an event, readable starting next tick's Swap.
func (b *Bus[T]) Send(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, event)
}

// Swap promotes pending events to readable and drops whatever was readable
// before the swap. The engine calls this exactly once per tick, before any
// system reads from the bus.
func (b *Bus[T]) Swap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readable = b.pending
	b.pending = nil
}

// Drain returns every currently readable event and clears them so a later
// Drain call in the same tick sees nothing new.
func (b *Bus[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.readable
	b.readable = nil
	return out
}
