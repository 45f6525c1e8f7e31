package flagsync

import (
	"slices"
	"sync"
)

// Emitter is a listener registry keyed by event type. The zero value is
// ready to use and safe for concurrent use.
//
// Listeners for one event type are invoked in registration order, each
// exactly once per Emit. Emit runs listeners in the calling goroutine after
// releasing the registry lock, so listeners may register or remove
// listeners themselves.
type Emitter struct {
	mu        sync.Mutex
	listeners map[EventType][]*Listener
}

// On registers listener for event. It reports false when the listener was
// already registered for that event.
func (e *Emitter) On(event EventType, listener *Listener) bool {
	if listener == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[EventType][]*Listener)
	}

	if slices.Contains(e.listeners[event], listener) {
		return false
	}

	e.listeners[event] = append(e.listeners[event], listener)

	return true
}

// Off removes listener from event. It reports false when the listener was
// not registered.
func (e *Emitter) Off(event EventType, listener *Listener) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.listeners[event]

	idx := slices.Index(current, listener)
	if idx < 0 {
		return false
	}

	// Copy on write: an Emit in progress keeps iterating its own slice.
	next := make([]*Listener, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)

	if len(next) == 0 {
		delete(e.listeners, event)
	} else {
		e.listeners[event] = next
	}

	return true
}

// Emit delivers event to every listener registered for event.Type at the
// moment of the call.
func (e *Emitter) Emit(event Event) {
	e.mu.Lock()
	listeners := e.listeners[event.Type]
	e.mu.Unlock()

	for _, listener := range listeners {
		listener.Handle(event)
	}
}

// Count returns the number of listeners registered for event.
func (e *Emitter) Count(event EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners[event])
}
