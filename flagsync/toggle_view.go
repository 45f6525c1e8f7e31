package flagsync

import (
	"sync"
)

// ToggleView is a read model over a client's toggle table. It takes one
// snapshot on Attach and exactly one more per "update" event.
type ToggleView struct {
	client   FlagClient
	notifier *Notifier

	updateListener *Listener

	mu          sync.Mutex
	version     uint64
	attached    bool
	passThrough []*Listener
	snapshot    *AtomicValue[ToggleSnapshot]
}

func NewToggleView(client FlagClient, opts ...ViewOption) *ToggleView {
	if client == nil {
		panic("flagsync: nil FlagClient")
	}

	options := &ViewOptions{
		notifier: nil,
	}
	for _, opt := range opts {
		opt(options)
	}

	v := &ToggleView{
		client:   client,
		notifier: options.notifier,
		snapshot: NewAtomicValue(NewToggleSnapshot(nil, 0)),
	}
	v.updateListener = NewListener(func(Event) { v.refresh() })

	return v
}

// Attach subscribes to "update" and captures whatever the client holds
// right now, empty tables included.
func (v *ToggleView) Attach() {
	v.mu.Lock()
	if v.attached {
		v.mu.Unlock()
		return
	}

	v.attached = true
	v.client.On(EventUpdate, v.updateListener)
	for _, listener := range v.passThrough {
		v.client.On(EventUpdate, listener)
	}
	v.mu.Unlock()

	v.refresh()
}

// Detach removes every listener this view registered. It is safe to call
// repeatedly.
func (v *ToggleView) Detach() {
	v.mu.Lock()
	if !v.attached {
		v.mu.Unlock()
		return
	}

	v.attached = false
	listeners := append([]*Listener{v.updateListener}, v.passThrough...)
	v.mu.Unlock()

	for _, listener := range listeners {
		v.client.Off(EventUpdate, listener)
	}
}

// Snapshot returns the table as of the last recomputation.
func (v *ToggleView) Snapshot() ToggleSnapshot {
	return v.snapshot.Load()
}

// Subscribe registers listener for "update" on the client. The registration
// follows the view: it is removed on Detach and restored on Attach.
func (v *ToggleView) Subscribe(listener *Listener) {
	if listener == nil {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, registered := range v.passThrough {
		if registered == listener {
			return
		}
	}

	v.passThrough = append(v.passThrough, listener)
	if v.attached {
		v.client.On(EventUpdate, listener)
	}
}

// Unsubscribe removes a listener registered through Subscribe. Unknown
// listeners are ignored.
func (v *ToggleView) Unsubscribe(listener *Listener) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, registered := range v.passThrough {
		if registered != listener {
			continue
		}

		v.passThrough = append(v.passThrough[:i:i], v.passThrough[i+1:]...)
		if v.attached {
			v.client.Off(EventUpdate, listener)
		}

		return
	}
}

// IsEnabled asks the client directly.
func (v *ToggleView) IsEnabled(name string) bool {
	return v.client.IsEnabled(name)
}

// GetVariant asks the client directly.
func (v *ToggleView) GetVariant(name string) Variant {
	return v.client.GetVariant(name)
}

func (v *ToggleView) refresh() {
	v.mu.Lock()
	if !v.attached {
		v.mu.Unlock()
		return
	}

	// Reading the table under the lock keeps version order and table order
	// the same when updates are delivered from several goroutines.
	toggles := v.client.GetAllToggles()
	v.version++
	next := NewToggleSnapshot(toggles, v.version)
	v.snapshot.Set(next)
	v.mu.Unlock()

	notify(v.notifier, ChangeToggles, next.Version)
}
