package flagsync

import "sync"

type ChangeKind string

const (
	ChangeState   ChangeKind = "state"
	ChangeToggles ChangeKind = "toggles"
	ChangeContext ChangeKind = "context"
)

// Change tells a subscriber that a new read should be taken.
type Change struct {
	Kind    ChangeKind
	Version uint64
}

const notifyBuffer = 16

// Notifier fans changes out to subscribers. A subscriber that falls behind
// loses changes, never snapshots: it reads current state on the next one.
// The zero value is ready to use.
type Notifier struct {
	mu          sync.Mutex
	subscribers []chan Change
	closed      bool
}

// Subscribe returns a change channel and the function removing it. The
// channel is closed on unsubscribe or when the notifier closes.
func (n *Notifier) Subscribe() (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	channel := make(chan Change, notifyBuffer)
	if n.closed {
		close(channel)
		return channel, func() {}
	}

	n.subscribers = append(n.subscribers, channel)

	var once sync.Once

	return channel, func() {
		once.Do(func() { n.unsubscribe(channel) })
	}
}

func (n *Notifier) unsubscribe(channel chan Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, subscriber := range n.subscribers {
		if subscriber == channel {
			n.subscribers = append(n.subscribers[:i:i], n.subscribers[i+1:]...)
			close(channel)

			return
		}
	}
}

// Notify delivers change without blocking.
func (n *Notifier) Notify(change Change) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, subscriber := range n.subscribers {
		select {
		case subscriber <- change:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	n.closed = true
	for _, subscriber := range n.subscribers {
		close(subscriber)
	}

	n.subscribers = nil
}

func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.subscribers)
}
