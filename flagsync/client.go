package flagsync

import "context"

// EventType names an event emitted by a FlagClient.
type EventType string

const (
	// EventInit is emitted once when a client begins starting.
	EventInit EventType = "init"
	// EventReady is emitted once, on the client's transition to ready.
	// It never fires again for a client that is already ready.
	EventReady EventType = "ready"
	// EventError is emitted for every failed fetch or evaluation.
	EventError EventType = "error"
	// EventUpdate is emitted whenever the client's toggle table changes.
	EventUpdate EventType = "update"
	// EventRecovered is emitted on the first successful fetch after failures.
	EventRecovered EventType = "recovered"
)

// Event is delivered to listeners registered on a FlagClient.
type Event struct {
	Type EventType
	// Err is set for EventError only.
	Err error
}

// Listener is a handler identity registered on a FlagClient for one event
// type. Two registrations of the same *Listener are one registration.
type Listener struct {
	handle func(Event)
}

// NewListener wraps fn into a Listener.
func NewListener(fn func(Event)) *Listener {
	if fn == nil {
		panic("flagsync: nil listener func")
	}

	return &Listener{handle: fn}
}

// Handle delivers event to the listener.
func (l *Listener) Handle(event Event) {
	l.handle(event)
}

// FlagClient is the feature-flag client consumed by this package. The
// client owns its toggle table, its network I/O and any retry policy.
//
// Implementations must invoke listeners without holding their own locks:
// listeners call back into IsReady, GetAllToggles and friends.
type FlagClient interface {
	// Start begins fetching. It must not block on network I/O; readiness
	// and failures are reported through events. ctx bounds background work.
	Start(ctx context.Context) error
	// Stop halts background work. Calling it twice must be safe.
	Stop()
	IsReady() bool
	On(event EventType, listener *Listener)
	Off(event EventType, listener *Listener)
	// UpdateContext replaces the evaluation context and triggers a
	// re-fetch. Fetch failures are reported as EventError.
	UpdateContext(ctx context.Context, evalCtx EvaluationContext) error
	IsEnabled(name string) bool
	GetVariant(name string) Variant
	GetAllToggles() []Toggle
}

// startReporter is implemented by clients that can tell whether Start was
// already called, by this consumer or another one sharing the client.
type startReporter interface {
	IsStarted() bool
}
