package flagsync

import (
	"context"
	"log/slog"
	"sync"
)

// FetchErrorMessage prefixes every captured client error in the log.
const FetchErrorMessage = "flagsync: unable to fetch feature toggles"

// LifecycleController keeps a SyncState in step with a client's "ready"
// and "error" events until it is detached.
type LifecycleController struct {
	client   FlagClient
	logger   *slog.Logger
	owned    bool
	start    bool
	notifier *Notifier
	inFlight func() bool

	readyListener *Listener
	errorListener *Listener

	mu       sync.Mutex
	version  uint64
	attached bool
	started  bool
	stopped  bool
	state    *AtomicValue[SyncState]
}

// NewLifecycleController panics on a nil client.
func NewLifecycleController(client FlagClient, opts ...ControllerOption) *LifecycleController {
	if client == nil {
		panic("flagsync: nil FlagClient")
	}

	options := &ControllerOptions{
		logger:   nil,
		owned:    false,
		start:    true,
		notifier: nil,
		inFlight: nil,
	}
	for _, opt := range opts {
		opt(options)
	}

	c := &LifecycleController{
		client:   client,
		logger:   defaultLogger(options.logger),
		owned:    options.owned,
		start:    options.start,
		notifier: options.notifier,
		inFlight: options.inFlight,
		state:    NewAtomicValue(SyncState{}),
	}

	c.readyListener = NewListener(c.handleReady)
	c.errorListener = NewListener(c.handleError)

	return c
}

// Attach registers the listeners, then either adopts an already-ready
// client or starts it. Start is called at most once per controller, and
// never for a client that reports it was started elsewhere.
func (c *LifecycleController) Attach(ctx context.Context) {
	if c.listen() {
		c.startClient(ctx)
	}
}

// listen registers the listeners and adopts readiness. It reports whether
// the client still has to be started.
func (c *LifecycleController) listen() bool {
	c.mu.Lock()
	if c.attached || c.stopped {
		c.mu.Unlock()
		return false
	}

	c.attached = true
	c.client.On(EventReady, c.readyListener)
	c.client.On(EventError, c.errorListener)
	c.mu.Unlock()

	// "ready" fires once on the client's transition and never again, so a
	// client that is ready already has to be read directly.
	if c.client.IsReady() {
		c.markReady()
		return false
	}

	return true
}

func (c *LifecycleController) startClient(ctx context.Context) {
	if !c.claimStart() {
		return
	}

	if err := c.client.Start(ctx); err != nil {
		c.report(ctx, ErrStartupFetch, err)
	}
}

func (c *LifecycleController) claimStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.start || c.started || !c.attached {
		return false
	}

	c.started = true

	if reporter, ok := c.client.(startReporter); ok && reporter.IsStarted() {
		return false
	}

	return true
}

// Detach removes this controller's listeners and drops a captured error.
// An owning controller also stops the client, once. Detach is safe to call
// repeatedly and without a prior Attach.
func (c *LifecycleController) Detach() {
	c.mu.Lock()
	wasAttached := c.attached
	c.attached = false

	stop := c.owned && !c.stopped
	if stop {
		c.stopped = true
	}

	var cleared *SyncState
	if current := c.state.Load(); wasAttached && current.Err != nil {
		next := c.publishLocked(current.Ready, nil)
		cleared = &next
	}
	c.mu.Unlock()

	if cleared != nil {
		notify(c.notifier, ChangeState, cleared.Version)
	}

	if wasAttached {
		c.client.Off(EventReady, c.readyListener)
		c.client.Off(EventError, c.errorListener)
	}

	if stop {
		c.client.Stop()
	}
}

// State returns the current snapshot.
func (c *LifecycleController) State() SyncState {
	return c.state.Load()
}

// ClearError drops a captured error, keeping readiness.
func (c *LifecycleController) ClearError() {
	c.mu.Lock()
	current := c.state.Load()
	if current.Err == nil {
		c.mu.Unlock()
		return
	}

	next := c.publishLocked(current.Ready, nil)
	c.mu.Unlock()

	notify(c.notifier, ChangeState, next.Version)
}

func (c *LifecycleController) handleReady(Event) {
	c.markReady()
}

func (c *LifecycleController) handleError(event Event) {
	if event.Err == nil {
		c.logger.Warn("flagsync: error event without error")
		return
	}

	c.report(context.Background(), c.classify(), event.Err)
}

func (c *LifecycleController) classify() error {
	if !c.state.Load().Ready {
		return ErrStartupFetch
	}

	if c.inFlight != nil && c.inFlight() {
		return ErrContextUpdate
	}

	return ErrRefresh
}

func (c *LifecycleController) markReady() {
	c.mu.Lock()
	current := c.state.Load()
	if current.Ready {
		c.mu.Unlock()
		return
	}

	next := c.publishLocked(true, current.Err)
	c.mu.Unlock()

	notify(c.notifier, ChangeState, next.Version)
}

// report captures err into the state and logs it. Client errors never
// propagate further.
func (c *LifecycleController) report(ctx context.Context, kind, err error) {
	wrapped := newSyncError(kind, err)

	c.mu.Lock()
	current := c.state.Load()
	next := c.publishLocked(current.Ready, wrapped)
	c.mu.Unlock()

	c.logger.ErrorContext(ctx, FetchErrorMessage,
		slog.Any("err", err),
		slog.String("kind", kind.Error()),
	)

	notify(c.notifier, ChangeState, next.Version)
}

func (c *LifecycleController) publishLocked(ready bool, err error) SyncState {
	c.version++
	next := SyncState{
		Ready:   ready,
		Err:     err,
		Version: c.version,
	}
	c.state.Set(next)

	return next
}
