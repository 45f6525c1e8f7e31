package flagsync

import (
	"context"
	"log/slog"
	"sync"
)

// ContextState describes context propagation into the client.
type ContextState struct {
	// Requested is the context of the last accepted SetContext call.
	Requested EvaluationContext
	// Applied is the last context handed to the client successfully.
	Applied EvaluationContext
	// InFlight is set while UpdateContext runs.
	InFlight bool
	// Pending is set when a newer context waits behind the one in flight.
	Pending bool
	// Err is the error returned by the last UpdateContext call, if any.
	Err     error
	Version uint64
}

// ContextBridge forwards evaluation context changes to a client. Calls never
// overlap: while one UpdateContext runs, newer contexts replace each other
// and only the last one is dispatched next.
type ContextBridge struct {
	client   FlagClient
	logger   *slog.Logger
	notifier *Notifier
	onError  func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	version   uint64
	// requested is the fingerprint new contexts are compared against: the
	// latest accepted context, or the applied one after a failed update.
	requested ContextFingerprint
	pending   *EvaluationContext
	running   bool
	closed    bool
	idle      chan struct{}
	state     *AtomicValue[ContextState]
}

// NewContextBridge treats baseline as already applied: setting an equal
// context is a no-op.
func NewContextBridge(client FlagClient, baseline EvaluationContext, opts ...BridgeOption) *ContextBridge {
	if client == nil {
		panic("flagsync: nil FlagClient")
	}

	options := &BridgeOptions{
		logger:   nil,
		notifier: nil,
		onError:  nil,
	}
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	baseline = baseline.Clone()

	return &ContextBridge{
		client:    client,
		logger:    defaultLogger(options.logger),
		notifier:  options.notifier,
		onError:   options.onError,
		ctx:       ctx,
		cancel:    cancel,
		requested: Fingerprint(baseline),
		idle:      idle,
		state: NewAtomicValue(ContextState{
			Requested: baseline,
			Applied:   baseline.Clone(),
		}),
	}
}

// SetContext schedules evalCtx for propagation. It reports false when
// evalCtx equals the context already applied or waiting to be applied, or
// the bridge is closed. A context whose update failed is accepted again. It
// never blocks on the client.
func (b *ContextBridge) SetContext(evalCtx EvaluationContext) bool {
	evalCtx = evalCtx.Clone()
	fingerprint := Fingerprint(evalCtx)

	b.mu.Lock()
	if b.closed || fingerprint == b.requested {
		b.mu.Unlock()
		return false
	}

	b.requested = fingerprint
	b.pending = &evalCtx

	current := b.state.Load()
	current.Requested = evalCtx
	current.Pending = true

	spawn := !b.running
	if spawn {
		b.running = true
		b.idle = make(chan struct{})
	}

	next := b.publishLocked(current)
	b.mu.Unlock()

	notify(b.notifier, ChangeContext, next.Version)

	if spawn {
		go b.drain()
	}

	return true
}

func (b *ContextBridge) drain() {
	for {
		b.mu.Lock()
		if b.closed || b.pending == nil {
			b.running = false
			close(b.idle)
			b.mu.Unlock()

			return
		}

		evalCtx := *b.pending
		b.pending = nil

		current := b.state.Load()
		current.InFlight = true
		current.Pending = false
		next := b.publishLocked(current)
		b.mu.Unlock()

		notify(b.notifier, ChangeContext, next.Version)

		err := b.client.UpdateContext(b.ctx, evalCtx)

		b.mu.Lock()
		current = b.state.Load()
		current.InFlight = false
		current.Pending = b.pending != nil
		current.Err = err
		if err == nil {
			current.Applied = evalCtx
		} else if b.pending == nil {
			b.requested = Fingerprint(current.Applied)
		}
		next = b.publishLocked(current)
		b.mu.Unlock()

		if err != nil {
			b.logger.Debug("flagsync: context update returned error", slog.Any("err", err))

			if b.onError != nil {
				b.onError(err)
			}
		}

		notify(b.notifier, ChangeContext, next.Version)
	}
}

// State returns the current propagation snapshot.
func (b *ContextBridge) State() ContextState {
	return b.state.Load()
}

// Busy reports whether an UpdateContext call runs or is about to.
func (b *ContextBridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.running
}

// Wait blocks until no propagation is running or ctx is done.
func (b *ContextBridge) Wait(ctx context.Context) error {
	b.mu.Lock()
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops pending contexts and cancels the context passed to an
// in-flight UpdateContext. It is safe to call repeatedly.
func (b *ContextBridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.closed = true
	b.pending = nil
	b.mu.Unlock()

	b.cancel()
}

func (b *ContextBridge) publishLocked(next ContextState) ContextState {
	b.version++
	next.Version = b.version
	b.state.Set(next)

	return next
}
