package flagsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Provider ties a LifecycleController, a ToggleView and a ContextBridge to
// one client and exposes them as the read API of a rendering layer.
type Provider struct {
	client     FlagClient
	logger     *slog.Logger
	notifier   *Notifier
	controller *LifecycleController
	view       *ToggleView
	bridge     *ContextBridge

	// initial is pushed on Start for clients built outside the Provider.
	initial EvaluationContext

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewProvider builds a Provider from either a client or a client factory.
// A factory receives the initial context and its client is owned.
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	options := &ProviderOptions{
		logger:      nil,
		client:      nil,
		owned:       false,
		factory:     nil,
		context:     EvaluationContext{},
		startClient: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := defaultLogger(options.logger)

	var (
		client   FlagClient
		owned    bool
		baseline EvaluationContext
		initial  EvaluationContext
	)

	switch {
	case options.client != nil:
		client = options.client
		owned = options.owned
		initial = options.context
	case options.factory != nil:
		created, err := options.factory(options.context.Clone())
		if err != nil {
			return nil, fmt.Errorf("could not create flag client: %w", err)
		}

		if created == nil {
			return nil, errors.New("could not create flag client: factory returned nil")
		}

		client = created
		owned = true
		baseline = options.context
	default:
		return nil, ErrNoClient
	}

	notifier := &Notifier{}

	p := &Provider{
		client:   client,
		logger:   logger,
		notifier: notifier,
		initial:  initial,
	}

	p.bridge = NewContextBridge(client, baseline,
		WithBridgeLogger(logger),
		WithBridgeNotifier(notifier),
		WithContextErrorHandler(func(err error) {
			p.controller.report(context.Background(), ErrContextUpdate, err)
		}),
	)

	p.controller = NewLifecycleController(client,
		WithControllerLogger(logger),
		WithControllerOwnership(owned),
		WithControllerStart(options.startClient),
		WithControllerNotifier(notifier),
		WithContextInFlight(p.bridge.Busy),
	)

	p.view = NewToggleView(client, WithViewNotifier(notifier))

	return p, nil
}

// Start attaches to the client, starting it if needed. The view attaches
// first so that an "update" delivered during start is never missed. With an
// initial context, an unstarted client is started only after that context
// reached it, in the background, so its first fetch is already for the
// right user. Start itself never blocks on the client.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}

	p.started = true
	p.mu.Unlock()

	p.view.Attach()
	needsStart := p.controller.listen()

	if p.initial.IsZero() || !p.bridge.SetContext(p.initial) {
		if needsStart {
			p.controller.startClient(ctx)
		}

		return
	}

	if !needsStart {
		return
	}

	go func() {
		if err := p.bridge.Wait(ctx); err != nil {
			p.logger.DebugContext(ctx, "flagsync: initial context not settled before start", slog.String("err", err.Error()))
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if !p.closed {
			p.controller.startClient(ctx)
		}
	}()
}

// Close detaches everything and closes subscriber channels. An owned client
// is stopped.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	p.mu.Unlock()

	p.bridge.Close()
	p.view.Detach()
	p.controller.Detach()
	p.notifier.Close()
}

func (p *Provider) SyncState() SyncState {
	return p.controller.State()
}

func (p *Provider) Toggles() ToggleSnapshot {
	return p.view.Snapshot()
}

func (p *Provider) IsEnabled(name string) bool {
	return p.view.IsEnabled(name)
}

func (p *Provider) GetVariant(name string) Variant {
	return p.view.GetVariant(name)
}

// SetContext forwards evalCtx to the client unless it equals the last one.
func (p *Provider) SetContext(evalCtx EvaluationContext) bool {
	return p.bridge.SetContext(evalCtx)
}

func (p *Provider) ContextState() ContextState {
	return p.bridge.State()
}

// WaitContext blocks until context propagation settles or ctx is done.
func (p *Provider) WaitContext(ctx context.Context) error {
	return p.bridge.Wait(ctx)
}

// Subscribe returns a channel receiving a Change whenever a new read should
// be taken, and the function that unsubscribes it.
func (p *Provider) Subscribe() (<-chan Change, func()) {
	return p.notifier.Subscribe()
}

func (p *Provider) ClearError() {
	p.controller.ClearError()
}

// Client returns the underlying client.
//
//nolint:ireturn
func (p *Provider) Client() FlagClient {
	return p.client
}
