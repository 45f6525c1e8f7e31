package flagsync

import (
	"log/slog"
)

// ClientFactory builds a client from the initial evaluation context. A
// client built this way is owned by the Provider and stopped on Close.
type ClientFactory func(initial EvaluationContext) (FlagClient, error)

type ProviderOptions struct {
	logger      *slog.Logger
	client      FlagClient
	owned       bool
	factory     ClientFactory
	context     EvaluationContext
	startClient bool
}

type ProviderOption func(*ProviderOptions)

// WithClient uses a client constructed and owned by the host. The Provider
// never stops it.
func WithClient(client FlagClient) ProviderOption {
	return func(o *ProviderOptions) {
		o.client = client
		o.owned = false
	}
}

// WithOwnedClient hands a client's whole lifetime to the Provider.
func WithOwnedClient(client FlagClient) ProviderOption {
	return func(o *ProviderOptions) {
		o.client = client
		o.owned = true
	}
}

func WithClientFactory(factory ClientFactory) ProviderOption {
	return func(o *ProviderOptions) {
		o.factory = factory
	}
}

func WithContext(evalCtx EvaluationContext) ProviderOption {
	return func(o *ProviderOptions) {
		o.context = evalCtx.Clone()
	}
}

func WithLogger(logger *slog.Logger) ProviderOption {
	return func(o *ProviderOptions) {
		o.logger = logger
	}
}

// WithStartClient controls whether attaching may call Start. Hosts that
// start clients themselves pass false.
func WithStartClient(start bool) ProviderOption {
	return func(o *ProviderOptions) {
		o.startClient = start
	}
}

type ControllerOptions struct {
	logger   *slog.Logger
	owned    bool
	start    bool
	notifier *Notifier
	inFlight func() bool
}

type ControllerOption func(*ControllerOptions)

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(o *ControllerOptions) {
		o.logger = logger
	}
}

// WithControllerOwnership makes Detach stop the client.
func WithControllerOwnership(owned bool) ControllerOption {
	return func(o *ControllerOptions) {
		o.owned = owned
	}
}

func WithControllerStart(start bool) ControllerOption {
	return func(o *ControllerOptions) {
		o.start = start
	}
}

func WithControllerNotifier(notifier *Notifier) ControllerOption {
	return func(o *ControllerOptions) {
		o.notifier = notifier
	}
}

// WithContextInFlight classifies errors reported while inFlight returns
// true as context update failures.
func WithContextInFlight(inFlight func() bool) ControllerOption {
	return func(o *ControllerOptions) {
		o.inFlight = inFlight
	}
}

type ViewOptions struct {
	notifier *Notifier
}

type ViewOption func(*ViewOptions)

func WithViewNotifier(notifier *Notifier) ViewOption {
	return func(o *ViewOptions) {
		o.notifier = notifier
	}
}

type BridgeOptions struct {
	logger   *slog.Logger
	notifier *Notifier
	onError  func(error)
}

type BridgeOption func(*BridgeOptions)

func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(o *BridgeOptions) {
		o.logger = logger
	}
}

func WithBridgeNotifier(notifier *Notifier) BridgeOption {
	return func(o *BridgeOptions) {
		o.notifier = notifier
	}
}

// WithContextErrorHandler receives errors returned by UpdateContext.
func WithContextErrorHandler(handler func(error)) BridgeOption {
	return func(o *BridgeOptions) {
		o.onError = handler
	}
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}

	return logger
}

func notify(notifier *Notifier, kind ChangeKind, version uint64) {
	if notifier == nil {
		return
	}

	notifier.Notify(Change{Kind: kind, Version: version})
}
