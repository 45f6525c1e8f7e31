package flagsynctest

import (
	"context"
	"sync"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// FakeClient is an in-memory flagsync.FlagClient driven by the test. It
// counts every call the core makes so tests can assert on the handshake.
type FakeClient struct {
	emitter flagsync.Emitter

	// StartFunc, if set, runs inside Start. Its error is returned.
	StartFunc func(ctx context.Context) error
	// UpdateContextFunc, if set, runs inside UpdateContext.
	UpdateContextFunc func(ctx context.Context, evalCtx flagsync.EvaluationContext) error

	mu          sync.Mutex
	ready       bool
	started     bool
	toggles     []flagsync.Toggle
	startCalls  int
	stopCalls   int
	onCalls     map[flagsync.EventType]int
	offCalls    map[flagsync.EventType]int
	contexts    []flagsync.EvaluationContext
	toggleReads int
}

func NewFakeClient(toggles ...flagsync.Toggle) *FakeClient {
	return &FakeClient{
		toggles:  flagsync.CloneToggles(toggles),
		onCalls:  make(map[flagsync.EventType]int),
		offCalls: make(map[flagsync.EventType]int),
	}
}

func (f *FakeClient) Start(ctx context.Context) error {
	f.mu.Lock()
	f.startCalls++
	f.started = true
	startFunc := f.StartFunc
	f.mu.Unlock()

	if startFunc != nil {
		return startFunc(ctx)
	}

	return nil
}

func (f *FakeClient) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopCalls++
}

func (f *FakeClient) IsReady() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ready
}

// IsStarted reports whether Start was called or the client was marked
// started with SetStarted.
func (f *FakeClient) IsStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.started
}

func (f *FakeClient) On(event flagsync.EventType, listener *flagsync.Listener) {
	f.mu.Lock()
	f.onCalls[event]++
	f.mu.Unlock()

	f.emitter.On(event, listener)
}

func (f *FakeClient) Off(event flagsync.EventType, listener *flagsync.Listener) {
	f.mu.Lock()
	f.offCalls[event]++
	f.mu.Unlock()

	f.emitter.Off(event, listener)
}

func (f *FakeClient) UpdateContext(ctx context.Context, evalCtx flagsync.EvaluationContext) error {
	f.mu.Lock()
	f.contexts = append(f.contexts, evalCtx.Clone())
	updateFunc := f.UpdateContextFunc
	f.mu.Unlock()

	if updateFunc != nil {
		return updateFunc(ctx, evalCtx)
	}

	return nil
}

func (f *FakeClient) IsEnabled(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, toggle := range f.toggles {
		if toggle.Name == name {
			return toggle.Enabled
		}
	}

	return false
}

func (f *FakeClient) GetVariant(name string) flagsync.Variant {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, toggle := range f.toggles {
		if toggle.Name == name {
			return toggle.Variant
		}
	}

	return flagsync.DisabledVariant
}

func (f *FakeClient) GetAllToggles() []flagsync.Toggle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.toggleReads++

	return flagsync.CloneToggles(f.toggles)
}

// SetReady flips readiness without emitting anything, like a client that
// became ready before anyone listened.
func (f *FakeClient) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ready = ready
}

func (f *FakeClient) SetStarted(started bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = started
}

// SetToggles replaces the table without emitting "update".
func (f *FakeClient) SetToggles(toggles ...flagsync.Toggle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.toggles = flagsync.CloneToggles(toggles)
}

// EmitReady marks the client ready and emits "ready".
func (f *FakeClient) EmitReady() {
	f.SetReady(true)
	f.emitter.Emit(flagsync.Event{Type: flagsync.EventReady})
}

func (f *FakeClient) EmitError(err error) {
	f.emitter.Emit(flagsync.Event{Type: flagsync.EventError, Err: err})
}

// EmitUpdate replaces the table and emits "update".
func (f *FakeClient) EmitUpdate(toggles ...flagsync.Toggle) {
	f.SetToggles(toggles...)
	f.emitter.Emit(flagsync.Event{Type: flagsync.EventUpdate})
}

func (f *FakeClient) StartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.startCalls
}

func (f *FakeClient) StopCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stopCalls
}

func (f *FakeClient) OnCalls(event flagsync.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.onCalls[event]
}

func (f *FakeClient) OffCalls(event flagsync.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.offCalls[event]
}

// ToggleReads counts GetAllToggles calls.
func (f *FakeClient) ToggleReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.toggleReads
}

// Contexts returns every context passed to UpdateContext, in call order.
func (f *FakeClient) Contexts() []flagsync.EvaluationContext {
	f.mu.Lock()
	defer f.mu.Unlock()

	contexts := make([]flagsync.EvaluationContext, 0, len(f.contexts))
	for _, evalCtx := range f.contexts {
		contexts = append(contexts, evalCtx.Clone())
	}

	return contexts
}

// ListenerCount returns the listeners currently registered for event.
func (f *FakeClient) ListenerCount(event flagsync.EventType) int {
	return f.emitter.Count(event)
}

// Unstarted hides IsStarted so the core has to rely on its own start
// bookkeeping.
type Unstarted struct {
	flagsync.FlagClient
}
