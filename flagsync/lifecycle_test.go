package flagsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flux-agi/flagsync_go/flagsync"
	"github.com/flux-agi/flagsync_go/flagsynctest"
)

func TestLifecycleController_PreStartedClientIsReadyWithoutEvent(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()
	client.SetReady(true)
	client.SetStarted(true)

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())

	state := controller.State()
	assert.True(t, state.Ready)
	require.NoError(t, state.Err)
	assert.Equal(t, flagsync.StatusReady, state.Status())
	assert.Zero(t, client.StartCalls())
}

func TestLifecycleController_ReadyEvent(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())

	assert.True(t, controller.State().Loading())
	assert.Equal(t, 1, client.StartCalls())

	client.EmitReady()

	state := controller.State()
	assert.True(t, state.Ready)
	require.NoError(t, state.Err)
}

func TestLifecycleController_StartupFetchError(t *testing.T) {
	t.Parallel()

	recorder := flagsynctest.NewLogRecorder()
	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client,
		flagsync.WithControllerLogger(recorder.Logger()),
	)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())

	testErr := errors.New("test error")
	client.EmitError(testErr)

	state := controller.State()
	assert.False(t, state.Ready)
	require.ErrorIs(t, state.Err, testErr)
	require.ErrorIs(t, state.Err, flagsync.ErrStartupFetch)
	assert.Equal(t, flagsync.StatusLoadError, state.Status())

	records := recorder.Errors()
	require.Len(t, records, 1)
	assert.Equal(t, flagsync.FetchErrorMessage, records[0].Message)
	assert.Equal(t, testErr, records[0].Attrs["err"].Any())
}

func TestLifecycleController_ErrorAfterReadyKeepsReadiness(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	client.EmitReady()
	client.EmitError(errors.New("poll failed"))

	state := controller.State()
	assert.True(t, state.Ready)
	require.ErrorIs(t, state.Err, flagsync.ErrRefresh)
	assert.Equal(t, flagsync.StatusReadyWithError, state.Status())

	// A later ready signal does not clear the error.
	client.EmitReady()
	assert.Error(t, controller.State().Err)
}

func TestLifecycleController_ErrorDuringContextUpdate(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client,
		flagsync.WithContextInFlight(func() bool { return true }),
	)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	client.EmitReady()
	client.EmitError(errors.New("refetch failed"))

	require.ErrorIs(t, controller.State().Err, flagsync.ErrContextUpdate)
}

func TestLifecycleController_ReadyIsIdempotent(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	client.EmitReady()

	first := controller.State()

	client.EmitReady()
	client.EmitReady()

	assert.Equal(t, first, controller.State())
}

func TestLifecycleController_StartsOnce(t *testing.T) {
	t.Parallel()

	fake := flagsynctest.NewFakeClient()

	// Hide IsStarted so only the controller's own bookkeeping applies.
	controller := flagsync.NewLifecycleController(flagsynctest.Unstarted{FlagClient: fake})
	t.Cleanup(controller.Detach)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			controller.Attach(context.Background())
		}()
	}
	wg.Wait()

	controller.Attach(context.Background())

	assert.Equal(t, 1, fake.StartCalls())
	assert.Equal(t, 1, fake.OnCalls(flagsync.EventReady))
	assert.Equal(t, 1, fake.OnCalls(flagsync.EventError))
}

func TestLifecycleController_DoesNotRestartAfterReattach(t *testing.T) {
	t.Parallel()

	fake := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(flagsynctest.Unstarted{FlagClient: fake})

	controller.Attach(context.Background())
	controller.Detach()
	controller.Attach(context.Background())
	t.Cleanup(controller.Detach)

	assert.Equal(t, 1, fake.StartCalls())
	assert.Equal(t, 1, fake.ListenerCount(flagsync.EventReady))
}

func TestLifecycleController_SharedClientStartedOnce(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	first := flagsync.NewLifecycleController(client)
	t.Cleanup(first.Detach)

	second := flagsync.NewLifecycleController(client)
	t.Cleanup(second.Detach)

	first.Attach(context.Background())
	second.Attach(context.Background())

	assert.Equal(t, 1, client.StartCalls())
	assert.Equal(t, 2, client.ListenerCount(flagsync.EventReady))

	client.EmitReady()

	assert.True(t, first.State().Ready)
	assert.True(t, second.State().Ready)

	// Detaching one consumer leaves the other subscribed.
	first.Detach()
	assert.Equal(t, 1, client.ListenerCount(flagsync.EventReady))
	assert.Equal(t, 1, client.ListenerCount(flagsync.EventError))
}

func TestLifecycleController_StartError(t *testing.T) {
	t.Parallel()

	startErr := errors.New("no network")

	client := flagsynctest.NewFakeClient()
	client.StartFunc = func(context.Context) error { return startErr }

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	assert.NotPanics(t, func() { controller.Attach(context.Background()) })

	state := controller.State()
	assert.False(t, state.Ready)
	require.ErrorIs(t, state.Err, startErr)
	require.ErrorIs(t, state.Err, flagsync.ErrStartupFetch)
}

func TestLifecycleController_WithoutStart(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client, flagsync.WithControllerStart(false))
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	assert.Zero(t, client.StartCalls())

	client.EmitReady()
	assert.True(t, controller.State().Ready)
}

func TestLifecycleController_DetachIsIdempotent(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()
	controller := flagsync.NewLifecycleController(client)

	assert.NotPanics(t, controller.Detach)
	assert.Zero(t, client.OffCalls(flagsync.EventReady))

	controller.Attach(context.Background())
	controller.Detach()
	controller.Detach()

	assert.Equal(t, 1, client.OffCalls(flagsync.EventReady))
	assert.Equal(t, 1, client.OffCalls(flagsync.EventError))
	assert.Zero(t, client.ListenerCount(flagsync.EventReady))
	assert.Zero(t, client.ListenerCount(flagsync.EventError))
	assert.Zero(t, client.StopCalls(), "an external client is never stopped")

	client.EmitReady()
	assert.False(t, controller.State().Ready)
}

func TestLifecycleController_OwnedClientStoppedOnce(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()
	controller := flagsync.NewLifecycleController(client, flagsync.WithControllerOwnership(true))

	controller.Attach(context.Background())
	controller.Detach()
	controller.Detach()

	assert.Equal(t, 1, client.StopCalls())

	// A stopped controller does not start the client again.
	controller.Attach(context.Background())
	assert.Equal(t, 1, client.StartCalls())
}

func TestLifecycleController_ClearError(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client)
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	client.EmitReady()
	client.EmitError(errors.New("poll failed"))

	before := controller.State()
	controller.ClearError()

	after := controller.State()
	assert.True(t, after.Ready)
	require.NoError(t, after.Err)
	assert.Greater(t, after.Version, before.Version)

	controller.ClearError()
	assert.Equal(t, after, controller.State())
}

func TestLifecycleController_DetachClearsError(t *testing.T) {
	t.Parallel()

	client := flagsynctest.NewFakeClient()
	controller := flagsync.NewLifecycleController(client)

	controller.Attach(context.Background())
	client.EmitReady()
	client.EmitError(errors.New("poll failed"))
	require.Error(t, controller.State().Err)

	controller.Detach()

	state := controller.State()
	assert.True(t, state.Ready)
	require.NoError(t, state.Err)

	// Errors delivered after teardown are not captured.
	client.EmitError(errors.New("late"))
	require.NoError(t, controller.State().Err)
}

func TestLifecycleController_NotifiesChanges(t *testing.T) {
	t.Parallel()

	notifier := &flagsync.Notifier{}
	changes, unsubscribe := notifier.Subscribe()
	t.Cleanup(unsubscribe)

	client := flagsynctest.NewFakeClient()

	controller := flagsync.NewLifecycleController(client, flagsync.WithControllerNotifier(notifier))
	t.Cleanup(controller.Detach)

	controller.Attach(context.Background())
	client.EmitReady()

	change := <-changes
	assert.Equal(t, flagsync.ChangeState, change.Kind)
	assert.Equal(t, controller.State().Version, change.Version)
}

func TestNewLifecycleController_PanicsOnNilClient(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { flagsync.NewLifecycleController(nil) })
}
