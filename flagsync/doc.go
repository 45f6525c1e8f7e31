// Package flagsync keeps a feature flag client's lifecycle, toggle table and
// evaluation context in step with readers that render them.
//
// The client is an external collaborator described by FlagClient. Three
// pieces consume it:
//
//   - LifecycleController turns "ready" and "error" events into SyncState.
//   - ToggleView snapshots the toggle table on attach and on every "update".
//   - ContextBridge forwards evaluation context changes without overlap.
//
// Provider wires the three together around one client and one Notifier.
// Readers take snapshots at any time from any goroutine; a Change on a
// subscription only says that a new read is due.
//
// Client errors are captured into SyncState and logged, never returned.
// A captured error stays until ClearError or teardown.
package flagsync
