// Package flagsyncmq exposes a flagsync.Provider over watermill: state
// snapshots are broadcast on every change and served on request, and
// remote peers may switch the evaluation context.
package flagsyncmq
