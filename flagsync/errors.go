package flagsync

import (
	"errors"
	"fmt"
)

var (
	// ErrStartupFetch marks errors reported before the client became ready.
	ErrStartupFetch = errors.New("startup fetch failed")
	// ErrContextUpdate marks errors caused by propagating a new context.
	ErrContextUpdate = errors.New("context update failed")
	// ErrRefresh marks background refresh failures after readiness.
	ErrRefresh = errors.New("refresh failed")

	ErrNoClient = errors.New("flagsync: neither client nor client factory configured")
)

// SyncError is a client error captured into SyncState. errors.Is matches
// both the kind sentinel and the original client error.
type SyncError struct {
	Kind error
	Err  error
}

func (e *SyncError) Error() string {
	if e == nil {
		return "<nil>"
	}

	return fmt.Sprintf("flagsync: %v: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() []error {
	if e == nil {
		return nil
	}

	return []error{e.Kind, e.Err}
}

func newSyncError(kind, err error) error {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return err
	}

	return &SyncError{Kind: kind, Err: err}
}
