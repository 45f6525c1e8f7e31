package flagsync

type Status string

const (
	// StatusLoading is a default status: not ready, no error reported.
	StatusLoading        Status = "LOADING"
	StatusReady          Status = "READY"
	StatusLoadError      Status = "LOAD_ERROR"
	StatusReadyWithError Status = "READY_WITH_ERROR"
)

// SyncState is the lifecycle snapshot of a flag client.
type SyncState struct {
	Ready bool
	// Err is the last captured client error. It persists until cleared
	// explicitly or the consumer is torn down.
	Err error
	// Version increases with every observable change. Renderers compare
	// versions instead of values.
	Version uint64
}

func (s SyncState) Status() Status {
	switch {
	case s.Ready && s.Err != nil:
		return StatusReadyWithError
	case s.Ready:
		return StatusReady
	case s.Err != nil:
		return StatusLoadError
	default:
		return StatusLoading
	}
}

// Loading reports "still loading, no error".
func (s SyncState) Loading() bool {
	return s.Status() == StatusLoading
}
