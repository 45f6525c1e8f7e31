package flagsyncmq

import (
	"time"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// StateMessage is the JSON payload published on the state topic.
type StateMessage struct {
	App            string                     `json:"app"`
	Status         flagsync.Status            `json:"status"`
	Ready          bool                       `json:"ready"`
	Error          string                     `json:"error,omitempty"`
	StateVersion   uint64                     `json:"state_version"`
	TogglesVersion uint64                     `json:"toggles_version"`
	Toggles        []flagsync.Toggle          `json:"toggles"`
	Context        flagsync.EvaluationContext `json:"context"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// Source is the read side of a flagsync.Provider.
type Source interface {
	SyncState() flagsync.SyncState
	Toggles() flagsync.ToggleSnapshot
	ContextState() flagsync.ContextState
	SetContext(evalCtx flagsync.EvaluationContext) bool
	Subscribe() (<-chan flagsync.Change, func())
}

// NewStateMessage reads source once.
func NewStateMessage(app string, source Source, now time.Time) StateMessage {
	state := source.SyncState()
	toggles := source.Toggles()

	msg := StateMessage{
		App:            app,
		Status:         state.Status(),
		Ready:          state.Ready,
		StateVersion:   state.Version,
		TogglesVersion: toggles.Version,
		Toggles:        toggles.All(),
		Context:        source.ContextState().Requested,
		Timestamp:      now.UTC(),
	}

	if state.Err != nil {
		msg.Error = state.Err.Error()
	}

	if msg.Toggles == nil {
		msg.Toggles = []flagsync.Toggle{}
	}

	return msg
}
