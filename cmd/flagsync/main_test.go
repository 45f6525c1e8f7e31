package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flux-agi/flagsync_go/flagsync"
	"github.com/flux-agi/flagsync_go/flagsyncmq"
)

var testToggles = []flagsync.Toggle{
	{Name: "checkout", Enabled: true, Variant: flagsync.Variant{
		Name:    "blue",
		Enabled: true,
		Payload: &flagsync.Payload{Type: "string", Value: "wide"},
	}},
	{Name: "search", Variant: flagsync.DisabledVariant},
}

func TestRun_RejectsUnknownCommand(t *testing.T) {
	var out bytes.Buffer

	err := run([]string{"explode"}, &out)
	require.EqualError(t, err, `unknown command "explode"`)

	err = run(nil, &out)
	require.EqualError(t, err, "missing command")
}

func TestWriteDump_JSON(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	state := flagsync.SyncState{Ready: true, Err: errors.New("poll failed"), Version: 3}
	snapshot := flagsync.NewToggleSnapshot(testToggles, 2)

	require.NoError(t, writeDump(&out, state, snapshot, true))

	var got dumpOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	assert.Equal(t, flagsync.StatusReadyWithError, got.Status)
	assert.Equal(t, "poll failed", got.Error)
	assert.Equal(t, testToggles, got.Toggles)
}

func TestWriteDump_Table(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, writeDump(&out, flagsync.SyncState{Ready: true}, flagsync.NewToggleSnapshot(testToggles, 1), false))

	text := out.String()
	assert.Contains(t, text, "READY")
	assert.Contains(t, text, "checkout")
	assert.Contains(t, text, "string:wide")
	assert.Contains(t, text, "search")
}

func TestWriteDump_Empty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, writeDump(&out, flagsync.SyncState{}, flagsync.ToggleSnapshot{}, true))
	assert.Contains(t, out.String(), `"toggles": []`)
	assert.Contains(t, out.String(), `"status": "LOADING"`)
}

func TestWriteStatus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, writeStatus(&out, &flagsyncmq.StateMessage{
		App:     "web",
		Status:  flagsync.StatusLoadError,
		Error:   "flagsync: startup fetch failed: timeout",
		Toggles: testToggles,
	}, false))

	text := out.String()
	assert.Contains(t, text, "web")
	assert.Contains(t, text, "LOAD_ERROR")
	assert.Contains(t, text, "startup fetch failed")
	assert.Contains(t, text, "checkout")
}

type stubSource struct {
	state   flagsync.SyncState
	toggles flagsync.ToggleSnapshot
	context flagsync.ContextState
}

func (s *stubSource) SyncState() flagsync.SyncState { return s.state }
func (s *stubSource) Toggles() flagsync.ToggleSnapshot { return s.toggles }
func (s *stubSource) ContextState() flagsync.ContextState { return s.context }

func TestWatchModel(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	changes := make(chan flagsync.Change, 1)

	var cleared int

	model := newWatchModel(source, changes, func() {
		cleared++
		source.state.Err = nil
	})
	assert.NotNil(t, model.Init())
	assert.Contains(t, model.View(), "LOADING")
	assert.Contains(t, model.View(), "no toggles")

	source.state = flagsync.SyncState{Ready: true, Err: errors.New("poll failed"), Version: 2}
	source.toggles = flagsync.NewToggleSnapshot(testToggles, 5)
	source.context.Requested = flagsync.EvaluationContext{UserID: "u1"}

	updated, cmd := model.Update(changeMsg{change: flagsync.Change{Kind: flagsync.ChangeToggles, Version: 5}})
	assert.NotNil(t, cmd, "keeps listening")

	view := updated.View()
	assert.Contains(t, view, "READY_WITH_ERROR")
	assert.Contains(t, view, "checkout")
	assert.Contains(t, view, "user u1")
	assert.Contains(t, view, "v2/5")

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Equal(t, 1, cleared)
	assert.NotContains(t, updated.View(), "poll failed")

	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = updated.Update(changesClosedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestListenForChange(t *testing.T) {
	t.Parallel()

	changes := make(chan flagsync.Change, 1)
	changes <- flagsync.Change{Kind: flagsync.ChangeState, Version: 7}

	msg := listenForChange(changes)()
	assert.Equal(t, changeMsg{change: flagsync.Change{Kind: flagsync.ChangeState, Version: 7}}, msg)

	close(changes)
	assert.Equal(t, changesClosedMsg{}, listenForChange(changes)())
}
