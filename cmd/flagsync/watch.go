package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// flagSource is the part of a Provider the watch view reads.
type flagSource interface {
	SyncState() flagsync.SyncState
	Toggles() flagsync.ToggleSnapshot
	ContextState() flagsync.ContextState
}

type changeMsg struct {
	change flagsync.Change
}

type changesClosedMsg struct{}

type watchKeys struct {
	Quit       key.Binding
	ClearError key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q", "esc"),
			key.WithHelp("q", "quit"),
		),
		ClearError: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear error"),
		),
	}
}

type watchModel struct {
	source     flagSource
	changes    <-chan flagsync.Change
	clearError func()
	keys       watchKeys
	spinner    spinner.Model

	state   flagsync.SyncState
	toggles flagsync.ToggleSnapshot
	evalCtx flagsync.EvaluationContext
}

func newWatchModel(source flagSource, changes <-chan flagsync.Change, clearError func()) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := watchModel{
		source:     source,
		changes:    changes,
		clearError: clearError,
		keys:       defaultWatchKeys(),
		spinner:    sp,
	}
	m.refresh()

	return m
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenForChange(m.changes))
}

// listenForChange blocks until a change arrives and delivers it as a
// changeMsg.
func listenForChange(channel <-chan flagsync.Change) tea.Cmd {
	return func() tea.Msg {
		change, ok := <-channel
		if !ok {
			return changesClosedMsg{}
		}

		return changeMsg{change: change}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ClearError):
			if m.clearError != nil {
				m.clearError()
			}

			m.refresh()
		}

		return m, nil
	case changeMsg:
		m.refresh()
		return m, listenForChange(m.changes)
	case changesClosedMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *watchModel) refresh() {
	m.state = m.source.SyncState()
	m.toggles = m.source.Toggles()
	m.evalCtx = m.source.ContextState().Requested
}

func (m watchModel) View() string {
	var b strings.Builder

	if m.state.Loading() {
		b.WriteString(m.spinner.View() + " ")
	}

	b.WriteString(renderStatus(m.state))
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  v%d/%d", m.state.Version, m.toggles.Version)))
	b.WriteString("\n")

	if m.evalCtx.UserID != "" {
		b.WriteString(subtleStyle.Render("user " + m.evalCtx.UserID))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderToggles(m.toggles.All()))
	b.WriteString("\n\n")
	b.WriteString(subtleStyle.Render(m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc + " • " +
		m.keys.ClearError.Help().Key + " " + m.keys.ClearError.Help().Desc))
	b.WriteString("\n")

	return b.String()
}

func runWatch(ctx context.Context, env *environment, args []string) error {
	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	provider, err := newProvider(env)
	if err != nil {
		return err
	}
	defer provider.Close()

	changes, unsubscribe := provider.Subscribe()
	defer unsubscribe()

	provider.Start(ctx)

	program := tea.NewProgram(
		newWatchModel(provider, changes, provider.ClearError),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run watch: %w", err)
	}

	return nil
}
