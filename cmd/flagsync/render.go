package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/flux-agi/flagsync_go/flagsync"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	nameStyle    = lipgloss.NewStyle().Width(32).PaddingRight(1)
	enabledStyle = lipgloss.NewStyle().Width(5).PaddingRight(1)
	variantStyle = lipgloss.NewStyle().Width(20).PaddingRight(1)
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func renderStatus(state flagsync.SyncState) string {
	var status string

	switch state.Status() {
	case flagsync.StatusReady:
		status = readyStyle.Render(string(state.Status()))
	case flagsync.StatusLoading:
		status = loadingStyle.Render(string(state.Status()))
	case flagsync.StatusLoadError, flagsync.StatusReadyWithError:
		status = errorStyle.Render(string(state.Status()))
	}

	if state.Err != nil {
		status += " " + errorStyle.Render(state.Err.Error())
	}

	return status
}

func renderToggles(toggles []flagsync.Toggle) string {
	if len(toggles) == 0 {
		return subtleStyle.Render("no toggles")
	}

	var b strings.Builder

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Inherit(nameStyle).Render("NAME"),
		headerStyle.Inherit(enabledStyle).Render("ON"),
		headerStyle.Inherit(variantStyle).Render("VARIANT"),
		headerStyle.Render("PAYLOAD"),
	))

	for _, toggle := range toggles {
		enabled := offStyle.Render("off")
		if toggle.Enabled {
			enabled = onStyle.Render("on")
		}

		payload := ""
		if toggle.Variant.Payload != nil {
			payload = fmt.Sprintf("%s:%s", toggle.Variant.Payload.Type, toggle.Variant.Payload.Value)
		}

		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Render(toggle.Name),
			enabledStyle.Render(enabled),
			variantStyle.Render(toggle.Variant.Name),
			payload,
		))
	}

	return b.String()
}
