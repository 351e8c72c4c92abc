// Package tui implements the live dashboard for cmd/gateway-top: a
// bubbletea model that polls the gateway's /metrics endpoint and renders
// the running snapshot, grounded in the teacher's cli/tui stat-box style.
package tui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	statBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	statValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

func statBox(label string, value int64, color lipgloss.Color) string {
	box := statBoxStyle.BorderForeground(color)
	valueStr := statValueStyle.Foreground(color).Render(strconv.FormatInt(value, 10))
	labelStr := statLabelStyle.Render(label)
	return box.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
