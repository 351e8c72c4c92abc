package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dazedpro/claude-cli-proxy/metrics"
)

// pollInterval is how often the dashboard re-fetches /metrics.
const pollInterval = 2 * time.Second

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type snapshotMsg struct {
	snap metrics.Snapshot
	err  error
}

// DashboardModel polls a gateway's /metrics endpoint and renders a live
// view of dispatch counters and latency, grounded in the teacher's
// StatsModel view/update/render split.
type DashboardModel struct {
	client   *http.Client
	url      string
	snap     metrics.Snapshot
	lastErr  error
	quitting bool
}

// NewDashboardModel builds a dashboard polling metricsURL (e.g.
// "http://localhost:9100/metrics").
func NewDashboardModel(metricsURL string) DashboardModel {
	return DashboardModel{
		client: &http.Client{Timeout: 5 * time.Second},
		url:    metricsURL,
	}
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	return m.poll()
}

func (m DashboardModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
		if err != nil {
			return snapshotMsg{err: err}
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return snapshotMsg{err: err}
		}
		defer resp.Body.Close()

		var snap metrics.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{snap: snap}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.poll()

	case snapshotMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.lastErr = nil
			m.snap = msg.snap
		}
		return m, tick()
	}

	return m, nil
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b []string
	b = append(b, titleStyle.Render("claude-cli-proxy"))

	if m.lastErr != nil {
		b = append(b, errorStyle.Render(fmt.Sprintf("poll error: %v", m.lastErr)))
	}

	counters := lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Active", m.snap.Active, highlightColor),
		statBox("Queued", m.snap.Queued, warningColor),
		statBox("Completed", m.snap.Completed, successColor),
		statBox("Failed", m.snap.Failed, errorColor),
		statBox("Timed Out", m.snap.TimedOut, errorColor),
		statBox("Rejected", m.snap.QueueRejected, errorColor),
	)
	b = append(b, counters)

	latency := lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Min ms", m.snap.Latency.Min, mutedColor),
		statBox("Avg ms", m.snap.Latency.Avg, mutedColor),
		statBox("Max ms", m.snap.Latency.Max, mutedColor),
		statBox("P95 ms", m.snap.Latency.P95, mutedColor),
	)
	b = append(b, latency)

	tokens := lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Tokens In", m.snap.TokensInput, primaryColor),
		statBox("Tokens Out", m.snap.TokensOutput, primaryColor),
		statBox("Total", m.snap.Total, highlightColor),
	)
	b = append(b, tokens)

	b = append(b, helpStyle.Render("Press q or Ctrl+C to quit"))

	out := ""
	for i, s := range b {
		if i > 0 {
			out += "\n\n"
		}
		out += s
	}
	return out
}

// Run starts the dashboard TUI against the given gateway base URL
// (e.g. "http://localhost:9100").
func Run(baseURL string) error {
	model := NewDashboardModel(baseURL + "/metrics")
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
