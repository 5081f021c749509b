// Package scenes provides TUI scenes for tirewatch
package scenes

import (
	"fmt"
	"strings"
	"time"

	"tirewatch/internal/tui/api"
	"tirewatch/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardScene displays the simulation overview and latest readings
type DashboardScene struct {
	client     *api.Client
	stats      *api.Stats
	err        error
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

// statsMsg carries updated stats
type statsMsg struct {
	stats *api.Stats
	err   error
}

// TickMsg is sent on each refresh tick - exported for use by parent model
type TickMsg struct {
	Scene string
	Time  time.Time
}

// NewDashboardScene creates a new dashboard scene
func NewDashboardScene(client *api.Client) *DashboardScene {
	return &DashboardScene{
		client:  client,
		loading: true,
		stats: &api.Stats{
			Healthy: false,
		},
	}
}

// Init initializes the dashboard scene - fetches initial data
func (d *DashboardScene) Init() tea.Cmd {
	return d.fetchStats()
}

func (d *DashboardScene) fetchStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := d.client.GetStats()
		return statsMsg{stats: stats, err: err}
	}
}

// TickCmd returns a command that ticks every interval
// IMPORTANT: This is returned by the parent model only when this scene is active
func (d *DashboardScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "dashboard", Time: t}
	})
}

// Update handles messages for the dashboard
func (d *DashboardScene) Update(msg tea.Msg) (*DashboardScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil

	case statsMsg:
		d.loading = false
		d.stats = msg.stats
		d.err = msg.err
		d.lastUpdate = time.Now()
		return d, nil

	case TickMsg:
		// Only respond to our own ticks
		if msg.Scene == "dashboard" {
			return d, d.fetchStats()
		}
		return d, nil
	}

	return d, nil
}

// View renders the dashboard
func (d *DashboardScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Tirewatch Dashboard"))
	b.WriteString("\n\n")

	if d.loading {
		b.WriteString(styles.Muted.Render("Loading..."))
		return b.String()
	}

	if d.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %v", d.err)))
		b.WriteString("\n")
	}

	var statusText string
	if d.stats.Healthy {
		statusText = styles.StatusOK.Render("● HEALTHY")
	} else if d.stats.HealthStatus == "degraded" {
		statusText = styles.StatusError.Render("● DEGRADED")
	} else {
		statusText = styles.StatusError.Render("● OFFLINE")
	}
	b.WriteString(fmt.Sprintf("  Status: %s  %s\n\n", statusText, styles.Muted.Render(d.stats.StatusReason)))

	worst := "none"
	if d.stats.Worst != "" {
		worst = string(d.stats.Worst)
	}
	cards := []string{
		d.renderMetricCard("Tick", fmt.Sprintf("%d", d.stats.Tick)),
		d.renderMetricCard("Alerts", fmt.Sprintf("%d", d.stats.AlertsTotal)),
		d.renderMetricCard("Worst Severity", worst),
		d.renderMetricCard("Uptime", d.stats.Uptime),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	b.WriteString(styles.Subtitle.Render("  Latest Readings"))
	b.WriteString("\n")
	b.WriteString(d.renderReadings())
	b.WriteString("\n")

	if !d.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s", d.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func (d *DashboardScene) renderMetricCard(label, value string) string {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.MutedColor).
		Padding(0, 2).
		Width(18).
		Align(lipgloss.Center)

	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)

	return card.Render(content)
}

func (d *DashboardScene) renderReadings() string {
	if d.stats.Snapshot == nil || len(d.stats.Snapshot.Readings) == 0 {
		return styles.Muted.Render("  No readings yet.")
	}

	header := fmt.Sprintf("  %-14s %10s %10s %10s", "Sensor", "Ratio", "Temp °C", "Status")
	rows := []string{styles.TableHeader.Render(header)}

	for _, reading := range d.stats.Snapshot.Readings {
		status := styles.StatusOK.Render("OK")
		switch {
		case reading.Suspect:
			status = styles.StatusError.Render("SUSPECT")
		case reading.Ratio >= 1.1:
			status = styles.StatusWarning.Render("ELEVATED")
		}

		rows = append(rows, fmt.Sprintf("  %-14s %10.3f %10.1f %10s",
			reading.SensorID,
			reading.Ratio,
			reading.Temperature,
			status,
		))
	}

	return strings.Join(rows, "\n")
}
