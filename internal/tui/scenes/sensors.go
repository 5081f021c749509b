package scenes

import (
	"fmt"
	"strings"
	"time"

	"tirewatch/internal/tui/api"
	"tirewatch/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
)

// SensorsScene displays the sensor inventory and active damage events
type SensorsScene struct {
	client     *api.Client
	sensors    *api.SensorsResponse
	err        error
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

// sensorsMsg carries updated sensor data
type sensorsMsg struct {
	sensors *api.SensorsResponse
	err     error
}

// NewSensorsScene creates a new sensors scene
func NewSensorsScene(client *api.Client) *SensorsScene {
	return &SensorsScene{
		client:  client,
		loading: true,
	}
}

// Init initializes the sensors scene
func (s *SensorsScene) Init() tea.Cmd {
	return s.fetchSensors()
}

func (s *SensorsScene) fetchSensors() tea.Cmd {
	return func() tea.Msg {
		sensors, err := s.client.GetSensors()
		return sensorsMsg{sensors: sensors, err: err}
	}
}

// TickCmd returns a command that ticks every interval
func (s *SensorsScene) TickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "sensors", Time: t}
	})
}

// Update handles messages for the sensors scene
func (s *SensorsScene) Update(msg tea.Msg) (*SensorsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		return s, nil

	case sensorsMsg:
		s.loading = false
		s.sensors = msg.sensors
		s.err = msg.err
		s.lastUpdate = time.Now()
		return s, nil

	case TickMsg:
		if msg.Scene == "sensors" {
			return s, s.fetchSensors()
		}
		return s, nil
	}

	return s, nil
}

// View renders the sensors scene
func (s *SensorsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Sensor Array"))
	b.WriteString("\n\n")

	if s.loading {
		b.WriteString(styles.Muted.Render("Loading sensor inventory..."))
		return b.String()
	}

	if s.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %v", s.err)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(styles.Subtitle.Render("  Configured Sensors"))
	b.WriteString("\n")

	header := fmt.Sprintf("  %-14s %-14s %10s %9s %10s", "ID", "Location", "Baseline", "Noise", "TempCoeff")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	damaged := make(map[string]bool)
	for _, ev := range s.sensors.Damage {
		damaged[ev.SensorID] = true
	}

	for _, spec := range s.sensors.Sensors {
		marker := styles.StatusOK.Render("●")
		if damaged[spec.ID] {
			marker = styles.StatusError.Render("●")
		}
		b.WriteString(fmt.Sprintf("  %s %-12s %-14s %10.1f %9.3f %10.2f\n",
			marker, spec.ID, spec.Location, spec.Baseline, spec.NoiseAmp, spec.TempCoeff))
	}
	b.WriteString("\n")

	b.WriteString(styles.Subtitle.Render("  Active Damage"))
	b.WriteString("\n")
	if len(s.sensors.Damage) == 0 {
		b.WriteString(styles.Muted.Render("  None injected.\n"))
	} else {
		for _, ev := range s.sensors.Damage {
			b.WriteString(fmt.Sprintf("  %s %-10s sensor=%-14s onset=%d\n",
				styles.StatusWarning.Render("▲"), ev.Type, ev.SensorID, ev.OnsetTick))
		}
	}
	b.WriteString("\n")

	if !s.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s", s.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}
