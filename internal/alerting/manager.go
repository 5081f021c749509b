package alerting

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
)

// Counts aggregates the alert history.
type Counts struct {
	Total      int                            `json:"total"`
	ByCategory map[schema.AnomalyCategory]int `json:"by_category"`
	BySeverity map[Severity]int               `json:"by_severity"`
}

type fireRecord struct {
	tick     int
	severity Severity
}

// Manager grades anomalies into alerts and keeps the append-only
// history. Safe for concurrent reads against the tick loop's writes.
type Manager struct {
	mu        sync.RWMutex
	cfg       config.AlertingConfig
	locations map[string]schema.Location
	history   []Alert
	lastFire  map[string]fireRecord // category:sensor -> last emission
	counts    Counts
}

// NewManager creates an alert manager for the given sensor array.
func NewManager(cfg config.AlertingConfig, specs []schema.SensorSpec) *Manager {
	m := &Manager{
		cfg:       cfg,
		locations: make(map[string]schema.Location, len(specs)),
	}
	for _, spec := range specs {
		m.locations[spec.ID] = spec.Location
	}
	m.resetLocked()
	return m
}

// Process grades one tick of anomalies and returns the alerts actually
// emitted after deduplication. Within the cooldown a duplicate
// (category, sensor) pair re-emits only when its severity escalates.
func (m *Manager) Process(anomalies []schema.AnomalyEvent) []Alert {
	if len(anomalies) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var emitted []Alert
	for _, a := range anomalies {
		sev := severityFor(a.Category, a.Confidence)
		key := dedupKey(a.Category, a.SensorID)

		if last, ok := m.lastFire[key]; ok {
			inCooldown := a.Tick-last.tick < m.cfg.CooldownTicks
			if inCooldown && sev.Rank() <= last.severity.Rank() {
				continue
			}
		}

		alert := Alert{
			ID:             uuid.New(),
			Category:       a.Category,
			SensorID:       a.SensorID,
			Severity:       sev,
			Confidence:     a.Confidence,
			Tick:           a.Tick,
			Value:          a.Value,
			Detail:         a.Detail,
			Recommendation: recommend(a.Category, sev, m.locations[a.SensorID]),
			CreatedAt:      time.Now().UTC(),
		}

		m.lastFire[key] = fireRecord{tick: a.Tick, severity: sev}
		m.append(alert)
		emitted = append(emitted, alert)

		slog.Info("alert emitted",
			"alert_id", alert.ID,
			"category", alert.Category,
			"sensor_id", alert.SensorID,
			"severity", alert.Severity,
			"confidence", alert.Confidence,
			"tick", alert.Tick,
		)
	}

	return emitted
}

func (m *Manager) append(alert Alert) {
	m.history = append(m.history, alert)
	if m.cfg.HistoryLimit > 0 && len(m.history) > m.cfg.HistoryLimit {
		m.history = m.history[len(m.history)-m.cfg.HistoryLimit:]
	}
	m.counts.Total++
	m.counts.ByCategory[alert.Category]++
	m.counts.BySeverity[alert.Severity]++
}

// History returns a copy of the alert history, oldest first.
func (m *Manager) History() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alert, len(m.history))
	copy(out, m.history)
	return out
}

// Counts returns a copy of the aggregate counts. Counts survive history
// truncation; they track everything ever emitted.
func (m *Manager) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := Counts{
		Total:      m.counts.Total,
		ByCategory: make(map[schema.AnomalyCategory]int, len(m.counts.ByCategory)),
		BySeverity: make(map[Severity]int, len(m.counts.BySeverity)),
	}
	for k, v := range m.counts.ByCategory {
		c.ByCategory[k] = v
	}
	for k, v := range m.counts.BySeverity {
		c.BySeverity[k] = v
	}
	return c
}

// WorstSeverity returns the most severe alert ever emitted and false if
// there have been none.
func (m *Manager) WorstSeverity() (Severity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worst, found := SeverityInfo, false
	for sev, n := range m.counts.BySeverity {
		if n == 0 {
			continue
		}
		if !found || sev.Rank() > worst.Rank() {
			worst = sev
		}
		found = true
	}
	return worst, found
}

// Reset clears history, counts and dedup state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	m.history = nil
	m.lastFire = make(map[string]fireRecord)
	m.counts = Counts{
		ByCategory: make(map[schema.AnomalyCategory]int),
		BySeverity: make(map[Severity]int),
	}
}

func dedupKey(cat schema.AnomalyCategory, sensorID string) string {
	return fmt.Sprintf("%s:%s", cat, sensorID)
}
