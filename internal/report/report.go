// Package report builds the maintenance report from the alert history:
// aggregate counts, a headline recommendation and condition-specific
// findings, exportable as text, CSV or an XLSX workbook.
package report

import (
	"fmt"
	"strings"
	"time"

	"tirewatch/internal/alerting"
	"tirewatch/internal/schema"
)

// Source is the session surface the report reads. *session.Session
// satisfies it.
type Source interface {
	Completed() int
	History() []alerting.Alert
	Counts() alerting.Counts
	WorstSeverity() (alerting.Severity, bool)
}

// Report is a point-in-time maintenance summary.
type Report struct {
	GeneratedAt time.Time                      `json:"generated_at"`
	Tick        int                            `json:"tick"`
	Total       int                            `json:"total_alerts"`
	ByCategory  map[schema.AnomalyCategory]int `json:"by_category"`
	BySeverity  map[alerting.Severity]int      `json:"by_severity"`
	Worst       alerting.Severity              `json:"worst_severity,omitempty"`
	Headline    string                         `json:"headline"`
	Findings    []string                       `json:"findings,omitempty"`
	Alerts      []alerting.Alert               `json:"alerts"`
}

// Build assembles a report from the session's current state.
func Build(src Source) Report {
	counts := src.Counts()
	r := Report{
		GeneratedAt: time.Now().UTC(),
		Tick:        src.Completed(),
		Total:       counts.Total,
		ByCategory:  counts.ByCategory,
		BySeverity:  counts.BySeverity,
		Alerts:      src.History(),
	}

	if worst, ok := src.WorstSeverity(); ok {
		r.Worst = worst
		r.Headline = headline(worst)
	} else {
		r.Headline = "Tire condition nominal. No anomalies detected."
	}

	r.Findings = findings(counts.ByCategory)
	return r
}

func headline(worst alerting.Severity) string {
	switch worst {
	case alerting.SeverityEmergency:
		return "EMERGENCY condition recorded. Stop the vehicle and inspect the tire before further use."
	case alerting.SeverityCritical:
		return "Critical tire condition recorded. Schedule urgent tire replacement."
	case alerting.SeverityWarning:
		return "Warning conditions recorded. Schedule a tire inspection within 24 hours."
	case alerting.SeverityAdvisory:
		return "Advisory conditions recorded. Monitor tire condition and inspect at next service."
	}
	return "Informational findings only. No action required."
}

// findings derives condition-specific report lines from the categories
// seen, in the fixed category order.
func findings(byCategory map[schema.AnomalyCategory]int) []string {
	var out []string
	for _, cat := range schema.Categories() {
		n := byCategory[cat]
		if n == 0 {
			continue
		}
		switch cat {
		case schema.CategoryThresholdExceeded:
			out = append(out, fmt.Sprintf("Impedance exceeded safe thresholds %d time(s); tire material degradation likely.", n))
		case schema.CategoryRapidChange:
			out = append(out, fmt.Sprintf("Rapid impedance changes recorded %d time(s); check for recent impact damage.", n))
		case schema.CategoryUnevenWear:
			out = append(out, fmt.Sprintf("Uneven tread wear detected %d time(s); check wheel alignment and rotation schedule.", n))
		case schema.CategoryAcceleratedWear:
			out = append(out, fmt.Sprintf("Accelerated wear trend detected %d time(s); expect shortened tire life.", n))
		case schema.CategoryPunctureSuspected:
			out = append(out, fmt.Sprintf("Suspected puncture event(s): %d. Inspect the tire surface immediately.", n))
		case schema.CategoryTemperatureIssue:
			out = append(out, fmt.Sprintf("Temperature excursions recorded %d time(s); check tire pressure.", n))
		case schema.CategorySensorDegraded:
			out = append(out, fmt.Sprintf("Sensor data quality issues recorded %d time(s); inspect sensor wiring and mounting.", n))
		}
	}
	return out
}

// Text renders the report as a plain-text maintenance summary.
func (r Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "TIRE MAINTENANCE REPORT\n")
	fmt.Fprintf(&b, "Generated: %s (tick %d)\n", r.GeneratedAt.Format(time.RFC3339), r.Tick)
	fmt.Fprintf(&b, "\n%s\n", r.Headline)

	fmt.Fprintf(&b, "\nAlerts: %d total\n", r.Total)
	for _, sev := range alerting.Severities() {
		if n := r.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "  %-10s %d\n", sev, n)
		}
	}

	if len(r.Findings) > 0 {
		fmt.Fprintf(&b, "\nFindings:\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}

	if len(r.ByCategory) > 0 {
		fmt.Fprintf(&b, "\nBy category:\n")
		for _, cat := range schema.Categories() {
			if n := r.ByCategory[cat]; n > 0 {
				fmt.Fprintf(&b, "  %-20s %d\n", cat, n)
			}
		}
	}

	return b.String()
}
