// Package alerting grades detector anomalies into alerts: severity
// lookup, recommendation text, deduplication and history.
package alerting

import (
	"time"

	"github.com/google/uuid"

	"tirewatch/internal/schema"
)

// Severity grades an alert. Ordered: INFO < ADVISORY < WARNING <
// CRITICAL < EMERGENCY.
type Severity string

const (
	SeverityInfo      Severity = "INFO"
	SeverityAdvisory  Severity = "ADVISORY"
	SeverityWarning   Severity = "WARNING"
	SeverityCritical  Severity = "CRITICAL"
	SeverityEmergency Severity = "EMERGENCY"
)

var severityRank = map[Severity]int{
	SeverityInfo:      0,
	SeverityAdvisory:  1,
	SeverityWarning:   2,
	SeverityCritical:  3,
	SeverityEmergency: 4,
}

// Rank returns the ordering of the severity; unknown values rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Severities lists every severity from least to most severe.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityAdvisory, SeverityWarning, SeverityCritical, SeverityEmergency}
}

// Alert is one graded, deduplicated finding.
type Alert struct {
	ID             uuid.UUID              `json:"id"`
	Category       schema.AnomalyCategory `json:"category"`
	SensorID       string                 `json:"sensor_id"`
	Severity       Severity               `json:"severity"`
	Confidence     float64                `json:"confidence"`
	Tick           int                    `json:"tick"`
	Value          float64                `json:"value"`
	Detail         string                 `json:"detail,omitempty"`
	Recommendation string                 `json:"recommendation"`
	CreatedAt      time.Time              `json:"created_at"`
}

// severityBands maps a category to its low/high severities; the bands
// split at the confidence midpoint.
var severityBands = map[schema.AnomalyCategory][2]Severity{
	schema.CategoryThresholdExceeded: {SeverityWarning, SeverityCritical},
	schema.CategoryRapidChange:       {SeverityWarning, SeverityCritical},
	schema.CategoryUnevenWear:        {SeverityAdvisory, SeverityWarning},
	schema.CategoryAcceleratedWear:   {SeverityAdvisory, SeverityWarning},
	schema.CategoryPunctureSuspected: {SeverityCritical, SeverityEmergency},
	schema.CategoryTemperatureIssue:  {SeverityAdvisory, SeverityWarning},
	schema.CategorySensorDegraded:    {SeverityInfo, SeverityAdvisory},
}

// bandSplit is the confidence at which a category moves to its high band.
const bandSplit = 0.5

// severityFor grades an anomaly by category and confidence.
func severityFor(cat schema.AnomalyCategory, confidence float64) Severity {
	bands, ok := severityBands[cat]
	if !ok {
		return SeverityInfo
	}
	if confidence >= bandSplit {
		return bands[1]
	}
	return bands[0]
}
