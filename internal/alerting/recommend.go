package alerting

import (
	"fmt"

	"tirewatch/internal/schema"
)

// recommend returns the maintenance recommendation for an alert. The
// text is deterministic on (category, severity, location).
func recommend(cat schema.AnomalyCategory, sev Severity, loc schema.Location) string {
	switch cat {
	case schema.CategoryPunctureSuspected:
		if sev == SeverityEmergency {
			return "Stop the vehicle immediately and inspect the tire for punctures."
		}
		return "Pull over safely and check for punctures; do not continue at highway speed."
	case schema.CategoryUnevenWear:
		return "Check wheel alignment and tire rotation schedule."
	case schema.CategoryTemperatureIssue:
		return "Check tire pressure; abnormal temperature often indicates underinflation."
	case schema.CategorySensorDegraded:
		return fmt.Sprintf("Inspect sensor wiring and mounting at the %s.", loc.Describe())
	}

	switch sev {
	case SeverityEmergency:
		return "Stop the vehicle immediately and inspect the tire."
	case SeverityCritical:
		return "Reduce speed immediately. Schedule urgent tire replacement."
	case SeverityWarning:
		return fmt.Sprintf("Schedule an inspection of the %s within 24 hours.", loc.Describe())
	case SeverityAdvisory:
		return "Monitor tire condition and inspect at next service."
	}
	return "No action required; recorded for trend analysis."
}
