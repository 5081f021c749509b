package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeader is the column layout of the alert-history export.
var csvHeader = []string{
	"tick", "created_at", "category", "sensor_id", "severity",
	"confidence", "value", "detail", "recommendation",
}

// WriteCSV writes the alert history as CSV, one row per alert plus a
// header row.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, a := range r.Alerts {
		row := []string{
			strconv.Itoa(a.Tick),
			a.CreatedAt.Format(time.RFC3339),
			string(a.Category),
			a.SensorID,
			string(a.Severity),
			strconv.FormatFloat(a.Confidence, 'f', 3, 64),
			strconv.FormatFloat(a.Value, 'f', 4, 64),
			a.Detail,
			a.Recommendation,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
