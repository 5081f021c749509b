package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tirewatch/internal/alerting"
	"tirewatch/internal/schema"
)

const (
	summarySheet = "Summary"
	alertsSheet  = "Alerts"
)

// WriteXLSX writes the report as a two-sheet workbook: a summary sheet
// with counts and findings, and the full alert history.
func (r Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	if _, err := f.NewSheet(alertsSheet); err != nil {
		return fmt.Errorf("creating alerts sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := r.writeSummary(f); err != nil {
		return err
	}
	if err := r.writeAlerts(f); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (r Report) writeSummary(f *excelize.File) error {
	row := 1
	set := func(col int, v interface{}) error {
		return setCell(f, summarySheet, col, row, v)
	}

	if err := set(1, "Tire Maintenance Report"); err != nil {
		return err
	}
	row++
	if err := set(1, "Generated"); err != nil {
		return err
	}
	if err := set(2, r.GeneratedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	row++
	if err := set(1, "Tick"); err != nil {
		return err
	}
	if err := set(2, r.Tick); err != nil {
		return err
	}
	row++
	if err := set(1, "Headline"); err != nil {
		return err
	}
	if err := set(2, r.Headline); err != nil {
		return err
	}
	row++
	if err := set(1, "Total alerts"); err != nil {
		return err
	}
	if err := set(2, r.Total); err != nil {
		return err
	}

	row += 2
	if err := set(1, "By severity"); err != nil {
		return err
	}
	row++
	for _, sev := range alerting.Severities() {
		if n := r.BySeverity[sev]; n > 0 {
			if err := set(1, string(sev)); err != nil {
				return err
			}
			if err := set(2, n); err != nil {
				return err
			}
			row++
		}
	}

	row++
	if err := set(1, "By category"); err != nil {
		return err
	}
	row++
	for _, cat := range schema.Categories() {
		if n := r.ByCategory[cat]; n > 0 {
			if err := set(1, string(cat)); err != nil {
				return err
			}
			if err := set(2, n); err != nil {
				return err
			}
			row++
		}
	}

	if len(r.Findings) > 0 {
		row++
		if err := set(1, "Findings"); err != nil {
			return err
		}
		row++
		for _, finding := range r.Findings {
			if err := set(1, finding); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	return f.SetColWidth(summarySheet, "B", "B", 60)
}

func (r Report) writeAlerts(f *excelize.File) error {
	for col, header := range csvHeader {
		if err := setCell(f, alertsSheet, col+1, 1, header); err != nil {
			return err
		}
	}

	for i, a := range r.Alerts {
		row := i + 2
		cells := []interface{}{
			a.Tick,
			a.CreatedAt.Format(time.RFC3339),
			string(a.Category),
			a.SensorID,
			string(a.Severity),
			a.Confidence,
			a.Value,
			a.Detail,
			a.Recommendation,
		}
		for col, v := range cells {
			if err := setCell(f, alertsSheet, col+1, row, v); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(alertsSheet, "A", "I", 22)
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell coordinates (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("setting cell %s: %w", cell, err)
	}
	return nil
}
