// Package export renders admin reports as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"travelbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const decisionsSheet = "Decisions"

var decisionHeaders = []string{"Decision ID", "Provider ID", "Action", "Reason", "Decided By", "Decided At (UTC)"}

// WriteDecisions writes an XLSX workbook with one row per decision.
func WriteDecisions(w io.Writer, decisions []*models.ApprovalDecision, since time.Time) error {
	f, err := buildDecisions(decisions, since)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveDecisions stores the workbook under dir and returns the file path.
func SaveDecisions(dir string, decisions []*models.ApprovalDecision, since, now time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := buildDecisions(decisions, since)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(since, now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

// FileName is the download name of a decisions export.
func FileName(since, now time.Time) string {
	return fmt.Sprintf("decisions_%s_to_%s.xlsx", since.Format("2006-01-02"), now.Format("2006-01-02"))
}

func buildDecisions(decisions []*models.ApprovalDecision, since time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(decisionsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// Заголовок периода
	_ = f.SetCellValue(decisionsSheet, "A1", fmt.Sprintf("Decisions since %s", since.UTC().Format("02.01.2006")))
	_ = f.MergeCell(decisionsSheet, "A1", "F1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(decisionsSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	for i, h := range decisionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(decisionsSheet, cell, h)
	}
	_ = f.SetCellStyle(decisionsSheet, "A2", "F2", headerStyle)

	rejected, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "C00000"}})
	for i, d := range decisions {
		row := i + 3
		values := []interface{}{d.ID, d.ProviderID, string(d.Action), d.Reason, d.DecidedBy, d.DecidedAt.UTC().Format("2006-01-02 15:04:05")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(decisionsSheet, cell, v)
		}
		if d.Action == models.ActionReject {
			cell, _ := excelize.CoordinatesToCellName(3, row)
			_ = f.SetCellStyle(decisionsSheet, cell, cell, rejected)
		}
	}

	_ = f.SetColWidth(decisionsSheet, "A", "B", 38)
	_ = f.SetColWidth(decisionsSheet, "C", "C", 10)
	_ = f.SetColWidth(decisionsSheet, "D", "D", 40)
	_ = f.SetColWidth(decisionsSheet, "E", "F", 22)
	return f, nil
}
