package report

import (
	"fmt"
	"strings"

	"chart-revisor/internal/service"

	"github.com/xuri/excelize/v2"
)

var stagedHeader = []string{"Chart ID", "Revision ID", "Warnings"}
var skippedHeader = []string{"Chart ID", "Reason"}
var conflictHeader = []string{"Chart ID", "Conflicting Revision IDs"}

// GenerateRunReport renders a run's three outcome buckets as an Excel
// workbook, one sheet per bucket, for operator triage.
func GenerateRunReport(rep *service.RunReport) ([]byte, error) {
	f := excelize.NewFile()
	// Note: don't defer Close() here, WriteToBuffer needs the file open

	if err := writeSheet(f, "Staged", stagedHeader, stagedRows(rep)); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, "Skipped", skippedHeader, skippedRows(rep)); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, "Conflicts", conflictHeader, conflictRows(rep)); err != nil {
		f.Close()
		return nil, err
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Staged"); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	f.Close()
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, title); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func stagedRows(rep *service.RunReport) [][]any {
	rows := make([][]any, 0, len(rep.Staged))
	for _, s := range rep.Staged {
		rows = append(rows, []any{s.ChartID, s.RevisionID, strings.Join(s.Warnings, "; ")})
	}
	return rows
}

func skippedRows(rep *service.RunReport) [][]any {
	rows := make([][]any, 0, len(rep.Skipped))
	for _, s := range rep.Skipped {
		rows = append(rows, []any{s.ChartID, s.Reason})
	}
	return rows
}

func conflictRows(rep *service.RunReport) [][]any {
	rows := make([][]any, 0, len(rep.Conflicts))
	for _, c := range rep.Conflicts {
		ids := make([]string, len(c.RevisionIDs))
		for i, id := range c.RevisionIDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		rows = append(rows, []any{c.ChartID, strings.Join(ids, ", ")})
	}
	return rows
}
