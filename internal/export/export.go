// Package export projects the late-event log into a spreadsheet and reads
// roster workbooks back in. Both directions are pure projections: nothing in
// the maintained set is mutated by exporting or importing.
package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"gatelog/internal/event"
)

const sheetName = "Latecomers"

// Header is the export column layout. The first three columns deliberately
// match the roster import aliases so an exported sheet re-imports cleanly.
var Header = []string{
	"Student Name",
	"Student ID",
	"Class",
	"Arrival Time",
	"Date",
	"Status",
	"Verified",
}

// Filename names the artifact after the current calendar date.
func Filename(now time.Time) string {
	return fmt.Sprintf("latecomers_%s.xlsx", now.Format("2006-01-02"))
}

// Workbook renders the event list as an .xlsx workbook.
func Workbook(events []event.Event) ([]byte, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, h := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
	}

	for i, ev := range events {
		row := []any{
			ev.Name,
			ev.SubjectID,
			ev.GroupLabel,
			ev.ObservedAt,
			ev.ObservedDate,
			statusLabel(ev.Classification),
			verifiedLabel(ev.Verified),
		}
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadRows returns the raw rows of the first sheet of an uploaded workbook,
// header included, for the roster importer.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

func statusLabel(c event.Classification) string {
	if c == event.Late {
		return "Late"
	}
	return "On Time"
}

func verifiedLabel(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
