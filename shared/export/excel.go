// Package export renders availability grids as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetLimit = 31

// DayAvailability is one row of the grid: the free starts of a single date.
type DayAvailability struct {
	Date   time.Time
	Closed bool
	Slots  []string
}

// Workbook is an availability grid: one row per date, one column per start time.
type Workbook struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *Workbook) AddSheet(name string) error {
	if len(name) > sheetLimit {
		name = name[:sheetLimit]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteAvailability writes a header of every start time seen in days and one
// row per day marking free starts. Closed days are labelled instead.
func (w *Workbook) WriteAvailability(days []DayAvailability) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	columns := slotColumns(days)
	header := make([]any, 0, len(columns)+1)
	header = append(header, "Date")
	for _, c := range columns {
		header = append(header, c)
	}
	if err := w.writeRow(header); err != nil {
		return err
	}
	w.boldRow(w.currentRow-1, len(header))

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i + 1
	}

	for _, day := range days {
		row := make([]any, len(columns)+1)
		row[0] = day.Date.Format("2006-01-02 Mon")
		if day.Closed {
			if len(row) > 1 {
				row[1] = "closed"
			}
		} else {
			for _, s := range day.Slots {
				row[index[s]] = "free"
			}
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) writeRow(row []any) error {
	for i, val := range row {
		if val == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

func (w *Workbook) boldRow(row, width int) {
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(width, row)
	_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
}

// Save writes the workbook to wr.
func (w *Workbook) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// slotColumns returns the union of all start times, ordered.
func slotColumns(days []DayAvailability) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range days {
		for _, s := range d.Slots {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	// "HH:MM" strings sort chronologically.
	sort.Strings(out)
	return out
}
