// Package export writes planner boards to spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"truckplan/internal/planner"
)

// Writer builds an xlsx workbook one sheet at a time.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewWriter creates a new Excel writer.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *Writer) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *Writer) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *Writer) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
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

// Save writes the workbook to wr.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the workbook to disk.
func (w *Writer) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}

var scheduleColumns = []string{"Driver", "Kind", "Label", "Start", "End", "Start time", "End time", "Lane", "Description"}

// WriteBoard renders the board as a schedule sheet and a grid sheet.
func WriteBoard(wr io.Writer, b *planner.Board) error {
	w := NewWriter()
	defer w.Close()

	if err := writeSchedule(w, b); err != nil {
		return err
	}
	if err := writeGrid(w, b); err != nil {
		return err
	}
	return w.Save(wr)
}

func writeSchedule(w *Writer, b *planner.Board) error {
	if err := w.AddSheet(fmt.Sprintf("Schedule %s", b.Start)); err != nil {
		return err
	}
	if err := w.WriteHeader(scheduleColumns); err != nil {
		return err
	}
	for _, r := range b.Rows {
		for _, blocks := range [][]planner.Block{r.Events, r.Truckloads} {
			for _, blk := range blocks {
				if err := w.WriteRow([]any{
					r.Driver.FullName, blk.Kind, blk.Label, blk.StartDate, blk.EndDate,
					blk.StartTime, blk.EndTime, blk.Lane, blk.Description,
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// writeGrid marks each day a driver is busy with the item label, one
// column per visible day.
func writeGrid(w *Writer, b *planner.Board) error {
	if err := w.AddSheet("Grid"); err != nil {
		return err
	}
	header := []string{"Driver"}
	for _, d := range b.Days {
		header = append(header, d.Date)
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}

	for _, r := range b.Rows {
		row := make([]any, len(b.Days)+1)
		row[0] = r.Driver.FullName
		for i, d := range b.Days {
			row[i+1] = busyLabel(r, d.Date)
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func busyLabel(r planner.Row, date string) string {
	for _, blk := range r.Events {
		if blk.StartDate <= date && blk.EndDate >= date {
			return blk.Label
		}
	}
	for _, blk := range r.Truckloads {
		if blk.StartDate <= date && blk.EndDate >= date {
			return fmt.Sprintf("#%d %s", blk.ID, blk.Label)
		}
	}
	return ""
}
