// Package export writes report tables to spreadsheets and service records to
// printable documents.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"recordcore/internal/core"
)

const (
	defaultSheet   = "Sheet1"
	maxSheetName   = 31
	defaultColumnW = 18
)

// SpreadsheetWriter writes core tables to .xlsx workbooks with one sheet per
// table. It satisfies core.SpreadsheetWriter.
type SpreadsheetWriter struct {
	columnWidth float64
}

// NewSpreadsheetWriter returns a writer with the default column width.
func NewSpreadsheetWriter() *SpreadsheetWriter {
	return &SpreadsheetWriter{columnWidth: defaultColumnW}
}

// WriteTable saves table to path. The header row is bold and the sheet is
// named after the table title.
func (w *SpreadsheetWriter) WriteTable(path string, table core.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := SheetName(table.Title)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}
	if err := setRow(f, sheet, 1, table.Headers); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if n := len(table.Headers); n > 0 {
		last, err := excelize.CoordinatesToCellName(n, 1)
		if err != nil {
			return err
		}
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		lastCol, err := excelize.ColumnNumberToName(n)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", lastCol, w.columnWidth); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

// SheetName turns a table title into a valid worksheet name.
func SheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "'")
	if name == "" {
		return defaultSheet
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
