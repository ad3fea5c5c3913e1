package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header plus rows of cell text, in file order. Rows may be
// shorter than the header; missing cells read as empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Cell returns the value at row i, column col, or "" when out of range.
func (t Table) Cell(i, col int) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	return valueAt(t.Rows[i], col)
}

// Index returns the position of the column with exactly this name, or -1.
func (t Table) Index(name string) int {
	for i, col := range t.Header {
		if col == name {
			return i
		}
	}
	return -1
}

// WithColumn returns a copy of t with the named column set to values. An
// existing column of that name is overwritten, otherwise it is appended.
// values shorter than the table leave the remaining cells empty.
func (t Table) WithColumn(name string, values []string) Table {
	header := append([]string(nil), t.Header...)
	col := t.Index(name)
	if col < 0 {
		col = len(header)
		header = append(header, name)
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		width := max(len(row), col+1)
		out := make([]string, width)
		copy(out, row)
		out[col] = valueAt(values, i)
		rows[i] = out
	}
	return Table{Header: header, Rows: rows}
}

// Load reads a spreadsheet. The format follows the extension: .xlsx and
// .xlsm through excelize (first sheet), .csv through encoding/csv.
func Load(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return Table{}, errors.New("input path is required")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	case ".csv":
		return loadCSV(path)
	default:
		return Table{}, fmt.Errorf("load %q: unsupported extension %q", path, ext)
	}
}

// Save writes t to path, choosing the format by extension like Load. The
// file is rewritten in full.
func Save(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir for %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return saveXLSX(path, t)
	case ".csv":
		return saveCSV(path, t)
	default:
		return fmt.Errorf("save %q: unsupported extension %q", path, ext)
	}
}

func loadXLSX(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Table{}, fmt.Errorf("read %q: workbook has no sheets", path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("read %q sheet %q: %w", path, sheet, err)
	}
	return fromRecords(path, rows)
}

func loadCSV(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := make([][]string, 0, 1024)
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Table{}, fmt.Errorf("read %q row %d: %w", path, len(records)+1, err)
		}
		records = append(records, record)
	}
	return fromRecords(path, records)
}

func fromRecords(path string, records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("read %q: empty sheet", path)
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = cleanHeader(col)
	}
	return Table{Header: header, Rows: records[1:]}, nil
}

func saveXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream %q: %w", path, err)
	}

	write := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return sw.SetRow(cell, row)
	}

	if err := write(1, t.Header); err != nil {
		return fmt.Errorf("write %q header: %w", path, err)
	}
	for i, row := range t.Rows {
		if err := write(i+2, row); err != nil {
			return fmt.Errorf("write %q row %d: %w", path, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %q: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}

func saveCSV(path string, t Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("write %q header: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %q rows: %w", path, err)
	}
	return file.Close()
}

func valueAt(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}

func cleanHeader(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
