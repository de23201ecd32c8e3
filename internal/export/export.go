// Package export writes aggregated BOMs as XLSX workbooks or CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

// ErrUnsupportedFormat is returned by ParseFormat for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a query value to a Format. Empty selects XLSX.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension returns the file extension of f, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Sheet is one named list of entries.
type Sheet struct {
	Name    string
	Entries []bom.Entry
}

// Columns of every exported table.
var header = []string{"Ref", "Part", "Manufacturer", "Qty"}

var columnWidths = []float64{40, 28, 20, 8}

// Write renders sheets in format f. CSV output holds only the first sheet.
func Write(w io.Writer, f Format, sheets []Sheet) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, sheets)
	case FormatCSV:
		var entries []bom.Entry
		if len(sheets) > 0 {
			entries = sheets[0].Entries
		}
		return WriteCSV(w, entries)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteXLSX writes one worksheet per sheet, in order.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(sheets) == 0 {
		sheets = []Sheet{{Name: "BOM"}}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	used := make(map[string]bool)
	for i, sheet := range sheets {
		name := uniqueSheetName(sanitizeSheetName(sheet.Name), used)

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: add sheet %s: %w", name, err)
		}

		if err := writeSheet(f, name, headerStyle, sheet.Entries); err != nil {
			return fmt.Errorf("export: sheet %s: %w", name, err)
		}
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, name string, headerStyle int, entries []bom.Entry) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	for i, width := range columnWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = excelize.Cell{Value: h, StyleID: headerStyle}
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return err
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []any{e.Display, e.Part, e.Manufacturer, Quantity(e)}); err != nil {
			return err
		}
	}

	return sw.Flush()
}

// WriteCSV writes entries with a header row. A UTF-8 BOM is emitted first so
// spreadsheet tools open Japanese text correctly.
func WriteCSV(w io.Writer, entries []bom.Entry) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Display, e.Part, e.Manufacturer, strconv.Itoa(Quantity(e))}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Quantity is the number of designators in an entry. Entries loaded from run
// history only carry the joined display string, which is counted instead.
func Quantity(e bom.Entry) int {
	if len(e.Designators) > 0 {
		return len(e.Designators)
	}
	if strings.TrimSpace(e.Display) == "" {
		return 0
	}
	return len(strings.Split(e.Display, bom.DisplaySeparator))
}

const maxSheetNameLen = 31

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// sanitizeSheetName makes name acceptable to Excel.
func sanitizeSheetName(name string) string {
	name = strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(name)), "'")
	if name == "" {
		name = "BOM"
	}
	if r := []rune(name); len(r) > maxSheetNameLen {
		name = string(r[:maxSheetNameLen])
	}
	return name
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(name)
		if len(r)+len([]rune(suffix)) > maxSheetNameLen {
			r = r[:maxSheetNameLen-len([]rune(suffix))]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
