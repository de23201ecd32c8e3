package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

func init() {
	Register(Format{
		Name:       "xlsx",
		Extensions: []string{".xlsx", ".xlsm"},
		Workbook:   true,
		Read:       readWorkbook,
	})
}

// ListSheets returns the worksheet names of an XLSX workbook in tab order.
func ListSheets(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func readWorkbook(ctx context.Context, _ string, data []byte, opts Options) (*Document, error) {
	if len(opts.Sheets) == 0 {
		return nil, ErrNoSheetsSelected
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}

	doc := &Document{}
	for _, name := range opts.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !present[name] {
			doc.Sheets = append(doc.Sheets, Sheet{Name: name, Err: ErrSheetNotFound})
			continue
		}

		rows, cancelled, err := readWorksheet(f, name)
		if err != nil {
			doc.Sheets = append(doc.Sheets, Sheet{Name: name, Err: err})
			continue
		}
		doc.Sheets = append(doc.Sheets, Sheet{Name: name, Rows: rows, Cancelled: cancelled})
	}
	return doc, nil
}

// readWorksheet returns the raw (unformatted) cell text of a sheet plus every
// designator that appears in struck-through text.
func readWorksheet(f *excelize.File, sheet string) (bom.Table, bom.CancellationSet, error) {
	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	rows := make(bom.Table, len(grid))
	cancelled := bom.NewCancellationSet()

	for r, cells := range grid {
		rows[r] = bom.Row(cells)
		for c, value := range cells {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, nil, err
			}
			struck, err := struckText(f, sheet, cell, value)
			if err != nil {
				return nil, nil, fmt.Errorf("sheet %s cell %s: %w", sheet, cell, err)
			}
			for _, d := range bom.FindDesignators(struck) {
				cancelled.Add(d)
			}
		}
	}
	return rows, cancelled, nil
}

// struckText returns the struck-through portion of a cell. Rich text cells
// are inspected run by run; other cells are struck only as a whole.
func struckText(f *excelize.File, sheet, cell, value string) (string, error) {
	runs, err := f.GetCellRichText(sheet, cell)
	if err != nil {
		return "", err
	}

	rich := false
	var sb strings.Builder
	for _, run := range runs {
		if run.Font == nil {
			continue
		}
		rich = true
		if run.Font.Strike && run.Text != "" {
			sb.WriteString(" ")
			sb.WriteString(run.Text)
		}
	}
	if rich {
		return sb.String(), nil
	}

	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return "", err
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		return "", err
	}
	if style != nil && style.Font != nil && style.Font.Strike {
		return value, nil
	}
	return "", nil
}
