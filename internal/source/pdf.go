package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/layout"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"
	"github.com/tsawler/tabula/text"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

func init() {
	Register(Format{
		Name:       "pdf",
		Extensions: []string{".pdf"},
		Read:       readPDF,
	})
}

// cellGapFactor is the horizontal gap, in multiples of the fragment height,
// that separates two table cells on one text line.
const cellGapFactor = 1.0

// pdfTableConfig configures geometric table detection. A designator and a part
// column are enough to make a BOM table.
var pdfTableConfig = tables.Config{
	MinRows:            2,
	MinCols:            2,
	MinConfidence:      0.5,
	UseLines:           true,
	UseWhitespace:      true,
	MaxCellGap:         5.0,
	AlignmentTolerance: 3.0,
}

func readPDF(ctx context.Context, fileName string, data []byte, _ Options) (*Document, error) {
	// tabula reads from a path.
	tmp, err := os.CreateTemp("", "bom-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := tabula.AnalyzeDocument(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("analyze pdf: %w", err)
	}

	detector := tables.NewGeometricDetector()
	if err := detector.Configure(pdfTableConfig); err != nil {
		return nil, err
	}

	var rows bom.Table
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageRows, err := detectTableRows(detector, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
		if len(pageRows) == 0 {
			lines, err := tabula.Open(tmp.Name()).Pages(page.Number).Lines()
			if err != nil {
				return nil, fmt.Errorf("page %d: extract text: %w", page.Number, err)
			}
			pageRows = LinesToRows(lines)
		}
		rows = append(rows, pageRows...)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return singleSheet(fileName, rows), nil
}

// detectTableRows returns the rows of every table the detector finds on page,
// top to bottom. It returns nil when the page has no table.
func detectTableRows(detector tables.Detector, page *model.Page) (bom.Table, error) {
	found, err := detector.Detect(page)
	if err != nil {
		return nil, err
	}

	var rows bom.Table
	for _, t := range found {
		rows = append(rows, TableToRows(t)...)
	}
	return rows, nil
}

// TableToRows converts a detected table into rows. The geometric grid places
// boundaries at both edges of every fragment, which leaves empty spacer rows
// and columns between real cells; those are dropped.
func TableToRows(t *model.Table) bom.Table {
	if t == nil {
		return nil
	}

	var used []bool
	for _, row := range t.Rows {
		for c, cell := range row {
			for len(used) <= c {
				used = append(used, false)
			}
			if strings.TrimSpace(cell.Text) != "" {
				used[c] = true
			}
		}
	}

	var rows bom.Table
	for _, row := range t.Rows {
		var (
			cells []string
			blank = true
		)
		for c, cell := range row {
			if !used[c] {
				continue
			}
			cells = append(cells, cell.Text)
			if strings.TrimSpace(cell.Text) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, cleanRow(cells))
	}
	return rows
}

// LinesToRows turns laid-out PDF text lines into table rows.
func LinesToRows(lines []layout.Line) bom.Table {
	var rows bom.Table
	for _, line := range lines {
		cells := lineCells(line)
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, cleanRow(cells))
	}
	return rows
}

// lineCells splits a line into cells at wide horizontal gaps. Lines without
// positioned fragments fall back to plain-text column splitting.
func lineCells(line layout.Line) []string {
	if len(line.Fragments) == 0 {
		t := strings.TrimSpace(line.Text)
		if t == "" {
			return nil
		}
		return textColumnSeparator.Split(t, -1)
	}

	var (
		cells []string
		cur   strings.Builder
		prev  *text.TextFragment
	)
	for i := range line.Fragments {
		frag := &line.Fragments[i]
		if prev != nil {
			gap := frag.X - (prev.X + prev.Width)
			switch {
			case gap > frag.Height*cellGapFactor:
				cells = append(cells, cur.String())
				cur.Reset()
			case gap > frag.Height*0.1:
				cur.WriteString(" ")
			}
		}
		cur.WriteString(frag.Text)
		prev = frag
	}
	cells = append(cells, cur.String())

	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return cells
		}
	}
	return nil
}
