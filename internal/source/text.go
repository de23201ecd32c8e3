package source

import (
	"context"
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

func init() {
	Register(Format{
		Name:       "csv",
		Extensions: []string{".csv"},
		Read:       readCSV,
	})
	Register(Format{
		Name:       "txt",
		Extensions: []string{".txt", ".tsv"},
		Read:       readText,
	})
}

// textColumnSeparator splits plain-text exports on tabs or runs of 2+ spaces,
// ideographic spaces included.
var textColumnSeparator = regexp.MustCompile(`\t|[\s\p{Z}]{2,}`)

func readCSV(ctx context.Context, fileName string, data []byte, _ Options) (*Document, error) {
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		rows     bom.Table
		consumed int   // newlines read so far
		offset   int64 // input offset after the previous record
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		// encoding/csv skips empty lines; put them back as empty rows.
		line, _ := r.FieldPos(0)
		for n := consumed + 1; n < line; n++ {
			rows = append(rows, bom.Row{})
		}
		next := r.InputOffset()
		consumed += strings.Count(text[offset:next], "\n")
		offset = next

		rows = append(rows, cleanRow(record))
	}
	if isBlankTable(rows) {
		return nil, ErrNoData
	}

	return singleSheet(fileName, rows), nil
}

func readText(ctx context.Context, fileName string, data []byte, _ Options) (*Document, error) {
	text, _, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	rows := SplitTextLines(text)
	if isBlankTable(rows) {
		return nil, ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return singleSheet(fileName, rows), nil
}

// SplitTextLines splits text into rows of cells. Blank lines become a row
// holding one empty cell.
func SplitTextLines(text string) bom.Table {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}

	var rows bom.Table
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			rows = append(rows, bom.Row{""})
			continue
		}
		rows = append(rows, cleanRow(textColumnSeparator.Split(line, -1)))
	}
	return rows
}

// isBlankTable reports whether rows hold no text at all.
func isBlankTable(rows bom.Table) bool {
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				return false
			}
		}
	}
	return true
}

func singleSheet(fileName string, rows bom.Table) *Document {
	return &Document{
		Sheets: []Sheet{{Name: fileName, Rows: rows}},
	}
}
