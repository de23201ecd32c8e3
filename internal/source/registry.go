// Package source turns uploaded files into tables of cell text.
//
// Each supported format registers itself at init time with [Register]. A
// format reader only decodes its container; all BOM interpretation happens in
// package bom.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

var (
	// ErrUnsupportedFormat is returned for files whose extension has no reader.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoSheetsSelected is returned when a workbook is read without sheets.
	ErrNoSheetsSelected = errors.New("no sheets selected")

	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("empty file")

	// ErrNoData is returned when a file decodes to no rows at all.
	ErrNoData = errors.New("no data extracted from file")

	// ErrSheetNotFound marks a requested sheet that the workbook lacks.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Sheet is one table read from a file.
type Sheet struct {
	Name      string
	Rows      bom.Table
	Cancelled bom.CancellationSet
	Err       error // non-nil when the sheet could not be read
}

// Table converts the sheet for the BOM engine.
func (s Sheet) Table() bom.NamedTable {
	return bom.NamedTable{Name: s.Name, Rows: s.Rows, Cancelled: s.Cancelled}
}

// Document is the result of reading one file.
type Document struct {
	FileName string
	Format   string
	// Workbook is true for formats that carry several named sheets. Results
	// for workbooks are reported per sheet as well as combined.
	Workbook bool
	Sheets   []Sheet
}

// Options controls reading.
type Options struct {
	// Sheets selects worksheets by name. Workbook formats require at least one.
	Sheets []string
}

// ReadFunc decodes file data into a document.
type ReadFunc func(ctx context.Context, fileName string, data []byte, opts Options) (*Document, error)

// Format describes a registered file format.
type Format struct {
	Name       string   // "csv", "xlsx", ...
	Extensions []string // lowercase, with dot
	Workbook   bool
	Read       ReadFunc
}

var (
	registry   = make(map[string]Format) // keyed by extension
	registryMu sync.RWMutex
)

// Register adds a format. Panics if an extension is already registered.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, ext := range f.Extensions {
		ext = strings.ToLower(ext)
		if existing, ok := registry[ext]; ok {
			panic(fmt.Sprintf("extension %s already registered by %s", ext, existing.Name))
		}
		registry[ext] = f
	}
}

// ForFile returns the format for fileName based on its extension.
func ForFile(fileName string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[strings.ToLower(filepath.Ext(fileName))]
	return f, ok
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Read decodes data using the format registered for fileName.
func Read(ctx context.Context, fileName string, data []byte, opts Options) (*Document, error) {
	f, ok := ForFile(fileName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := f.Read(ctx, fileName, data, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	doc.FileName = fileName
	doc.Format = f.Name
	doc.Workbook = f.Workbook
	return doc, nil
}

// cleanCell trims whitespace and stray quotes/commas left by exporters.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, ",")
	return strings.TrimSpace(s)
}

func cleanRow(cells []string) bom.Row {
	row := make(bom.Row, len(cells))
	for i, c := range cells {
		row[i] = cleanCell(c)
	}
	return row
}
