package bom

import "strings"

// continuationMarkers are cell values meaning "same as the row above".
var continuationMarkers = map[string]bool{
	"上↑": true,
	"↑":  true,
	`"`:  true,
	"〃":  true,
}

// IsContinuation reports whether cell is a continuation marker.
func IsContinuation(cell string) bool {
	return continuationMarkers[cell]
}

// ContinuationState is the state carried from one data row to the next within
// a single table traversal. It is never shared between tables.
type ContinuationState struct {
	LastPart         string
	LastManufacturer string
	Designators      []string
}

// Interpreter walks the data rows of one table.
type Interpreter struct {
	columns   ColumnMap
	cancelled CancellationSet
	inferer   Inferer
	state     ContinuationState
}

// NewInterpreter creates an interpreter with a fresh ContinuationState.
// inferer may be nil, in which case blank manufacturers stay blank.
func NewInterpreter(columns ColumnMap, cancelled CancellationSet, inferer Inferer) *Interpreter {
	return &Interpreter{
		columns:   columns,
		cancelled: cancelled,
		inferer:   inferer,
	}
}

// State returns a copy of the current continuation state.
func (in *Interpreter) State() ContinuationState {
	s := in.state
	s.Designators = append([]string(nil), in.state.Designators...)
	return s
}

// Row interprets one data row and returns the records it contributes.
func (in *Interpreter) Row(row Row) []ComponentRecord {
	if isBlankRow(row) {
		return nil
	}

	rawRef := in.columns.Cell(row, RoleDesignator)
	part := in.columns.Cell(row, RolePart)
	mfg := in.columns.Cell(row, RoleManufacturer)

	partCont := IsContinuation(part)
	if partCont {
		part = in.state.LastPart
	} else if part != "" {
		in.state.LastPart = part
	}

	mfgCont := IsContinuation(mfg)
	if mfgCont {
		mfg = in.state.LastManufacturer
	} else if mfg != "" {
		in.state.LastManufacturer = mfg
	}

	if cleaned := CleanDesignatorCell(rawRef); cleaned != "" {
		var set []string
		for _, tok := range SplitDesignators(cleaned) {
			set = append(set, ExpandDesignator(tok, in.cancelled)...)
		}
		in.state.Designators = set
	} else if !partCont && !mfgCont {
		// A new component without designators must not inherit the previous set.
		in.state.Designators = nil
	}

	lines := partLines(part)
	if len(lines) == 0 || len(in.state.Designators) == 0 {
		return nil
	}

	records := make([]ComponentRecord, 0, len(lines)*len(in.state.Designators))
	for _, line := range lines {
		partValue := strings.Fields(line)[0]
		m := mfg
		if m == "" && in.inferer != nil {
			m, _ = in.inferer.Infer(partValue)
		}
		for _, d := range in.state.Designators {
			records = append(records, ComponentRecord{
				Designator:   d,
				Part:         partValue,
				Manufacturer: m,
			})
		}
	}
	return records
}

// Interpret walks the rows following headerRow and returns the flat records.
func Interpret(table Table, columns ColumnMap, headerRow int, cancelled CancellationSet, inferer Inferer) []ComponentRecord {
	start := headerRow + 1
	if start < 0 {
		start = 0
	}
	if start >= len(table) {
		return nil
	}

	in := NewInterpreter(columns, cancelled, inferer)
	var records []ComponentRecord
	for _, row := range table[start:] {
		records = append(records, in.Row(row)...)
	}
	return records
}

// partLines splits a part cell into its non-empty, trimmed lines.
func partLines(part string) []string {
	var lines []string
	for _, l := range strings.Split(part, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isBlankRow(row Row) bool {
	for _, c := range row {
		if trimCell(c) != "" {
			return false
		}
	}
	return true
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}
