package bom

// Row is an ordered sequence of cell text. An empty string is a blank cell.
type Row []string

// Table is an ordered sequence of rows as produced by a format reader.
type Table []Row

// NamedTable pairs a table with the name of its source (sheet name, file name).
type NamedTable struct {
	Name      string
	Rows      Table
	Cancelled CancellationSet
}

// Role identifies what a column holds.
type Role string

const (
	RoleDesignator   Role = "ref"
	RolePart         Role = "part"
	RoleManufacturer Role = "mfg"
)

// roleOrder is the order in which roles are assigned during header detection.
var roleOrder = []Role{RoleDesignator, RolePart, RoleManufacturer}

// ColumnMap maps a role to its column index. A column serves at most one role.
type ColumnMap map[Role]int

// Cell returns the trimmed text of the role's column in row, or "" when the
// role is unmapped or the row is too short.
func (m ColumnMap) Cell(row Row, role Role) string {
	idx, ok := m[role]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return trimCell(row[idx])
}

// CancellationSet holds designators struck through in the source document.
type CancellationSet map[string]struct{}

// NewCancellationSet builds a set from the given designators.
func NewCancellationSet(designators ...string) CancellationSet {
	set := make(CancellationSet, len(designators))
	for _, d := range designators {
		set[d] = struct{}{}
	}
	return set
}

// Add inserts a designator.
func (c CancellationSet) Add(designator string) {
	c[designator] = struct{}{}
}

// Contains reports whether designator was cancelled. A nil set contains nothing.
func (c CancellationSet) Contains(designator string) bool {
	_, ok := c[designator]
	return ok
}

// ComponentRecord is one designator using one part line.
type ComponentRecord struct {
	Designator   string `json:"ref"`
	Part         string `json:"part"`
	Manufacturer string `json:"mfg"`
}

// Entry is an aggregated BOM line: every designator that uses a part from a
// given manufacturer.
type Entry struct {
	Designators  []string `json:"-"`
	Display      string   `json:"ref"`
	Part         string   `json:"part"`
	Manufacturer string   `json:"mfg"`
}

// TableResult is the outcome of processing one named table. Exactly one of
// Entries and Err is meaningful.
type TableResult struct {
	Name    string
	Entries []Entry
	Records []ComponentRecord
	Err     error
}

// OK reports whether the table was processed successfully.
func (r TableResult) OK() bool {
	return r.Err == nil
}

// Result is the outcome of processing one or more tables.
type Result struct {
	// Combined aggregates the flat records of every successful table.
	Combined []Entry
	// Individual holds one result per table, in input order.
	Individual []TableResult
}
