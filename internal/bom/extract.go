package bom

// Options configures extraction. The zero value uses DefaultKeywords and
// DefaultInferer.
type Options struct {
	Keywords Keywords
	Inferer  Inferer
}

func (o Options) keywords() Keywords {
	if len(o.Keywords) == 0 {
		return DefaultKeywords
	}
	return o.Keywords
}

func (o Options) inferer() Inferer {
	if o.Inferer == nil {
		return DefaultInferer
	}
	return o.Inferer
}

// Extract detects the header of table and interprets its data rows. The only
// error it returns is a *HeaderNotFoundError.
func Extract(table Table, cancelled CancellationSet, opts Options) ([]ComponentRecord, error) {
	columns, headerRow, err := DetectHeader(table, opts.keywords())
	if err != nil {
		return nil, err
	}
	return Interpret(table, columns, headerRow, cancelled, opts.inferer()), nil
}

// ExtractTable runs Extract on a named table and aggregates its own records.
func ExtractTable(t NamedTable, opts Options) TableResult {
	records, err := Extract(t.Rows, t.Cancelled, opts)
	if err != nil {
		return TableResult{Name: t.Name, Err: err}
	}
	return TableResult{
		Name:    t.Name,
		Records: records,
		Entries: Aggregate(records),
	}
}

// Combine merges per-table results. Flat records of successful tables are
// concatenated in input order and aggregated once, so a part used on two
// sheets becomes a single combined entry.
func Combine(results []TableResult) Result {
	var all []ComponentRecord
	for _, r := range results {
		if r.OK() {
			all = append(all, r.Records...)
		}
	}
	return Result{
		Combined:   Aggregate(all),
		Individual: results,
	}
}

// Process extracts every table independently and combines the results. A
// table whose header cannot be found is reported in Individual without
// affecting the others.
func Process(tables []NamedTable, opts Options) Result {
	results := make([]TableResult, len(tables))
	for i, t := range tables {
		results[i] = ExtractTable(t, opts)
	}
	return Combine(results)
}
