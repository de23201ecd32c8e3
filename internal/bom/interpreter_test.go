package bom

import (
	"reflect"
	"testing"
)

var testColumns = ColumnMap{RoleDesignator: 0, RolePart: 1, RoleManufacturer: 2}

func recs(part, mfg string, designators ...string) []ComponentRecord {
	out := make([]ComponentRecord, 0, len(designators))
	for _, d := range designators {
		out = append(out, ComponentRecord{Designator: d, Part: part, Manufacturer: mfg})
	}
	return out
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name      string
		table     Table
		cancelled CancellationSet
		want      []ComponentRecord
	}{
		{
			name: "range with inferred manufacturer",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C1-C3", "GRM188R71H104KA93D", ""},
			},
			want: recs("GRM188R71H104KA93D", "Murata", "C1", "C2", "C3"),
		},
		{
			name: "explicit manufacturer wins over inference",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C1", "GRM188", "Kyocera"},
			},
			want: recs("GRM188", "Kyocera", "C1"),
		},
		{
			name: "unknown part leaves manufacturer blank",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"U1", "XYZ123", ""},
			},
			want: recs("XYZ123", "", "U1"),
		},
		{
			name: "part continuation with new designator",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C1", "GRM188R71", "Murata"},
				{"C7", "↑", "↑"},
			},
			want: append(recs("GRM188R71", "Murata", "C1"), recs("GRM188R71", "Murata", "C7")...),
		},
		{
			name: "quote mark continuation",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1", "MCR03", ""},
				{"R2", `"`, ""},
			},
			want: append(recs("MCR03", "Rohm", "R1"), recs("MCR03", "Rohm", "R2")...),
		},
		{
			name: "continuation row without designator inherits set",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1, R2", "MCR03", "Rohm"},
				{"", "上↑", "Panasonic"},
			},
			want: append(recs("MCR03", "Rohm", "R1", "R2"), recs("MCR03", "Panasonic", "R1", "R2")...),
		},
		{
			name: "manufacturer-only continuation inherits set",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1", "MCR03", "Rohm"},
				{"", "ERJ3", "↑"},
			},
			want: append(recs("MCR03", "Rohm", "R1"), recs("ERJ3", "Rohm", "R1")...),
		},
		{
			name: "new part without designator resets set",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1", "MCR03", "Rohm"},
				{"", "ERJ3", "Panasonic"},
				{"", "↑", ""},
			},
			want: recs("MCR03", "Rohm", "R1"),
		},
		{
			name: "multi-line part cell cross product",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C1 C2", "GRM188 0.1uF\nCGA3E2 alt", ""},
			},
			want: append(recs("GRM188", "Murata", "C1", "C2"), recs("CGA3E2", "TDK", "C1", "C2")...),
		},
		{
			name: "cancelled designators dropped",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C1-C3", "GRM188", ""},
			},
			cancelled: NewCancellationSet("C2"),
			want:      recs("GRM188", "Murata", "C1", "C3"),
		},
		{
			name: "all designators cancelled contributes nothing",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"C2", "GRM188", ""},
			},
			cancelled: NewCancellationSet("C2"),
			want:      nil,
		},
		{
			name: "blank and short rows",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"", " ", ""},
				{"R9"},
				{"R1", "MCR03"},
			},
			want: recs("MCR03", "Rohm", "R1"),
		},
		{
			name: "empty rows keep continuation",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1", "MCR03", ""},
				{},
				{""},
				{"R2", "↑", ""},
			},
			want: recs("MCR03", "Rohm", "R1", "R2"),
		},
		{
			name: "designator cell of only words yields empty set",
			table: Table{
				{"Ref", "Part", "Maker"},
				{"R1", "MCR03", ""},
				{"N.C.", "↑", ""},
			},
			want: recs("MCR03", "Rohm", "R1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpret(tt.table, testColumns, 0, tt.cancelled, DefaultInferer)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Interpret() =\n  %v\nwant\n  %v", got, tt.want)
			}
		})
	}
}

func TestInterpreter_State(t *testing.T) {
	in := NewInterpreter(testColumns, nil, nil)

	in.Row(Row{"R1-R2", "MCR03", "Rohm"})
	s := in.State()
	if s.LastPart != "MCR03" || s.LastManufacturer != "Rohm" {
		t.Errorf("state = %+v", s)
	}
	if !reflect.DeepEqual(s.Designators, []string{"R1", "R2"}) {
		t.Errorf("Designators = %v", s.Designators)
	}

	// Mutating the copy must not leak into the interpreter.
	s.Designators[0] = "X1"
	if in.State().Designators[0] != "R1" {
		t.Error("State() returned shared slice")
	}
}

func TestInterpreter_NilInferer(t *testing.T) {
	in := NewInterpreter(testColumns, nil, nil)
	got := in.Row(Row{"C1", "GRM188", ""})
	if len(got) != 1 || got[0].Manufacturer != "" {
		t.Errorf("Row() = %v, want one record with blank manufacturer", got)
	}
}

func TestInterpret_HeaderAtEnd(t *testing.T) {
	table := Table{{"Ref", "Part"}}
	if got := Interpret(table, testColumns, 0, nil, nil); got != nil {
		t.Errorf("Interpret() = %v, want nil", got)
	}
}
