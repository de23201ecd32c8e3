package templates

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/store"
)

func TestErrorAlert_Escapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("<b>bad</b>", "Try again", "FILE006").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Contains(out, "<b>bad</b>") {
		t.Errorf("message not escaped: %s", out)
	}
	if !strings.Contains(out, "&lt;b&gt;bad&lt;/b&gt;") || !strings.Contains(out, "FILE006") {
		t.Errorf("output = %s", out)
	}
}

func TestLayout_RendersChildren(t *testing.T) {
	var buf bytes.Buffer
	ctx := templ.WithChildren(context.Background(), ErrorAlert("boom", "", ""))
	if err := Layout("A & B").Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>A &amp; B</title>") {
		t.Errorf("title not escaped: %s", out)
	}
	if !strings.Contains(out, `<body><div class="alert" role="alert"><strong>boom</strong></div></body>`) {
		t.Errorf("children not rendered in body: %s", out)
	}
}

func TestExportURL(t *testing.T) {
	tests := []struct {
		runID, format, want string
	}{
		{"abc", "csv", "/api/runs/abc/export?format=csv"},
		{"a/b", "xlsx", "/api/runs/a%2Fb/export?format=xlsx"},
		{"x", "c&d", "/api/runs/x/export?format=c%26d"},
	}
	for _, tt := range tests {
		if got := exportURL(tt.runID, tt.format); got != tt.want {
			t.Errorf("exportURL(%q, %q) = %q, want %q", tt.runID, tt.format, got, tt.want)
		}
	}
}

func TestIndex(t *testing.T) {
	id := uuid.New()
	var buf bytes.Buffer
	err := Index(IndexParams{
		Extensions:     []string{".csv", ".xlsx"},
		MaxFileSize:    32 << 20,
		HistoryEnabled: true,
		Runs:           []store.RunSummary{{ID: id, FileName: "board.xlsx", Format: "xlsx", EntryCount: 7, CreatedAt: time.Now()}},
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"<!DOCTYPE html>", ".csv, .xlsx", "max 32 MB", "board.xlsx", "/api/runs/" + id.String() + "/export?format=csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("Index output missing %q", want)
		}
	}
}

func TestSheetPicker(t *testing.T) {
	var buf bytes.Buffer
	if err := SheetPicker([]string{"Main", `A"B`}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `value="Main"`) || !strings.Contains(out, `value="A&#34;B"`) {
		t.Errorf("output = %s", out)
	}

	buf.Reset()
	if err := SheetPicker(nil).Render(context.Background(), &buf); err != nil || buf.Len() != 0 {
		t.Errorf("empty picker = %q, %v", buf.String(), err)
	}
}

func TestResult(t *testing.T) {
	var buf bytes.Buffer
	err := Result(ResultParams{
		FileName: "board.xlsx",
		Combined: []bom.Entry{{Display: "R1, R2", Part: "MCR03", Manufacturer: "Rohm"}},
		Sheets: []SheetView{
			{Name: "Main", Entries: []bom.Entry{{Display: "R1", Part: "MCR03"}}},
			{Name: "Notes", Error: "header not found"},
		},
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "<td>R1, R2</td>") || !strings.Contains(out, "header not found") {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "/export") {
		t.Error("export links rendered without a run id")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRender_PropagatesWriteError(t *testing.T) {
	if err := EntryTable(nil).Render(context.Background(), failWriter{}); err == nil {
		t.Error("expected write error")
	}
}
