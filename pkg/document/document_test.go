package document

import (
	"strings"
	"testing"

	"github.com/traceviz/traceviz/pkg/trace"
)

func testProcessor(t *testing.T) *Processor {
	t.Helper()
	reg, err := trace.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	decls := []trace.Entity{
		{Tag: "REQ-1", Title: "First requirement", Attrs: map[string]string{"category": "req", "children": "TEST-1"}},
		{Tag: "TEST-1", Title: "A test", Attrs: map[string]string{"category": "test"}},
	}
	for i := range decls {
		if err := reg.Add(&decls[i]); err != nil {
			t.Fatal(err)
		}
	}
	reg.Link()
	return NewProcessor(reg, nil)
}

func TestGraph(t *testing.T) {
	p := testProcessor(t)
	res := p.Graph(GraphRequest{Tags: []string{"REQ-1"}, Caption: "Requirement tree"})

	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Diagnostics)
	}
	if res.Caption != "Requirement tree" {
		t.Errorf("caption = %q", res.Caption)
	}
	if res.Entities != 2 || res.Edges != 1 {
		t.Errorf("entities/edges = %d/%d, want 2/1", res.Entities, res.Edges)
	}
	if !strings.Contains(res.DOT, `"TEST-1" -> "REQ-1"`) {
		t.Errorf("DOT missing canonical edge:\n%s", res.DOT)
	}
}

func TestGraph_UnknownTagWarns(t *testing.T) {
	p := testProcessor(t)
	res := p.Graph(GraphRequest{Doc: "spec.txt", Line: 12, Tags: []string{"REQ-1", "MISSING"}})

	if res.Failed {
		t.Fatal("one valid tag should still produce a diagram")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want one warning", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Severity != SeverityWarning {
		t.Errorf("severity = %q, want warning", d.Severity)
	}
	if !strings.Contains(d.Message, `"MISSING"`) {
		t.Errorf("message should name the tag: %q", d.Message)
	}
	if d.Doc != "spec.txt" || d.Line != 12 {
		t.Errorf("location = %s:%d, want spec.txt:12", d.Doc, d.Line)
	}
}

func TestGraph_EmptyStartSetFails(t *testing.T) {
	p := testProcessor(t)

	tests := []struct {
		name string
		tags []string
	}{
		{"NoTags", nil},
		{"AllUnknown", []string{"NOPE-1", "NOPE-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Graph(GraphRequest{Tags: tt.tags})
			if !res.Failed {
				t.Fatal("empty start set must fail the directive")
			}
			if res.DOT != "" {
				t.Error("failed directive must not emit DOT")
			}
			last := res.Diagnostics[len(res.Diagnostics)-1]
			if last.Severity != SeverityError {
				t.Errorf("severity = %q, want error", last.Severity)
			}
		})
	}
}

func TestGraph_BadRelationshipsFails(t *testing.T) {
	p := testProcessor(t)
	res := p.Graph(GraphRequest{Doc: "spec.txt", Line: 3, Tags: []string{"REQ-1"}, Relationships: "children:x"})

	if !res.Failed {
		t.Fatal("malformed relationship spec must fail the directive")
	}
	d := res.Diagnostics[0]
	if d.Severity != SeverityError {
		t.Errorf("severity = %q, want error", d.Severity)
	}
	// The diagnostic carries the spec text verbatim.
	if !strings.Contains(d.Message, `"children:x"`) {
		t.Errorf("message should quote the spec: %q", d.Message)
	}
	if d.Line != 3 {
		t.Errorf("line = %d, want 3", d.Line)
	}
}

func TestGraph_TagWarningsSurviveSpecErrors(t *testing.T) {
	p := testProcessor(t)
	res := p.Graph(GraphRequest{
		Tags:          []string{"REQ-1", "MISSING"},
		Relationships: "children:x",
	})

	if !res.Failed {
		t.Fatal("malformed relationship spec must fail the directive")
	}
	if len(res.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v, want tag warning plus spec error", res.Diagnostics)
	}
	// Tags are resolved before the spec is parsed, so the per-tag warning
	// comes first and is not swallowed by the spec error.
	if d := res.Diagnostics[0]; d.Severity != SeverityWarning || !strings.Contains(d.Message, `"MISSING"`) {
		t.Errorf("first diagnostic = %+v, want warning naming the tag", d)
	}
	if d := res.Diagnostics[1]; d.Severity != SeverityError || !strings.Contains(d.Message, `"children:x"`) {
		t.Errorf("second diagnostic = %+v, want error quoting the spec", d)
	}
}

func TestList(t *testing.T) {
	p := testProcessor(t)
	res := p.List(ListRequest{Filter: `category == "req"`})

	if res.Failed {
		t.Fatalf("unexpected failure: %v", res.Diagnostics)
	}
	if len(res.Entries) != 1 || res.Entries[0].Tag != "REQ-1" {
		t.Errorf("entries = %v, want [REQ-1]", res.Entries)
	}
}

func TestList_BadFilterFails(t *testing.T) {
	p := testProcessor(t)
	res := p.List(ListRequest{Filter: `category = "req"`})

	if !res.Failed || len(res.Diagnostics) != 1 {
		t.Fatalf("invalid filter must fail: %v", res.Diagnostics)
	}
}

func TestProcess(t *testing.T) {
	p := testProcessor(t)
	in := Document{
		Name: "spec.txt",
		Nodes: []Node{
			{Kind: KindText, Text: "Introduction."},
			{Kind: KindGraph, Line: 5, Tags: []string{"REQ-1"}},
			{Kind: KindList, Line: 9, Filter: `category == "test"`},
			{Kind: KindGraph, Line: 14, Tags: []string{"MISSING"}},
		},
	}

	out, diags := p.Process(in)

	if out.Nodes[0].Text != "Introduction." || out.Nodes[0].Graph != nil {
		t.Error("text nodes must pass through untouched")
	}
	if out.Nodes[1].Graph == nil || out.Nodes[1].Graph.DOT == "" {
		t.Error("graph node did not render")
	}
	if out.Nodes[2].List == nil || len(out.Nodes[2].List.Entries) != 1 {
		t.Error("list node did not render")
	}
	if out.Nodes[3].Graph == nil || !out.Nodes[3].Graph.Failed {
		t.Error("broken directive must fail, not abort the document")
	}

	// Input is untouched.
	if in.Nodes[1].Graph != nil {
		t.Error("Process must not mutate its input")
	}

	var errs int
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("collected %d errors, want 1: %v", errs, diags)
	}
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		name string
		diag Diagnostic
		want string
	}{
		{
			"Located",
			Diagnostic{Severity: SeverityWarning, Message: "unknown tag", Doc: "a.txt", Line: 4},
			"a.txt:4: warning: unknown tag",
		},
		{
			"NoLine",
			Diagnostic{Severity: SeverityError, Message: "bad spec", Doc: "a.txt"},
			"a.txt: error: bad spec",
		},
		{
			"NoLocation",
			Diagnostic{Severity: SeverityError, Message: "bad spec"},
			"error: bad spec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.diag.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
