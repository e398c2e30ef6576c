package dot

import (
	"reflect"
	"strings"
	"testing"

	"github.com/traceviz/traceviz/pkg/relspec"
	"github.com/traceviz/traceviz/pkg/styles"
	"github.com/traceviz/traceviz/pkg/trace"
	"github.com/traceviz/traceviz/pkg/walk"
)

// render builds a registry from the declarations, walks it from the start
// tags, and serializes the result under the default style policy.
func render(t *testing.T, decls map[string]map[string]string, startTags []string) (string, *trace.Registry) {
	t.Helper()
	reg, err := trace.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for tag, attrs := range decls {
		if err := reg.Add(&trace.Entity{Tag: tag, Title: attrs["title"], Attrs: attrs}); err != nil {
			t.Fatalf("Add(%s): %v", tag, err)
		}
	}
	reg.Link()

	var starts []*trace.Entity
	for _, tag := range startTags {
		e, ok := reg.Resolve(tag)
		if !ok {
			t.Fatalf("start tag %s not in registry", tag)
		}
		starts = append(starts, e)
	}
	specs, err := relspec.Parse("", reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res := walk.Walk(starts, specs, reg)
	return ToDOT(res, styles.Default(), reg), reg
}

func TestToDOT_Header(t *testing.T) {
	out, _ := render(t, map[string]map[string]string{"A": {}}, []string{"A"})

	for _, want := range []string{
		`digraph "traceable relationships" {`,
		"rankdir=LR;",
		`graph [fontname="helvetica", fontsize="7.5"];`,
		`node [fontname="helvetica", fontsize="7.5"];`,
		`edge [fontname="helvetica", fontsize="7.5"];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Error("output should end with a closing brace")
	}
}

func TestToDOT_EdgeLabels(t *testing.T) {
	out, _ := render(t, map[string]map[string]string{
		"CHILD": {"parents": "ROOT"},
		"ROOT":  {},
	}, []string{"CHILD"})

	want := `"CHILD" -> "ROOT" [taillabel="parents", headlabel="children", labelfontsize=7.0, labelfontcolor="#999999"];`
	if !strings.Contains(out, want) {
		t.Errorf("output missing edge %q:\n%s", want, out)
	}
}

func TestToDOT_CategoryClusters(t *testing.T) {
	out, _ := render(t, map[string]map[string]string{
		"REQ-1":  {"category": "req", "children": "TEST-1"},
		"TEST-1": {"category": "test"},
		"NOTE":   {"sibling": "REQ-1"},
	}, []string{"REQ-1"})

	reqIdx := strings.Index(out, `subgraph "req" {`)
	testIdx := strings.Index(out, `subgraph "test" {`)
	plainIdx := strings.Index(out, "subgraph {")
	if reqIdx < 0 || testIdx < 0 || plainIdx < 0 {
		t.Fatalf("missing subgraphs (req=%d test=%d plain=%d):\n%s", reqIdx, testIdx, plainIdx, out)
	}
	// Uncategorized group sorts before named categories.
	if !(plainIdx < reqIdx && reqIdx < testIdx) {
		t.Errorf("cluster order not deterministic (plain=%d req=%d test=%d)", plainIdx, reqIdx, testIdx)
	}
	if strings.Count(out, "rank=same;") != 3 {
		t.Errorf("want rank=same in every subgraph:\n%s", out)
	}
}

func TestToDOT_NodeLabelWrapped(t *testing.T) {
	// Default policy wraps titles at 24 characters.
	out, _ := render(t, map[string]map[string]string{
		"REQ-1": {"title": "the quick brown fox jumps over the lazy dog"},
	}, []string{"REQ-1"})

	want := `"REQ-1" [label=<<b>REQ-1</b><br/> the quick brown fox <br/> jumps over the lazy dog>, shape="box"];`
	if !strings.Contains(out, want) {
		t.Errorf("output missing node %q:\n%s", want, out)
	}
}

func TestToDOT_NodeLabelUnwrapped(t *testing.T) {
	policy := styles.Policy{
		styles.KeyDefault: {"shape": "box"},
	}
	reg, err := trace.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	e := &trace.Entity{Tag: "REQ-1", Title: "Short title"}
	res := walk.Result{Entities: []*trace.Entity{e}}

	out := ToDOT(res, policy, reg)
	want := `"REQ-1" [label=<<b>REQ-1:</b> Short title>, shape="box"];`
	if !strings.Contains(out, want) {
		t.Errorf("output missing node %q:\n%s", want, out)
	}
}

func TestToDOT_UnresolvedStyling(t *testing.T) {
	// GHOST is referenced but never declared; the unresolved style applies.
	out, _ := render(t, map[string]map[string]string{
		"A": {"children": "GHOST"},
	}, []string{"A"})

	node := extractNodeLine(out, "GHOST")
	if node == "" {
		t.Fatalf("no node line for GHOST:\n%s", out)
	}
	for _, want := range []string{`color="gray80"`, `fillcolor="white"`, `fontcolor="gray30"`} {
		if !strings.Contains(node, want) {
			t.Errorf("unresolved node missing %q: %s", want, node)
		}
	}
}

func TestToDOT_EscapesMarkup(t *testing.T) {
	policy := styles.Policy{styles.KeyDefault: {}}
	reg, err := trace.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	e := &trace.Entity{Tag: "IO-1", Title: "read <stdin> & write"}
	res := walk.Result{Entities: []*trace.Entity{e}}

	out := ToDOT(res, policy, reg)
	if !strings.Contains(out, "read &lt;stdin&gt; &amp; write") {
		t.Errorf("title markup not escaped:\n%s", out)
	}
}

func extractNodeLine(out, tag string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, `"`+tag+`" [`) {
			return line
		}
	}
	return ""
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"Empty", "", 24, nil},
		{"Fits", "short title", 24, []string{"short title"}},
		{"Breaks", "one two three four", 9, []string{"one two", "three", "four"}},
		{"LongWord", "tiny incomprehensibilities tiny", 8, []string{"tiny", "incomprehensibilities", "tiny"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapText(tt.text, tt.width); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("wrapText(%q, %d) = %v, want %v", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<?xml version="1.0"?>
<svg width="134pt" height="38pt" viewBox="0.00 0.00 134.00 38.00" xmlns="http://www.w3.org/2000/svg">
<g></g></svg>`)

	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 134.00 38.00"`) {
		t.Errorf("viewBox not normalized:\n%s", out)
	}
	if !strings.Contains(out, `width="134" height="38"`) {
		t.Errorf("dimensions not rewritten:\n%s", out)
	}
}

func TestNormalizeViewBox_NoMatch(t *testing.T) {
	in := []byte("<svg>plain</svg>")
	if got := normalizeViewBox(in); !reflect.DeepEqual(got, in) {
		t.Errorf("input without viewBox must pass through unchanged")
	}
}
