package listing

import (
	"reflect"
	"strings"
	"testing"

	"github.com/traceviz/traceviz/pkg/trace"
)

func testRegistry(t *testing.T) *trace.Registry {
	t.Helper()
	reg, err := trace.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	decls := []trace.Entity{
		{Tag: "REQ-2", Title: "Second requirement", Attrs: map[string]string{"category": "req"}},
		{Tag: "REQ-1", Title: "First requirement", Attrs: map[string]string{"category": "req", "children": "TEST-1 GHOST"}},
		{Tag: "TEST-1", Title: "A test", Attrs: map[string]string{"category": "test"}},
		{Tag: "NOTE", Attrs: map[string]string{}},
	}
	for i := range decls {
		if err := reg.Add(&decls[i]); err != nil {
			t.Fatal(err)
		}
	}
	reg.Link()
	return reg
}

func TestBuild(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"All", "", []string{"NOTE", "REQ-1", "REQ-2", "TEST-1"}},
		{"ByCategory", `category == "req"`, []string{"REQ-1", "REQ-2"}},
		{"NoMatch", `category == "design"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Build(reg, tt.expr)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			var tags []string
			for _, e := range entries {
				tags = append(tags, e.Tag)
			}
			if !reflect.DeepEqual(tags, tt.want) {
				t.Errorf("tags = %v, want %v", tags, tt.want)
			}
		})
	}
}

func TestBuild_ExcludesPlaceholders(t *testing.T) {
	// GHOST is referenced by REQ-1 but never declared.
	entries, err := Build(testRegistry(t), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Tag == "GHOST" {
			t.Error("unresolved placeholder must not be listed")
		}
	}
}

func TestBuild_InvalidFilter(t *testing.T) {
	if _, err := Build(testRegistry(t), `category = "req"`); err == nil {
		t.Error("invalid filter must fail the listing")
	}
}

func TestWrite(t *testing.T) {
	var sb strings.Builder
	entries := []Entry{
		{Tag: "NOTE"},
		{Tag: "REQ-1", Title: "First requirement"},
	}
	if err := Write(&sb, entries); err != nil {
		t.Fatal(err)
	}

	want := "NOTE\nREQ-1: First requirement\n"
	if sb.String() != want {
		t.Errorf("output = %q, want %q", sb.String(), want)
	}
}
