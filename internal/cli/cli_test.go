package cli

import (
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Default", "", []string{"svg"}},
		{"Single", "dot", []string{"dot"}},
		{"Multiple", "svg,png", []string{"svg", "png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseFormats(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"Empty", "", nil},
		{"Single", "REQ-1", []string{"REQ-1"}},
		{"Multiple", "REQ-1,REQ-2", []string{"REQ-1", "REQ-2"}},
		{"Spaces", " REQ-1 , REQ-2 ", []string{"REQ-1", "REQ-2"}},
		{"TrailingComma", "REQ-1,", []string{"REQ-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTags(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTags(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		input  string
		want   string
	}{
		{"FromInput", "", "trace.json", "trace"},
		{"OutputWithFormatExt", "diagram.svg", "trace.json", "diagram"},
		{"OutputWithOtherExt", "diagram.out", "trace.json", "diagram.out"},
		{"OutputPlain", "diagram", "trace.json", "diagram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := basePath(tt.output, tt.input); got != tt.want {
				t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	want := map[string]bool{
		"graph": false, "list": false, "process": false,
		"serve": false, "cache": false, "completion": false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}
