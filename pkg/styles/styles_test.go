package styles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/traceviz/traceviz/pkg/trace"
)

func TestResolve(t *testing.T) {
	policy := Default().Merge(Policy{
		"req": {"fillcolor": "lightyellow", "style": "filled"},
	})

	tests := []struct {
		name   string
		entity *trace.Entity
		want   map[string]string
	}{
		{
			name:   "DefaultBase",
			entity: &trace.Entity{Tag: "A", Attrs: map[string]string{}},
			want:   map[string]string{"shape": "box", "textwrap": "24"},
		},
		{
			name:   "UnresolvedBase",
			entity: &trace.Entity{Tag: "B", Attrs: map[string]string{}, Unresolved: true},
			want:   map[string]string{"shape": "box", "color": "gray80"},
		},
		{
			name:   "CategoryOverlay",
			entity: &trace.Entity{Tag: "C", Attrs: map[string]string{"category": "req"}},
			want:   map[string]string{"shape": "box", "fillcolor": "lightyellow", "style": "filled"},
		},
		{
			name:   "UnresolvedWithCategory",
			entity: &trace.Entity{Tag: "D", Attrs: map[string]string{"category": "req"}, Unresolved: true},
			// Category keys win over the unresolved base on conflict.
			want: map[string]string{"shape": "box", "fillcolor": "lightyellow", "color": "gray80"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Resolve(tt.entity)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Resolve()[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestResolve_ReturnsCopy(t *testing.T) {
	policy := Default()
	e := &trace.Entity{Tag: "A", Attrs: map[string]string{}}

	first := policy.Resolve(e)
	first["shape"] = "ellipse"

	if policy.Resolve(e)["shape"] != "box" {
		t.Error("Resolve() must not expose the policy's own maps")
	}
}

func TestPopWrap(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attrs
		want  int
	}{
		{"Configured", Attrs{"textwrap": "24", "shape": "box"}, 24},
		{"Absent", Attrs{"shape": "box"}, 0},
		{"Zero", Attrs{"textwrap": "0"}, 0},
		{"Garbage", Attrs{"textwrap": "wide"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PopWrap(tt.attrs); got != tt.want {
				t.Errorf("PopWrap() = %d, want %d", got, tt.want)
			}
			if _, ok := tt.attrs["textwrap"]; ok && tt.name != "Absent" {
				t.Error("PopWrap() must remove the textwrap directive")
			}
		})
	}
}

func TestMerge_PartialOverride(t *testing.T) {
	merged := Default().Merge(Policy{
		KeyDefault: {"shape": "ellipse"},
	})

	got := merged[KeyDefault]
	if got["shape"] != "ellipse" {
		t.Errorf("shape = %q, want ellipse", got["shape"])
	}
	if got["textwrap"] != "24" {
		t.Errorf("textwrap = %q, want inherited 24", got["textwrap"])
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "styles.toml")
	content := `
[styles.__default__]
textwrap = 40

[styles.req]
fillcolor = "lightyellow"
style = "filled"
textwrap = 16
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	policy, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := policy[KeyDefault]["textwrap"]; got != "40" {
		t.Errorf("default textwrap = %q, want 40", got)
	}
	if got := policy[KeyDefault]["shape"]; got != "box" {
		t.Errorf("default shape = %q, want inherited box", got)
	}
	if got := policy["req"]["fillcolor"]; got != "lightyellow" {
		t.Errorf("req fillcolor = %q", got)
	}

	e := &trace.Entity{Tag: "R", Attrs: map[string]string{"category": "req"}}
	attrs := policy.Resolve(e)
	if got := PopWrap(attrs); got != 16 {
		t.Errorf("req wrap = %d, want 16", got)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
