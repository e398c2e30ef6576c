// Package styles defines the style policy that maps entity classification
// to rendering attributes for the graph description output.
//
// A policy is keyed by "__default__", "__unresolved__", or a category name.
// Resolution for an entity starts from the default or unresolved base
// (picked by the entity's resolved flag) and overlays the category's
// attributes, category keys winning on conflict. The special "textwrap"
// attribute is a rendering directive consumed by the renderer, not a graph
// attribute.
package styles

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/trace"
)

// Policy keys with reserved meaning. Every other key is a category name.
const (
	KeyDefault    = "__default__"
	KeyUnresolved = "__unresolved__"
)

// AttrTextWrap is the pseudo-attribute holding the title wrap width.
const AttrTextWrap = "textwrap"

// Attrs is one style entry: attribute name → value strings.
type Attrs map[string]string

// Policy maps style keys to attributes.
type Policy map[string]Attrs

// Default returns the built-in style policy.
func Default() Policy {
	return Policy{
		KeyDefault: {
			"shape":      "box",
			AttrTextWrap: "24",
		},
		KeyUnresolved: {
			"shape":     "box",
			"style":     "filled, setlinewidth(0.1)",
			"color":     "gray80",
			"fillcolor": "white",
			"fontcolor": "gray30",
		},
	}
}

// Resolve returns the merged attributes for an entity: the unresolved or
// default base overlaid with the entity's category entry, if any.
// The returned map is a copy and safe to mutate.
func (p Policy) Resolve(e *trace.Entity) Attrs {
	base := p[KeyDefault]
	if e.Unresolved {
		base = p[KeyUnresolved]
	}

	merged := make(Attrs, len(base))
	maps.Copy(merged, base)
	if category := e.Category(); category != "" {
		maps.Copy(merged, p[category])
	}
	return merged
}

// PopWrap removes the textwrap directive from attrs and returns its width.
// Returns 0 when wrapping is not configured or the value is not a positive
// integer.
func PopWrap(attrs Attrs) int {
	raw, ok := attrs[AttrTextWrap]
	if !ok {
		return 0
	}
	delete(attrs, AttrTextWrap)
	width, err := strconv.Atoi(raw)
	if err != nil || width < 1 {
		return 0
	}
	return width
}

// Merge overlays overrides onto the policy, key by key. A key present in
// both replaces individual attributes, not the whole entry, so a category
// override can adjust one attribute while inheriting the rest.
func (p Policy) Merge(overrides Policy) Policy {
	out := make(Policy, len(p)+len(overrides))
	for key, attrs := range p {
		out[key] = maps.Clone(attrs)
	}
	for key, attrs := range overrides {
		merged, ok := out[key]
		if !ok {
			merged = make(Attrs, len(attrs))
			out[key] = merged
		}
		maps.Copy(merged, attrs)
	}
	return out
}

// fileConfig is the TOML shape for style overrides:
//
//	[styles.__default__]
//	shape = "box"
//	textwrap = 24
//
//	[styles.req]
//	fillcolor = "lightyellow"
//	style = "filled"
type fileConfig struct {
	Styles map[string]map[string]any `toml:"styles"`
}

// Load reads style overrides from a TOML file and merges them over the
// built-in defaults. Attribute values may be strings or integers; integers
// are stringified (textwrap is commonly numeric).
func Load(path string) (Policy, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidStyles, err, "decode %s", path)
	}

	overrides := make(Policy, len(cfg.Styles))
	for key, raw := range cfg.Styles {
		attrs := make(Attrs, len(raw))
		for name, value := range raw {
			switch v := value.(type) {
			case string:
				attrs[name] = v
			case int64:
				attrs[name] = strconv.FormatInt(v, 10)
			case float64:
				attrs[name] = strconv.FormatFloat(v, 'g', -1, 64)
			case bool:
				attrs[name] = strconv.FormatBool(v)
			default:
				return nil, errors.New(errors.ErrCodeInvalidStyles,
					"style %s.%s: unsupported value %v", key, name, fmt.Sprint(value))
			}
		}
		overrides[key] = attrs
	}
	return Default().Merge(overrides), nil
}
