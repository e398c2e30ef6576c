// Package relspec parses relationship spec strings for graph directives.
//
// A spec string selects which relationship types a graph walk may follow and
// how deep it may follow each one. The grammar is a comma-separated list of
// items, each either a bare type name or "name:maxdepth":
//
//	parents:2, used-in, create:1
//
// An empty string selects every relationship type known to the registry with
// unlimited depth.
package relspec

import (
	"strconv"
	"strings"

	"github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/trace"
)

// Spec is one parsed (relationship type, depth limit) pair.
type Spec struct {
	// Type is a relationship-type name validated against the registry.
	Type string

	// MaxDepth bounds traversal along Type when Limited is true.
	// A limit of 0 means the type is never followed.
	MaxDepth int

	// Limited reports whether MaxDepth applies. False means unlimited.
	Limited bool
}

// Parse turns a spec string into an ordered list of Specs.
//
// Duplicates are allowed and order is preserved: the walker treats specs as
// a set of permitted types, but a deterministic parse keeps behavior
// testable. Unknown type names and malformed depth suffixes return
// structured errors (INVALID_RELATIONSHIP, MALFORMED_DEPTH) that abort the
// current diagram's construction.
func Parse(input string, reg *trace.Registry) ([]Spec, error) {
	if strings.TrimSpace(input) == "" {
		return allTypes(reg), nil
	}

	var specs []Spec
	for _, item := range strings.Split(input, ",") {
		spec, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		if !reg.IsValidRelationship(spec.Type) {
			return nil, errors.New(errors.ErrCodeInvalidRelationship,
				"invalid relationship: %s", spec.Type)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseItem(item string) (Spec, error) {
	name, depth, found := strings.Cut(item, ":")
	name = strings.TrimSpace(name)
	if !found {
		return Spec{Type: name}, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(depth))
	if err != nil || n < 0 {
		return Spec{}, errors.New(errors.ErrCodeMalformedDepth,
			"invalid maximum depth: %q", strings.TrimSpace(item))
	}
	return Spec{Type: name, MaxDepth: n, Limited: true}, nil
}

// allTypes expands the empty spec to every known relationship type with
// unlimited depth, in the registry's sorted name order.
func allTypes(reg *trace.Registry) []Spec {
	names := reg.RelationshipNames()
	specs := make([]Spec, len(names))
	for i, name := range names {
		specs[i] = Spec{Type: name}
	}
	return specs
}
