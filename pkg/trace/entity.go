// Package trace provides the traceable entity model and the relationship
// registry that backs graph construction and listings.
//
// A traceable entity is a uniquely tagged, cross-referenceable item declared
// in a document set. Entities carry free-form string attributes; a subset of
// attribute names are relationship types (e.g. "parents"), whose values are
// tag lists pointing at other entities. Registry.Link resolves those raw
// references into bidirectional Entity.Relationships, creating unresolved
// placeholder entities for tags that are referenced but never declared.
package trace

import (
	"strings"
)

// AttrCategory is the attribute used to classify entities into groups.
// The graph renderer clusters entities sharing a category.
const AttrCategory = "category"

// Entity is a single traceable item.
//
// Entities are created by the registry and referenced, never owned, by graph
// results. The Relationships map is populated by [Registry.Link]; values are
// sorted by tag so traversals are deterministic.
type Entity struct {
	// Tag is the unique identifier. Tags double as node identifiers in the
	// emitted graph description, so they are restricted by [ValidTag].
	Tag string

	// Title is the optional human-readable title.
	Title string

	// Attrs holds the entity's declared attributes, including raw (unlinked)
	// relationship tag lists.
	Attrs map[string]string

	// Relationships maps a relationship-type name to the related entities,
	// sorted by tag. Populated by Registry.Link.
	Relationships map[string][]*Entity

	// Unresolved marks entities that are referenced by some relationship but
	// never declared themselves.
	Unresolved bool
}

// Category returns the entity's category attribute, or "" if unset.
func (e *Entity) Category() string { return e.Attrs[AttrCategory] }

// HasTitle reports whether the entity has a non-empty title.
func (e *Entity) HasTitle() bool { return strings.TrimSpace(e.Title) != "" }

// Related returns the entities reachable via the given relationship type,
// sorted by tag. Returns nil for unknown types or unlinked registries.
func (e *Entity) Related(relType string) []*Entity { return e.Relationships[relType] }

// Compare orders entities by tag. Suitable for slices.SortFunc.
func Compare(a, b *Entity) int {
	switch {
	case a.Tag < b.Tag:
		return -1
	case a.Tag > b.Tag:
		return 1
	default:
		return 0
	}
}

// SplitTags splits a tag-list string on commas and whitespace.
// Empty items are dropped, order is preserved.
func SplitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// ValidTag reports whether a tag is usable as a node identifier in the
// graph description output. Tags must be non-empty and free of quotes,
// control characters, and DOT comment introducers.
func ValidTag(tag string) bool {
	if tag == "" || len(tag) > 256 {
		return false
	}
	for _, r := range tag {
		if r < 0x20 || r == '"' || r == '\\' {
			return false
		}
	}
	return !strings.Contains(tag, "//") && !strings.Contains(tag, "/*")
}
