// Package listing produces flat entity listings, optionally restricted by
// an attribute filter expression.
package listing

import (
	"fmt"
	"io"

	"github.com/traceviz/traceviz/pkg/filter"
	"github.com/traceviz/traceviz/pkg/trace"
)

// Entry is one listed entity.
type Entry struct {
	Tag   string `json:"tag"`
	Title string `json:"title,omitempty"`
}

// Build selects the registry's entities matching the filter expression,
// sorted by tag. An empty expression selects all entities. Unresolved
// placeholders are excluded; they have no attributes to filter on.
func Build(reg *trace.Registry, expr string) ([]Entry, error) {
	m, err := filter.Compile(expr)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, e := range reg.Entities() {
		if e.Unresolved {
			continue
		}
		ok, err := m.Matches(e.Attrs)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entries = append(entries, Entry{Tag: e.Tag, Title: e.Title})
	}
	return entries, nil
}

// Write renders entries as "tag: title" lines, one per entry.
func Write(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		line := e.Tag
		if e.Title != "" {
			line += ": " + e.Title
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
