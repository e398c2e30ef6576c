// Package walk implements the bounded graph traversal that discovers the
// subgraph reachable from a set of start entities.
//
// The walk follows the relationship types permitted by a parsed spec list,
// honoring per-type depth limits, and records every oriented relationship
// edge exactly once. Because an edge is never explored twice, traversal
// terminates on cyclic relationship graphs and total work is bounded by the
// number of distinct oriented edges. After traversal, reverse-direction
// edges are canonicalized into their forward equivalents and the result is
// sorted, so identical inputs always produce identical output.
package walk

import (
	"fmt"
	"slices"
	"strings"

	"github.com/traceviz/traceviz/pkg/relspec"
	"github.com/traceviz/traceviz/pkg/trace"
)

// Edge is one discovered relationship between two entities.
// After canonicalization every edge in a Result has Direction +1.
type Edge struct {
	Source    *trace.Entity
	Target    *trace.Entity
	Type      string
	Direction int
}

// Result is the discovered subgraph: entities deduplicated by tag and
// canonicalized edges, both in stable sorted order. A Result holds no state
// beyond one construction; it references registry-owned entities and never
// copies them.
type Result struct {
	Entities []*trace.Entity
	Edges    []Edge
}

// edgeKey identifies an oriented edge as originally discovered.
// Deduplication happens on this key, before canonicalization, so a
// relationship reached via two traversal routes is recorded once.
type edgeKey struct {
	source, target, relType string
}

// frame is one in-progress traversal step. spec and rel index the next
// relative to examine, so a frame resumes where it left off after its
// child subtree has been drained.
type frame struct {
	entity *trace.Entity
	depth  int
	spec   int
	rel    int
}

// Walk discovers the subgraph reachable from starts along the permitted
// relationship specs. All start entities share one discovery state, so
// multiple start tags produce a single merged graph.
//
// Depth limits are evaluated at the depth an edge is first discovered, not
// at its shortest-path distance. When an entity is reachable both within
// and beyond a type's limit via different routes, the route walked first
// decides; starts are walked in request order and relatives in their sorted
// declaration order, so "first" is well defined and stable.
func Walk(starts []*trace.Entity, specs []relspec.Spec, reg *trace.Registry) Result {
	seen := make(map[string]*trace.Entity)
	edges := make(map[edgeKey]Edge)

	// Explicit resumable frames instead of recursion: traversal depth is
	// bounded only by edge count, which may exceed safe stack depth on
	// dense sets. A newly discovered relative is fully explored before its
	// parent frame advances to the next relative, giving the same discovery
	// order as a recursive depth-first walk.
	for _, start := range starts {
		seen[start.Tag] = start
		stack := []frame{{entity: start}}

		for len(stack) > 0 {
			top := len(stack) - 1
			f := &stack[top]

			if f.spec >= len(specs) {
				stack = stack[:top]
				continue
			}
			spec := specs[f.spec]
			if spec.Limited && f.depth >= spec.MaxDepth {
				f.spec++
				f.rel = 0
				continue
			}
			rels := f.entity.Related(spec.Type)
			if f.rel >= len(rels) {
				f.spec++
				f.rel = 0
				continue
			}

			rel := rels[f.rel]
			f.rel++
			key := edgeKey{source: f.entity.Tag, target: rel.Tag, relType: spec.Type}
			if _, ok := edges[key]; ok {
				continue
			}
			edges[key] = Edge{
				Source:    f.entity,
				Target:    rel,
				Type:      spec.Type,
				Direction: reg.Direction(spec.Type),
			}
			seen[rel.Tag] = rel
			stack = append(stack, frame{entity: rel, depth: f.depth + 1})
		}
	}

	return finalize(seen, edges, reg)
}

// finalize canonicalizes reverse edges and produces sorted output.
func finalize(seen map[string]*trace.Entity, edges map[edgeKey]Edge, reg *trace.Registry) Result {
	var res Result

	for _, e := range seen {
		res.Entities = append(res.Entities, e)
	}
	slices.SortFunc(res.Entities, trace.Compare)

	// Rewrite every reverse-direction edge into its forward equivalent.
	// Distinct discoveries can collapse onto one canonical edge here (e.g.
	// a pair discovered once per direction), so dedupe again on the
	// canonical tuple.
	canonical := make(map[edgeKey]Edge, len(edges))
	for _, e := range edges {
		if e.Direction == -1 {
			opposite := reg.Opposite(e.Type)
			if opposite == "" {
				// A validated type always has a registered opposite; a miss
				// here means the registry itself is inconsistent.
				panic(fmt.Sprintf("walk: no opposite registered for relationship type %q", e.Type))
			}
			e = Edge{Source: e.Target, Target: e.Source, Type: opposite, Direction: 1}
		}
		canonical[edgeKey{e.Source.Tag, e.Target.Tag, e.Type}] = e
	}

	for _, e := range canonical {
		res.Edges = append(res.Edges, e)
	}
	slices.SortFunc(res.Edges, compareEdges)

	return res
}

func compareEdges(a, b Edge) int {
	if c := strings.Compare(a.Source.Tag, b.Source.Tag); c != 0 {
		return c
	}
	if c := strings.Compare(a.Target.Tag, b.Target.Tag); c != 0 {
		return c
	}
	return strings.Compare(a.Type, b.Type)
}
