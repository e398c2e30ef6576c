package trace

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrEmptyTag is returned by [Registry.Add] when the entity tag is empty
	// or not a valid node identifier.
	ErrEmptyTag = errors.New("entity tag must be a valid identifier")

	// ErrDuplicateTag is returned by [Registry.Add] when an entity with the
	// same tag was already declared. Tags must be unique per document set.
	ErrDuplicateTag = errors.New("duplicate entity tag")

	// ErrBadRelType is returned by [NewRegistry] when a relationship type
	// has an empty primary or secondary name.
	ErrBadRelType = errors.New("relationship type names must not be empty")
)

// RelType declares a relationship-type pair. The primary name reads in the
// forward (+1) direction, the secondary in the reverse (-1) direction; the
// two are semantic opposites of one another. A symmetric type declares the
// same name for both (e.g. "sibling").
type RelType struct {
	Primary     string `json:"primary" toml:"primary"`
	Secondary   string `json:"secondary" toml:"secondary"`
	Directional bool   `json:"directional" toml:"directional"`
}

// DefaultRelTypes returns the built-in relationship-type table.
func DefaultRelTypes() []RelType {
	return []RelType{
		{Primary: "parents", Secondary: "children", Directional: true},
		{Primary: "sibling", Secondary: "sibling", Directional: false},
		{Primary: "output", Secondary: "created-in", Directional: true},
		{Primary: "used-in", Secondary: "input", Directional: true},
		{Primary: "create", Secondary: "created-by", Directional: true},
	}
}

// Registry resolves tags to entities and relationship-type names to their
// direction and opposite. It is built once per document-processing pass and
// is read-only from the walker's perspective after Link.
//
// Registry is not safe for concurrent mutation.
type Registry struct {
	entities  map[string]*Entity
	relTypes  []RelType
	direction map[string]int
	opposite  map[string]string
	linked    bool
}

// NewRegistry creates an empty registry with the given relationship types.
// A nil or empty slice selects [DefaultRelTypes].
func NewRegistry(relTypes []RelType) (*Registry, error) {
	if len(relTypes) == 0 {
		relTypes = DefaultRelTypes()
	}
	r := &Registry{
		entities:  make(map[string]*Entity),
		relTypes:  slices.Clone(relTypes),
		direction: make(map[string]int),
		opposite:  make(map[string]string),
	}
	for _, rt := range relTypes {
		if rt.Primary == "" || rt.Secondary == "" {
			return nil, ErrBadRelType
		}
		r.direction[rt.Primary] = 1
		r.opposite[rt.Primary] = rt.Secondary
		if rt.Secondary != rt.Primary {
			r.direction[rt.Secondary] = -1
			r.opposite[rt.Secondary] = rt.Primary
		}
	}
	return r, nil
}

// Add declares an entity. Returns ErrEmptyTag for invalid tags and
// ErrDuplicateTag if the tag was already declared. An unresolved placeholder
// previously created for the same tag is upgraded in place, so references
// made before the declaration keep pointing at the same entity.
func (r *Registry) Add(e *Entity) error {
	if !ValidTag(e.Tag) {
		return ErrEmptyTag
	}
	if existing, ok := r.entities[e.Tag]; ok {
		if !existing.Unresolved {
			return ErrDuplicateTag
		}
		existing.Title = e.Title
		existing.Attrs = e.Attrs
		existing.Unresolved = false
		return nil
	}
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	if e.Relationships == nil {
		e.Relationships = map[string][]*Entity{}
	}
	r.entities[e.Tag] = e
	return nil
}

// Resolve returns the entity with the given tag, or false if the tag is
// neither declared nor referenced anywhere.
func (r *Registry) Resolve(tag string) (*Entity, bool) {
	e, ok := r.entities[tag]
	return e, ok
}

// getOrCreate returns the entity for tag, creating an unresolved placeholder
// if it does not exist yet.
func (r *Registry) getOrCreate(tag string) *Entity {
	if e, ok := r.entities[tag]; ok {
		return e
	}
	e := &Entity{
		Tag:           tag,
		Attrs:         map[string]string{},
		Relationships: map[string][]*Entity{},
		Unresolved:    true,
	}
	r.entities[tag] = e
	return e
}

// IsValidRelationship reports whether name is a known relationship type.
func (r *Registry) IsValidRelationship(name string) bool {
	_, ok := r.direction[name]
	return ok
}

// Direction returns +1 for primary (forward) relationship names and -1 for
// secondary (reverse) names. Unknown names return 0.
func (r *Registry) Direction(name string) int { return r.direction[name] }

// Opposite returns the semantic opposite of a relationship-type name, or ""
// for unknown names. Every valid name has an opposite; symmetric types are
// their own opposite.
func (r *Registry) Opposite(name string) string { return r.opposite[name] }

// RelationshipNames returns every known relationship-type name in sorted
// order. Used to expand an absent relationship spec to "all types".
func (r *Registry) RelationshipNames() []string {
	return slices.Sorted(maps.Keys(r.direction))
}

// Entities returns all entities (declared and placeholders) sorted by tag.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Len returns the number of entities, placeholders included.
func (r *Registry) Len() int { return len(r.entities) }

// Link resolves raw relationship attributes into Entity.Relationships.
//
// For every relationship type (primary, secondary) and every declared
// entity: a tag list under the primary attribute creates primary edges from
// the entity to each referenced tag plus the mirroring secondary edges back;
// a tag list under the secondary attribute does the converse. Referenced
// tags without a declaration become unresolved placeholders.
//
// Link is idempotent: calling it twice rebuilds the same relationship sets.
func (r *Registry) Link() {
	declared := r.Entities()
	for _, e := range declared {
		e.Relationships = map[string][]*Entity{}
	}

	for _, rt := range r.relTypes {
		for _, e := range declared {
			if raw, ok := e.Attrs[rt.Primary]; ok {
				for _, tag := range SplitTags(raw) {
					rel := r.getOrCreate(tag)
					addRelation(e, rt.Primary, rel)
					addRelation(rel, rt.Secondary, e)
				}
			}
			if rt.Secondary == rt.Primary {
				continue
			}
			if raw, ok := e.Attrs[rt.Secondary]; ok {
				for _, tag := range SplitTags(raw) {
					rel := r.getOrCreate(tag)
					addRelation(e, rt.Secondary, rel)
					addRelation(rel, rt.Primary, e)
				}
			}
		}
	}

	// Deduplicate and order every relationship list for deterministic walks.
	for _, e := range r.entities {
		for name, rels := range e.Relationships {
			slices.SortFunc(rels, Compare)
			e.Relationships[name] = slices.CompactFunc(rels, func(a, b *Entity) bool {
				return a.Tag == b.Tag
			})
		}
	}
	r.linked = true
}

// Linked reports whether Link has run.
func (r *Registry) Linked() bool { return r.linked }

func addRelation(e *Entity, name string, rel *Entity) {
	if e.Relationships == nil {
		e.Relationships = map[string][]*Entity{}
	}
	e.Relationships[name] = append(e.Relationships[name], rel)
}
