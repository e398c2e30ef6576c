package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	apperrors "github.com/traceviz/traceviz/pkg/errors"
)

// =============================================================================
// Trace File Serialization
// =============================================================================

// File is the canonical serialization format for a document set's traceable
// entities. The format is human-readable and round-trip safe: read → link →
// write produces the same declarations.
type File struct {
	// RelationshipTypes optionally overrides the built-in relationship-type
	// table for this document set.
	RelationshipTypes []RelType `json:"relationship_types,omitempty"`

	Entities []FileEntity `json:"entities"`
}

// FileEntity is the declaration of one traceable entity.
type FileEntity struct {
	Tag        string            `json:"tag"`
	Title      string            `json:"title,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Read decodes a trace file from r and returns a linked registry.
func Read(r io.Reader) (*Registry, error) {
	return ReadWithTypes(r, nil)
}

// ReadWithTypes decodes a trace file using an explicit relationship-type
// table. A non-nil table takes precedence over types declared in the file.
func ReadWithTypes(r io.Reader, relTypes []RelType) (*Registry, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidTraceFile, err, "decode trace file")
	}
	if relTypes != nil {
		f.RelationshipTypes = relTypes
	}
	return buildRegistry(f)
}

// ReadFile reads a JSON trace file from disk and returns a linked registry.
func ReadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err, "open %s", path)
	}
	defer f.Close()
	return Read(f)
}

// Marshal serializes a registry's declared entities to JSON bytes.
// Entities are sorted by tag for deterministic output; unresolved
// placeholders are skipped since they carry no declaration.
func Marshal(r *Registry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(r, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes a registry's declared entities as JSON to w.
func Write(r *Registry, w io.Writer) error {
	out := File{RelationshipTypes: r.relTypes}
	for _, e := range r.Entities() {
		if e.Unresolved {
			continue
		}
		out.Entities = append(out.Entities, FileEntity{
			Tag:        e.Tag,
			Title:      e.Title,
			Attributes: e.Attrs,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func buildRegistry(f File) (*Registry, error) {
	reg, err := NewRegistry(f.RelationshipTypes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidTraceFile, err, "relationship types")
	}
	for _, fe := range f.Entities {
		e := &Entity{Tag: fe.Tag, Title: fe.Title, Attrs: fe.Attributes}
		if err := reg.Add(e); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidTraceFile, err, "entity %q", fe.Tag)
		}
	}
	reg.Link()
	return reg, nil
}

// =============================================================================
// Relationship-Type Configuration
// =============================================================================

// relTypeConfig is the TOML shape for relationship-type overrides:
//
//	[[relationship]]
//	primary = "depends-on"
//	secondary = "required-by"
//	directional = true
type relTypeConfig struct {
	Relationship []RelType `toml:"relationship"`
}

// LoadRelTypes reads a relationship-type table from a TOML file.
// The file replaces the built-in table entirely; an empty file is an error
// (use no file at all to keep the defaults).
func LoadRelTypes(path string) ([]RelType, error) {
	var cfg relTypeConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidTraceFile, err, "decode %s", path)
	}
	if len(cfg.Relationship) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidTraceFile, "%s declares no relationship types", path)
	}
	return cfg.Relationship, nil
}
