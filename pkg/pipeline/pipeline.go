// Package pipeline provides the load → walk → render pipeline for
// traceable relationship diagrams.
//
// Both the CLI and the preview server drive rendering through a [Runner],
// which centralizes trace loading, graph traversal, artifact rendering, and
// artifact caching so every entry point behaves identically.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, logger)
//	opts := pipeline.Options{
//	    TraceFile: "trace.json",
//	    Tags:      []string{"REQ-1"},
//	    Formats:   []string{"svg"},
//	}
//	result, err := runner.Graph(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/traceviz/traceviz/pkg/document"
	"github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/listing"
)

// Format constants for output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// TTLArtifact is how long rendered artifacts stay cached. Artifacts are
// keyed by content hash, so a stale entry can only mean identical output.
const TTLArtifact = 7 * 24 * time.Hour

// Options contains all configuration for one pipeline run.
// The struct supports JSON serialization for preview server requests.
type Options struct {
	// TraceFile is the trace data file to load.
	TraceFile string `json:"trace_file"`

	// RelTypesFile optionally replaces the built-in relationship types.
	RelTypesFile string `json:"rel_types_file,omitempty"`

	// Graph options.
	Tags          []string `json:"tags,omitempty"`
	Relationships string   `json:"relationships,omitempty"`
	Caption       string   `json:"caption,omitempty"`

	// List options.
	Filter string `json:"filter,omitempty"`

	// Render options.
	StylesFile string   `json:"styles_file,omitempty"`
	Formats    []string `json:"formats,omitempty"`
	Refresh    bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized).
	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of one pipeline run.
type Result struct {
	// ID identifies this run in logs and server responses.
	ID string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Entries is the listing output, set by [Runner.List] only.
	Entries []listing.Entry

	// Diagnostics collected while processing the directive.
	Diagnostics []document.Diagnostic

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether every artifact came from cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Entities   int
	Edges      int
	LoadTime   time.Duration
	WalkTime   time.Duration
	RenderTime time.Duration
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: dot, svg, png)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// validateForGraph checks required fields and applies defaults for a graph
// run.
func (o *Options) validateForGraph() error {
	if o.TraceFile == "" {
		return errors.New(errors.ErrCodeInvalidInput, "trace file is required")
	}
	if len(o.Tags) == 0 {
		return errors.New(errors.ErrCodeNoStartEntities, "at least one start tag is required")
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.applyLoggerDefault()
	return nil
}

// validateForList checks required fields for a listing run.
func (o *Options) validateForList() error {
	if o.TraceFile == "" {
		return errors.New(errors.ErrCodeInvalidInput, "trace file is required")
	}
	o.applyLoggerDefault()
	return nil
}

func (o *Options) applyLoggerDefault() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}
