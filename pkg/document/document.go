// Package document orchestrates graph and list directives embedded in
// authored documents.
//
// A directive names start tags and a relationship spec; the processor
// resolves the tags, walks the relationship graph, and serializes the
// result, collecting diagnostics instead of failing the whole document when
// a single directive is broken. Processing is a pure transformation: the
// input document is never mutated.
package document

import (
	"fmt"
	"strings"

	"github.com/traceviz/traceviz/pkg/errors"
	"github.com/traceviz/traceviz/pkg/listing"
	"github.com/traceviz/traceviz/pkg/relspec"
	"github.com/traceviz/traceviz/pkg/render/dot"
	"github.com/traceviz/traceviz/pkg/styles"
	"github.com/traceviz/traceviz/pkg/trace"
	"github.com/traceviz/traceviz/pkg/walk"
)

// Diagnostic severities.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Diagnostic is one problem found while processing a directive, attributed
// to its source location.
type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Doc      string `json:"doc,omitempty"`
	Line     int    `json:"line,omitempty"`
}

func (d Diagnostic) String() string {
	loc := d.Doc
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.Doc, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// GraphRequest is one graph directive.
type GraphRequest struct {
	Doc           string   `json:"doc,omitempty"`
	Line          int      `json:"line,omitempty"`
	Tags          []string `json:"tags"`
	Relationships string   `json:"relationships,omitempty"`
	Caption       string   `json:"caption,omitempty"`
}

// GraphResult is the rendered outcome of a graph directive. Failed means no
// diagram could be produced; DOT is empty in that case and the diagnostics
// say why.
type GraphResult struct {
	DOT         string       `json:"dot,omitempty"`
	Caption     string       `json:"caption,omitempty"`
	Entities    int          `json:"entities"`
	Edges       int          `json:"edges"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Failed      bool         `json:"failed,omitempty"`
}

// ListRequest is one list directive.
type ListRequest struct {
	Doc    string `json:"doc,omitempty"`
	Line   int    `json:"line,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// ListResult is the outcome of a list directive.
type ListResult struct {
	Entries     []listing.Entry `json:"entries,omitempty"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
	Failed      bool            `json:"failed,omitempty"`
}

// Processor resolves directives against one linked registry under one style
// policy. The zero policy falls back to [styles.Default].
type Processor struct {
	Registry *trace.Registry
	Policy   styles.Policy
}

// NewProcessor returns a processor over a linked registry.
func NewProcessor(reg *trace.Registry, policy styles.Policy) *Processor {
	if policy == nil {
		policy = styles.Default()
	}
	return &Processor{Registry: reg, Policy: policy}
}

// Graph executes one graph directive.
//
// Start tags are resolved first: tags that resolve to no known entity
// produce a warning each and are skipped, and when every tag is unknown,
// or none were given, the directive fails with an error diagnostic. Only
// then is the relationship spec parsed, so tag warnings are never lost to
// a spec error. A malformed relationship spec fails the directive and the
// diagnostic carries the spec text verbatim so authors can find the
// offending directive.
func (p *Processor) Graph(req GraphRequest) GraphResult {
	var res GraphResult
	res.Caption = req.Caption

	var starts []*trace.Entity
	for _, tag := range req.Tags {
		e, ok := p.Registry.Resolve(tag)
		if !ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("unknown traceable tag %q", tag),
				Doc:      req.Doc,
				Line:     req.Line,
			})
			continue
		}
		starts = append(starts, e)
	}

	if len(starts) == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  "no valid start tags, nothing to draw",
			Doc:      req.Doc,
			Line:     req.Line,
		})
		res.Failed = true
		return res
	}

	specs, err := relspec.Parse(req.Relationships, p.Registry)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("invalid relationships %q: %s", req.Relationships, errors.UserMessage(err)),
			Doc:      req.Doc,
			Line:     req.Line,
		})
		res.Failed = true
		return res
	}

	walked := walk.Walk(starts, specs, p.Registry)
	res.DOT = dot.ToDOT(walked, p.Policy, p.Registry)
	res.Entities = len(walked.Entities)
	res.Edges = len(walked.Edges)
	return res
}

// List executes one list directive.
func (p *Processor) List(req ListRequest) ListResult {
	var res ListResult

	entries, err := listing.Build(p.Registry, req.Filter)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("invalid filter %q: %s", req.Filter, errors.UserMessage(err)),
			Doc:      req.Doc,
			Line:     req.Line,
		})
		res.Failed = true
		return res
	}
	res.Entries = entries
	return res
}

// ============================================================================
// Document model
// ============================================================================

// Node kinds. Text nodes pass through processing untouched; directive nodes
// are replaced with their results.
const (
	KindText  = "text"
	KindGraph = "graph"
	KindList  = "list"
)

// Node is one block of an authored document.
type Node struct {
	Kind string `json:"kind"`
	Line int    `json:"line,omitempty"`

	// Text node content.
	Text string `json:"text,omitempty"`

	// Graph directive inputs.
	Tags          []string `json:"tags,omitempty"`
	Relationships string   `json:"relationships,omitempty"`
	Caption       string   `json:"caption,omitempty"`

	// List directive input.
	Filter string `json:"filter,omitempty"`

	// Directive outputs, populated by [Processor.Process].
	Graph *GraphResult `json:"graph,omitempty"`
	List  *ListResult  `json:"list,omitempty"`
}

// Document is an authored document with embedded directives.
type Document struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// Process executes every directive in the document and returns a new
// document with directive nodes carrying their results, plus all collected
// diagnostics in document order.
func (p *Processor) Process(d Document) (Document, []Diagnostic) {
	out := Document{Name: d.Name, Nodes: make([]Node, len(d.Nodes))}
	var diags []Diagnostic

	for i, n := range d.Nodes {
		switch n.Kind {
		case KindGraph:
			res := p.Graph(GraphRequest{
				Doc:           d.Name,
				Line:          n.Line,
				Tags:          n.Tags,
				Relationships: n.Relationships,
				Caption:       n.Caption,
			})
			n.Graph = &res
			diags = append(diags, res.Diagnostics...)
		case KindList:
			res := p.List(ListRequest{Doc: d.Name, Line: n.Line, Filter: n.Filter})
			n.List = &res
			diags = append(diags, res.Diagnostics...)
		case KindText, "":
			// Pass through.
		default:
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("unknown directive kind %q", n.Kind),
				Doc:      d.Name,
				Line:     n.Line,
			})
		}
		out.Nodes[i] = n
	}
	return out, diags
}

// FormatDiagnostics renders diagnostics one per line for console output.
func FormatDiagnostics(diags []Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
