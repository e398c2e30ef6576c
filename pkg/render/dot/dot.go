// Package dot serializes a discovered traceable graph into Graphviz DOT
// format and rasterizes it to SVG or PNG.
//
// The emitted text is the engine's sole externally observable artifact: a
// left-to-right digraph with one rank-aligned subgraph per entity category,
// HTML-like node labels (bold tag plus optionally wrapped title), and edges
// labeled with the relationship-type name on the tail and its opposite on
// the head. Output is deterministic: categories, nodes, node attributes,
// and edges are all emitted in sorted order.
package dot

import (
	"bytes"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/traceviz/traceviz/pkg/styles"
	"github.com/traceviz/traceviz/pkg/trace"
	"github.com/traceviz/traceviz/pkg/walk"
)

const (
	fontName      = "helvetica"
	fontSize      = "7.5"
	edgeLabelSize = "7.0"
	// Muted gray keeps the doubled relationship labels from dominating.
	edgeLabelColor = "#999999"
)

// Opposites resolves a relationship-type name to its opposite for edge head
// labels. *trace.Registry satisfies this.
type Opposites interface {
	Opposite(name string) string
}

// ToDOT serializes a walk result into DOT text under the given style policy.
//
// Node identifiers are entity tags verbatim; the registry guarantees tags
// are valid identifiers in the DOT grammar.
func ToDOT(res walk.Result, policy styles.Policy, opp Opposites) string {
	var buf bytes.Buffer
	buf.WriteString("digraph \"traceable relationships\" {\n")
	buf.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(&buf, "  graph [fontname=%q, fontsize=%q];\n", fontName, fontSize)
	fmt.Fprintf(&buf, "  node [fontname=%q, fontsize=%q];\n", fontName, fontSize)
	fmt.Fprintf(&buf, "  edge [fontname=%q, fontsize=%q];\n", fontName, fontSize)

	writeClusters(&buf, res.Entities, policy)

	buf.WriteString("\n")
	for _, e := range res.Edges {
		opposite := opp.Opposite(e.Type)
		fmt.Fprintf(&buf, "  %q -> %q [taillabel=%q, headlabel=%q, labelfontsize=%s, labelfontcolor=%q];\n",
			e.Source.Tag, e.Target.Tag, e.Type, opposite, edgeLabelSize, edgeLabelColor)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// writeClusters groups entities by category into rank-aligned subgraphs so
// entities sharing a category line up. Entities without a category form an
// implicit unnamed group.
func writeClusters(buf *bytes.Buffer, entities []*trace.Entity, policy styles.Policy) {
	grouped := make(map[string][]*trace.Entity)
	for _, e := range entities {
		category := e.Category()
		grouped[category] = append(grouped[category], e)
	}

	for _, category := range slices.Sorted(maps.Keys(grouped)) {
		buf.WriteString("\n")
		if category == "" {
			buf.WriteString("  subgraph {\n")
		} else {
			fmt.Fprintf(buf, "  subgraph %q {\n", category)
		}
		buf.WriteString("    rank=same;\n")
		for _, e := range grouped[category] {
			writeNode(buf, e, policy.Resolve(e))
		}
		buf.WriteString("  }\n")
	}
}

// writeNode emits one node declaration. The textwrap directive is popped
// from the resolved style before the remaining attributes are serialized;
// wrapping shapes the label, it is not a graph attribute.
func writeNode(buf *bytes.Buffer, e *trace.Entity, attrs styles.Attrs) {
	wrapWidth := styles.PopWrap(attrs)
	label := nodeLabel(e.Tag, e.Title, wrapWidth)

	parts := []string{"label=" + label}
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		parts = append(parts, fmt.Sprintf("%s=%q", name, attrs[name]))
	}
	fmt.Fprintf(buf, "    %q [%s];\n", e.Tag, strings.Join(parts, ", "))
}

// nodeLabel builds the HTML-like label: bold tag plus title, the title
// broken over multiple lines when a wrap width is configured.
func nodeLabel(tag, title string, wrapWidth int) string {
	escTag := html.EscapeString(tag)
	escTitle := html.EscapeString(title)
	if wrapWidth > 0 {
		wrapped := strings.Join(wrapText(escTitle, wrapWidth), " <br/> ")
		return "<<b>" + escTag + "</b><br/> " + wrapped + ">"
	}
	return "<<b>" + escTag + ":</b> " + escTitle + ">"
}

// wrapText greedily wraps text at word boundaries. Words longer than the
// width get a line of their own. Empty input yields no lines.
func wrapText(text string, width int) []string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= width:
			line.WriteString(" ")
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
