package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/traceviz/traceviz/pkg/document"
	"github.com/traceviz/traceviz/pkg/pipeline"
)

// graphCommand creates the graph command for rendering relationship diagrams.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		tagsStr    string
		formatsStr string
		output     string
		noCache    bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "graph [trace.json]",
		Short: "Render a relationship diagram from a trace file",
		Long: `Render a relationship diagram from a trace file.

The graph command walks the relationship graph outward from the start tags,
following the relationship types given with --relationships (all types,
unlimited depth, when omitted), and renders the reachable subgraph.

When --tags is omitted an interactive picker lists the declared entities.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TraceFile = args[0]
			opts.Tags = parseTags(tagsStr)
			opts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runGraph(cmd.Context(), opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&tagsStr, "tags", "t", "", "start entity tag(s), comma-separated")
	cmd.Flags().StringVarP(&opts.Relationships, "relationships", "r", "", "relationship types to follow, e.g. \"parents:2,used-in\"")
	cmd.Flags().StringVar(&opts.Caption, "caption", "", "diagram caption")
	cmd.Flags().StringVar(&opts.StylesFile, "styles", "", "TOML style overrides")
	cmd.Flags().StringVar(&opts.RelTypesFile, "rel-types", "", "TOML relationship-type table (replaces built-ins)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "re-render even when cached")

	return cmd
}

// runGraph resolves start tags, runs the pipeline, and writes artifacts.
func (c *CLI) runGraph(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	if len(opts.Tags) == 0 {
		listed, err := runner.List(ctx, opts)
		if err != nil {
			return err
		}
		tags, err := pickTags(listed.Entries)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			printInfo("No entities selected")
			return nil
		}
		opts.Tags = tags
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", strings.Join(opts.Tags, ", ")))
	spinner.Start()

	result, err := runner.Graph(ctx, opts)
	if err != nil {
		spinner.StopWithError("Rendering failed")
		if result != nil {
			printDiagnostics(result.Diagnostics)
		}
		return err
	}
	spinner.Stop()

	printDiagnostics(result.Diagnostics)
	printSuccess("Rendered %s", strings.Join(opts.Tags, ", "))
	printStats(result.Stats.Entities, result.Stats.Edges, result.CacheHit)

	return writeArtifacts(result.Artifacts, opts.Formats, opts.TraceFile, output)
}

// printDiagnostics echoes directive diagnostics in severity style.
func printDiagnostics(diags []document.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case document.SeverityError:
			printError("%s", d.Message)
		default:
			printWarning("%s", d.Message)
		}
	}
}

// writeArtifacts writes each rendered format to disk. A single format goes
// to output verbatim (or input basename plus extension); multiple formats
// share a base path with per-format extensions.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) error {
	if len(formats) == 1 {
		format := formats[0]
		path := output
		if path == "" {
			path = basePath("", input) + "." + format
		}
		return writeArtifact(path, artifacts[format])
	}

	base := basePath(output, input)
	for _, format := range formats {
		if err := writeArtifact(base+"."+format, artifacts[format]); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	printFile(path)
	return nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .dot, .png), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
