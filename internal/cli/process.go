package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/traceviz/traceviz/pkg/document"
	"github.com/traceviz/traceviz/pkg/styles"
	"github.com/traceviz/traceviz/pkg/trace"
)

// processCommand creates the process command for document directive
// expansion.
func (c *CLI) processCommand() *cobra.Command {
	var (
		stylesFile   string
		relTypesFile string
		output       string
		strict       bool
	)

	cmd := &cobra.Command{
		Use:   "process [trace.json] [document.json]",
		Short: "Execute the graph and list directives of a document",
		Long: `Execute the graph and list directives of a document.

The document is a JSON file of text nodes and directive nodes. Each graph
directive is replaced with its rendered DOT text, each list directive with
its matching entities. Diagnostics are printed with source locations; a
broken directive fails in place without aborting the document.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProcess(cmd.Context(), args[0], args[1], stylesFile, relTypesFile, output, strict)
		},
	}

	cmd.Flags().StringVar(&stylesFile, "styles", "", "TOML style overrides")
	cmd.Flags().StringVar(&relTypesFile, "rel-types", "", "TOML relationship-type table (replaces built-ins)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: document name with .out.json)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}

func (c *CLI) runProcess(ctx context.Context, traceFile, docFile, stylesFile, relTypesFile, output string, strict bool) error {
	prog := newProgress(c.Logger)

	var relTypes []trace.RelType
	if relTypesFile != "" {
		loaded, err := trace.LoadRelTypes(relTypesFile)
		if err != nil {
			return err
		}
		relTypes = loaded
	}

	f, err := os.Open(traceFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", traceFile, err)
	}
	reg, err := trace.ReadWithTypes(f, relTypes)
	f.Close()
	if err != nil {
		return err
	}

	policy := styles.Default()
	if stylesFile != "" {
		policy, err = styles.Load(stylesFile)
		if err != nil {
			return err
		}
	}

	doc, err := readDocument(docFile)
	if err != nil {
		return err
	}

	proc := document.NewProcessor(reg, policy)
	processed, diags := proc.Process(doc)

	worst := printDocDiagnostics(diags, strict)

	if output == "" {
		output = strings.TrimSuffix(docFile, ".json") + ".out.json"
	}
	if err := writeDocument(output, processed); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Processed %d nodes", len(processed.Nodes)))
	printFile(output)

	if worst {
		return fmt.Errorf("document has errors")
	}
	return nil
}

// printDocDiagnostics echoes diagnostics with locations and reports whether
// any should fail the run.
func printDocDiagnostics(diags []document.Diagnostic, strict bool) bool {
	failed := false
	for _, d := range diags {
		switch d.Severity {
		case document.SeverityError:
			printError("%s", d.String())
			failed = true
		default:
			printWarning("%s", d.String())
			if strict {
				failed = true
			}
		}
	}
	return failed
}

func readDocument(path string) (document.Document, error) {
	var doc document.Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = path
	}
	return doc, nil
}

func writeDocument(path string, doc document.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
