package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/traceviz/traceviz/pkg/listing"
	"github.com/traceviz/traceviz/pkg/pipeline"
)

// listCommand creates the list command for filtered entity listings.
func (c *CLI) listCommand() *cobra.Command {
	var output string
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "list [trace.json]",
		Short: "List traceable entities, optionally filtered",
		Long: `List traceable entities as "tag: title" lines, sorted by tag.

A filter expression restricts the listing by attribute values:

  traceviz list trace.json --filter 'category == "req" and version >= 2'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TraceFile = args[0]
			return c.runList(cmd.Context(), opts, output)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "attribute filter expression")
	cmd.Flags().StringVar(&opts.RelTypesFile, "rel-types", "", "TOML relationship-type table (replaces built-ins)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write listing to a file instead of stdout")

	return cmd
}

func (c *CLI) runList(ctx context.Context, opts pipeline.Options, output string) error {
	runner, err := c.newRunner(true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	result, err := runner.List(ctx, opts)
	if err != nil {
		return err
	}

	if output == "" {
		return listing.Write(os.Stdout, result.Entries)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer f.Close()
	if err := listing.Write(f, result.Entries); err != nil {
		return err
	}
	printSuccess("Listed %d entities", len(result.Entries))
	printFile(output)
	return nil
}
