package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/convert"
)

func newStatsCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "stats <workflow-file>",
		Short: "Analyze a workflow's dependency graph",
		Long: `Validates the document and prints a JSON summary of its call
graph: execution order depth, critical path, and maximum parallelism.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			lang, err := resolveLanguage(from, path)
			if err != nil {
				return err
			}

			stats, err := convert.New(logger).Stats(lang, path, data)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source language: wdl or cwl (default: from file extension)")

	return cmd
}
