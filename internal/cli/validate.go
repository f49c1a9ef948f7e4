package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/pkg/ir"
)

func newValidateCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Parse and validate a workflow document",
		Long: `Runs the parser and the graph-level validation checks without
emitting anything. Exits non-zero when the document is unsound, listing
every failure of the first failing kind.`,
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

			wf, err := convert.New(logger).Validate(lang, path, data)
			if err != nil {
				var verrs ir.ValidationErrors
				if errors.As(err, &verrs) {
					for _, ve := range verrs {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", ve)
					}
					return fmt.Errorf("%d %s error(s)", len(verrs), verrs.Kind())
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d tasks, %d calls)\n",
				wf.Name, len(wf.Tasks), len(wf.Calls))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source language: wdl or cwl (default: from file extension)")

	return cmd
}
