package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/convert"
)

func newConvertCmd() *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "convert <workflow-file>",
		Short: "Convert a workflow document to the other language",
		Long: `Parses the document, validates it, and writes the translation to
stdout (or --output). Degradations the target language forces, such as
dropped runtime hints, are reported on stderr and never fail the
conversion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			srcLang, err := resolveLanguage(from, path)
			if err != nil {
				return err
			}
			dstLang := srcLang.Other()
			if to != "" {
				if dstLang, err = convert.ParseLanguage(to); err != nil {
					return err
				}
			}

			res, err := convert.New(logger).Convert(path, data, srcLang, dstLang)
			if err != nil {
				return err
			}

			for _, d := range res.Diagnostics {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", d)
			}
			if output != "" {
				if err := os.WriteFile(output, []byte(res.Output), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source language: wdl or cwl (default: from file extension)")
	cmd.Flags().StringVar(&to, "to", "", "Target language: wdl or cwl (default: the opposite of the source)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the translation to a file instead of stdout")

	return cmd
}

// resolveLanguage picks the source language from the --from flag or,
// when absent, the file extension.
func resolveLanguage(flag, path string) (convert.Language, error) {
	if flag != "" {
		return convert.ParseLanguage(flag)
	}
	if lang, ok := convert.DetectLanguage(path); ok {
		return lang, nil
	}
	return "", fmt.Errorf("cannot detect language of %q; pass --from", path)
}
