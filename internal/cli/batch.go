package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/batch"
	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/internal/store"
)

func newBatchCmd() *cobra.Command {
	var (
		to      string
		workers int
		dbPath  string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "batch <directory-or-s3-uri>",
		Short: "Convert every workflow document under a directory or S3 prefix",
		Long: `Lists *.wdl and *.cwl documents under a local directory or an
s3://bucket/prefix URI and converts each to the target language. Each
document's source language comes from its extension; a failure in one
document never stops the rest. With --db the run and every outcome are
recorded in the conversion history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target, err := convert.ParseLanguage(to)
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.Workers
			}

			var history store.Store
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if dbPath != "" {
				st, err := store.NewSQLiteStore(dbPath, logger)
				if err != nil {
					return fmt.Errorf("open history database: %w", err)
				}
				defer st.Close()
				if err := st.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate history database: %w", err)
				}
				history = st
			}

			src, err := batch.OpenSource(ctx, args[0], cfg.S3Region, logger)
			if err != nil {
				return err
			}

			runner := batch.NewRunner(convert.New(logger), logger, workers, history)
			summary, err := runner.Run(ctx, src, target)
			if err != nil {
				return err
			}

			for _, res := range summary.Results {
				if res.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed    %s: %v\n", res.Name, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "converted %s (%d diagnostics)\n",
					res.Name, len(res.Result.Diagnostics))
				if outDir != "" {
					if err := writeConverted(outDir, res.Name, target, res.Result.Output); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d converted in %s\n",
				summary.RunID, summary.Succeeded, summary.Total, summary.Elapsed.Round(time.Millisecond))

			if summary.Failed > 0 {
				return fmt.Errorf("%d document(s) failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Target language: wdl or cwl (required)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent conversions (default: number of CPUs)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite conversion-history database (or GOWL_DB env)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Write converted documents under this directory")
	cmd.MarkFlagRequired("to")

	return cmd
}

// writeConverted stores one translated document under dir, swapping the
// extension for the target language's.
func writeConverted(dir, name string, target convert.Language, output string) error {
	ext := filepath.Ext(name)
	dest := filepath.Join(dir, strings.TrimSuffix(name, ext)+"."+string(target))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, []byte(output), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
