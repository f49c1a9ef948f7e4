// Package cli implements the gowl command line interface.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/config"
	"github.com/me/gowl/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the gowl CLI.
func NewRootCmd() *cobra.Command {
	env := config.FromEnv()

	root := &cobra.Command{
		Use:   "gowl",
		Short: "gowl — translate workflows between WDL and CWL",
		Long: `gowl parses WDL 1.0 and CWL v1.2 workflow documents into a common
representation, validates them, and emits the other language.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = env
			cfg.LogLevel = flagLogLevel
			cfg.LogFormat = flagLogFormat
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.New(cfg.LogLevel, cfg.LogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", env.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", env.LogFormat, "Log format (text, json)")

	root.AddCommand(
		newConvertCmd(),
		newValidateCmd(),
		newStatsCmd(),
		newBatchCmd(),
		newServeCmd(),
	)

	return root
}
