package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gowl/internal/server"
	"github.com/me/gowl/internal/store"
)

func newServeCmd() *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the translation REST API server",
		Long: `Serves the convert, validate and stats endpoints over HTTP. With
--db the server also records and exposes conversion history under
/api/v1/runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			var opts []server.Option
			if cfg.DBPath != "" {
				st, err := store.NewSQLiteStore(cfg.DBPath, logger)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer st.Close()
				if err := st.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
				logger.Info("conversion history enabled", "path", cfg.DBPath)
				opts = append(opts, server.WithHistory(st))
			}

			httpServer := &http.Server{
				Addr:    cfg.Addr,
				Handler: server.New(cfg, logger, opts...),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080, or GOWL_ADDR env)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite conversion-history database (or GOWL_DB env)")

	return cmd
}
