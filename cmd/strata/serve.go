package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	httpAdapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the storage API described by /openapi.yaml, with Prometheus
metrics on /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				o.cfg.HTTP.Addr = addr
			}
			return o.withApp(cmd, func(app *strata.App) error {
				handler, err := httpAdapter.NewHandler(app.Storage, app.Repo,
					httpAdapter.WithLogger(o.logger),
					httpAdapter.WithMetrics(app.Metrics.Handler()),
					httpAdapter.WithVersion(strata.Version),
				)
				if err != nil {
					return err
				}
				srv := &http.Server{
					Addr:              o.cfg.HTTP.Addr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}
				if f, ok := cmd.ErrOrStderr().(*os.File); ok && tui.IsTerminal(f) {
					tui.PrintBanner(f)
				}
				return serve(cmd.Context(), srv, o)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down within shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, o *rootOptions) error {
	serverErrors := make(chan error, 1)
	go func() {
		o.logger.Info("Starting Strata Server", "address", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		o.logger.Info("Start shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			o.logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		o.logger.Info("Strata Server stopped gracefully")
		return nil
	}
}
