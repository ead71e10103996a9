package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline/internal/cli"
	httpadapter "github.com/aretw0/redline/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP review API",
	Long: `Starts the review service over HTTP: task creation, approval decisions,
resume, skill invocation, an SSE event stream per task and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		port := app.Config.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		handler, err := httpadapter.NewHandler(app.Service, app.Dispatcher,
			httpadapter.WithLogger(app.Logger),
			httpadapter.WithStreams(app.Streams),
			httpadapter.WithMetrics(app.Metrics.Handler()),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if age := app.Config.Server.ReapAge; age > 0 {
			go reapLoop(ctx, app, age)
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Starting redline server", "addr", srv.Addr, "domains", app.Plugins.Domains())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			app.Logger.Info("Shutting down", "signal", ctx.Signal())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		app.Logger.Info("Redline server stopped gracefully")
		return nil
	},
}

// reapLoop deletes idle tasks until ctx is cancelled.
func reapLoop(ctx context.Context, app *cli.App, age time.Duration) {
	interval := max(age/4, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.Service.Reap(ctx, age)
			if err != nil {
				app.Logger.Warn("Reap failed", "err", err)
				continue
			}
			if n > 0 {
				app.Logger.Info("Reaped idle tasks", "count", n, "max_idle", age)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides server.port)")
}
