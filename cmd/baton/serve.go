package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/batonlabs/baton"
	httpadapter "github.com/batonlabs/baton/pkg/adapters/http"
	"github.com/batonlabs/baton/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flock over HTTP",
	Long: `Starts the HTTP API: session CRUD, step and input endpoints, an
SSE event stream, and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		logger := getLogger(cmd)

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		orch, _, err := loadOrchestrator(cmd, baton.WithLifecycleHooks(metrics.Hooks()))
		if err != nil {
			return err
		}

		sessions, cleanup, err := getSessionManager(cmd, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		flockPath, _ := cmd.Flags().GetString("flock")
		api := httpadapter.NewHandler(orch, sessions,
			httpadapter.WithLogger(logger),
			httpadapter.WithInfo(map[string]string{
				"version": baton.Version,
				"flock":   flockPath,
			}),
		)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("/", api)

		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("http server listening", "address", server.Addr)
			serverErrors <- server.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}
