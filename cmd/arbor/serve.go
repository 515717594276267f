package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/internal/logging"
	httpadapter "github.com/arborlabs/arbor/pkg/adapters/http"
	"github.com/arborlabs/arbor/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP evaluation server",
	Long: `Starts the Arbor engine in server mode. Trees are submitted over HTTP,
and a remote judge steers decisions via the SSE event stream and the
/do, /notify, /complete and /fail endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")

		level, err := resolveLogLevel(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Server logs are JSON so log shippers can parse them.
		logger := logging.NewJSON(level)

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		oracle := httpadapter.NewOracle(httpadapter.WithOracleLogger(logger))
		engine, err := arbor.New(oracle,
			arbor.WithLogger(logger),
			arbor.WithMetrics(metrics),
		)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer engine.Close()

		handler := httpadapter.NewHandler(oracle, engine,
			httpadapter.WithServerLogger(logger),
			httpadapter.WithMetricsGatherer(registry),
		)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting Arbor Server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("Starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("Arbor Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
