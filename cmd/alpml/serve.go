package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/alpml/internal/dev"
	"github.com/vango-dev/alpml/pkg/telemetry"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port     int
		host     string
		noReload bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development server",
		Long: `Start the development server.

Pages are rendered on every request, so edits to pages and component
documents show up on the next load. With hot reload on, connected
browsers reload when a watched file changes.

Query parameters set component attributes:
  /index.html?alp-counter.count=3

Examples:
  alpml serve
  alpml serve --port=8080
  alpml serve --host=0.0.0.0 --no-reload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags, port, host, noReload)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from alpml.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from alpml.json)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Disable hot reload")

	return cmd
}

func runServe(flags *globalFlags, port int, host string, noReload bool) error {
	cfg, logger, err := flags.load()
	if err != nil {
		return err
	}

	if port > 0 {
		cfg.Dev.Port = port
	}
	if host != "" {
		cfg.Dev.Host = host
	}
	if noReload {
		cfg.Dev.HotReload = false
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(registry))

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	info("Pages:   %s", cfg.PagesPath())
	info("Metrics: %s%s", cfg.DevURL(), dev.MetricsPath)
	fmt.Println()

	server := dev.NewServer(dev.ServerOptions{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: registry,
		OnReload: func(clients int) {
			success("Reloaded %d browsers", clients)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		fmt.Println("\n\n  Shutting down...")
	}()

	success("Server running at %s", cfg.DevURL())
	return server.Start(ctx)
}
