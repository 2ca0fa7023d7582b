package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/florinutz/rowsync"
	"github.com/florinutz/rowsync/health"
	"github.com/florinutz/rowsync/internal/logging"
	"github.com/florinutz/rowsync/internal/safegoroutine"
	"github.com/florinutz/rowsync/internal/server"
	"github.com/florinutz/rowsync/rowsyncerr"
	"github.com/florinutz/rowsync/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the source table and copy new rows into the destination",
	Long: `Connects to the destination, creates or widens the destination table to
fit the mapping, then every poll interval copies source rows with an id above
the destination's highest id. A lost destination connection is reopened; an
unreachable source is retried on the next cycle.`,
	RunE: runDaemon,
}

func init() {
	f := runCmd.Flags()

	f.String("metrics-addr", "", "standalone metrics/health server address (e.g. :9090)")
	f.Duration("poll-interval", 10*time.Second, "delay between sync cycles")
	f.String("dead-letter", "log", "sink for rows that fail to insert: log, file, none")
	f.String("dead-letter-path", "", "output file for --dead-letter file")
	f.String("otel-exporter", "none", "trace exporter: none, stdout, otlp")
	f.String("otel-endpoint", "", "OTLP endpoint (default: OTEL_EXPORTER_OTLP_ENDPOINT)")

	mustBindPFlag("metrics_addr", f.Lookup("metrics-addr"))
	mustBindPFlag("poll_interval", f.Lookup("poll-interval"))
	mustBindPFlag("dead_letter.type", f.Lookup("dead-letter"))
	mustBindPFlag("dead_letter.path", f.Lookup("dead-letter-path"))
	mustBindPFlag("otel.exporter", f.Lookup("otel-exporter"))
	mustBindPFlag("otel.endpoint", f.Lookup("otel-endpoint"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	// Root context: cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Exporter:          cfg.OTel.Exporter,
		Endpoint:          cfg.OTel.Endpoint,
		SampleRatio:       cfg.OTel.SampleRatio,
		ServiceVersion:    Version,
		SourceDriver:      cfg.Source.Driver,
		DestinationDriver: cfg.Destination.Driver,
	}, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer shutdownTracing()

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	checker := health.NewChecker()
	readiness := health.NewReadinessChecker()
	daemon := rowsync.New(c.openDestination, c.reconciler, c.fetcher, c.table,
		rowsync.WithLogger(logger),
		rowsync.WithPollInterval(cfg.PollInterval),
		rowsync.WithRecoveryBackoff(cfg.RecoveryBackoff),
		rowsync.WithHealthChecker(checker),
		rowsync.WithReadiness(readiness),
		rowsync.WithTracerProvider(tp),
		rowsync.WithIdentityField(cfg.Source.IdentityField),
	)

	logger.Info("rowsync starting",
		"version", Version,
		"source", cfg.Source.Driver,
		"source_table", cfg.Source.Table,
		"destination", cfg.Destination.Driver,
		"destination_table", cfg.Destination.Table,
		"fields", c.mapping.Len(),
	)

	g, gCtx := errgroup.WithContext(ctx)

	safegoroutine.Go(g, logger, "daemon", func() error {
		return daemon.Run(gCtx)
	})

	// If --metrics-addr is set, start a dedicated metrics/health server.
	if cfg.MetricsAddr != "" {
		metricsServer := server.NewMetricsServer(cfg.MetricsAddr, checker, readiness)

		g.Go(func() error {
			logger.Info("metrics server starting", "addr", cfg.MetricsAddr)
			ln, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				return fmt.Errorf("metrics listen: %w", err)
			}
			if err := metricsServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			logger.Info("shutting down metrics server")
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	// Wait for errgroup to finish (happens when context is cancelled).
	err = g.Wait()

	// context.Canceled is expected on clean shutdown.
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("shutdown complete")
		return nil
	}
	if rowsyncerr.IsFatal(err) {
		logger.Log(context.Background(), logging.LevelCritical, "cannot start", "error", err)
	}
	return err
}
