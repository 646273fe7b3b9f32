package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/config"
	"github.com/abdul-hamid-achik/av-pairtree/internal/jobs"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/server"
	"github.com/abdul-hamid-achik/av-pairtree/internal/tracing"
	"github.com/abdul-hamid-achik/av-pairtree/internal/version"
	"github.com/abdul-hamid-achik/av-pairtree/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveResetJobs bool
	serveSettle    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the CSV directory and serve status endpoints",
	Long: `Watch CSV_DIR for new or modified .csv manifests and process each one
once it stops changing. Status, health, job and metrics endpoints are served
on HTTP_HOST:HTTP_PORT.

On SIGINT or SIGTERM the server stops accepting manifests, lets the ones in
progress finish and exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveResetJobs, "reset-jobs", false, "Clear leftover Redis job entries before starting")
	serveCmd.Flags().DurationVar(&serveSettle, "settle", watcher.DefaultSettle, "How long a manifest must stay unchanged before it is processed")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel)
	log := logger.Default()

	lock, err := watcher.Lock(cfg.CSVDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracingConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracing shutdown failed", "error", err)
		}
	}()

	app, err := NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	if serveResetJobs {
		if rt, ok := app.Tracker.(*jobs.RedisTracker); ok {
			n, err := rt.Reset(ctx)
			if err != nil {
				return fmt.Errorf("reset jobs: %w", err)
			}
			log.Info("cleared job entries", "count", n)
		}
	}

	opts := server.Options{
		Addr:    cfg.HTTPAddr(),
		Checker: app.Checker,
		Tracker: app.Tracker,
	}
	if cfg.OTelEnabled {
		opts.ServiceName = serviceName
	}
	srv := server.New(opts)

	// Manifests already picked up run to completion after a signal.
	w := watcher.New(cfg.CSVDir, func(ctx context.Context, path string) {
		_, _ = app.Processor.Process(context.WithoutCancel(ctx), path)
	}, watcher.WithSettle(serveSettle))

	log.Info("starting av-pairtree",
		"version", version.Short(),
		"environment", cfg.Environment,
		"csv_dir", cfg.CSVDir,
		"output_dir", cfg.OutputDir,
		"pools", app.Processor.PoolSizes(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := w.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("watcher stopped unexpectedly")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

func tracingConfig(cfg *config.Config) *tracing.Config {
	return &tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.Short(),
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRate:     cfg.OTelSampleRate,
	}
}
