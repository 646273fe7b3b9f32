package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdul-hamid-achik/av-pairtree/internal/config"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var processCmd = &cobra.Command{
	Use:   "process <manifest.csv>...",
	Short: "Process manifests once and exit",
	Long: `Run each manifest through conversion, waveform extraction and Pairtree
storage, then write <manifest>.out next to it. Manifests run concurrently and
share the worker pools.

Examples:
  avpt process /data/csv/soul.csv
  avpt process --json /data/csv/*.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

type manifestResult struct {
	Manifest string `json:"manifest"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	err      error
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.InitWriter(cfg.LogLevel, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	results := processManifests(ctx, app, args, cmd.ErrOrStderr())

	failed := 0
	for _, r := range results {
		if r.Output == "" {
			failed++
			printer.ManifestFailed(r.Manifest, r.err)
			continue
		}
		printer.ManifestDone(r.Manifest, r.Output, r.err)
	}

	if printer.IsJSON() {
		if err := printer.JSON(results); err != nil {
			return err
		}
	} else if len(results) > 1 {
		printer.Summary(len(results)-failed, failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifests failed", failed, len(results))
	}
	return nil
}

func processManifests(ctx context.Context, app *App, paths []string, progressOut io.Writer) []manifestResult {
	progress := output.NewProgress(len(paths), "manifests",
		output.ProgressWithQuiet(quietMode || jsonOutput || len(paths) == 1),
		output.ProgressWithOutput(progressOut),
	)

	results := make([]manifestResult, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			out, err := app.Processor.Process(ctx, path)
			results[i] = manifestResult{Manifest: path, Output: out, err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			progress.Increment()
			return nil
		})
	}
	_ = g.Wait()
	progress.Finish()

	return results
}
