// Package pipeline turns one CSV manifest into pairtree derivatives, waveform
// objects and a rewritten manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
	"github.com/abdul-hamid-achik/av-pairtree/internal/jobs"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/manifest"
	"github.com/abdul-hamid-achik/av-pairtree/internal/metrics"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor/waveform"
	"github.com/abdul-hamid-achik/av-pairtree/internal/tracing"
	"github.com/abdul-hamid-achik/av-pairtree/internal/worker"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	StageConvert  = "convert"
	StageWaveform = "waveform"
	StagePairtree = "pairtree"
)

type Converter interface {
	Convert(ctx context.Context, item manifest.Item) (manifest.Item, error)
}

type Extractor interface {
	Extract(ctx context.Context, item manifest.Item) (waveform.Result, error)
}

type Store interface {
	Put(ctx context.Context, item manifest.Item) (manifest.Item, error)
}

type URLBuilder interface {
	Build(ark, pathRoot string) (string, error)
}

type Deps struct {
	Converter Converter
	Extractor Extractor
	Store     Store
	URLs      URLBuilder
	Tracker   jobs.Tracker

	// Collector may be nil.
	Collector worker.MetricsCollector
	Logger    zerolog.Logger
}

type Options struct {
	ConversionWorkers int
	WaveformWorkers   int
	PairtreeWorkers   int

	// PartialSuccess writes the output manifest from the rows that succeeded
	// instead of failing the whole manifest on the first bad row.
	PartialSuccess bool
}

// Processor runs manifests through the conversion, waveform and pairtree
// pools. One Processor serves any number of concurrent manifests.
type Processor struct {
	convert  *worker.Pool[manifest.Item, manifest.Item]
	waveform *worker.Pool[manifest.Item, waveform.Result]
	store    *worker.Pool[manifest.Item, manifest.Item]

	urls    URLBuilder
	tracker jobs.Tracker
	partial bool
}

func New(deps Deps, opts Options) *Processor {
	zl := deps.Logger
	tracker := deps.Tracker
	if tracker == nil {
		tracker = jobs.NewMemoryTracker()
	}

	return &Processor{
		convert: worker.NewPool(StageConvert, opts.ConversionWorkers,
			worker.Chain(traced(StageConvert, deps.Converter.Convert),
				worker.Standard[manifest.Item, manifest.Item](zl, deps.Collector, StageConvert)...),
			worker.WithLogger(zl)),
		waveform: worker.NewPool(StageWaveform, opts.WaveformWorkers,
			worker.Chain(traced(StageWaveform, deps.Extractor.Extract),
				worker.Standard[manifest.Item, waveform.Result](zl, deps.Collector, StageWaveform)...),
			worker.WithLogger(zl)),
		store: worker.NewPool(StagePairtree, opts.PairtreeWorkers,
			worker.Chain(traced(StagePairtree, deps.Store.Put),
				worker.Standard[manifest.Item, manifest.Item](zl, deps.Collector, StagePairtree)...),
			worker.WithLogger(zl)),
		urls:    deps.URLs,
		tracker: tracker,
		partial: opts.PartialSuccess,
	}
}

func traced[Out any](stage string, fn func(context.Context, manifest.Item) (Out, error)) worker.Handler[manifest.Item, Out] {
	return func(ctx context.Context, item manifest.Item) (Out, error) {
		ctx, span := tracing.StartJobSpan(logger.WithARK(ctx, item.ARK), stage, item.ARK)
		out, err := fn(ctx, item)
		tracing.EndSpan(span, err)
		return out, err
	}
}

// PoolSizes reports the worker count of each stage.
func (p *Processor) PoolSizes() map[string]int {
	return map[string]int{
		StageConvert:  p.convert.Size(),
		StageWaveform: p.waveform.Size(),
		StagePairtree: p.store.Size(),
	}
}

func (p *Processor) Tracker() jobs.Tracker {
	return p.tracker
}

// Close waits for queued jobs and stops every pool.
func (p *Processor) Close() {
	p.convert.Close()
	p.waveform.Close()
	p.store.Close()
}

type rowResult struct {
	stored   manifest.Item
	waveform string
}

// Process runs every audio and video row of the manifest at manifestPath and
// writes the rewritten manifest next to it. It returns the output path.
//
// Unless PartialSuccess is set, any failed row fails the manifest and no
// output is written. With PartialSuccess the output is written from the rows
// that succeeded and the row failures are returned alongside the path.
func (p *Processor) Process(ctx context.Context, manifestPath string) (string, error) {
	runID := uuid.NewString()
	ctx = logger.WithManifest(logger.WithRunID(ctx, runID), manifestPath)
	ctx, span := tracing.StartManifestSpan(ctx, runID, manifestPath)

	log := logger.FromContext(ctx)
	start := time.Now()

	out, err := p.process(ctx, manifestPath, runID)
	tracing.EndSpan(span, err)

	status := "success"
	switch {
	case err != nil && out == "":
		status = "failed"
		log.Error("manifest failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
	case err != nil:
		status = "partial"
		log.Warn("manifest partially processed", "output", out, "error", err, "duration_ms", time.Since(start).Milliseconds())
	default:
		log.Info("manifest processed", "output", out, "duration_ms", time.Since(start).Milliseconds())
	}
	metrics.RecordManifest(status, time.Since(start).Seconds())

	return out, err
}

func (p *Processor) process(ctx context.Context, manifestPath, runID string) (string, error) {
	log := logger.FromContext(ctx)

	m, err := manifest.ReadFile(manifestPath)
	if err != nil {
		return "", err
	}

	var (
		mu       sync.Mutex
		results  = make(map[int]rowResult)
		failures []error
	)
	fail := func(row manifest.Row, err error) {
		mu.Lock()
		failures = append(failures, fmt.Errorf("line %d (%s): %w", row.Line, row.Item.ARK, err))
		mu.Unlock()
	}

	// Claim every ARK before any job starts so duplicates are detected no
	// matter how fast earlier rows finish.
	var (
		accepted  []manifest.Row
		mediaRows int
	)
	for _, row := range m.Rows {
		kind := row.Item.Kind()
		metrics.RecordRow(kind.String())
		if kind == manifest.KindOther {
			continue
		}
		mediaRows++

		err := p.tracker.Add(ctx, jobs.Entry{
			Item:      row.Item,
			RunID:     runID,
			Manifest:  manifestPath,
			StartedAt: time.Now().UTC(),
		})
		if errors.Is(err, jobs.ErrDuplicate) {
			fail(row, apperror.Wrap(err, apperror.KindDuplicateJob, "pipeline", "duplicate ark"))
			continue
		}
		if err != nil {
			fail(row, apperror.Wrap(err, apperror.KindInternal, "pipeline", "cannot track job"))
			continue
		}
		metrics.JobsInFlight.Inc()
		accepted = append(accepted, row)
	}

	log.Info("manifest read", "rows", len(m.Rows), "jobs", len(accepted))

	var g errgroup.Group
	for _, row := range accepted {
		row := row
		g.Go(func() error {
			res, err := p.runRow(ctx, row.Item)

			switch rmErr := p.tracker.Remove(ctx, row.Item.ARK, runID); {
			case errors.Is(rmErr, jobs.ErrNotFound), errors.Is(rmErr, jobs.ErrNotOwner):
				log.Warn("job claim lost before release", "ark", row.Item.ARK, "error", rmErr)
			case rmErr != nil:
				log.Error("failed to release job", "ark", row.Item.ARK, "error", rmErr)
				err = errors.Join(err, rmErr)
			}
			metrics.JobsInFlight.Dec()

			if err != nil {
				fail(row, err)
				return err
			}
			mu.Lock()
			results[row.Line] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var failed error
	if len(failures) > 0 {
		failed = fmt.Errorf("%d of %d rows failed: %w", len(failures), mediaRows, errors.Join(failures...))
		if !p.partial {
			return "", failed
		}
	}

	accessURLs := make(map[int]string, len(results))
	waveforms := make(map[int]string, len(results))
	for line, res := range results {
		url, err := p.urls.Build(res.stored.ARK, res.stored.PathRoot)
		if err != nil {
			return "", err
		}
		accessURLs[line] = url
		if res.waveform != "" {
			waveforms[line] = res.waveform
		}
	}

	out, err := manifest.Rewrite(manifestPath, accessURLs, waveforms)
	if err != nil {
		return "", err
	}
	return out, failed
}

// runRow settles every job of one row. Audio rows convert then store the
// derivative while the waveform is extracted from the original in parallel;
// video rows are stored as they are.
func (p *Processor) runRow(ctx context.Context, item manifest.Item) (rowResult, error) {
	if item.IsVideo() {
		stored, err := p.store.Submit(ctx, item).Wait(ctx)
		return rowResult{stored: stored}, err
	}

	wave := p.waveform.Submit(ctx, item)

	stored, storeErr := p.convertAndStore(ctx, item)
	res, waveErr := wave.Wait(ctx)

	if err := errors.Join(storeErr, waveErr); err != nil {
		return rowResult{}, err
	}
	return rowResult{stored: stored, waveform: res.URL}, nil
}

func (p *Processor) convertAndStore(ctx context.Context, item manifest.Item) (manifest.Item, error) {
	converted, err := p.convert.Submit(ctx, item).Wait(ctx)
	if err != nil {
		return item, err
	}

	stored, err := p.store.Submit(ctx, converted).Wait(ctx)
	if err != nil {
		return item, err
	}

	if err := os.Remove(converted.FilePath); err != nil {
		return item, apperror.Wrap(err, apperror.KindStorage, "pipeline", "cannot delete scratch derivative")
	}
	_ = os.Remove(filepath.Dir(converted.FilePath))

	return stored, nil
}
