package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/av-pairtree/internal/accessurl"
	"github.com/abdul-hamid-achik/av-pairtree/internal/config"
	"github.com/abdul-hamid-achik/av-pairtree/internal/health"
	"github.com/abdul-hamid-achik/av-pairtree/internal/jobs"
	"github.com/abdul-hamid-achik/av-pairtree/internal/logger"
	"github.com/abdul-hamid-achik/av-pairtree/internal/metrics"
	"github.com/abdul-hamid-achik/av-pairtree/internal/pairtree"
	"github.com/abdul-hamid-achik/av-pairtree/internal/pipeline"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor/audio"
	"github.com/abdul-hamid-achik/av-pairtree/internal/processor/waveform"
	"github.com/abdul-hamid-achik/av-pairtree/internal/storage"
	"github.com/abdul-hamid-achik/av-pairtree/internal/version"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const serviceName = "av-pairtree"

// startupTimeout bounds how long bootstrap waits for the bucket and Redis.
var startupTimeout = 30 * time.Second

// App is everything a command needs to run manifests.
type App struct {
	Config    *config.Config
	Storage   storage.Storage
	Redis     *redis.Client
	Tracker   jobs.Tracker
	Checker   *health.Checker
	Processor *pipeline.Processor

	converter *audio.Converter
}

// NewApp wires storage, tracking and the pipeline. Pool logs go to logOut at
// cfg.LogLevel.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	log := logger.FromContext(ctx)
	app := &App{Config: cfg}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Storage = metrics.NewInstrumentedStorage(store)

	if cfg.RedisURL != "" {
		client, err := newRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		app.Tracker = jobs.NewRedisTracker(client, "", 0)
		log.Info("tracking jobs in redis")
	} else {
		app.Tracker = jobs.NewMemoryTracker()
	}
	app.Checker = health.NewChecker(app.Redis).WithStorage(app.Storage)

	app.converter, err = audio.NewConverter(&audio.Config{
		FFmpegPath: cfg.FFmpegPath,
		SourceDir:  cfg.SourceDir,
		Codec:      cfg.Audio.Codec,
		BitRate:    cfg.Audio.BitRate,
		Channels:   cfg.Audio.Channels,
		SampleRate: cfg.Audio.SampleRate,
		Format:     cfg.Audio.Format,
		Threads:    cfg.Audio.Threads,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	extractor, err := waveform.NewExtractor(&waveform.Config{
		AudiowaveformPath: cfg.AudiowaveformPath,
		SourceDir:         cfg.SourceDir,
	}, app.Storage)
	if err != nil {
		app.Close()
		return nil, err
	}

	urls, err := accessurl.New(accessurl.Config{
		Template:  cfg.AccessURLTemplate,
		Slot:      cfg.AccessURLIndex,
		Prefix:    cfg.PairtreePrefix,
		Extension: cfg.Audio.Format,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Processor = pipeline.New(pipeline.Deps{
		Converter: app.converter,
		Extractor: extractor,
		Store: pairtree.NewStore(pairtree.Config{
			OutputDir: cfg.OutputDir,
			SourceDir: cfg.SourceDir,
			Prefix:    cfg.PairtreePrefix,
			Extension: cfg.Audio.Format,
		}),
		URLs:      urls,
		Tracker:   app.Tracker,
		Collector: metrics.NewPrometheusCollector(),
		Logger:    newJobLogger(cfg.LogLevel, logOut),
	}, pipeline.Options{
		ConversionWorkers: cfg.ConversionWorkers,
		WaveformWorkers:   cfg.WaveformWorkers,
		PairtreeWorkers:   cfg.PairtreeWorkers,
		PartialSuccess:    cfg.PartialSuccess,
	})

	for stage, size := range app.Processor.PoolSizes() {
		metrics.SetWorkerPoolSize(stage, size)
	}
	metrics.SetAppInfo(version.Short(), cfg.Environment, serviceName)

	return app, nil
}

// Close drains the pools, then releases scratch space and connections.
func (a *App) Close() error {
	var errs []error
	if a.Processor != nil {
		a.Processor.Close()
	}
	if a.converter != nil {
		errs = append(errs, a.converter.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

func newJobLogger(level string, w io.Writer) zerolog.Logger {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	log := logger.FromContext(ctx)
	scfg := &storage.Config{
		Endpoint:          cfg.Storage.Endpoint,
		AccessKey:         cfg.Storage.AccessKey,
		SecretKey:         cfg.Storage.SecretKey,
		Bucket:            cfg.Storage.Bucket,
		Region:            cfg.Storage.Region,
		ObjectURLTemplate: cfg.Storage.ObjectURLTemplate,
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return storage.NewMemoryStorage(scfg.ObjectURLTemplate), nil

	case config.StorageMinIO:
		s, err := storage.NewMinIOStorage(scfg)
		if err != nil {
			return nil, err
		}
		err = retry(ctx, func() error { return s.EnsureBucket(ctx) }, func(err error, next time.Duration) {
			log.Warn("bucket not ready, retrying", "bucket", scfg.Bucket, "error", err, "retry_in", next.String())
		})
		if err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", scfg.Bucket, err)
		}
		log.Info("storage ready", "backend", cfg.Storage.Backend, "endpoint", scfg.Endpoint, "bucket", scfg.Bucket)
		return s, nil

	default:
		s, err := storage.NewS3Storage(ctx, scfg)
		if err != nil {
			return nil, err
		}
		// Uploads may be allowed where HeadBucket is not, so only warn.
		if err := s.HealthCheck(ctx); err != nil {
			log.Warn("bucket check failed", "bucket", scfg.Bucket, "error", err)
		}
		log.Info("storage ready", "backend", cfg.Storage.Backend, "region", scfg.Region, "bucket", scfg.Bucket)
		return s, nil
	}
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	err = retry(ctx, func() error { return client.Ping(ctx).Err() }, func(err error, next time.Duration) {
		logger.FromContext(ctx).Warn("redis not ready, retrying", "error", err, "retry_in", next.String())
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func retry(ctx context.Context, op backoff.Operation, notify backoff.Notify) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = startupTimeout
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}
