package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

type Middleware[In, Out any] func(next Handler[In, Out]) Handler[In, Out]

// MetricsCollector receives job lifecycle events for one stage.
type MetricsCollector interface {
	JobStarted(stage string)
	JobCompleted(stage string, duration time.Duration)
	JobFailed(stage string, duration time.Duration)
}

// Keyed inputs are logged with their key.
type Keyed interface {
	JobKey() string
}

// Chain wraps h so that the first middleware is the outermost.
func Chain[In, Out any](h Handler[In, Out], mws ...Middleware[In, Out]) Handler[In, Out] {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recovery turns a panicking handler into a failed job.
func Recovery[In, Out any](log zerolog.Logger, stage string) Middleware[In, Out] {
	return func(next Handler[In, Out]) Handler[In, Out] {
		return func(ctx context.Context, in In) (out Out, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("stage", stage).
						Str("key", jobKey(in)).
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("job panicked")
					var zero Out
					out, err = zero, fmt.Errorf("%s job panicked: %v", stage, r)
				}
			}()
			return next(ctx, in)
		}
	}
}

func Logging[In, Out any](log zerolog.Logger, stage string) Middleware[In, Out] {
	return func(next Handler[In, Out]) Handler[In, Out] {
		return func(ctx context.Context, in In) (Out, error) {
			key := jobKey(in)
			start := time.Now()
			log.Debug().Str("stage", stage).Str("key", key).Msg("job started")

			out, err := next(ctx, in)

			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("stage", stage).
				Str("key", key).
				Dur("duration", time.Since(start)).
				Msg("job finished")
			return out, err
		}
	}
}

func Metrics[In, Out any](c MetricsCollector, stage string) Middleware[In, Out] {
	return func(next Handler[In, Out]) Handler[In, Out] {
		return func(ctx context.Context, in In) (Out, error) {
			start := time.Now()
			c.JobStarted(stage)

			out, err := next(ctx, in)

			if err != nil {
				c.JobFailed(stage, time.Since(start))
			} else {
				c.JobCompleted(stage, time.Since(start))
			}
			return out, err
		}
	}
}

// Standard is the middleware stack every stage pool runs with. Recovery sits
// innermost so a panic is logged and counted like any other failure.
func Standard[In, Out any](log zerolog.Logger, c MetricsCollector, stage string) []Middleware[In, Out] {
	mws := []Middleware[In, Out]{Logging[In, Out](log, stage)}
	if c != nil {
		mws = append(mws, Metrics[In, Out](c, stage))
	}
	return append(mws, Recovery[In, Out](log, stage))
}

func jobKey(in any) string {
	if k, ok := in.(Keyed); ok {
		return k.JobKey()
	}
	return ""
}
