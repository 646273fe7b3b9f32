package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func StartManifestSpan(ctx context.Context, runID, path string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "manifest.process",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("manifest.run_id", runID),
		attribute.String("manifest.path", path),
	)
	return ctx, span
}

func StartJobSpan(ctx context.Context, stage, ark string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "job.process."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("job.stage", stage),
		attribute.String("job.ark", ark),
	)
	return ctx, span
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
