package builder

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("codegraph.builder")
	meter  = otel.Meter("codegraph.builder")
)

var (
	buildLatency       metric.Float64Histogram
	buildTotal         metric.Int64Counter
	statementsExecuted metric.Int64Counter
	statementsFailed   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"ckg_build_duration_seconds",
			metric.WithDescription("Duration of graph build operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"ckg_build_total",
			metric.WithDescription("Total number of graph build operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		statementsExecuted, err = meter.Int64Counter(
			"ckg_statements_executed_total",
			metric.WithDescription("Graph statements executed against a store"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		statementsFailed, err = meter.Int64Counter(
			"ckg_statements_failed_total",
			metric.WithDescription("Graph statements rejected by a store"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, r *Report) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("success", r.Success),
		attribute.Bool("dry_run", r.DryRun),
	)
	buildLatency.Record(ctx, r.Duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	if !r.DryRun {
		statementsExecuted.Add(ctx, int64(r.StatementsExecuted))
		statementsFailed.Add(ctx, int64(r.StatementsFailed))
	}
}

func startBuildSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Builder.Build",
		trace.WithAttributes(attribute.Int("ckg.file_count", fileCount)),
	)
}

func setBuildSpanResult(span trace.Span, r *Report, elapsed time.Duration) {
	span.SetAttributes(
		attribute.Int("ckg.node_count", r.TotalNodes),
		attribute.Int("ckg.relationship_count", r.TotalRelationships),
		attribute.Int("ckg.statements_failed", r.StatementsFailed),
		attribute.Bool("ckg.dry_run", r.DryRun),
		attribute.Int64("ckg.duration_ms", elapsed.Milliseconds()),
	)
}
