package query

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("codegraph.query")
	meter  = otel.Meter("codegraph.query")
)

var (
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"ckg_query_duration_seconds",
			metric.WithDescription("Duration of graph queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"ckg_query_total",
			metric.WithDescription("Total number of graph queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func queryLabel(o Outcome) string {
	if o.Name != "" {
		return o.Name
	}
	return "adhoc"
}

func recordQueryMetrics(ctx context.Context, o Outcome) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("query", queryLabel(o)),
		attribute.Bool("success", o.Success),
	)
	queryLatency.Record(ctx, o.ElapsedMS/1000, attrs)
	queryTotal.Add(ctx, 1, attrs)
}

func startQuerySpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if name == "" {
		name = "adhoc"
	}
	return tracer.Start(ctx, "Client.Query",
		trace.WithAttributes(attribute.String("ckg.query", name)),
	)
}

func setQuerySpanResult(span trace.Span, o Outcome) {
	span.SetAttributes(
		attribute.Int("ckg.result_count", o.TotalCount),
		attribute.Float64("ckg.elapsed_ms", o.ElapsedMS),
	)
	if !o.Success {
		span.SetStatus(codes.Error, o.Error)
	}
}
