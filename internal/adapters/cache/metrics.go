package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Amund211/viewcache/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	acquireCount metric.Int64Counter
	loadDuration metric.Float64Histogram
}

var metrics cacheMetricsCollection

func init() {
	const name = "viewcache/cache"
	meter := otel.Meter(name)

	acquireCount, err := meter.Int64Counter(
		"cache/acquire_count",
		metric.WithDescription("Total number of acquired views by the path that served them"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create acquire count metric: %w", err))
	}

	loadDuration, err := meter.Float64Histogram(
		"cache/load_duration_seconds",
		metric.WithDescription("Time spent loading views from the underlying loader"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create load duration metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		acquireCount: acquireCount,
		loadDuration: loadDuration,
	}
}

func recordAcquire(ctx context.Context, source domain.Source) {
	metrics.acquireCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
}

func recordLoad(ctx context.Context, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.loadDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
