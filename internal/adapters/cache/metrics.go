package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type sessionCacheMetricsCollection struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	joins     metric.Int64Counter
	failures  metric.Int64Counter
	evictions metric.Int64Counter
	bytes     metric.Int64ObservableGauge
}

func setupSessionCacheMetrics(meter metric.Meter, totalBytes func() int64) (sessionCacheMetricsCollection, error) {
	hits, err := meter.Int64Counter("cache/session/hits")
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create hits metric: %w", err)
	}

	misses, err := meter.Int64Counter("cache/session/misses")
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create misses metric: %w", err)
	}

	joins, err := meter.Int64Counter("cache/session/joins")
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create joins metric: %w", err)
	}

	failures, err := meter.Int64Counter("cache/session/load_failures")
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create load failures metric: %w", err)
	}

	evictions, err := meter.Int64Counter("cache/session/evictions")
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create evictions metric: %w", err)
	}

	bytes, err := meter.Int64ObservableGauge(
		"cache/session/bytes",
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(totalBytes())
			return nil
		}),
	)
	if err != nil {
		return sessionCacheMetricsCollection{}, fmt.Errorf("failed to create bytes metric: %w", err)
	}

	return sessionCacheMetricsCollection{
		hits:      hits,
		misses:    misses,
		joins:     joins,
		failures:  failures,
		evictions: evictions,
		bytes:     bytes,
	}, nil
}

func (m sessionCacheMetricsCollection) recordEviction(reason evictionReason) {
	m.evictions.Add(
		context.Background(),
		1,
		metric.WithAttributes(attribute.String("reason", string(reason))),
	)
}
