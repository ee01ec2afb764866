package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultExportInterval = 30 * time.Second

type ExportConfig struct {
	// Full OTLP/HTTP metrics URL, e.g. http://collector:4318/v1/metrics
	// Export is disabled if empty
	Endpoint string

	// Push interval, defaultExportInterval if not set
	Interval time.Duration

	ServiceName string
}

// Setup returns meter provider pushing to OTLP collector.
// Without endpoint noop provider is returned and nothing leaves the process.
// The returned shutdown flushes pending metrics.
func Setup(ctx context.Context, cfg ExportConfig) (metric.MeterProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return noop.NewMeterProvider(), noopShutdown, nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultExportInterval
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("error while creating metrics exporter. Err: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("error while creating metrics resource. Err: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)

	return mp, mp.Shutdown, nil
}
