package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/moduleinfo"
)

// InitProvider installs a global MeterProvider backed by the Prometheus
// exporter, so instruments created afterwards are scraped through the
// default Prometheus registry. The returned function flushes and shuts the
// provider down.
func InitProvider(ctx context.Context) (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(moduleinfo.Info.Slug),
			semconv.ServiceVersion(moduleinfo.Version()),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
