package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type OtlpConnConfig struct {
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

// SetupMetrics installs a global meter provider exporting over otlp/http.
// When no endpoint is configured it does nothing and the global no-op
// provider stays in place.
func SetupMetrics(ctx context.Context, serviceName string, config Config) (shutdown func(context.Context) error, err error) {
	if config.Otlp.Metrics.HttpEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(config.Otlp.Metrics.HttpEndpoint),
		otlpmetrichttp.WithHeaders(config.Otlp.Metrics.Headers),
	)
	if err != nil {
		return nil, err
	}
	slog.Info(
		"metric exporter initialized",
		"type", "http",
		"endpoint", config.Otlp.Metrics.HttpEndpoint,
		"headers", len(config.Otlp.Metrics.Headers) > 0,
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Second*15))),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// MeteredAPI forwards every report to an inner API and mirrors counts and
// breakages onto otel instruments.
type MeteredAPI struct {
	inner    API
	counts   metric.Int64Gauge
	broken   metric.Int64Counter
	warnings metric.Int64Counter
}

func NewMeteredAPI(inner API, meter metric.Meter) (MeteredAPI, error) {
	counts, err := meter.Int64Gauge("report.count")
	if err != nil {
		return MeteredAPI{}, err
	}
	broken, err := meter.Int64Counter("report.broken")
	if err != nil {
		return MeteredAPI{}, err
	}
	warnings, err := meter.Int64Counter("report.warning")
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{inner: inner, counts: counts, broken: broken, warnings: warnings}, nil
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	m.broken.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
	m.inner.ReportBroken(id, params...)
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.warnings.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
	m.inner.ReportWarning(id, params...)
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
	m.inner.ReportCount(id, count)
}
