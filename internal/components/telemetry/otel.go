package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chattysync/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Endpoint is where one otlp signal is shipped. Grpc wins when both urls
// are set, a signal with neither is left disabled.
type Endpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e Endpoint) enabled() bool {
	return e.GrpcEndpoint != "" || e.HttpEndpoint != ""
}

func (e Endpoint) describe() (string, string) {
	if e.GrpcEndpoint != "" {
		return "grpc", e.GrpcEndpoint
	}
	return "http", e.HttpEndpoint
}

type Config struct {
	Otlp struct {
		Traces  Endpoint `json:"traces"`
		Metrics Endpoint `json:"metrics"`
	} `json:"otlp"`
	// MetricInterval is how often metrics are pushed, in seconds.
	MetricInterval int `json:"metric_interval"`
}

// Exporters owns the installed otel providers, either may be nil.
type Exporters struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes and stops every installed provider.
func (e Exporters) Shutdown(ctx context.Context) error {
	var errs []error
	if e.TracerProvider != nil {
		errs = append(errs, e.TracerProvider.Shutdown(ctx))
	}
	if e.MeterProvider != nil {
		errs = append(errs, e.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// SetupFromEnv looks for telemetry.json5 in the working directory or any
// parent and installs the exporters it describes.
func SetupFromEnv(ctx context.Context, serviceName string) (Exporters, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if err != nil {
		return Exporters{}, err
	}
	return Setup(ctx, serviceName, config)
}

func Setup(ctx context.Context, serviceName string, config Config) (Exporters, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return Exporters{}, err
	}

	var out Exporters
	if config.Otlp.Traces.enabled() {
		exporter, err := traceExporter(ctx, config.Otlp.Traces)
		if err != nil {
			return Exporters{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.TracerProvider = trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(res))
		otel.SetTracerProvider(out.TracerProvider)
	}
	if config.Otlp.Metrics.enabled() {
		exporter, err := metricExporter(ctx, config.Otlp.Metrics)
		if err != nil {
			return out, errors.Join(fmt.Errorf("metric exporter: %w", err), out.Shutdown(ctx))
		}
		interval := 5 * time.Second
		if config.MetricInterval > 0 {
			interval = time.Duration(config.MetricInterval) * time.Second
		}
		out.MeterProvider = metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(out.MeterProvider)
	}
	return out, nil
}

func traceExporter(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	kind, url := e.describe()
	slog.Info("otlp traces", "transport", kind, "endpoint", url)
	if kind == "grpc" {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(url), otlptracegrpc.WithHeaders(e.Headers))
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(url), otlptracehttp.WithHeaders(e.Headers))
}

func metricExporter(ctx context.Context, e Endpoint) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	kind, url := e.describe()
	slog.Info("otlp metrics", "transport", kind, "endpoint", url)
	if kind == "grpc" {
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(url), otlpmetricgrpc.WithHeaders(e.Headers))
	}
	return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(url), otlpmetrichttp.WithHeaders(e.Headers))
}

var reportMeter = otel.Meter("chattysync.telemetry")
var brokenCounter, _ = reportMeter.Int64Counter("broken_reports")
var warningCounter, _ = reportMeter.Int64Counter("warning_reports")

// OtelAPI forwards every report to an inner API and additionally records
// counts as otel gauges and broken/warning reports as otel counters.
type OtelAPI struct {
	inner  API
	gauges *sync.Map
}

func NewOtelAPI(inner API) OtelAPI {
	return OtelAPI{inner: inner, gauges: &sync.Map{}}
}

func (o OtelAPI) ReportBroken(id string, params ...any) {
	brokenCounter.Add(context.Background(), 1, otelmetric.WithAttributes(attribute.String("id", id)))
	o.inner.ReportBroken(id, params...)
}

func (o OtelAPI) ReportWarning(id string, params ...any) {
	warningCounter.Add(context.Background(), 1, otelmetric.WithAttributes(attribute.String("id", id)))
	o.inner.ReportWarning(id, params...)
}

func (o OtelAPI) ReportDebug(msg string, params ...any) {
	o.inner.ReportDebug(msg, params...)
}

func (o OtelAPI) ReportCount(id string, count int64) {
	gauge, ok := o.gauges.Load(id)
	if !ok {
		created, err := reportMeter.Int64Gauge(id)
		if err != nil {
			o.inner.ReportWarning("otel.report-count", err, id)
			o.inner.ReportCount(id, count)
			return
		}
		gauge, _ = o.gauges.LoadOrStore(id, created)
	}
	gauge.(otelmetric.Int64Gauge).Record(context.Background(), count)
	o.inner.ReportCount(id, count)
}
