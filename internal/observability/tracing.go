package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultServiceName    = "taskbench"
	defaultOTLPEndpoint   = "localhost:4318"
	defaultZipkinEndpoint = "http://localhost:9411/api/v2/spans"
)

// TracingConfig configures distributed tracing
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	Exporter       string  `yaml:"exporter" json:"exporter"` // otlp, zipkin
	OTLPEndpoint   string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	ZipkinEndpoint string  `yaml:"zipkin_endpoint" json:"zipkin_endpoint"`
	SampleRate     float64 `yaml:"sample_rate" json:"sample_rate"` // 0.0 to 1.0
	ServiceName    string  `yaml:"service_name" json:"service_name"`
	ServiceVersion string  `yaml:"service_version" json:"service_version"`
}

// DefaultTracingConfig leaves tracing off with an OTLP exporter preselected.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Exporter:     "otlp",
		OTLPEndpoint: defaultOTLPEndpoint,
		SampleRate:   1.0,
		ServiceName:  defaultServiceName,
	}
}

// TracerProvider wraps OpenTelemetry tracer
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerProvider creates a new tracer provider. A disabled config yields a
// noop tracer and leaves the global provider alone.
func NewTracerProvider(config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return &TracerProvider{
			tracer: noop.NewTracerProvider().Tracer(defaultServiceName),
		}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	if config.SampleRate <= 0 || config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	exporter, err := newExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(config.ServiceName),
	}, nil
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case "", "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "zipkin":
		endpoint := config.ZipkinEndpoint
		if endpoint == "" {
			endpoint = defaultZipkinEndpoint
		}
		return zipkin.New(endpoint)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", config.Exporter)
	}
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span names
const (
	SpanDiscover = "taskbench.discover"
	SpanVerify   = "taskbench.verify"
	SpanRun      = "taskbench.run"
	SpanSession  = "taskbench.session"
)

// Attribute keys
const (
	AttrService  = "taskbench.service"
	AttrCategory = "taskbench.category"
	AttrTaskID   = "taskbench.task_id"
	AttrCommand  = "taskbench.command"
	AttrExitCode = "taskbench.exit_code"
	AttrTimedOut = "taskbench.timed_out"
	AttrOutcome  = "taskbench.outcome"
	AttrRunID    = "taskbench.run_id"
	AttrCount    = "taskbench.task_count"
)

// TaskAttrs identifies one task on a span.
func TaskAttrs(service, category, taskID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrService, service),
		attribute.String(AttrCategory, category),
		attribute.String(AttrTaskID, taskID),
	}
}

// ResultAttrs describes how a verification process ended.
func ResultAttrs(exitCode int, timedOut bool, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrExitCode, exitCode),
		attribute.Bool(AttrTimedOut, timedOut),
		attribute.String(AttrOutcome, outcome),
	}
}
