package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"compact-connect-backend/internal/config"
)

// defaultEndpoint is the collector exposed by the ADOT Lambda layer.
const defaultEndpoint = "localhost:4317"

// TracerProvider wraps the SDK provider so the entry points can flush it.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracing installs a global OTLP tracer provider when tracing is enabled.
// When it is disabled the global no-op provider stays in place and a nil
// provider is returned.
func InitTracing(ctx context.Context, cfg *config.Config) (*TracerProvider, error) {
	if !cfg.Observability.EnableTracing {
		return nil, nil
	}

	endpoint := cfg.Observability.TracingEndpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if endpoint == defaultEndpoint {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("deployment.environment", string(cfg.Environment)),
		attribute.String("cloud.provider", "aws"),
		attribute.String("faas.name", os.Getenv("AWS_LAMBDA_FUNCTION_NAME")),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.IsProduction() {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.05))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &TracerProvider{provider: tp}, nil
}

// ForceFlush exports buffered spans. Lambda may freeze the container as soon
// as the handler returns.
func (tp *TracerProvider) ForceFlush(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	return tp.provider.ForceFlush(ctx)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("compact-connect-backend/" + name)
}

// RecordError marks the span failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
