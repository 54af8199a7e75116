// Package observability wires slog, Prometheus and OpenTelemetry for the
// server and worker processes.
package observability

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const prodSampleRatio = 0.1

// SamplingRatio is the root sampling ratio for cfg: the explicit override
// when set, 10% in prod and everything elsewhere.
func SamplingRatio(cfg config.Config) float64 {
	if cfg.TraceSampleRatio > 0 {
		return cfg.TraceSampleRatio
	}
	if cfg.IsProd() {
		return prodSampleRatio
	}
	return 1.0
}

// SetupTracing exports spans over OTLP gRPC when an endpoint is configured and
// installs the global tracer provider. The returned shutdown func is nil when
// tracing is disabled.
func SetupTracing(cfg config.Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		slog.Info("OTLP endpoint not set; tracing disabled")
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp, err := newTracerProvider(cfg, exporter)
	if err != nil {
		return nil, err
	}
	slog.Info("tracing configured",
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.String("service", cfg.OTELServiceName),
		slog.Float64("sampling_ratio", SamplingRatio(cfg)))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func newTracerProvider(cfg config.Config, exporter trace.SpanExporter) (*trace.TracerProvider, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.OTELServiceName),
		semconv.DeploymentEnvironment(strings.ToLower(cfg.AppEnv)),
		attribute.String("interview.ai_provider", strings.ToLower(cfg.AIProvider)),
	))
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg)),
	), nil
}

// newSampler follows the caller's sampling decision and samples new roots at
// SamplingRatio.
func newSampler(cfg config.Config) trace.Sampler {
	return trace.ParentBased(trace.TraceIDRatioBased(SamplingRatio(cfg)))
}
