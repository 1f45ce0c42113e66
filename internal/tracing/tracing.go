// Package tracing configures OpenTelemetry span export for lobby requests.
package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/config"
	"github.com/rickgao/lobby-client/internal/version"
)

// InstrumentationName names the tracer handed to the dispatcher.
const InstrumentationName = "github.com/rickgao/lobby-client"

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Setup installs an OTLP/HTTP tracer provider. When tracing is disabled it
// returns a no-op tracer and a no-op shutdown.
func Setup(ctx context.Context, cfg config.TracingConfig, logger *zap.Logger) (trace.Tracer, ShutdownFunc, error) {
	noopShutdown := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop.NewTracerProvider().Tracer(InstrumentationName), noopShutdown, nil
	}

	var opts []otlptracehttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", version.Version),
		),
	)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("create resource: %w", err)
	}

	tp := NewProvider(exp, res, cfg.SampleRatio)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	logger.Debug("tracer initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Tracer(InstrumentationName), tp.Shutdown, nil
}

// NewProvider builds a batching tracer provider around exp.
func NewProvider(exp sdktrace.SpanExporter, res *resource.Resource, ratio float64) *sdktrace.TracerProvider {
	ratio = min(max(ratio, 0), 1)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if res != nil {
		opts = append(opts, sdktrace.WithResource(res))
	}
	return sdktrace.NewTracerProvider(opts...)
}
