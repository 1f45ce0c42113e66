package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/rickgao/lobby-client/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "partyCreateRequest")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:4318",
		Insecure:    true,
		ServiceName: "lobby-client-test",
		SampleRatio: 1,
	}
	tracer, shutdown, err := Setup(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "noop")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestNewProviderSampling(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp := NewProvider(exp, nil, 1)
	_, span := tp.Tracer("test").Start(context.Background(), "kept")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Len(t, exp.GetSpans(), 1)
	assert.Equal(t, "kept", exp.GetSpans()[0].Name)

	exp.Reset()
	never := NewProvider(exp, nil, 0)
	_, span = never.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, never.ForceFlush(context.Background()))
	assert.Empty(t, exp.GetSpans())
}
