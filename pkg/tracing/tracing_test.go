package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func testConfig(rate float64) Config {
	return Config{
		ServiceName:    "storefront",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0", // never dialled, export is async
		SampleRate:     rate,
		Enabled:        true,
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_SetsGlobalProvider(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), testConfig(1.0))
	require.NoError(t, err)
	defer shutdown(context.Background()) //nolint:errcheck

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "global provider should be the SDK provider")
}

func TestInitTracer_SampleRates(t *testing.T) {
	for _, rate := range []float64{0.0, 0.5, 1.0} {
		shutdown, err := InitTracer(context.Background(), testConfig(rate))
		require.NoError(t, err, "rate %v", rate)
		_ = shutdown(context.Background())
	}
}

func TestTracer_StartsSpans(t *testing.T) {
	tracer := Tracer("checkout")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "build-quote")
	span.End()
}
