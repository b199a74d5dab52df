package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupTelemetryStdout(t *testing.T) {
	TelemetryEndpoint = "stdout"
	t.Cleanup(func() { TelemetryEndpoint = "" })

	ctx := context.Background()
	tel, err := SetupTelemetry(ctx)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "span")
	span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestShutdownNil(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}
