package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_Disabled(t *testing.T) {
	tp, err := Setup(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate     float64
		decision sdktrace.SamplingDecision
	}{
		{1.0, sdktrace.RecordAndSample},
		{1.5, sdktrace.RecordAndSample},
		{0, sdktrace.Drop},
		{-1, sdktrace.Drop},
	}

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)

	for _, tt := range tests {
		result := Sampler(tt.rate).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       traceID,
			Name:          "/pdm.WorkOrders/List",
		})
		assert.Equal(t, tt.decision, result.Decision, "rate %v", tt.rate)
	}
}

func TestSampler_Ratio(t *testing.T) {
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
