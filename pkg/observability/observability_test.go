package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.Equal(t, "greenlight", config.ServiceName)
	require.Equal(t, "1.0.0", config.ServiceVersion)
	require.Equal(t, "dev", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 5*time.Second, config.BatchTimeout)
	require.False(t, config.Enabled)
}

func TestDisabledProviderIsNoOp(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	// None of these should panic or touch the network.
	p.RecordArtifact(ctx, "Deployment", true)
	p.RecordViolations(ctx, "naming:Deployment", 3)
	p.RecordGateRun(ctx, "prod", false)

	_, done := p.TrackStage(ctx, "validator", "deploy/prod-app-deploy-v1.0.0")
	done(errors.New("synthetic"))

	require.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(ctx))
}

func TestDisabledProviderHonorsExplicitConfig(t *testing.T) {
	ctx := context.Background()

	config := DefaultConfig()
	config.ServiceName = "greenlight-test"

	p, err := New(ctx, config)
	require.NoError(t, err)
	require.Equal(t, "greenlight-test", p.config.ServiceName)
	require.NoError(t, p.Shutdown(ctx))
}

func TestConfigFromEnvDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_INSECURE", "")

	config := ConfigFromEnv("staging")

	require.False(t, config.Enabled)
	require.Equal(t, "staging", config.Environment)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
}

func TestConfigFromEnvEndpointEnables(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector.internal:4317")
	t.Setenv("OTEL_INSECURE", "true")

	config := ConfigFromEnv("prod")

	require.True(t, config.Enabled)
	require.True(t, config.Insecure)
	require.Equal(t, "collector.internal:4317", config.OTLPEndpoint)
	require.Equal(t, "prod", config.Environment)
}
