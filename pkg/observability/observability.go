// Package observability wires OpenTelemetry tracing and metrics around the
// validation pipeline. Telemetry is off by default; a CI gate run must work
// with no collector anywhere near it.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ledgerline-Labs/greenlight/pkg/logging"
)

const instrumentationName = "greenlight"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns the disabled default: telemetry is opt-in.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "greenlight",
		ServiceVersion: "1.0.0",
		Environment:    "dev",
		OTLPEndpoint:   "localhost:4317",
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
	}
}

// ConfigFromEnv builds the telemetry configuration for one run. Setting
// OTEL_EXPORTER_OTLP_ENDPOINT turns telemetry on; OTEL_INSECURE=true disables
// transport security for local collectors.
func ConfigFromEnv(environment string) *Config {
	cfg := DefaultConfig()
	if environment != "" {
		cfg.Environment = environment
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.OTLPEndpoint = endpoint
		cfg.Enabled = true
	}
	if os.Getenv("OTEL_INSECURE") == "true" {
		cfg.Insecure = true
	}
	return cfg
}

// Provider manages trace and metric providers plus the pipeline instruments.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	artifactCounter  metric.Int64Counter
	violationCounter metric.Int64Counter
	gateRunCounter   metric.Int64Counter
	stageDuration    metric.Float64Histogram
}

// New builds a provider. With Enabled false it returns a no-op provider whose
// record methods are safe to call.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: logging.New("observability"),
	}

	if !config.Enabled {
		p.logger.Debug("telemetry disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init metric provider: %w", err)
	}

	p.tracer = otel.Tracer(instrumentationName,
		trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter(instrumentationName,
		metric.WithInstrumentationVersion(config.ServiceVersion))

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	p.logger.Info("telemetry initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
	)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)

	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.artifactCounter, err = p.meter.Int64Counter("greenlight.artifacts.evaluated",
		metric.WithDescription("Artifacts run through the validation pipeline"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return err
	}

	p.violationCounter, err = p.meter.Int64Counter("greenlight.violations.total",
		metric.WithDescription("Policy violations reported"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return err
	}

	p.gateRunCounter, err = p.meter.Int64Counter("greenlight.gate.runs",
		metric.WithDescription("Gate runs by verdict"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	p.stageDuration, err = p.meter.Float64Histogram("greenlight.stage.duration",
		metric.WithDescription("Stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0),
	)
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.Error("trace provider shutdown failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.Error("metric provider shutdown failed", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

// RecordArtifact counts one evaluated artifact.
func (p *Provider) RecordArtifact(ctx context.Context, kind string, clean bool) {
	if p.artifactCounter == nil {
		return
	}
	p.artifactCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("clean", clean),
	))
}

// RecordViolations counts reported violations for a rule.
func (p *Provider) RecordViolations(ctx context.Context, ruleID string, n int) {
	if p.violationCounter == nil || n == 0 {
		return
	}
	p.violationCounter.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("rule", ruleID),
	))
}

// RecordGateRun counts one gate run by verdict.
func (p *Provider) RecordGateRun(ctx context.Context, env string, pass bool) {
	if p.gateRunCounter == nil {
		return
	}
	p.gateRunCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("env", env),
		attribute.Bool("pass", pass),
	))
}

// TrackStage opens a span for one stage and returns its closer.
func (p *Provider) TrackStage(ctx context.Context, stage, subject string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.Tracer().Start(ctx, "stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("subject", subject),
		),
	)

	return ctx, func(err error) {
		if p.stageDuration != nil {
			p.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
				attribute.String("stage", stage),
			))
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
