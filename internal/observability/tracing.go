package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/desruisseaux/Seagis-sub004/internal/logging"
)

// ErrTracingConfig reports an unusable SEAGIS_TRACING_* setting.
var ErrTracingConfig = errors.New("invalid tracing configuration")

const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"

	defaultOTLPEndpoint = "localhost:4317"
	serviceNamespace    = "seagis"
)

var validate = validator.New()

// TracingConfig governs how tracing is initialised. Spans are only exported
// when Enabled is set.
type TracingConfig struct {
	Enabled     bool
	ServiceName string  `validate:"required"`
	Exporter    string  `validate:"oneof=stdout otlp"`
	Endpoint    string  // OTLP collector, host:port
	SampleRatio float64 `validate:"gte=0,lte=1"`
	// Writer receives stdout spans; os.Stderr when nil so logs keep stdout.
	Writer io.Writer `validate:"-"`
}

// TracingConfigFromEnv reads SEAGIS_TRACING_ENABLED, SEAGIS_TRACING_EXPORTER,
// SEAGIS_TRACING_SERVICE_NAME, SEAGIS_TRACING_SAMPLE_RATIO and
// SEAGIS_OTLP_ENDPOINT. defaultService names the binary.
func TracingConfigFromEnv(defaultService string) (TracingConfig, error) {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("SEAGIS_TRACING_ENABLED"), "true"),
		ServiceName: firstNonEmpty(os.Getenv("SEAGIS_TRACING_SERVICE_NAME"), defaultService, serviceNamespace),
		Exporter:    firstNonEmpty(strings.ToLower(os.Getenv("SEAGIS_TRACING_EXPORTER")), ExporterStdout),
		Endpoint:    firstNonEmpty(os.Getenv("SEAGIS_OTLP_ENDPOINT"), defaultOTLPEndpoint),
		SampleRatio: 1,
	}
	if raw := os.Getenv("SEAGIS_TRACING_SAMPLE_RATIO"); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("%w: SEAGIS_TRACING_SAMPLE_RATIO=%q", ErrTracingConfig, raw)
		}
		cfg.SampleRatio = ratio
	}
	if err := validate.Struct(cfg); err != nil {
		return TracingConfig{}, fmt.Errorf("%w: %v", ErrTracingConfig, err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// InitTracing installs the global tracer provider and propagators. The run_id
// on ctx, if any, is attached to every span as seagis.run_id. The returned
// function flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTracingConfig, err)
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", serviceNamespace),
	}
	if id := logging.RunIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("seagis.run_id", id))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(firstNonEmpty(cfg.Endpoint, defaultOTLPEndpoint)),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	default:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	}
}

// ShutdownWithTimeout flushes spans for at most five seconds. Failures are
// logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
