package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"raffle/internal/config"
)

// InstrumentationName names the tracer every draw stage reports under.
const InstrumentationName = "raffle"

const exporterDialTimeout = 5 * time.Second

// Provider owns the SDK tracer provider installed by Init.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

// Init installs the global tracer provider. With tracing disabled the global
// no-op provider stays in place and the returned Provider does nothing.
func Init(cfg config.TracingConfig, serviceName string) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	name := firstNonEmpty(serviceName, cfg.ServiceName, InstrumentationName)
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterDialTimeout)
	defer cancel()
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter for %s: %w", cfg.OTLP.Endpoint, err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.Sampler)),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{sdk: sdk}, nil
}

// Sampler maps the configured sampler name to an SDK sampler. Unknown names
// sample everything.
func Sampler(cfg config.SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param))
	default:
		return sdktrace.AlwaysSample()
	}
}

// Start opens a span for one pipeline stage on the global provider.
func Start(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, stage, trace.WithAttributes(attrs...))
}

// Fail records err on span and marks the span as errored. A nil err is a no-op.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GinMiddleware traces API requests. Probe and scrape endpoints are skipped.
func GinMiddleware(serviceName string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, skipped := skip[r.URL.Path]
		return !skipped
	}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
