package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// OtelConfig is filled by the app config layer.
type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string

	// Endpoint selects the OTLP/HTTP exporter; empty means stdout.
	Endpoint    string
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

var (
	installOnce sync.Once
	shutdownFn  = func(context.Context) error { return nil }
)

// InitOTel installs the global tracer provider on first call and returns its
// shutdown func. Disabled tracing leaves the no-op provider in place.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	if log == nil {
		log = logger.NewNop()
	}
	installOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		tp := NewTracerProvider(ctx, log, cfg)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		shutdownFn = tp.Shutdown
		log.Info("Tracing enabled", "service", serviceName(cfg), "endpoint", cfg.Endpoint, "ratio", clampRatio(cfg.SampleRatio))
	})
	return shutdownFn
}

// NewTracerProvider builds a provider without installing it. Exporter and
// resource failures are logged and tracing degrades to sampling only.
func NewTracerProvider(ctx context.Context, log *logger.Logger, cfg OtelConfig) *sdktrace.TracerProvider {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName(cfg)),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		log.Warn("Tracing resource incomplete", "error", err)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(WriteSampler(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		log.Warn("Trace exporter unavailable", "error", err)
	} else {
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	return sdktrace.NewTracerProvider(opts...)
}

func serviceName(cfg OtelConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "cordee"
}

// writeOps are always traced: they are rare next to reads and every one of
// them changes the history.
var writeOps = map[string]bool{
	"Documents.Document.Create":    true,
	"Documents.Document.Update":    true,
	"Documents.Document.Delete":    true,
	"Documents.Association.Create": true,
	"Documents.Association.Delete": true,
}

type writeSampler struct {
	ratio sdktrace.Sampler
}

// WriteSampler samples document writes always and everything else by ratio.
func WriteSampler(ratio float64) sdktrace.Sampler {
	return writeSampler{ratio: sdktrace.TraceIDRatioBased(ratio)}
}

func (s writeSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if writeOps[p.Name] {
		return sdktrace.AlwaysSample().ShouldSample(p)
	}
	return s.ratio.ShouldSample(p)
}

func (s writeSampler) Description() string {
	return "DocumentWrites{" + s.ratio.Description() + "}"
}

func clampRatio(r float64) float64 {
	if r <= 0 {
		return 0.1
	}
	if r > 1 {
		return 1
	}
	return r
}

// ParseHeaders reads the "k1=v1,k2=v2" form of OTEL_EXPORTER_OTLP_HEADERS.
func ParseHeaders(raw string) map[string]string {
	var headers map[string]string
	for _, part := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers[key] = val
	}
	return headers
}

func newExporter(ctx context.Context, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}
