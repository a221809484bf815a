// Package observability wraps the OpenTelemetry tracer and meter used to
// record formatting calls, query builds and cache lookups. Without providers
// it falls back to the global OpenTelemetry providers, which are no-ops
// unless the host program installs real ones.
package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlstn/go-odata-client/internal/cache"
)

const instrumentationName = "github.com/nlstn/go-odata-client"

// Span names.
const (
	SpanFormat = "odata.format"
	SpanQuery  = "odata.query"
)

// Attribute keys.
const (
	AttrMode     = attribute.Key("odata.format.mode")
	AttrResource = attribute.Key("odata.resource")
	AttrErrorKey = attribute.Key("odata.error")
	AttrCache    = attribute.Key("cache")
	AttrHit      = attribute.Key("hit")
)

// Config holds the providers and the instruments built from them.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         *slog.Logger

	tracer  *Tracer
	metrics *Metrics
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name recorded on spans.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version recorded on spans.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used to report instrument failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// NewConfig creates a Config. Call Initialize before use.
func NewConfig(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Initialize creates the tracer and the metric instruments.
func (c *Config) Initialize() error {
	var serviceAttrs []attribute.KeyValue
	if c.serviceName != "" {
		serviceAttrs = append(serviceAttrs, attribute.String("service.name", c.serviceName))
	}
	if c.serviceVersion != "" {
		serviceAttrs = append(serviceAttrs, attribute.String("service.version", c.serviceVersion))
	}

	c.tracer = &Tracer{
		tracer: c.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion)),
		attrs:  serviceAttrs,
	}
	metrics, err := newMetrics(c.meterProvider.Meter(instrumentationName))
	if err != nil {
		return err
	}
	c.metrics = metrics
	c.logger.Debug("Observability initialized", "service", c.serviceName, "version", c.serviceVersion)
	return nil
}

// Tracer returns the tracer. It is nil before Initialize.
func (c *Config) Tracer() *Tracer {
	return c.tracer
}

// Metrics returns the metric instruments. It is nil before Initialize.
func (c *Config) Metrics() *Metrics {
	return c.metrics
}

// Tracer starts the spans of this library.
type Tracer struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// StartFormat starts a span around one Format or FormatQueryOption call.
func (t *Tracer) StartFormat(ctx context.Context, mode string) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{AttrMode.String(mode)}, t.attrs...)
	return t.tracer.Start(ctx, SpanFormat, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindInternal))
}

// StartQuery starts a span around building the clauses of a request.
func (t *Tracer) StartQuery(ctx context.Context, resource string) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{AttrResource.String(resource)}, t.attrs...)
	return t.tracer.Start(ctx, SpanQuery, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindInternal))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Metrics records formatting and cache statistics.
type Metrics struct {
	formatCount    metric.Int64Counter
	formatErrors   metric.Int64Counter
	formatDuration metric.Float64Histogram
	cacheLookups   metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.formatCount, err = meter.Int64Counter("odata.format.count",
		metric.WithDescription("Number of format calls"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.formatErrors, err = meter.Int64Counter("odata.format.errors",
		metric.WithDescription("Number of format calls that failed"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.formatDuration, err = meter.Float64Histogram("odata.format.duration",
		metric.WithDescription("Duration of format calls"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("odata.cache.lookups",
		metric.WithDescription("Number of memoized lookups by outcome"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordFormat records one format call.
func (m *Metrics) RecordFormat(ctx context.Context, mode string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(AttrMode.String(mode))
	m.formatCount.Add(ctx, 1, attrs)
	m.formatDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.formatErrors.Add(ctx, 1, attrs)
	}
}

// RecordCacheLookup records the outcome of one lookup in the named cache.
func (m *Metrics) RecordCacheLookup(ctx context.Context, name string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(AttrCache.String(name), AttrHit.Bool(hit)))
}

// CacheObserver returns an observer reporting the lookups of the named cache.
func (m *Metrics) CacheObserver(name string) cache.LookupObserver {
	return func(hit bool) {
		m.RecordCacheLookup(context.Background(), name, hit)
	}
}
