// Package odata compiles expression trees into OData URI query syntax.
//
// A Client holds everything a predicate needs to become a $filter: the
// service schema used to resolve property names, the table of registered Go
// types and enums, and the protocol settings that select literal and
// function forms. Expressions are built with the constructor functions of
// this package and formatted with Client.Format, or assembled into complete
// query option clauses with Client.Query.
//
// # Example
//
//	client := odata.NewClient(odata.Settings{})
//	if err := client.RegisterEntities(&Product{}, &Category{}); err != nil {
//	    log.Fatal(err)
//	}
//	filter, err := client.Format(ctx, "Products",
//	    odata.And(
//	        odata.Eq(odata.Ref("category.name"), odata.Lit("Beverages")),
//	        odata.Gt(odata.Ref("price"), odata.Lit(10)),
//	    ))
//	// Category/Name eq 'Beverages' and Price gt 10
//
// # Schemas
//
// The schema can come from registered Go types (RegisterEntities), from a
// hand-built or YAML-loaded model (UseSchema), or from any other
// implementation of the Schema interface. Without a schema references are
// emitted verbatim.
package odata

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/naming"
	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/schema"
	"github.com/nlstn/go-odata-client/internal/typecache"
)

// DefaultNamespace is used when no explicit namespace is configured for the client.
const DefaultNamespace = "ODataService"

// Version is an OData protocol version.
type Version = edm.Version

// Protocol versions.
const (
	V1   = edm.V1
	V2   = edm.V2
	V3   = edm.V3
	V4   = edm.V4
	V401 = edm.V401
)

// ParseVersion accepts "1".."4", "1.0".."4.0" and "4.01". An empty string is V4.
func ParseVersion(s string) (Version, error) {
	return edm.ParseVersion(s)
}

// NameResolver decides whether a requested name refers to a schema name.
type NameResolver = naming.Resolver

var (
	// BestMatch accepts exact, case-insensitive, homogenized and
	// singular/plural matches. It is the default resolver.
	BestMatch = naming.BestMatch
	// StrictMatch only accepts exact matches of the unqualified name.
	StrictMatch = naming.Strict
)

// Schema is the set of lookups a service model provides.
type Schema = metadata.Schema

// Settings configures a Client. The zero value is usable.
type Settings struct {
	// Namespace qualifies registered types and enums.
	// Default: DefaultNamespace.
	Namespace string

	// Version selects literal and function forms. Default: V4.
	Version Version

	// EnumPrefixFree renders enum members as 'Member' without the type name.
	EnumPrefixFree bool

	// Resolver matches requested names against the schema. Default: BestMatch.
	Resolver NameResolver

	// IgnoreUnmappedProperties keeps unknown path segments verbatim instead of
	// failing with ErrUnresolvablePath.
	IgnoreUnmappedProperties bool
}

func (s Settings) withDefaults() Settings {
	if s.Namespace == "" {
		s.Namespace = DefaultNamespace
	}
	if s.Version == 0 {
		s.Version = V4
	}
	if s.Resolver == nil {
		s.Resolver = BestMatch
	}
	return s
}

// Client formats expressions against one service.
// A Client is safe for concurrent use once configured.
type Client struct {
	mu sync.RWMutex

	settings          Settings
	geospatialEnabled int32
	types             *typecache.Cache
	// metadata is nil until a schema is attached.
	metadata      *metadata.Cache
	logger        *slog.Logger
	observability *observability.Config
}

var _ expr.Session = (*Client)(nil)

// NewClient creates a client without a schema.
func NewClient(settings Settings) *Client {
	settings = settings.withDefaults()
	c := &Client{
		settings: settings,
		types:    typecache.New(settings.Namespace),
		logger:   slog.Default(),
	}
	return c
}

// Settings returns the settings of the client with defaults applied.
func (c *Client) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SetLogger sets a custom logger for the client.
// If logger is nil, slog.Default() is used.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
	c.types.SetLogger(logger)
}

// UseSchema attaches a service schema. Models built by this package match
// names with the resolver of the client settings. Resolved lookups are
// memoized for the lifetime of the client.
func (c *Client) UseSchema(s Schema) error {
	if s == nil {
		return fmt.Errorf("schema must not be nil")
	}
	if model, ok := s.(*schema.Model); ok {
		if err := model.Validate(); err != nil {
			return fmt.Errorf("invalid schema: %w", err)
		}
		model.SetResolver(c.Settings().Resolver)
	}

	md := metadata.NewCache(metadata.New(s))
	c.mu.Lock()
	if c.observability != nil {
		md.SetObserver(c.observability.Metrics().CacheObserver("metadata"))
	}
	c.metadata = md
	c.mu.Unlock()
	c.log().Debug("Schema attached", "type", fmt.Sprintf("%T", s))
	return nil
}

// RegisterEntities registers Go struct types and attaches the schema derived
// from them. Navigation targets, base types and complex types are discovered
// from the struct fields.
//
// # Example
//
//	type Product struct {
//	    ID       int       `json:"ProductID" odata:"key"`
//	    Name     string    `json:"ProductName"`
//	    Category *Category `json:"Category,omitempty"`
//	}
//
//	if err := client.RegisterEntities(&Product{}); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) RegisterEntities(entities ...any) error {
	model, err := schema.FromTypes(c.types, entities...)
	if err != nil {
		return fmt.Errorf("failed to register entities: %w", err)
	}
	for _, t := range model.EntityTypes {
		c.log().Debug("Registered entity type", "name", t.Name, "keys", t.Key)
	}
	return c.UseSchema(model)
}

// EnumOption configures an enum registration.
type EnumOption = typecache.EnumOption

// EnumMember names one value of an enum.
type EnumMember = typecache.EnumMember

// EnumDefinition is implemented by enum types that describe their own members.
type EnumDefinition = typecache.EnumDefinition

// Enum registration options.
var (
	WithEnumName      = typecache.WithEnumName
	WithEnumNamespace = typecache.WithEnumNamespace
	WithFlags         = typecache.WithFlags
	WithMembers       = typecache.WithMembers
)

// RegisterEnum registers the enum type of sample so its values format as
// enum literals.
//
// # Example
//
//	client.RegisterEnum(Permission(0), odata.WithFlags(), odata.WithMembers(
//	    odata.EnumMember{Name: "Read", Value: 1},
//	    odata.EnumMember{Name: "Write", Value: 2},
//	))
func (c *Client) RegisterEnum(sample any, opts ...EnumOption) error {
	if _, err := c.types.RegisterEnum(sample, opts...); err != nil {
		return fmt.Errorf("failed to register enum %T: %w", sample, err)
	}
	return nil
}

// Converter converts a value to the target type of a Convert node.
type Converter = typecache.Converter

// RegisterConverter installs conv for values converted to target. Converters
// belong to this client. A nil conv removes the converter.
func (c *Client) RegisterConverter(target reflect.Type, conv Converter) {
	c.types.RegisterConverter(target, conv)
}

// Convert converts value to target the way Convert nodes do, but fails with
// ErrConversionFailure instead of degrading.
func (c *Client) Convert(value any, target reflect.Type) (any, error) {
	return expr.ConvertValue(c, value, target)
}

// Metadata returns the attached schema, or nil.
func (c *Client) Metadata() metadata.Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.metadata == nil {
		return nil
	}
	return c.metadata
}

// TypeCache returns the registered types of the client.
func (c *Client) TypeCache() *typecache.Cache {
	return c.types
}

// FormatSettings returns the switches the formatter reads.
func (c *Client) FormatSettings() expr.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expr.Settings{
		Version:                  c.settings.Version,
		EnumPrefixFree:           c.settings.EnumPrefixFree,
		IgnoreUnmappedProperties: c.settings.IgnoreUnmappedProperties,
		Geospatial:               c.IsGeospatialEnabled(),
	}
}

// Logger returns the logger of the client.
func (c *Client) Logger() *slog.Logger {
	return c.log()
}

func (c *Client) log() *slog.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) obs() *observability.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.observability
}

// ObservabilityConfig configures tracing and metrics for the client.
// All providers are optional; when nil, the global OpenTelemetry providers are used.
type ObservabilityConfig struct {
	// TracerProvider provides the tracer for odata.format and odata.query spans.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the meter for format and cache metrics.
	MeterProvider metric.MeterProvider

	// ServiceName identifies the calling service in telemetry data.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string
}

// SetObservability configures OpenTelemetry-based observability for the client.
//
// When observability is configured:
//   - Format calls and query builds create spans
//   - Format calls, failures and durations are recorded as metrics
//   - Schema cache lookups are counted by outcome
//
// Example:
//
//	client.SetObservability(odata.ObservabilityConfig{
//	    TracerProvider: tp,
//	    MeterProvider:  mp,
//	    ServiceName:    "catalog-sync",
//	})
func (c *Client) SetObservability(cfg ObservabilityConfig) error {
	opts := []observability.Option{observability.WithLogger(c.log())}
	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}

	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	c.mu.Lock()
	c.observability = obsCfg
	md := c.metadata
	c.mu.Unlock()
	if md != nil {
		md.SetObserver(obsCfg.Metrics().CacheObserver("metadata"))
	}

	c.log().Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"service_name", cfg.ServiceName,
	)
	return nil
}

// NewContext returns a formatting context rooted at collection, which may be
// an entity set, a derived collection path ("Transport/NS.Ship") or a
// navigation path ("Orders(1)/Details"). An empty collection, or a client
// without schema, formats references verbatim.
func (c *Client) NewContext(collection string) (*FormattingContext, error) {
	fc := expr.NewContext(c, nil)
	md := c.Metadata()
	if collection == "" || md == nil {
		return fc, nil
	}
	resolved, err := md.NavigateToCollection(collection)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collection %s: %w", collection, err)
	}
	fc.Collection = resolved
	return fc, nil
}

// Format renders node as a $filter or $orderby expression rooted at collection.
func (c *Client) Format(ctx context.Context, collection string, node Node) (string, error) {
	fc, err := c.NewContext(collection)
	if err != nil {
		return "", err
	}
	return c.FormatContext(ctx, fc, node)
}

// FormatContext renders node with an explicit formatting context.
func (c *Client) FormatContext(ctx context.Context, fc *FormattingContext, node Node) (string, error) {
	if fc == nil {
		fc = expr.NewContext(c, nil)
	}
	return c.instrument(ctx, "filter", func() (string, error) { return expr.Format(node, fc) })
}

// FormatQueryOption renders node as custom query options ("a=1&b='x'").
// Only And and Equal are allowed; references are emitted verbatim.
func (c *Client) FormatQueryOption(ctx context.Context, node Node) (string, error) {
	fc := expr.NewContext(c, nil)
	return c.instrument(ctx, "query_option", func() (string, error) { return expr.FormatQueryOption(node, fc) })
}

func (c *Client) instrument(ctx context.Context, mode string, format func() (string, error)) (string, error) {
	obs := c.obs()
	if obs == nil {
		return format()
	}

	_, span := obs.Tracer().StartFormat(ctx, mode)
	start := time.Now()
	result, err := format()
	obs.Metrics().RecordFormat(ctx, mode, time.Since(start), err)
	observability.EndSpan(span, err)
	return result, err
}

// Field returns a reference to the Go field path of T ("Nested.Name"),
// translated to wire names through the json and odata tags of T. T is
// registered on first use.
//
// # Example
//
//	ref, err := odata.Field[Product](client, "Category.Name")
//	// ref.Path == "Category/CategoryName"
func Field[T any](c *Client, path string) (*Reference, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	mapped, err := c.types.MappedPath(t, path)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s on %s: %w", path, t.Name(), err)
	}
	return expr.Ref(mapped), nil
}
