package expr

import (
	"log/slog"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/scope"
	"github.com/nlstn/go-odata-client/internal/typecache"
)

// Settings are the switches of a session that change the formatted output.
type Settings struct {
	// Version selects literal and function forms. Zero means V4.
	Version edm.Version
	// EnumPrefixFree renders enum members as 'Member' without the type name.
	EnumPrefixFree bool
	// IgnoreUnmappedProperties keeps unknown path segments verbatim instead
	// of failing with UnresolvablePath.
	IgnoreUnmappedProperties bool
	// Geospatial enables the geo.* functions.
	Geospatial bool
}

// Session gives the formatter access to the schema, the type table and the
// settings of a client.
type Session interface {
	// Metadata returns nil when no schema is attached; references are then
	// emitted verbatim.
	Metadata() metadata.Metadata
	TypeCache() *typecache.Cache
	FormatSettings() Settings
	Logger() *slog.Logger
}

type staticSession struct {
	md       metadata.Metadata
	types    *typecache.Cache
	settings Settings
	logger   *slog.Logger
}

// NewSession returns a Session over fixed collaborators. A nil types creates
// an empty type cache and a nil logger uses slog.Default().
func NewSession(md metadata.Metadata, types *typecache.Cache, settings Settings, logger *slog.Logger) Session {
	if types == nil {
		types = typecache.New("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Version == 0 {
		settings.Version = edm.V4
	}
	return &staticSession{md: md, types: types, settings: settings, logger: logger}
}

func (s *staticSession) Metadata() metadata.Metadata { return s.md }
func (s *staticSession) TypeCache() *typecache.Cache { return s.types }
func (s *staticSession) FormatSettings() Settings    { return s.settings }
func (s *staticSession) Logger() *slog.Logger        { return s.logger }

// Context carries the state of one format call through the recursion.
type Context struct {
	Session Session
	// Collection roots the references. When nil, or when the session has no
	// metadata, references are emitted verbatim.
	Collection *metadata.EntityCollection
	// ScopeQualifier is the range variable of the enclosing any/all lambda.
	ScopeQualifier string
	// DynamicContainerName is the property holding the dynamic properties
	// of an open type.
	DynamicContainerName string
	IsQueryOption        bool

	vars *scope.Allocator
}

// NewContext returns a context rooted at collection.
func NewContext(session Session, collection *metadata.EntityCollection) *Context {
	return &Context{Session: session, Collection: collection}
}

// prepare copies ctx for a top-level call and gives the copy its own range
// variable allocator.
func prepare(ctx *Context, queryOption bool) *Context {
	var c Context
	if ctx != nil {
		c = *ctx
	}
	if c.Session == nil {
		c.Session = NewSession(nil, nil, Settings{}, nil)
	}
	if queryOption {
		c.IsQueryOption = true
	}
	c.vars = &scope.Allocator{}
	return &c
}

// lambda returns the context of an any/all predicate.
func (c *Context) lambda(variable string, collection *metadata.EntityCollection) *Context {
	return &Context{
		Session:              c.Session,
		Collection:           collection,
		ScopeQualifier:       variable,
		DynamicContainerName: c.DynamicContainerName,
		IsQueryOption:        c.IsQueryOption,
		vars:                 c.vars,
	}
}

func (c *Context) settings() Settings {
	s := c.Session.FormatSettings()
	if s.Version == 0 {
		s.Version = edm.V4
	}
	return s
}

func (c *Context) logger() *slog.Logger {
	if l := c.Session.Logger(); l != nil {
		return l
	}
	return slog.Default()
}

// meta returns the metadata to resolve references with, or nil when
// references are emitted verbatim.
func (c *Context) meta() metadata.Metadata {
	if c.IsQueryOption || c.Collection == nil {
		return nil
	}
	return c.Session.Metadata()
}
