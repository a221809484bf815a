// Package query assembles the query option clauses of one OData request from
// expression trees and logical property paths.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/metadata"
)

var errFunctionAndAction = errors.New("OData function and action may not be combined")

// Builder accumulates the clauses of a request against one collection,
// function or action. Builder methods never fail; the first error is
// reported by Build.
type Builder struct {
	session    expr.Session
	collection string
	function   string
	action     string

	key      []any
	namedKey map[string]any
	filters  []expr.Node
	selects  []string
	orderBys []orderBy
	expands  []string
	custom   []expr.Node
	options  map[string]any

	dynamicContainer string
	logger           *slog.Logger
}

type orderBy struct {
	path       string
	descending bool
}

// Clauses are the formatted parts of a request. Empty strings mark clauses
// that were not requested.
type Clauses struct {
	// Collection is the resolved collection the clauses are rooted at. It is
	// nil when the session has no metadata.
	Collection *metadata.EntityCollection
	// Resource is the exact collection, function or action name.
	Resource string
	Key      string
	Filter   string
	Select   string
	OrderBy  string
	Expand   string
	// Custom holds the custom query options joined with '&'.
	Custom string
}

// New creates a builder for the collection path, e.g. "Products",
// "Orders(1)/Details" or "Transport/NS.Ship".
func New(session expr.Session, collection string) *Builder {
	return &Builder{session: session, collection: collection}
}

// WithLogger sets the logger for the builder.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDynamicContainer names the property holding the dynamic properties
// of an open type.
func (b *Builder) WithDynamicContainer(name string) *Builder {
	b.dynamicContainer = name
	return b
}

// Function targets a function import instead of a collection.
func (b *Builder) Function(name string) *Builder {
	b.function = name
	return b
}

// Action targets an action import instead of a collection.
func (b *Builder) Action(name string) *Builder {
	b.action = name
	return b
}

// Key addresses a single entity by its key values, in declared key order.
func (b *Builder) Key(values ...any) *Builder {
	b.key = values
	b.namedKey = nil
	return b
}

// NamedKey addresses a single entity by key property name.
func (b *Builder) NamedKey(values map[string]any) *Builder {
	b.namedKey = values
	b.key = nil
	return b
}

// Filter adds a predicate. Predicates are joined with And.
func (b *Builder) Filter(node expr.Node) *Builder {
	b.filters = append(b.filters, node)
	return b
}

// Select adds $select items.
func (b *Builder) Select(paths ...string) *Builder {
	b.selects = append(b.selects, paths...)
	return b
}

// OrderBy adds an ascending $orderby item.
func (b *Builder) OrderBy(path string) *Builder {
	b.orderBys = append(b.orderBys, orderBy{path: path})
	return b
}

// OrderByDescending adds a descending $orderby item.
func (b *Builder) OrderByDescending(path string) *Builder {
	b.orderBys = append(b.orderBys, orderBy{path: path, descending: true})
	return b
}

// Expand adds $expand navigation paths.
func (b *Builder) Expand(paths ...string) *Builder {
	b.expands = append(b.expands, paths...)
	return b
}

// Custom adds custom query options written as an expression of Equal nodes
// joined with And.
func (b *Builder) Custom(node expr.Node) *Builder {
	b.custom = append(b.custom, node)
	return b
}

// CustomOptions adds custom query options from a map. Values are formatted
// as literals and escaped.
func (b *Builder) CustomOptions(options map[string]any) *Builder {
	if b.options == nil {
		b.options = make(map[string]any, len(options))
	}
	for k, v := range options {
		b.options[k] = v
	}
	return b
}

// Clone creates a copy of the builder that can be extended independently.
func (b *Builder) Clone() *Builder {
	clone := *b
	clone.key = append([]any(nil), b.key...)
	clone.filters = append([]expr.Node(nil), b.filters...)
	clone.selects = append([]string(nil), b.selects...)
	clone.orderBys = append([]orderBy(nil), b.orderBys...)
	clone.expands = append([]string(nil), b.expands...)
	clone.custom = append([]expr.Node(nil), b.custom...)
	if b.namedKey != nil {
		clone.namedKey = make(map[string]any, len(b.namedKey))
		for k, v := range b.namedKey {
			clone.namedKey[k] = v
		}
	}
	if b.options != nil {
		clone.options = make(map[string]any, len(b.options))
		for k, v := range b.options {
			clone.options[k] = v
		}
	}
	return &clone
}

func (b *Builder) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	if b.session != nil && b.session.Logger() != nil {
		return b.session.Logger()
	}
	return slog.Default()
}

func (b *Builder) meta() metadata.Metadata {
	if b.session == nil {
		return nil
	}
	return b.session.Metadata()
}

// Build formats every clause.
func (b *Builder) Build() (*Clauses, error) {
	if b.function != "" && b.action != "" {
		return nil, &expr.FormatError{Kind: expr.InvalidQueryOption, Err: errFunctionAndAction}
	}

	clauses := &Clauses{}
	if err := b.resolveResource(clauses); err != nil {
		return nil, err
	}
	ctx := expr.NewContext(b.session, clauses.Collection)
	ctx.DynamicContainerName = b.dynamicContainer

	var err error
	if clauses.Key, err = b.formatKey(ctx, clauses.Collection); err != nil {
		return nil, err
	}
	if len(b.filters) > 0 {
		if clauses.Filter, err = expr.Format(expr.AndAll(b.filters...), ctx); err != nil {
			return nil, err
		}
	}
	if clauses.Select, err = b.formatPaths(b.selects, clauses.Collection, metadata.SelectPath); err != nil {
		return nil, err
	}
	if clauses.Expand, err = b.formatPaths(b.expands, clauses.Collection, metadata.NavigationPath); err != nil {
		return nil, err
	}
	if clauses.OrderBy, err = b.formatOrderBy(clauses.Collection); err != nil {
		return nil, err
	}
	if clauses.Custom, err = b.formatCustom(ctx); err != nil {
		return nil, err
	}

	b.log().Debug("Built query clauses", "resource", clauses.Resource, "filter", clauses.Filter,
		"select", clauses.Select, "orderby", clauses.OrderBy, "expand", clauses.Expand)
	return clauses, nil
}

func (b *Builder) resolveResource(clauses *Clauses) error {
	md := b.meta()
	switch {
	case b.function != "":
		clauses.Resource = b.function
		if md == nil {
			return nil
		}
		name, err := md.GetFunctionFullName(b.function)
		if err != nil {
			return err
		}
		clauses.Resource = name
		clauses.Collection, err = md.GetFunctionReturnCollection(b.function)
		return err
	case b.action != "":
		clauses.Resource = b.action
		if md == nil {
			return nil
		}
		name, err := md.GetActionFullName(b.action)
		if err != nil {
			return err
		}
		clauses.Resource = name
		clauses.Collection, err = md.GetActionReturnCollection(b.action)
		return err
	}

	clauses.Resource = b.collection
	if md == nil || b.collection == "" {
		return nil
	}
	collection, err := md.NavigateToCollection(b.collection)
	if err != nil {
		return fmt.Errorf("failed to resolve collection %s: %w", b.collection, err)
	}
	clauses.Collection = collection
	if !strings.Contains(b.collection, "/") {
		clauses.Resource = collection.Name
	}
	return nil
}

// formatKey renders "(1)" for a single key value and "(A=1,B='x')" for
// composite keys, ordered by the declared key properties.
func (b *Builder) formatKey(ctx *expr.Context, collection *metadata.EntityCollection) (string, error) {
	if len(b.key) == 0 && len(b.namedKey) == 0 {
		return "", nil
	}

	names, values, err := b.keyPairs(collection)
	if err != nil {
		return "", err
	}
	if len(values) == 1 && (len(b.key) == 1 || len(names) <= 1) {
		literal, err := expr.Format(expr.Lit(values[0]), ctx)
		if err != nil {
			return "", err
		}
		return "(" + expr.EscapeDataString(literal) + ")", nil
	}
	if len(names) != len(values) {
		return "", fmt.Errorf("key of %s has %d properties, got %d values", collection, len(names), len(values))
	}

	parts := make([]string, len(values))
	for i, v := range values {
		literal, err := expr.Format(expr.Lit(v), ctx)
		if err != nil {
			return "", err
		}
		parts[i] = names[i] + "=" + expr.EscapeDataString(literal)
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

// keyPairs orders the key values by the declared key properties. Named keys
// without metadata are ordered by name. A named key that matches no declared
// key property is an UnresolvablePath error.
func (b *Builder) keyPairs(collection *metadata.EntityCollection) ([]string, []any, error) {
	var declared []string
	if md := b.meta(); md != nil && collection != nil {
		if names, err := md.GetDeclaredKeyPropertyNames(collection.Name); err == nil {
			declared = names
		} else {
			b.log().Debug("Key properties not found", "collection", collection.Name, "error", err)
		}
	}

	if b.namedKey == nil {
		return declared, b.key, nil
	}
	if len(declared) == 0 {
		for name := range b.namedKey {
			declared = append(declared, name)
		}
		sort.Strings(declared)
	}

	names := make([]string, 0, len(declared))
	values := make([]any, 0, len(declared))
	for _, name := range declared {
		if v, ok := lookupFold(b.namedKey, name); ok {
			names = append(names, name)
			values = append(values, v)
		}
	}
	if len(names) != len(b.namedKey) {
		for name := range b.namedKey {
			if !containsFold(names, name) {
				return nil, nil, &expr.FormatError{Kind: expr.UnresolvablePath, Segment: name,
					Err: fmt.Errorf("%s is not a key property of %s", name, collectionName(collection))}
			}
		}
	}
	return names, values, nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func collectionName(collection *metadata.EntityCollection) string {
	if collection == nil {
		return "the collection"
	}
	return collection.Name
}

func lookupFold(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

type pathResolver func(m metadata.Metadata, collection *metadata.EntityCollection, path string) (string, error)

func (b *Builder) formatPaths(paths []string, collection *metadata.EntityCollection, resolve pathResolver) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	md := b.meta()
	items := make([]string, len(paths))
	for i, path := range paths {
		if md == nil || collection == nil {
			items[i] = strings.Join(metadata.SplitPath(path), "/")
			continue
		}
		item, err := resolve(md, collection, path)
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	return strings.Join(items, ","), nil
}

func (b *Builder) formatOrderBy(collection *metadata.EntityCollection) (string, error) {
	if len(b.orderBys) == 0 {
		return "", nil
	}
	md := b.meta()
	items := make([]string, len(b.orderBys))
	for i, o := range b.orderBys {
		if md == nil || collection == nil {
			items[i] = strings.Join(metadata.SplitPath(o.path), "/")
			if o.descending {
				items[i] += " desc"
			}
			continue
		}
		item, err := metadata.OrderByPath(md, collection, o.path, o.descending)
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	return strings.Join(items, ","), nil
}

func (b *Builder) formatCustom(ctx *expr.Context) (string, error) {
	var parts []string
	for _, node := range b.custom {
		s, err := expr.FormatQueryOption(node, ctx)
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}

	names := make([]string, 0, len(b.options))
	for name := range b.options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		literal, err := expr.Format(expr.Lit(b.options[name]), ctx)
		if err != nil {
			return "", err
		}
		parts = append(parts, name+"="+expr.EscapeDataString(literal))
	}
	return strings.Join(parts, "&"), nil
}

// Options returns the clauses as query options in the order $filter,
// $expand, $select, $orderby, custom. Values are not escaped.
func (c *Clauses) Options() []string {
	var options []string
	add := func(name, value string) {
		if value != "" {
			options = append(options, name+"="+value)
		}
	}
	add("$filter", c.Filter)
	add("$expand", c.Expand)
	add("$select", c.Select)
	add("$orderby", c.OrderBy)
	if c.Custom != "" {
		options = append(options, c.Custom)
	}
	return options
}
