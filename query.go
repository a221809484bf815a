package odata

import (
	"context"
	"time"

	"github.com/nlstn/go-odata-client/internal/observability"
	"github.com/nlstn/go-odata-client/internal/query"
)

// Clauses are the formatted query option clauses of one request.
type Clauses = query.Clauses

// Query collects the options of one request against a collection, function
// or action. Methods return the receiver so calls can be chained; use Clone
// to branch a shared base query.
type Query struct {
	client   *Client
	resource string
	builder  *query.Builder
}

// Query starts a query against collection, which may be an entity set, a
// derived collection path or a navigation path such as "Orders(1)/Details".
//
// # Example
//
//	clauses, err := client.Query("Products").
//	    Filter(odata.Eq(odata.Ref("category.name"), odata.Lit("Beverages"))).
//	    Select("name", "price").
//	    OrderByDescending("price").
//	    Build(ctx)
//	// clauses.Options(): [$filter=Category/Name eq 'Beverages' $select=Name,Price $orderby=Price desc]
func (c *Client) Query(collection string) *Query {
	return &Query{
		client:   c,
		resource: collection,
		builder:  query.New(c, collection).WithLogger(c.log()),
	}
}

// Function targets a function import. Its return collection roots the clauses.
func (q *Query) Function(name string) *Query {
	q.resource = name
	q.builder.Function(name)
	return q
}

// Action targets an action import. A query may not combine a function and an action.
func (q *Query) Action(name string) *Query {
	q.resource = name
	q.builder.Action(name)
	return q
}

// Key adds a key predicate. Several values form a composite key in the
// order the schema declares the key properties.
func (q *Query) Key(values ...any) *Query {
	q.builder.Key(values...)
	return q
}

// NamedKey adds a key predicate from property names to values.
func (q *Query) NamedKey(values map[string]any) *Query {
	q.builder.NamedKey(values)
	return q
}

// Filter adds a predicate. Several predicates are joined with and.
func (q *Query) Filter(node Node) *Query {
	q.builder.Filter(node)
	return q
}

// Select adds $select paths.
func (q *Query) Select(paths ...string) *Query {
	q.builder.Select(paths...)
	return q
}

// OrderBy adds an ascending $orderby path.
func (q *Query) OrderBy(path string) *Query {
	q.builder.OrderBy(path)
	return q
}

// OrderByDescending adds a descending $orderby path.
func (q *Query) OrderByDescending(path string) *Query {
	q.builder.OrderByDescending(path)
	return q
}

// Expand adds $expand navigation paths.
func (q *Query) Expand(paths ...string) *Query {
	q.builder.Expand(paths...)
	return q
}

// Custom adds custom query options from an And/Equal expression.
func (q *Query) Custom(node Node) *Query {
	q.builder.Custom(node)
	return q
}

// CustomOptions adds custom query options from a map. Values are escaped.
func (q *Query) CustomOptions(options map[string]any) *Query {
	q.builder.CustomOptions(options)
	return q
}

// WithDynamicContainer names the property that holds the dynamic properties
// of an open type, so that Index(Ref(name), key) formats as the bare key.
func (q *Query) WithDynamicContainer(name string) *Query {
	q.builder.WithDynamicContainer(name)
	return q
}

// Clone returns an independent copy of the query.
func (q *Query) Clone() *Query {
	return &Query{client: q.client, resource: q.resource, builder: q.builder.Clone()}
}

// Build formats every clause of the query.
func (q *Query) Build(ctx context.Context) (*Clauses, error) {
	obs := q.client.obs()
	if obs == nil {
		return q.builder.Build()
	}

	_, span := obs.Tracer().StartQuery(ctx, q.resource)
	start := time.Now()
	clauses, err := q.builder.Build()
	obs.Metrics().RecordFormat(ctx, "query", time.Since(start), err)
	observability.EndSpan(span, err)
	return clauses, err
}
