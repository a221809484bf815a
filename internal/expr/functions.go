package expr

import (
	"reflect"
	"strings"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// FunctionMapping maps a Go-side call to an OData canonical function.
type FunctionMapping struct {
	Name  string
	Arity int
	// MinVersion and MaxVersion bound the protocol versions the rule applies
	// to. Zero leaves the bound open.
	MinVersion edm.Version
	MaxVersion edm.Version
	// Map returns the target function name and its arguments in order.
	Map func(caller Node, args []Node) (string, []Node)
}

func (m *FunctionMapping) applies(name string, arity int, version edm.Version) bool {
	if m.Name != name || m.Arity != arity {
		return false
	}
	if m.MinVersion != 0 && version < m.MinVersion {
		return false
	}
	return m.MaxVersion == 0 || version <= m.MaxVersion
}

func bound(target string) func(Node, []Node) (string, []Node) {
	return func(caller Node, args []Node) (string, []Node) {
		return target, append([]Node{caller}, args...)
	}
}

func static(target string) func(Node, []Node) (string, []Node) {
	return func(_ Node, args []Node) (string, []Node) {
		return target, args
	}
}

var functionMappings = []FunctionMapping{
	{Name: "Contains", Arity: 1, MinVersion: edm.V4, Map: bound("contains")},
	{Name: "Contains", Arity: 1, MaxVersion: edm.V3, Map: func(caller Node, args []Node) (string, []Node) {
		return "substringof", []Node{args[0], caller}
	}},
	{Name: "StartsWith", Arity: 1, Map: bound("startswith")},
	{Name: "EndsWith", Arity: 1, Map: bound("endswith")},
	{Name: "Length", Arity: 0, Map: bound("length")},
	{Name: "IndexOf", Arity: 1, Map: bound("indexof")},
	{Name: "Replace", Arity: 2, Map: bound("replace")},
	{Name: "Substring", Arity: 1, Map: bound("substring")},
	{Name: "Substring", Arity: 2, Map: bound("substring")},
	{Name: "ToLower", Arity: 0, Map: bound("tolower")},
	{Name: "ToUpper", Arity: 0, Map: bound("toupper")},
	{Name: "Trim", Arity: 0, Map: bound("trim")},
	{Name: "Concat", Arity: 2, Map: static("concat")},

	{Name: "Year", Arity: 0, Map: bound("year")},
	{Name: "Month", Arity: 0, Map: bound("month")},
	{Name: "Day", Arity: 0, Map: bound("day")},
	{Name: "Hour", Arity: 0, Map: bound("hour")},
	{Name: "Minute", Arity: 0, Map: bound("minute")},
	{Name: "Second", Arity: 0, Map: bound("second")},
	{Name: "Date", Arity: 0, MinVersion: edm.V4, Map: bound("date")},
	{Name: "TimeOfDay", Arity: 0, MinVersion: edm.V4, Map: bound("time")},

	{Name: "Round", Arity: 0, Map: bound("round")},
	{Name: "Floor", Arity: 0, Map: bound("floor")},
	{Name: "Ceiling", Arity: 0, Map: bound("ceiling")},
	{Name: "Round", Arity: 1, Map: static("round")},
	{Name: "Floor", Arity: 1, Map: static("floor")},
	{Name: "Ceiling", Arity: 1, Map: static("ceiling")},

	{Name: "Distance", Arity: 1, Map: bound("geo.distance")},
	{Name: "Intersects", Arity: 1, Map: bound("geo.intersects")},
	{Name: "GeoLength", Arity: 0, Map: bound("geo.length")},
}

// FunctionMappings returns a copy of the function table.
func FunctionMappings() []FunctionMapping {
	return append([]FunctionMapping(nil), functionMappings...)
}

// LookupFunction returns the first rule for name and arity that applies to
// version, or nil.
func LookupFunction(name string, arity int, version edm.Version) *FunctionMapping {
	for i := range functionMappings {
		if functionMappings[i].applies(name, arity, version) {
			return &functionMappings[i]
		}
	}
	return nil
}

// OperatorMapping turns a call into an operator expression instead of a
// function call.
type OperatorMapping struct {
	Name       string
	Arity      int
	MinVersion edm.Version
	// Applies inspects the shape of the call only.
	Applies func(call *FunctionCall) bool
	Format  func(c *Context, call *FunctionCall) (string, error)
}

var operatorMappings []OperatorMapping

// formatIn reaches LookupOperator through Format, so the table is assigned in
// init to break the initialization cycle.
func init() {
	operatorMappings = []OperatorMapping{
		{Name: "Contains", Arity: 1, MinVersion: edm.V4, Applies: callerIsCollectionLiteral, Format: formatIn},
	}
}

// LookupOperator returns the operator rule that applies to call, or nil.
func LookupOperator(call *FunctionCall, version edm.Version) *OperatorMapping {
	for i := range operatorMappings {
		m := &operatorMappings[i]
		if m.Name != call.Name || m.Arity != len(call.Args) || version < m.MinVersion {
			continue
		}
		if m.Applies(call) {
			return m
		}
	}
	return nil
}

// callerIsCollectionLiteral matches a literal slice or array caller. Strings
// and byte slices are scalars.
func callerIsCollectionLiteral(call *FunctionCall) bool {
	lit, ok := call.Caller.(*Literal)
	if !ok || lit == nil || lit.Value == nil {
		return false
	}
	_, ok = collectionValue(lit.Value)
	return ok
}

func collectionValue(value any) (reflect.Value, bool) {
	if _, isNode := value.(Node); isNode {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return reflect.Value{}, false
	}
	return rv, true
}

// formatIn renders "<arg0> in (<v1>,<v2>,...)".
func formatIn(c *Context, call *FunctionCall) (string, error) {
	target, err := c.format(call.Args[0])
	if err != nil {
		return "", err
	}
	values, _ := collectionValue(call.Caller.(*Literal).Value)

	items := make([]string, values.Len())
	for i := range items {
		item, err := c.formatLiteral(values.Index(i).Interface())
		if err != nil {
			return "", err
		}
		items[i] = item
	}
	return target + " in (" + strings.Join(items, ",") + ")", nil
}
