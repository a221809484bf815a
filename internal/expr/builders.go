package expr

import (
	"reflect"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// Names of the calls the formatter recognizes besides the mapping tables.
const (
	FuncAny      = "Any"
	FuncAll      = "All"
	FuncIsOf     = "IsOf"
	FuncCast     = "Cast"
	FuncItem     = "Item"
	FuncHasFlag  = "HasFlag"
	FuncToString = "ToString"
	FuncContains = "Contains"
)

// Ref returns a reference to a property path.
func Ref(path string) *Reference {
	return &Reference{Path: path}
}

// It refers to the element itself inside an any/all predicate.
func It() *Reference {
	return &Reference{}
}

// Lit returns a literal. A Node value formats recursively.
func Lit(value any) *Literal {
	return &Literal{Value: value}
}

// Null returns the null literal.
func Null() *Literal {
	return &Literal{}
}

// Call returns a call bound to caller.
func Call(caller Node, name string, args ...Node) *FunctionCall {
	return &FunctionCall{Caller: caller, Name: name, Args: args}
}

// Static returns an unbound call.
func Static(name string, args ...Node) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

func binary(op Operator, left, right Node) *BinaryExpr {
	return &BinaryExpr{Left: left, Right: right, Operator: op}
}

func And(left, right Node) *BinaryExpr { return binary(OpAnd, left, right) }
func Or(left, right Node) *BinaryExpr  { return binary(OpOr, left, right) }
func Eq(left, right Node) *BinaryExpr  { return binary(OpEqual, left, right) }
func Ne(left, right Node) *BinaryExpr  { return binary(OpNotEqual, left, right) }
func Gt(left, right Node) *BinaryExpr  { return binary(OpGreaterThan, left, right) }
func Ge(left, right Node) *BinaryExpr  { return binary(OpGreaterOrEqual, left, right) }
func Lt(left, right Node) *BinaryExpr  { return binary(OpLessThan, left, right) }
func Le(left, right Node) *BinaryExpr  { return binary(OpLessOrEqual, left, right) }
func Add(left, right Node) *BinaryExpr { return binary(OpAdd, left, right) }
func Sub(left, right Node) *BinaryExpr { return binary(OpSubtract, left, right) }
func Mul(left, right Node) *BinaryExpr { return binary(OpMultiply, left, right) }
func Div(left, right Node) *BinaryExpr { return binary(OpDivide, left, right) }
func Mod(left, right Node) *BinaryExpr { return binary(OpModulo, left, right) }

// Binary returns left op right.
func Binary(op Operator, left, right Node) *BinaryExpr {
	return binary(op, left, right)
}

// Not negates a boolean expression.
func Not(operand Node) *UnaryExpr {
	return &UnaryExpr{Operand: operand, Operator: OpNot}
}

// Negate negates a numeric expression.
func Negate(operand Node) *UnaryExpr {
	return &UnaryExpr{Operand: operand, Operator: OpNegate}
}

// AndAll joins nodes with And, left to right. It returns nil for no nodes.
func AndAll(nodes ...Node) Node {
	return fold(OpAnd, nodes)
}

// OrAll joins nodes with Or, left to right. It returns nil for no nodes.
func OrAll(nodes ...Node) Node {
	return fold(OpOr, nodes)
}

func fold(op Operator, nodes []Node) Node {
	var result Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if result == nil {
			result = n
			continue
		}
		result = binary(op, result, n)
	}
	return result
}

// Convert wraps inner in an explicit conversion to target.
func Convert(inner Node, target reflect.Type) *Conversion {
	return &Conversion{Inner: inner, Type: target}
}

// Any tests whether some element of the collection at path satisfies
// predicate. A nil predicate tests for a non-empty collection.
func Any(path string, predicate Node) *FunctionCall {
	if predicate == nil {
		return Call(Ref(path), FuncAny)
	}
	return Call(Ref(path), FuncAny, predicate)
}

// All tests whether every element of the collection at path satisfies predicate.
func All(path string, predicate Node) *FunctionCall {
	return Call(Ref(path), FuncAll, predicate)
}

// IsOf tests the type of target, or of the current instance when target is
// nil. typeName is a reflect.Type, an edm.TypeName or a qualified name string.
func IsOf(target Node, typeName any) *FunctionCall {
	return typeCall(FuncIsOf, target, typeName)
}

// Cast converts target to typeName. See IsOf.
func Cast(target Node, typeName any) *FunctionCall {
	return typeCall(FuncCast, target, typeName)
}

func typeCall(name string, target Node, typeName any) *FunctionCall {
	if s, ok := typeName.(string); ok {
		typeName = edm.TypeName(s)
	}
	if target == nil {
		return Static(name, Lit(typeName))
	}
	return Static(name, target, Lit(typeName))
}

// In tests membership of value in a literal slice or array.
func In(value Node, collection any) *FunctionCall {
	return Call(Lit(collection), FuncContains, value)
}

// Index accesses a dynamic property by key.
func Index(caller Node, key string) *FunctionCall {
	return Call(caller, FuncItem, Lit(key))
}

// HasFlag tests an enum flag.
func HasFlag(caller Node, flag any) *FunctionCall {
	return Call(caller, FuncHasFlag, valueNode(flag))
}

func ToLower(n Node) *FunctionCall                   { return Call(n, "ToLower") }
func ToUpper(n Node) *FunctionCall                   { return Call(n, "ToUpper") }
func Trim(n Node) *FunctionCall                      { return Call(n, "Trim") }
func Length(n Node) *FunctionCall                    { return Call(n, "Length") }
func StartsWith(n, prefix Node) *FunctionCall        { return Call(n, "StartsWith", prefix) }
func EndsWith(n, suffix Node) *FunctionCall          { return Call(n, "EndsWith", suffix) }
func Contains(n, sub Node) *FunctionCall             { return Call(n, FuncContains, sub) }
func IndexOf(n, sub Node) *FunctionCall              { return Call(n, "IndexOf", sub) }
func Replace(n, old, replacement Node) *FunctionCall { return Call(n, "Replace", old, replacement) }
func Concat(a, b Node) *FunctionCall                 { return Static("Concat", a, b) }
func Year(n Node) *FunctionCall                      { return Call(n, "Year") }
func Month(n Node) *FunctionCall                     { return Call(n, "Month") }
func Day(n Node) *FunctionCall                       { return Call(n, "Day") }
func Hour(n Node) *FunctionCall                      { return Call(n, "Hour") }
func Minute(n Node) *FunctionCall                    { return Call(n, "Minute") }
func Second(n Node) *FunctionCall                    { return Call(n, "Second") }
func Date(n Node) *FunctionCall                      { return Call(n, "Date") }
func TimeOfDay(n Node) *FunctionCall                 { return Call(n, "TimeOfDay") }
func Round(n Node) *FunctionCall                     { return Call(n, "Round") }
func Floor(n Node) *FunctionCall                     { return Call(n, "Floor") }
func Ceiling(n Node) *FunctionCall                   { return Call(n, "Ceiling") }

// Substring takes the rest of n from start, or length characters when
// length is not nil.
func Substring(n, start, length Node) *FunctionCall {
	if length == nil {
		return Call(n, "Substring", start)
	}
	return Call(n, "Substring", start, length)
}

// Distance, Intersects and GeoLength require geospatial functions to be enabled.
func Distance(n, point Node) *FunctionCall  { return Call(n, "Distance", point) }
func Intersects(n, area Node) *FunctionCall { return Call(n, "Intersects", area) }
func GeoLength(n Node) *FunctionCall        { return Call(n, "GeoLength") }

func valueNode(v any) Node {
	if n, ok := v.(Node); ok {
		return n
	}
	return Lit(v)
}
