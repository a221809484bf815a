package odata

import (
	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/expr"
)

// Node is one node of an expression tree.
type Node = expr.Node

// Expression node types.
type (
	Reference    = expr.Reference
	Literal      = expr.Literal
	FunctionCall = expr.FunctionCall
	BinaryExpr   = expr.BinaryExpr
	UnaryExpr    = expr.UnaryExpr
	Conversion   = expr.Conversion
	Operator     = expr.Operator
)

// FormattingContext carries the collection, the enclosing range variable and
// the dynamic property container of one format call.
type FormattingContext = expr.Context

// Typed literal values.
type (
	DateTimeOffset = edm.DateTimeOffset
	Date           = edm.Date
	EnumValue      = edm.EnumValue
	TypeName       = edm.TypeName
	GeographyPoint = edm.GeographyPoint
)

// Operators.
const (
	OpAnd            = expr.OpAnd
	OpOr             = expr.OpOr
	OpEqual          = expr.OpEqual
	OpNotEqual       = expr.OpNotEqual
	OpGreaterThan    = expr.OpGreaterThan
	OpGreaterOrEqual = expr.OpGreaterOrEqual
	OpLessThan       = expr.OpLessThan
	OpLessOrEqual    = expr.OpLessOrEqual
	OpAdd            = expr.OpAdd
	OpSubtract       = expr.OpSubtract
	OpMultiply       = expr.OpMultiply
	OpDivide         = expr.OpDivide
	OpModulo         = expr.OpModulo
	OpNot            = expr.OpNot
	OpNegate         = expr.OpNegate
)

// Expression constructors. See the expr documentation of each for details.
var (
	Ref     = expr.Ref
	It      = expr.It
	Lit     = expr.Lit
	Null    = expr.Null
	Call    = expr.Call
	Static  = expr.Static
	Binary  = expr.Binary
	Convert = expr.Convert

	And = expr.And
	Or  = expr.Or
	Not = expr.Not
	Eq  = expr.Eq
	Ne  = expr.Ne
	Gt  = expr.Gt
	Ge  = expr.Ge
	Lt  = expr.Lt
	Le  = expr.Le

	Add    = expr.Add
	Sub    = expr.Sub
	Mul    = expr.Mul
	Div    = expr.Div
	Mod    = expr.Mod
	Negate = expr.Negate

	AndAll = expr.AndAll
	OrAll  = expr.OrAll

	Any     = expr.Any
	All     = expr.All
	IsOf    = expr.IsOf
	Cast    = expr.Cast
	In      = expr.In
	Index   = expr.Index
	HasFlag = expr.HasFlag

	ToLower    = expr.ToLower
	ToUpper    = expr.ToUpper
	Trim       = expr.Trim
	Length     = expr.Length
	StartsWith = expr.StartsWith
	EndsWith   = expr.EndsWith
	Contains   = expr.Contains
	IndexOf    = expr.IndexOf
	Replace    = expr.Replace
	Substring  = expr.Substring
	Concat     = expr.Concat

	Year      = expr.Year
	Month     = expr.Month
	Day       = expr.Day
	Hour      = expr.Hour
	Minute    = expr.Minute
	Second    = expr.Second
	DatePart  = expr.Date
	TimeOfDay = expr.TimeOfDay

	Round   = expr.Round
	Floor   = expr.Floor
	Ceiling = expr.Ceiling

	Distance   = expr.Distance
	Intersects = expr.Intersects
	GeoLength  = expr.GeoLength
)

// Format renders node with fc, which may be nil. Client.Format is the usual
// entry point; this form serves callers that implement their own Session.
func Format(node Node, fc *FormattingContext) (string, error) {
	return expr.Format(node, fc)
}

// FormatQueryOption renders node as custom query options with fc, which may be nil.
func FormatQueryOption(node Node, fc *FormattingContext) (string, error) {
	return expr.FormatQueryOption(node, fc)
}

// EscapeDataString percent-encodes every character outside the unreserved set.
func EscapeDataString(s string) string {
	return expr.EscapeDataString(s)
}
