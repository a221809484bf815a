// Package expr holds the expression tree of an OData predicate and the
// formatter that turns it into URI query syntax.
//
// Trees are built with the functions in builders.go, are immutable once
// built and are formatted by Format or FormatQueryOption.
package expr

import (
	"reflect"
)

// Node is one node of an expression tree. The set of node types is closed.
type Node interface {
	node()
}

// Reference is a property path such as "Address.City" or "Address/City".
// An empty path inside an any/all lambda is the range variable itself.
type Reference struct {
	Path string
}

// Literal is a constant value. A nil Value is the null literal.
type Literal struct {
	Value any
}

// FunctionCall is a method call bound to Caller, or a static call when
// Caller is nil.
type FunctionCall struct {
	Caller Node
	Name   string
	Args   []Node
}

// BinaryExpr applies a binary operator to Left and Right.
type BinaryExpr struct {
	Left     Node
	Right    Node
	Operator Operator
}

// UnaryExpr applies Not or Negate to Operand.
type UnaryExpr struct {
	Operand  Node
	Operator Operator
}

// Conversion is an explicit conversion of Inner to Type. Conversions of
// literals are folded at format time when the value can be converted.
type Conversion struct {
	Inner Node
	Type  reflect.Type
}

func (*Reference) node()    {}
func (*Literal) node()      {}
func (*FunctionCall) node() {}
func (*BinaryExpr) node()   {}
func (*UnaryExpr) node()    {}
func (*Conversion) node()   {}

// IsNull reports whether n is the null sentinel: a nil node, a typed nil
// pointer or a literal whose value is nil or a nil pointer.
func IsNull(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Literal:
		if v == nil || v.Value == nil {
			return true
		}
		rv := reflect.ValueOf(v.Value)
		return rv.Kind() == reflect.Ptr && rv.IsNil()
	case *Reference:
		return v == nil
	case *FunctionCall:
		return v == nil
	case *BinaryExpr:
		return v == nil
	case *UnaryExpr:
		return v == nil
	case *Conversion:
		return v == nil
	}
	return false
}

// operatorOf returns the top-level operator of n, or OpNone for leaves.
// Conversions are transparent.
func operatorOf(n Node) Operator {
	switch v := n.(type) {
	case *BinaryExpr:
		if v != nil {
			return v.Operator
		}
	case *UnaryExpr:
		if v != nil {
			return v.Operator
		}
	case *Conversion:
		if v != nil {
			return operatorOf(v.Inner)
		}
	}
	return OpNone
}
