package expr

import "fmt"

// Operator is a unary or binary operator of the filter grammar.
type Operator int

const (
	// OpNone is the operator of leaf nodes.
	OpNone Operator = iota
	OpAnd
	OpOr
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpNot
	OpNegate
)

var operatorTokens = map[Operator]string{
	OpAnd:            "and",
	OpOr:             "or",
	OpEqual:          "eq",
	OpNotEqual:       "ne",
	OpGreaterThan:    "gt",
	OpGreaterOrEqual: "ge",
	OpLessThan:       "lt",
	OpLessOrEqual:    "le",
	OpAdd:            "add",
	OpSubtract:       "sub",
	OpMultiply:       "mul",
	OpDivide:         "div",
	OpModulo:         "mod",
	OpNot:            "not",
	OpNegate:         "-",
}

// Token returns the $filter token of the operator.
func (op Operator) Token() string {
	return operatorTokens[op]
}

// QueryOptionToken returns the token used in custom query options, where
// only And and Equal are legal.
func (op Operator) QueryOptionToken() (string, bool) {
	switch op {
	case OpAnd:
		return "&", true
	case OpEqual:
		return "=", true
	}
	return "", false
}

func (op Operator) String() string {
	if token, ok := operatorTokens[op]; ok {
		return token
	}
	if op == OpNone {
		return "none"
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// IsUnary reports whether op is Not or Negate.
func (op Operator) IsUnary() bool {
	return op == OpNot || op == OpNegate
}

// Precedence returns 1 for the tightest binding operators up to 7 for Or.
// Leaves have precedence 0.
func (op Operator) Precedence() int {
	switch op {
	case OpNot, OpNegate:
		return 1
	case OpMultiply, OpDivide, OpModulo:
		return 2
	case OpAdd, OpSubtract:
		return 3
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return 4
	case OpEqual, OpNotEqual:
		return 5
	case OpAnd:
		return 6
	case OpOr:
		return 7
	}
	return 0
}

// needsGrouping reports whether child must be parenthesised below parent.
// Children without an operator are never grouped. A left child is grouped iff
// it binds looser than parent. A right operand of equal precedence is also
// grouped unless both apply the same associative operator, so the output
// differs from the plain precedence rule there: Eq(A, Eq(B, C)) renders
// "A eq (B eq C)" and Sub(A, Sub(B, C)) renders "A sub (B sub C)", which the
// server would otherwise parse left to right.
func needsGrouping(parent Operator, child Node, right bool) bool {
	inner := operatorOf(child)
	if parent == OpNone || inner == OpNone {
		return false
	}
	if right && !parent.IsUnary() && parent.Precedence() == inner.Precedence() {
		return parent != inner || !parent.associative()
	}
	return parent.Precedence() < inner.Precedence()
}

func (o Operator) associative() bool {
	switch o {
	case OpAnd, OpOr, OpAdd, OpMultiply:
		return true
	}
	return false
}
