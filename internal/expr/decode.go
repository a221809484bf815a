package expr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// DecodeYAML reads an expression document. Scalars are literals and every
// mapping has exactly one key naming the node:
//
//	and:
//	  - eq: [{ref: ProductID}, 1]
//	  - call: {name: StartsWith, caller: {ref: ProductName}, args: [Ch]}
//	  - any:
//	      path: Orders
//	      where: {gt: [{ref: Total}, {decimal: "10.5"}]}
//	  - in: [{ref: ProductName}, [Chai, Milk]]
//
// Typed literals are written as {datetime: ...}, {date: ...},
// {duration: 1h2m3s}, {guid: ...}, {decimal: ...}, {long: ...},
// {binary: <base64>}, {enum: NS.Type'Member'} and {type: NS.Name}.
func DecodeYAML(r io.Reader) (Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("expression document is empty")
		}
		return nil, fmt.Errorf("failed to decode expression document: %w", err)
	}
	return decodeNode(&doc)
}

func decodeNode(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) != 1 {
			return nil, decodeError(n, "expected a single expression")
		}
		return decodeNode(n.Content[0])
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.ScalarNode:
		value, err := decodeScalar(n)
		if err != nil {
			return nil, err
		}
		return Lit(value), nil
	case yaml.SequenceNode:
		values, err := decodeList(n)
		if err != nil {
			return nil, err
		}
		return Lit(values), nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return nil, decodeError(n, "expected a mapping with exactly one key")
		}
		return decodeKeyed(n.Content[0].Value, n.Content[1])
	}
	return nil, decodeError(n, "unexpected node")
}

var binaryKeys = map[string]Operator{
	"and": OpAnd, "or": OpOr,
	"eq": OpEqual, "ne": OpNotEqual,
	"gt": OpGreaterThan, "ge": OpGreaterOrEqual, "lt": OpLessThan, "le": OpLessOrEqual,
	"add": OpAdd, "sub": OpSubtract, "mul": OpMultiply, "div": OpDivide, "mod": OpModulo,
}

func decodeKeyed(key string, value *yaml.Node) (Node, error) {
	if op, ok := binaryKeys[key]; ok {
		operands, err := decodeOperands(value)
		if err != nil {
			return nil, err
		}
		switch {
		case (op == OpAnd || op == OpOr) && len(operands) >= 2:
			return fold(op, operands), nil
		case len(operands) == 2:
			return binary(op, operands[0], operands[1]), nil
		}
		return nil, decodeError(value, "%s expects two operands", key)
	}

	switch key {
	case "ref":
		return Ref(value.Value), nil
	case "it":
		return It(), nil
	case "null":
		return Null(), nil
	case "not", "neg":
		operand, err := decodeNode(value)
		if err != nil {
			return nil, err
		}
		if key == "not" {
			return Not(operand), nil
		}
		return Negate(operand), nil
	case "call":
		return decodeCall(value)
	case "any", "all":
		return decodeLambda(key, value)
	case "in":
		operands, err := decodeOperands(value)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, decodeError(value, "in expects a value and a list")
		}
		list, ok := operands[1].(*Literal)
		if !ok {
			return nil, decodeError(value, "in expects a literal list")
		}
		return In(operands[0], list.Value), nil
	case "isof", "cast":
		var spec struct {
			Type string    `yaml:"type"`
			Expr yaml.Node `yaml:"expr"`
		}
		if err := value.Decode(&spec); err != nil {
			return nil, decodeError(value, "%v", err)
		}
		var target Node
		if !spec.Expr.IsZero() {
			decoded, err := decodeNode(&spec.Expr)
			if err != nil {
				return nil, err
			}
			target = decoded
		}
		if key == "isof" {
			return IsOf(target, spec.Type), nil
		}
		return Cast(target, spec.Type), nil
	}

	literal, err := decodeTypedLiteral(key, value)
	if err != nil {
		return nil, err
	}
	return Lit(literal), nil
}

func decodeOperands(n *yaml.Node) ([]Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, decodeError(n, "expected a list of operands")
	}
	operands := make([]Node, 0, len(n.Content))
	for _, item := range n.Content {
		operand, err := decodeNode(item)
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	return operands, nil
}

func decodeCall(n *yaml.Node) (Node, error) {
	var spec struct {
		Name   string      `yaml:"name"`
		Caller yaml.Node   `yaml:"caller"`
		Args   []yaml.Node `yaml:"args"`
	}
	if err := n.Decode(&spec); err != nil {
		return nil, decodeError(n, "%v", err)
	}
	if spec.Name == "" {
		return nil, decodeError(n, "call requires a name")
	}

	call := &FunctionCall{Name: spec.Name}
	if !spec.Caller.IsZero() {
		caller, err := decodeNode(&spec.Caller)
		if err != nil {
			return nil, err
		}
		call.Caller = caller
	}
	for i := range spec.Args {
		arg, err := decodeNode(&spec.Args[i])
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

func decodeLambda(key string, n *yaml.Node) (Node, error) {
	var spec struct {
		Path  string    `yaml:"path"`
		Where yaml.Node `yaml:"where"`
	}
	if err := n.Decode(&spec); err != nil {
		return nil, decodeError(n, "%v", err)
	}
	if spec.Path == "" {
		return nil, decodeError(n, "%s requires a path", key)
	}

	var predicate Node
	if !spec.Where.IsZero() {
		decoded, err := decodeNode(&spec.Where)
		if err != nil {
			return nil, err
		}
		predicate = decoded
	}
	if key == "any" {
		return Any(spec.Path, predicate), nil
	}
	if predicate == nil {
		return nil, decodeError(n, "all requires a where predicate")
	}
	return All(spec.Path, predicate), nil
}

func decodeScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		return strconv.ParseBool(n.Value)
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, decodeError(n, "%v", err)
		}
		if i >= -1<<31 && i < 1<<31 {
			return int(i), nil
		}
		return i, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, decodeError(n, "%v", err)
		}
		return f, nil
	}
	return n.Value, nil
}

func decodeList(n *yaml.Node) ([]any, error) {
	values := make([]any, 0, len(n.Content))
	for _, item := range n.Content {
		node, err := decodeNode(item)
		if err != nil {
			return nil, err
		}
		lit, ok := node.(*Literal)
		if !ok {
			return nil, decodeError(item, "list items must be literals")
		}
		values = append(values, lit.Value)
	}
	return values, nil
}

func decodeTypedLiteral(key string, n *yaml.Node) (any, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, decodeError(n, "%s expects a scalar", key)
	}
	s := n.Value
	var (
		value any
		err   error
	)
	switch key {
	case "string":
		value = s
	case "datetime":
		var t time.Time
		t, err = time.Parse(time.RFC3339Nano, s)
		value = t
	case "datetimeoffset":
		var t time.Time
		t, err = time.Parse(time.RFC3339Nano, s)
		value = edm.DateTimeOffset{Time: t}
	case "date":
		var t time.Time
		t, err = time.Parse("2006-01-02", s)
		value = edm.DateOf(t)
	case "duration":
		value, err = time.ParseDuration(s)
	case "guid":
		value, err = uuid.Parse(s)
	case "decimal":
		value, err = decimal.NewFromString(s)
	case "long":
		value, err = strconv.ParseInt(s, 10, 64)
	case "binary":
		value, err = base64.StdEncoding.DecodeString(s)
	case "type":
		value = edm.TypeName(s)
	case "enum":
		value, err = parseEnumLiteral(s)
	default:
		return nil, decodeError(n, "unknown expression key %q", key)
	}
	if err != nil {
		return nil, decodeError(n, "invalid %s literal %q: %v", key, s, err)
	}
	return value, nil
}

// parseEnumLiteral reads NS.Type'Member'.
func parseEnumLiteral(s string) (edm.EnumValue, error) {
	open := strings.IndexByte(s, '\'')
	if open <= 0 || !strings.HasSuffix(s, "'") || len(s)-open < 2 {
		return edm.EnumValue{}, fmt.Errorf("expected Namespace.Type'Member'")
	}
	return edm.EnumValue{TypeName: s[:open], Member: s[open+1 : len(s)-1]}, nil
}

func decodeError(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
