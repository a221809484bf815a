package expr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/scope"
)

// Format renders node as $filter syntax. The call owns its range variable
// allocator, so concurrent calls with the same ctx are independent.
func Format(node Node, ctx *Context) (string, error) {
	return prepare(ctx, false).format(node)
}

// FormatQueryOption renders node as a custom query option string where And
// joins options with '&' and Equal assigns with '='.
func FormatQueryOption(node Node, ctx *Context) (string, error) {
	return prepare(ctx, true).format(node)
}

func (c *Context) format(node Node) (string, error) {
	if IsNull(node) {
		return "null", nil
	}
	if c.IsQueryOption {
		if op := operatorOf(node); op != OpNone && op != OpAnd && op != OpEqual {
			return "", &FormatError{Kind: InvalidQueryOption, Name: op.String()}
		}
	}

	switch n := node.(type) {
	case *Conversion:
		return c.formatConversion(n)
	case *UnaryExpr:
		return c.formatUnary(n)
	case *BinaryExpr:
		return c.formatBinary(n)
	case *Reference:
		return c.formatReference(n.Path)
	case *FunctionCall:
		return c.formatFunction(n)
	case *Literal:
		return c.formatLiteral(n.Value)
	}
	return "", unsupportedLiteral("unknown node %T", node)
}

func (c *Context) formatConversion(n *Conversion) (string, error) {
	lit, ok := n.Inner.(*Literal)
	if !ok || IsNull(lit) || n.Type == nil {
		return c.format(n.Inner)
	}
	if _, nested := lit.Value.(Node); nested {
		return c.format(n.Inner)
	}

	types := c.Session.TypeCache()
	if _, _, isEnum := types.EnumLiteral(lit.Value); isEnum {
		return c.formatLiteral(lit.Value)
	}
	converted, err := types.Convert(lit.Value, n.Type)
	if err != nil {
		c.logger().Debug("Conversion failed, formatting the unconverted value",
			"value", fmt.Sprintf("%v", lit.Value), "type", n.Type.String(), "error", err)
		return c.formatLiteral(lit.Value)
	}
	return c.formatLiteral(converted)
}

func (c *Context) formatUnary(n *UnaryExpr) (string, error) {
	if !n.Operator.IsUnary() {
		return "", unsupportedLiteral("operator %s is not unary", n.Operator)
	}
	operand, err := c.format(n.Operand)
	if err != nil {
		return "", err
	}
	if needsGrouping(n.Operator, n.Operand, false) {
		return n.Operator.Token() + " (" + operand + ")", nil
	}
	return n.Operator.Token() + " " + operand, nil
}

func (c *Context) formatBinary(n *BinaryExpr) (string, error) {
	if n.Operator == OpNone || n.Operator.IsUnary() {
		return "", unsupportedLiteral("operator %s is not binary", n.Operator)
	}
	left, err := c.format(n.Left)
	if err != nil {
		return "", err
	}
	right, err := c.format(n.Right)
	if err != nil {
		return "", err
	}

	if c.IsQueryOption {
		token, _ := n.Operator.QueryOptionToken()
		return left + token + right, nil
	}
	if needsGrouping(n.Operator, n.Left, false) {
		left = "(" + left + ")"
	}
	if needsGrouping(n.Operator, n.Right, true) {
		right = "(" + right + ")"
	}
	return left + " " + n.Operator.Token() + " " + right, nil
}

func (c *Context) formatReference(path string) (string, error) {
	formatted, _, err := c.resolveReference(path)
	return formatted, err
}

// resolveReference returns the wire form of path, qualified with the range
// variable in scope, and the collection its last segment navigates to.
func (c *Context) resolveReference(path string) (string, *metadata.EntityCollection, error) {
	segments := metadata.SplitPath(path)
	if len(segments) == 0 {
		if c.ScopeQualifier != "" {
			return c.ScopeQualifier, c.Collection, nil
		}
		return "", nil, unresolvable(path, errors.New("property path cannot be empty"))
	}

	md := c.meta()
	collection := c.Collection
	if md == nil {
		collection = nil
	}
	settings := c.settings()

	parts := make([]string, 0, len(segments))
	qualified := false
	for i := 0; i < len(segments); i++ {
		segment := segments[i]

		if i > 0 && c.isPropertyFunction(segment, collection) {
			target, _ := LookupFunction(segment, 0, settings.Version).Map(nil, nil)
			inner := strings.Join(parts, "/")
			if !qualified {
				inner = scope.Qualify(c.ScopeQualifier, inner)
				qualified = true
			}
			parts = append(parts[:0], target+"("+inner+")")
			collection = nil
			continue
		}
		if c.DynamicContainerName != "" && i == 0 && len(segments) > 1 &&
			strings.EqualFold(segment, c.DynamicContainerName) {
			collection = nil
			continue
		}
		if collection == nil {
			parts = append(parts, segment)
			continue
		}

		switch {
		case md.HasStructuralProperty(collection.Name, segment):
			end := c.structuralRunEnd(md, collection, segments, i)
			exact, err := md.GetStructuralPropertyPath(collection.Name, segments[i:end]...)
			if err != nil {
				if !settings.IgnoreUnmappedProperties {
					return "", nil, unresolvable(objectName(err, segment), err)
				}
				exact = strings.Join(segments[i:end], "/")
			}
			parts = append(parts, exact)
			i = end - 1
			collection = nil

		case md.HasNavigationProperty(collection.Name, segment):
			exact, err := md.GetNavigationPropertyExactName(collection.Name, segment)
			if err != nil {
				return "", nil, unresolvable(segment, err)
			}
			next, err := md.NavigateFrom(collection, exact)
			if err != nil {
				return "", nil, unresolvable(segment, err)
			}
			parts = append(parts, exact)
			collection = next

		case md.IsOpenType(collection.Name):
			parts = append(parts, segment)
			collection = nil

		case settings.IgnoreUnmappedProperties:
			c.logger().Debug("Keeping unmapped property verbatim", "collection", collection.Name, "property", segment)
			parts = append(parts, segment)
			collection = nil

		default:
			return "", nil, unresolvable(segment, metadata.Unresolvable(segment,
				"property [%s] not found in collection [%s]", segment, collection.Name))
		}
	}

	formatted := strings.Join(parts, "/")
	if !qualified {
		formatted = scope.Qualify(c.ScopeQualifier, formatted)
	}
	return formatted, collection, nil
}

// isPropertyFunction reports whether segment is a zero-arity function such
// as Length rather than a property of collection.
func (c *Context) isPropertyFunction(segment string, collection *metadata.EntityCollection) bool {
	if LookupFunction(segment, 0, c.settings().Version) == nil {
		return false
	}
	if collection == nil {
		return true
	}
	md := c.meta()
	return !md.HasStructuralProperty(collection.Name, segment) && !md.HasNavigationProperty(collection.Name, segment)
}

// structuralRunEnd returns the end of the run of segments starting at start
// that address a structural property and members of its complex type.
func (c *Context) structuralRunEnd(md metadata.Metadata, collection *metadata.EntityCollection, segments []string, start int) int {
	end := start + 1
	for end < len(segments) {
		if LookupFunction(segments[end], 0, c.settings().Version) != nil {
			if _, err := md.GetStructuralPropertyPath(collection.Name, segments[start:end+1]...); err != nil {
				break
			}
		}
		end++
	}
	return end
}

func objectName(err error, fallback string) string {
	var unresolvableErr *metadata.UnresolvableError
	if errors.As(err, &unresolvableErr) && unresolvableErr.ObjectName != "" {
		return unresolvableErr.ObjectName
	}
	return fallback
}

func (c *Context) formatFunction(call *FunctionCall) (string, error) {
	settings := c.settings()

	if mapping := LookupOperator(call, settings.Version); mapping != nil {
		return mapping.Format(c, call)
	}
	if mapping := LookupFunction(call.Name, len(call.Args), settings.Version); mapping != nil {
		return c.formatMappedFunction(call, mapping)
	}

	switch {
	case strings.EqualFold(call.Name, FuncAny), strings.EqualFold(call.Name, FuncAll):
		return c.formatAnyAll(call)
	case strings.EqualFold(call.Name, FuncIsOf), strings.EqualFold(call.Name, FuncCast):
		return c.formatIsOfCast(call)
	case call.Name == FuncItem && len(call.Args) == 1:
		return c.formatIndexer(call)
	case call.Name == FuncHasFlag && len(call.Args) == 1:
		return c.formatHasFlag(call)
	case call.Name == FuncToString && len(call.Args) == 0:
		return c.format(call.Caller)
	}

	if len(call.Args) == 1 {
		if fold, ok := conversionFolds[call.Name]; ok {
			if lit, isLiteral := call.Args[0].(*Literal); isLiteral && !IsNull(lit) {
				return c.formatFolded(call.Name, fold, lit)
			}
		}
	}
	return "", unsupportedFunction(call, nil)
}

func (c *Context) formatMappedFunction(call *FunctionCall, mapping *FunctionMapping) (string, error) {
	name, args := mapping.Map(call.Caller, call.Args)
	if strings.HasPrefix(name, "geo.") && !c.settings().Geospatial {
		return "", unsupportedFunction(call, errors.New("geospatial functions are not enabled"))
	}

	formatted := make([]string, len(args))
	for i, arg := range args {
		s, err := c.format(arg)
		if err != nil {
			return "", err
		}
		formatted[i] = s
	}
	return name + "(" + strings.Join(formatted, ",") + ")", nil
}

func (c *Context) formatAnyAll(call *FunctionCall) (string, error) {
	ref, ok := call.Caller.(*Reference)
	if !ok || ref == nil {
		return "", unsupportedFunction(call, errors.New("any and all must be called on a collection property"))
	}
	path, target, err := c.resolveReference(ref.Path)
	if err != nil {
		return "", err
	}

	name := strings.ToLower(call.Name)
	if len(call.Args) == 0 {
		if name == "any" {
			return path + "/any()", nil
		}
		return "", unsupportedFunction(call, errors.New("all requires a predicate"))
	}
	if len(call.Args) > 1 {
		return "", unsupportedFunction(call, nil)
	}
	// A lambda predicate is filter syntax and has no query option form.
	if c.IsQueryOption {
		return "", &FormatError{Kind: InvalidQueryOption, Name: call.Name}
	}

	variable := c.vars.Next()
	predicate, err := c.lambda(variable, target).format(call.Args[0])
	if err != nil {
		return "", err
	}
	return path + "/" + name + "(" + variable + ":" + predicate + ")", nil
}

func (c *Context) formatIsOfCast(call *FunctionCall) (string, error) {
	if len(call.Args) == 0 || len(call.Args) > 2 {
		return "", unsupportedFunction(call, nil)
	}
	var formatted []string
	if len(call.Args) == 2 && !IsNull(call.Args[0]) {
		target, err := c.format(call.Args[0])
		if err != nil {
			return "", err
		}
		formatted = append(formatted, target)
	}
	typeName, err := c.format(call.Args[len(call.Args)-1])
	if err != nil {
		return "", err
	}
	formatted = append(formatted, typeName)
	return strings.ToLower(call.Name) + "(" + strings.Join(formatted, ",") + ")", nil
}

// formatIndexer renders access to a dynamic property. Through the dynamic
// container the key is the property name itself.
func (c *Context) formatIndexer(call *FunctionCall) (string, error) {
	key, err := c.format(call.Args[0])
	if err != nil {
		return "", err
	}
	key = strings.Trim(key, "'")

	ref, ok := call.Caller.(*Reference)
	if !ok || ref == nil {
		return "", unsupportedFunction(call, errors.New("indexer must be called on a property"))
	}
	if c.DynamicContainerName != "" && ref.Path == c.DynamicContainerName {
		return scope.Qualify(c.ScopeQualifier, key), nil
	}
	caller := scope.Qualify(c.ScopeQualifier, strings.ReplaceAll(ref.Path, ".", "/"))
	return caller + "." + key, nil
}

func (c *Context) formatHasFlag(call *FunctionCall) (string, error) {
	caller, err := c.format(call.Caller)
	if err != nil {
		return "", err
	}
	flag, err := c.format(call.Args[0])
	if err != nil {
		return "", err
	}
	return caller + " has " + flag, nil
}

func (c *Context) formatFolded(name string, fold foldFunc, lit *Literal) (string, error) {
	folded, err := fold(c.Session.TypeCache(), lit.Value)
	if err != nil {
		c.logger().Debug("Conversion call not folded, formatting the unconverted value",
			"function", name, "type", reflect.TypeOf(lit.Value).String(), "error", err)
		return c.formatLiteral(lit.Value)
	}
	return c.formatLiteral(folded)
}
