// Package typecache keeps the per-client table of Go type descriptors: struct
// properties with their wire names, enum types and value converters.
//
// Descriptors are built once, when a type is first registered or described,
// and are read concurrently afterwards.
package typecache

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// Converter turns a value into an instance of the type it was registered for.
type Converter func(value any) (any, error)

// EnumMember is one named value of an enum type.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumDefinition can be implemented by Go enum types to declare their members.
type EnumDefinition interface {
	EnumMembers() []EnumMember
}

// EnumDescriptor describes a registered enum type.
type EnumDescriptor struct {
	Type      reflect.Type
	Name      string
	Namespace string
	Flags     bool
	Members   []EnumMember
}

// QualifiedName returns Namespace.Name.
func (d *EnumDescriptor) QualifiedName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// EnumOption configures RegisterEnum.
type EnumOption func(*EnumDescriptor)

// WithEnumName overrides the enum type name, which defaults to the Go type name.
func WithEnumName(name string) EnumOption {
	return func(d *EnumDescriptor) { d.Name = name }
}

// WithEnumNamespace overrides the namespace of the enum type.
func WithEnumNamespace(namespace string) EnumOption {
	return func(d *EnumDescriptor) { d.Namespace = namespace }
}

// WithFlags marks the enum as a flags enum whose values combine members bitwise.
func WithFlags() EnumOption {
	return func(d *EnumDescriptor) { d.Flags = true }
}

// WithMembers declares the enum members explicitly.
func WithMembers(members ...EnumMember) EnumOption {
	return func(d *EnumDescriptor) { d.Members = append([]EnumMember(nil), members...) }
}

// Cache is the descriptor table of one client. It is safe for concurrent use.
type Cache struct {
	namespace string
	logger    *slog.Logger

	mu         sync.RWMutex
	types      map[reflect.Type]*TypeDescriptor
	enums      map[reflect.Type]*EnumDescriptor
	converters map[reflect.Type]Converter
}

// New creates an empty cache whose types default to namespace.
func New(namespace string) *Cache {
	return &Cache{
		namespace:  namespace,
		logger:     slog.Default(),
		types:      make(map[reflect.Type]*TypeDescriptor),
		enums:      make(map[reflect.Type]*EnumDescriptor),
		converters: make(map[reflect.Type]Converter),
	}
}

// SetLogger sets the logger. If logger is nil, slog.Default() is used.
func (c *Cache) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// Namespace returns the default namespace of registered types.
func (c *Cache) Namespace() string {
	return c.namespace
}

// Register analyzes the struct type of entity (a value, pointer or
// reflect.Type) and stores its descriptor along with every struct type it
// reaches through base, complex and navigation properties.
func (c *Cache) Register(entity any) (*TypeDescriptor, error) {
	t, ok := entity.(reflect.Type)
	if !ok {
		if entity == nil {
			return nil, fmt.Errorf("entity must not be nil")
		}
		t = reflect.TypeOf(entity)
	}
	return c.describe(dereferenceType(t))
}

// Describe returns the descriptor of t, registering it on first use.
func (c *Cache) Describe(t reflect.Type) (*TypeDescriptor, error) {
	return c.describe(dereferenceType(t))
}

// Lookup returns the descriptor of an already registered type.
func (c *Cache) Lookup(t reflect.Type) (*TypeDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.types[dereferenceType(t)]
	return d, ok
}

func (c *Cache) describe(t reflect.Type) (*TypeDescriptor, error) {
	c.mu.RLock()
	d, ok := c.types[t]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	var pending []reflect.Type
	desc, err := analyzeType(t, c.namespace, func(nested reflect.Type) {
		pending = append(pending, nested)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze type %s: %w", t, err)
	}

	c.mu.Lock()
	if existing, ok := c.types[t]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.types[t] = desc
	logger := c.logger
	c.mu.Unlock()

	for i := range desc.Properties {
		prop := &desc.Properties[i]
		if prop.IsEnum {
			enumType := dereferenceType(prop.Type)
			if prop.IsCollection {
				enumType = dereferenceType(prop.ElementType)
			}
			opts := []EnumOption{flagsOption(prop.IsFlags)}
			if prop.EnumTypeName != "" {
				opts = append(opts, WithEnumName(prop.EnumTypeName))
			}
			if _, err := c.registerEnum(enumType, opts...); err != nil {
				return nil, fmt.Errorf("error resolving enum members for field %s: %w", prop.Name, err)
			}
		}
	}

	for _, nested := range pending {
		if _, err := c.describe(nested); err != nil {
			return nil, err
		}
	}

	logger.Debug("Registered type", "type", desc.Name, "entitySet", desc.EntitySetName, "properties", len(desc.Properties))
	return desc, nil
}

func flagsOption(flags bool) EnumOption {
	return func(d *EnumDescriptor) {
		if flags {
			d.Flags = true
		}
	}
}

// RegisterEnum registers the type of sample (a value or reflect.Type) as an
// OData enum type. Members come from WithMembers or from the EnumDefinition
// implementation of the type.
func (c *Cache) RegisterEnum(sample any, opts ...EnumOption) (*EnumDescriptor, error) {
	t, ok := sample.(reflect.Type)
	if !ok {
		if sample == nil {
			return nil, fmt.Errorf("enum sample must not be nil")
		}
		t = reflect.TypeOf(sample)
	}
	return c.registerEnum(dereferenceType(t), opts...)
}

func (c *Cache) registerEnum(t reflect.Type, opts ...EnumOption) (*EnumDescriptor, error) {
	if !isIntegerKind(t.Kind()) && t.Kind() != reflect.String {
		return nil, fmt.Errorf("enum type %s must have an integer or string underlying type", t)
	}

	c.mu.RLock()
	existing, ok := c.enums[t]
	c.mu.RUnlock()

	desc := &EnumDescriptor{Type: t, Name: t.Name(), Namespace: c.namespace}
	if ok {
		copied := *existing
		desc = &copied
	}
	for _, opt := range opts {
		opt(desc)
	}
	if desc.Name == "" {
		desc.Name = t.Name()
	}
	if len(desc.Members) == 0 {
		if def, ok := reflect.Zero(t).Interface().(EnumDefinition); ok {
			desc.Members = def.EnumMembers()
		}
	}

	c.mu.Lock()
	c.enums[t] = desc
	c.mu.Unlock()
	return desc, nil
}

// IsEnumType reports whether t is a registered enum type.
func (c *Cache) IsEnumType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.enums[dereferenceType(t)]
	return ok
}

// Enum returns the descriptor of a registered enum type.
func (c *Cache) Enum(t reflect.Type) (*EnumDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.enums[dereferenceType(t)]
	return d, ok
}

// EnumLiteral returns the qualified type name and member name of value when
// its type is a registered enum.
func (c *Cache) EnumLiteral(value any) (typeName, member string, ok bool) {
	if value == nil {
		return "", "", false
	}
	if ev, isEnumValue := value.(edm.EnumValue); isEnumValue {
		return ev.TypeName, ev.Member, true
	}
	desc, found := c.Enum(reflect.TypeOf(value))
	if !found {
		return "", "", false
	}
	return desc.QualifiedName(), desc.memberName(reflect.ValueOf(value)), true
}

func (d *EnumDescriptor) memberName(v reflect.Value) string {
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}

	n := integerValue(v)
	for _, m := range d.Members {
		if m.Value == n {
			return m.Name
		}
	}
	if d.Flags && len(d.Members) > 0 {
		var names []string
		remaining := n
		for _, m := range d.Members {
			if m.Value != 0 && n&m.Value == m.Value {
				names = append(names, m.Name)
				remaining &^= m.Value
			}
		}
		if len(names) > 0 && remaining == 0 {
			return strings.Join(names, ",")
		}
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%d", n)
}

// RegisterConverter installs a converter used by TryConvert for target.
// Converters belong to this cache only.
func (c *Cache) RegisterConverter(target reflect.Type, conv Converter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv == nil {
		delete(c.converters, target)
		return
	}
	c.converters[target] = conv
}

func (c *Cache) converter(target reflect.Type) (Converter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conv, ok := c.converters[target]
	return conv, ok
}

// AllProperties returns every property of t, inherited ones included.
func (c *Cache) AllProperties(t reflect.Type) ([]PropertyDescriptor, error) {
	d, err := c.Describe(t)
	if err != nil {
		return nil, err
	}
	return d.Properties, nil
}

// DeclaredProperties returns the properties declared on t itself.
func (c *Cache) DeclaredProperties(t reflect.Type) ([]PropertyDescriptor, error) {
	d, err := c.Describe(t)
	if err != nil {
		return nil, err
	}
	return d.DeclaredProperties(), nil
}

// NamedProperty finds a property of t by Go or mapped name, ignoring case.
func (c *Cache) NamedProperty(t reflect.Type, name string) (*PropertyDescriptor, bool) {
	d, err := c.Describe(t)
	if err != nil {
		return nil, false
	}
	prop := d.FindProperty(name)
	return prop, prop != nil
}

// DeclaredProperty finds a property declared on t itself.
func (c *Cache) DeclaredProperty(t reflect.Type, name string) (*PropertyDescriptor, bool) {
	d, err := c.Describe(t)
	if err != nil {
		return nil, false
	}
	prop := d.FindDeclaredProperty(name)
	return prop, prop != nil
}

// MappedPath translates a Go field path ("Nested.ProductName") rooted at t
// into the wire path ("Nested/ProductName"), following complex and
// navigation properties.
func (c *Cache) MappedPath(t reflect.Type, path string) (string, error) {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '.' || r == '/' })
	if len(segments) == 0 {
		return "", fmt.Errorf("property path cannot be empty")
	}

	current := dereferenceType(t)
	mapped := make([]string, 0, len(segments))
	for i, segment := range segments {
		if current == nil {
			return "", fmt.Errorf("property '%s' follows scalar property '%s'", segment, segments[i-1])
		}
		prop, ok := c.NamedProperty(current, segment)
		if !ok {
			return "", fmt.Errorf("property '%s' not found on type %s", segment, current.Name())
		}
		mapped = append(mapped, prop.MappedName)

		next := prop.Type
		if prop.IsCollection {
			next = prop.ElementType
		}
		next = dereferenceType(next)
		if prop.IsComplexType || prop.IsNavigationProp {
			current = next
		} else {
			current = nil
		}
	}
	return strings.Join(mapped, "/"), nil
}

// DerivedTypes returns the registered types whose base type is t.
func (c *Cache) DerivedTypes(t reflect.Type) []*TypeDescriptor {
	t = dereferenceType(t)
	c.mu.RLock()
	defer c.mu.RUnlock()
	var derived []*TypeDescriptor
	for _, d := range c.types {
		if d.BaseType == t {
			derived = append(derived, d)
		}
	}
	return derived
}

// IsCollectionType reports whether t is a slice or array, other than a byte
// slice, and returns its element type.
func (c *Cache) IsCollectionType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	return collectionElement(t)
}

// QualifiedTypeName returns the namespace-qualified OData name of t.
func (c *Cache) QualifiedTypeName(t reflect.Type) string {
	t = dereferenceType(t)
	if d, ok := c.Enum(t); ok {
		return d.QualifiedName()
	}
	namespace := c.namespace
	if d, ok := c.Lookup(t); ok {
		namespace = d.Namespace
	}
	if namespace == "" {
		return t.Name()
	}
	return namespace + "." + t.Name()
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// isScalarStruct reports struct types that are primitive values rather than
// complex or entity types.
func isScalarStruct(t reflect.Type) bool {
	switch t {
	case timeType, decimalType,
		reflect.TypeOf(edm.DateTimeOffset{}), reflect.TypeOf(edm.Date{}),
		reflect.TypeOf(edm.EnumValue{}), reflect.TypeOf(edm.GeographyPoint{}):
		return true
	}
	return false
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func integerValue(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	}
	return 0
}
