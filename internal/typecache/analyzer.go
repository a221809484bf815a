package typecache

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nlstn/go-odata-client/internal/naming"
)

// TypeDescriptor is the registration-time description of a Go struct that
// stands for an OData entity or complex type.
type TypeDescriptor struct {
	Type          reflect.Type
	Name          string
	Namespace     string
	EntitySetName string
	// BaseType is the embedded struct this type derives from, if any.
	BaseType reflect.Type
	// Properties lists every property, inherited ones first.
	Properties    []PropertyDescriptor
	KeyProperties []string
	// DynamicProperty is the mapped name of the map field that holds the
	// dynamic properties of an open type. Empty for closed types.
	DynamicProperty string
}

// PropertyDescriptor holds what the formatter needs to know about one field.
type PropertyDescriptor struct {
	// Name is the Go field name.
	Name string
	// MappedName is the wire name: odata:"name=..." wins over the json tag.
	MappedName string
	Type       reflect.Type
	Index      []int
	// Declared is false for fields promoted from an embedded base type.
	Declared bool
	IsKey    bool
	// ElementType is set for collection-valued properties.
	ElementType      reflect.Type
	IsCollection     bool
	IsNavigationProp bool
	IsComplexType    bool
	IsEnum           bool
	EnumTypeName     string
	IsFlags          bool
	// IsDynamic marks a map[string]T field holding open type properties.
	IsDynamic bool
}

// FindProperty returns the property whose Go name or mapped name equals name,
// ignoring case. Returns nil if no property matches.
func (d *TypeDescriptor) FindProperty(name string) *PropertyDescriptor {
	if d == nil {
		return nil
	}
	for i := range d.Properties {
		prop := &d.Properties[i]
		if strings.EqualFold(prop.Name, name) || strings.EqualFold(prop.MappedName, name) {
			return prop
		}
	}
	return nil
}

// FindDeclaredProperty is FindProperty restricted to fields declared on the type itself.
func (d *TypeDescriptor) FindDeclaredProperty(name string) *PropertyDescriptor {
	prop := d.FindProperty(name)
	if prop != nil && prop.Declared {
		return prop
	}
	return nil
}

// DeclaredProperties returns the properties not inherited from a base type.
func (d *TypeDescriptor) DeclaredProperties() []PropertyDescriptor {
	declared := make([]PropertyDescriptor, 0, len(d.Properties))
	for _, prop := range d.Properties {
		if prop.Declared {
			declared = append(declared, prop)
		}
	}
	return declared
}

// analyzeType extracts the descriptor of a struct type. Nested struct types
// reached through complex or navigation properties are returned through
// visit so the cache can register them as well.
func analyzeType(t reflect.Type, namespace string, visit func(reflect.Type)) (*TypeDescriptor, error) {
	t = dereferenceType(t)
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", t.Kind())
	}

	desc := &TypeDescriptor{
		Type:          t,
		Name:          t.Name(),
		Namespace:     namespace,
		EntitySetName: getEntitySetName(t),
	}

	if err := collectFields(desc, t, nil, true, visit); err != nil {
		return nil, err
	}

	// Auto-detect the key if nothing is tagged and a field is called ID.
	if len(desc.KeyProperties) == 0 {
		for i := range desc.Properties {
			if desc.Properties[i].Name == "ID" {
				desc.Properties[i].IsKey = true
				desc.KeyProperties = append(desc.KeyProperties, desc.Properties[i].MappedName)
				break
			}
		}
	}
	return desc, nil
}

func collectFields(desc *TypeDescriptor, t reflect.Type, index []int, declared bool, visit func(reflect.Type)) error {
	// Inherited fields come first so a derived type lists its base properties before its own.
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.Anonymous || !field.IsExported() {
			continue
		}
		embedded := dereferenceType(field.Type)
		if embedded.Kind() != reflect.Struct || hasODataTagPart(field, "embedded") {
			continue
		}
		if desc.BaseType == nil && declared {
			desc.BaseType = embedded
			if visit != nil {
				visit(embedded)
			}
		}
		if err := collectFields(desc, embedded, appendIndex(index, i), false, visit); err != nil {
			return fmt.Errorf("error analyzing embedded type %s: %w", embedded.Name(), err)
		}
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("odata") == "-" {
			continue
		}
		if field.Anonymous && dereferenceType(field.Type).Kind() == reflect.Struct && !hasODataTagPart(field, "embedded") {
			continue
		}

		property, err := analyzeField(field, appendIndex(index, i), declared)
		if err != nil {
			return fmt.Errorf("error analyzing field %s: %w", field.Name, err)
		}
		if (property.IsNavigationProp || property.IsComplexType) && visit != nil {
			target := property.Type
			if property.IsCollection {
				target = property.ElementType
			}
			visit(dereferenceType(target))
		}
		if property.IsDynamic && desc.DynamicProperty == "" {
			desc.DynamicProperty = property.MappedName
		}
		if property.IsKey {
			desc.KeyProperties = append(desc.KeyProperties, property.MappedName)
		}
		desc.Properties = append(desc.Properties, property)
	}
	return nil
}

func analyzeField(field reflect.StructField, index []int, declared bool) (PropertyDescriptor, error) {
	property := PropertyDescriptor{
		Name:       field.Name,
		MappedName: getJsonName(field),
		Type:       field.Type,
		Index:      index,
		Declared:   declared,
	}

	if elem, ok := collectionElement(field.Type); ok {
		property.IsCollection = true
		property.ElementType = elem
	}
	if t := dereferenceType(field.Type); t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		property.IsDynamic = true
	}

	analyzeNavigationProperty(&property, field)

	if err := analyzeODataTags(&property, field); err != nil {
		return PropertyDescriptor{}, err
	}

	return property, nil
}

// analyzeNavigationProperty determines if a field is a navigation property or complex type
func analyzeNavigationProperty(property *PropertyDescriptor, field reflect.StructField) {
	fieldType := field.Type
	if property.IsCollection {
		fieldType = property.ElementType
	}
	fieldType = dereferenceType(fieldType)
	if fieldType.Kind() != reflect.Struct || isScalarStruct(fieldType) {
		return
	}

	gormTag := field.Tag.Get("gorm")
	odataTag := field.Tag.Get("odata")

	hasNavInGorm := strings.Contains(gormTag, "foreignKey") || strings.Contains(gormTag, "references") || strings.Contains(gormTag, "many2many")
	hasNavInOData := strings.Contains(odataTag, "foreignKey:") || strings.Contains(odataTag, "references:") ||
		strings.Contains(odataTag, "many2many:") || hasODataTagPart(field, "navigation")

	switch {
	case hasNavInGorm || hasNavInOData:
		property.IsNavigationProp = true
	case strings.Contains(gormTag, "embedded") || hasODataTagPart(field, "embedded") || !property.IsCollection:
		// Plain struct fields without relationship tags are complex types.
		property.IsComplexType = true
	default:
		// A slice of structs without tags is a collection-valued navigation.
		property.IsNavigationProp = true
	}
}

// analyzeODataTags processes OData-specific tags on a field
func analyzeODataTags(property *PropertyDescriptor, field reflect.StructField) error {
	odataTag := field.Tag.Get("odata")
	if odataTag == "" {
		return nil
	}
	for _, part := range strings.Split(odataTag, ",") {
		if err := processODataTagPart(property, strings.TrimSpace(part)); err != nil {
			return err
		}
	}
	return nil
}

// processODataTagPart processes a single OData tag part
func processODataTagPart(property *PropertyDescriptor, part string) error {
	switch {
	case part == "key":
		property.IsKey = true
	case strings.HasPrefix(part, "name="):
		name := strings.TrimSpace(strings.TrimPrefix(part, "name="))
		if name == "" {
			return fmt.Errorf("empty name in odata tag for field %s", property.Name)
		}
		property.MappedName = name
	case strings.HasPrefix(part, "enum="):
		property.IsEnum = true
		property.EnumTypeName = strings.TrimPrefix(part, "enum=")
	case part == "enum":
		property.IsEnum = true
	case part == "flags":
		property.IsFlags = true
		property.IsEnum = true
	case part == "navigation", part == "embedded",
		strings.HasPrefix(part, "foreignKey:"), strings.HasPrefix(part, "references:"), strings.HasPrefix(part, "many2many:"):
		// handled in analyzeNavigationProperty
	}
	return nil
}

func hasODataTagPart(field reflect.StructField, want string) bool {
	for _, part := range strings.Split(field.Tag.Get("odata"), ",") {
		if strings.TrimSpace(part) == want {
			return true
		}
	}
	return false
}

// getJsonName extracts the JSON field name from struct tags
func getJsonName(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "" {
		return field.Name
	}

	// Handle json:",omitempty" or json:"fieldname,omitempty"
	parts := strings.Split(jsonTag, ",")
	if len(parts) > 0 && parts[0] != "" && parts[0] != "-" {
		return parts[0]
	}

	return field.Name
}

// getEntitySetName determines the entity set name for an entity type.
// It first checks if the entity implements an EntitySetName() method,
// similar to how GORM's TableName() works. If not, it falls back to
// pluralizing the entity name.
func getEntitySetName(entityType reflect.Type) string {
	if name := tryGetEntitySetName(entityType, entityType); name != "" {
		return name
	}
	if name := tryGetEntitySetName(reflect.PointerTo(entityType), entityType); name != "" {
		return name
	}
	return naming.Simple.Pluralize(entityType.Name())
}

// tryGetEntitySetName attempts to call the EntitySetName method on the given type.
// Returns empty string if the method doesn't exist or has wrong signature.
func tryGetEntitySetName(checkType reflect.Type, entityType reflect.Type) string {
	method, found := checkType.MethodByName("EntitySetName")
	if !found {
		return ""
	}

	methodType := method.Type
	if methodType.NumIn() != 1 || methodType.NumOut() != 1 || methodType.Out(0).Kind() != reflect.String {
		return ""
	}

	var zeroVal reflect.Value
	if checkType.Kind() == reflect.Ptr {
		zeroVal = reflect.New(entityType)
	} else {
		zeroVal = reflect.New(entityType).Elem()
	}
	return zeroVal.MethodByName("EntitySetName").Call(nil)[0].String()
}

// collectionElement reports the element type of slice and array types.
// Strings and byte slices are scalars.
func collectionElement(t reflect.Type) (reflect.Type, bool) {
	t = dereferenceType(t)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		return t.Elem(), true
	}
	return nil, false
}

// dereferenceType unwraps pointer types to obtain the underlying type.
func dereferenceType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func appendIndex(index []int, i int) []int {
	out := make([]int, len(index), len(index)+1)
	copy(out, index)
	return append(out, i)
}
