package schema

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/typecache"
)

var (
	timeType           = reflect.TypeOf(time.Time{})
	durationType       = reflect.TypeOf(time.Duration(0))
	decimalType        = reflect.TypeOf(decimal.Decimal{})
	uuidType           = reflect.TypeOf(uuid.UUID{})
	dateTimeOffsetType = reflect.TypeOf(edm.DateTimeOffset{})
	dateType           = reflect.TypeOf(edm.Date{})
	geographyPointType = reflect.TypeOf(edm.GeographyPoint{})
)

// EdmTypeName returns the Edm primitive type name of a Go type, or "" when
// the type is not primitive.
func EdmTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t {
	case timeType, dateTimeOffsetType:
		return "Edm.DateTimeOffset"
	case dateType:
		return "Edm.Date"
	case durationType:
		return "Edm.Duration"
	case decimalType:
		return "Edm.Decimal"
	case uuidType:
		return "Edm.Guid"
	case geographyPointType:
		return "Edm.GeographyPoint"
	}
	switch t.Kind() {
	case reflect.String:
		return "Edm.String"
	case reflect.Bool:
		return "Edm.Boolean"
	case reflect.Int8:
		return "Edm.SByte"
	case reflect.Uint8:
		return "Edm.Byte"
	case reflect.Int16:
		return "Edm.Int16"
	case reflect.Int32, reflect.Uint16:
		return "Edm.Int32"
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "Edm.Int64"
	case reflect.Float32:
		return "Edm.Single"
	case reflect.Float64:
		return "Edm.Double"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "Edm.Binary"
		}
	}
	return ""
}

// FromTypes registers entities with tc and builds a model from the resulting
// descriptors. Types reached through navigation properties become entity
// types as well, struct-valued properties become complex types and a
// dynamic property map makes a type open.
func FromTypes(tc *typecache.Cache, entities ...any) (*Model, error) {
	b := &typeModelBuilder{
		tc:    tc,
		model: NewModel(tc.Namespace()),
		done:  make(map[reflect.Type]bool),
	}
	for _, entity := range entities {
		desc, err := tc.Register(entity)
		if err != nil {
			return nil, err
		}
		if err := b.addEntity(desc); err != nil {
			return nil, err
		}
	}
	if err := b.model.Validate(); err != nil {
		return nil, err
	}
	return b.model, nil
}

type typeModelBuilder struct {
	tc    *typecache.Cache
	model *Model
	done  map[reflect.Type]bool
}

func (b *typeModelBuilder) addEntity(desc *typecache.TypeDescriptor) error {
	if b.done[desc.Type] {
		return nil
	}
	b.done[desc.Type] = true

	entityType := EntityType{
		Name: desc.Name,
		Open: desc.DynamicProperty != "",
	}
	if desc.BaseType != nil {
		base, err := b.tc.Describe(desc.BaseType)
		if err != nil {
			return err
		}
		if err := b.addEntity(base); err != nil {
			return err
		}
		entityType.BaseType = base.Name
	} else {
		entityType.Key = desc.KeyProperties
	}

	var targets []*typecache.TypeDescriptor
	for _, prop := range desc.DeclaredProperties() {
		switch {
		case prop.IsDynamic:
		case prop.IsNavigationProp:
			target, err := b.tc.Describe(elementType(prop))
			if err != nil {
				return err
			}
			targets = append(targets, target)
			entityType.NavigationProperties = append(entityType.NavigationProperties, NavigationProperty{
				Name:       prop.MappedName,
				Type:       target.Name,
				Collection: prop.IsCollection,
			})
		default:
			typeName, err := b.propertyType(prop)
			if err != nil {
				return fmt.Errorf("entity type %s: %w", desc.Name, err)
			}
			entityType.Properties = append(entityType.Properties, Property{Name: prop.MappedName, Type: typeName})
		}
	}

	b.model.AddEntityType(entityType)
	if desc.BaseType == nil {
		b.model.AddEntitySet(desc.EntitySetName, desc.Name)
	}
	for _, target := range targets {
		if err := b.addEntity(target); err != nil {
			return err
		}
	}
	return nil
}

func (b *typeModelBuilder) propertyType(prop typecache.PropertyDescriptor) (string, error) {
	t := elementType(prop)
	var name string
	switch {
	case b.tc.IsEnumType(t):
		name = b.tc.QualifiedTypeName(t)
	case prop.IsComplexType:
		desc, err := b.tc.Describe(t)
		if err != nil {
			return "", err
		}
		if err := b.addComplex(desc); err != nil {
			return "", err
		}
		name = b.model.qualify(desc.Name)
	default:
		name = EdmTypeName(t)
		if name == "" {
			return "", fmt.Errorf("property %s has unsupported type %s", prop.Name, t)
		}
	}
	if prop.IsCollection {
		name = "Collection(" + name + ")"
	}
	return name, nil
}

func (b *typeModelBuilder) addComplex(desc *typecache.TypeDescriptor) error {
	if b.done[desc.Type] {
		return nil
	}
	b.done[desc.Type] = true

	complexType := ComplexType{Name: desc.Name}
	for _, prop := range desc.Properties {
		if prop.IsNavigationProp || prop.IsDynamic {
			continue
		}
		typeName, err := b.propertyType(prop)
		if err != nil {
			return fmt.Errorf("complex type %s: %w", desc.Name, err)
		}
		complexType.Properties = append(complexType.Properties, Property{Name: prop.MappedName, Type: typeName})
	}
	b.model.AddComplexType(complexType)
	return nil
}

func elementType(prop typecache.PropertyDescriptor) reflect.Type {
	t := prop.Type
	if prop.IsCollection {
		t = prop.ElementType
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
