// Package metadata is the read-only view of a service schema that the
// formatter consults while walking property paths.
//
// A Schema answers primitive name lookups. New wraps a Schema with path
// navigation (key segment stripping, navigation partners, derived type
// segments) and NewCache memoizes every lookup of a Metadata per key.
package metadata

import (
	"errors"
	"fmt"
)

// ErrUnresolvable matches every *UnresolvableError through errors.Is.
var ErrUnresolvable = errors.New("metadata object cannot be resolved")

// UnresolvableError reports a collection, type, property or operation that
// the schema does not contain.
type UnresolvableError struct {
	ObjectName string
	Message    string
}

func (e *UnresolvableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("metadata object [%s] not found", e.ObjectName)
}

// Is reports whether target is ErrUnresolvable.
func (e *UnresolvableError) Is(target error) bool {
	return target == ErrUnresolvable
}

// Unresolvable builds an *UnresolvableError with a formatted message.
func Unresolvable(objectName, format string, args ...any) error {
	return &UnresolvableError{ObjectName: objectName, Message: fmt.Sprintf(format, args...)}
}

// EntityCollection is a resolved entity set, or a derived type reached
// through a type cast segment on its base collection.
type EntityCollection struct {
	Name string
	Base *EntityCollection
}

func (c *EntityCollection) String() string {
	if c == nil {
		return ""
	}
	return c.Name
}

// Schema is the set of primitive lookups a service model provides. Collection
// arguments accept entity set names as well as entity type names.
type Schema interface {
	GetEntityCollectionExactName(collectionName string) (string, error)
	GetDerivedEntityTypeExactName(collectionName, entityTypeName string) (string, error)
	GetQualifiedTypeName(typeOrCollectionName string) (string, error)
	IsOpenType(collectionName string) bool

	HasStructuralProperty(collectionName, propertyName string) bool
	GetStructuralPropertyExactName(collectionName, propertyName string) (string, error)
	// GetStructuralPropertyPath resolves a property followed by members of
	// its complex type and returns the slash separated exact path.
	GetStructuralPropertyPath(collectionName string, propertyNames ...string) (string, error)
	GetDeclaredKeyPropertyNames(collectionName string) ([]string, error)

	GetNavigationPropertyNames(collectionName string) ([]string, error)
	HasNavigationProperty(collectionName, propertyName string) bool
	GetNavigationPropertyExactName(collectionName, propertyName string) (string, error)
	GetNavigationPropertyPartnerTypeName(collectionName, propertyName string) (string, error)
	IsNavigationPropertyCollection(collectionName, propertyName string) bool

	GetFunctionFullName(functionName string) (string, error)
	GetFunctionReturnCollection(functionName string) (*EntityCollection, error)
	GetActionFullName(actionName string) (string, error)
	GetActionReturnCollection(actionName string) (*EntityCollection, error)
}

// Metadata is a Schema with collection path navigation.
type Metadata interface {
	Schema

	// GetEntityCollection resolves "Products", "Products(1)" or a derived
	// collection path such as "Transport/NS.Ship".
	GetEntityCollection(collectionPath string) (*EntityCollection, error)
	GetDerivedEntityCollection(base *EntityCollection, entityTypeName string) (*EntityCollection, error)
	// NavigateToCollection follows "Orders(1)/Details" to the collection of
	// the last navigation segment.
	NavigateToCollection(path string) (*EntityCollection, error)
	NavigateFrom(root *EntityCollection, path string) (*EntityCollection, error)
}
