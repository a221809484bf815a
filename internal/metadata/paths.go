package metadata

import (
	"strings"
)

// SplitPath splits a logical property path on '/' and '.'.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' })
}

// NavigationPath resolves an $expand path: every segment is a navigation
// property, unknown segments are kept verbatim.
func NavigationPath(m Metadata, collection *EntityCollection, path string) (string, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "", Unresolvable(path, "navigation path cannot be empty")
	}
	return navigationPath(m, collection, segments)
}

func navigationPath(m Metadata, collection *EntityCollection, segments []string) (string, error) {
	association := segments[0]
	if m.HasNavigationProperty(collection.Name, association) {
		exact, err := m.GetNavigationPropertyExactName(collection.Name, association)
		if err != nil {
			return "", err
		}
		association = exact
	}
	if len(segments) == 1 {
		return association, nil
	}

	next, err := partnerCollection(m, collection, association)
	if err != nil {
		return "", err
	}
	rest, err := navigationPath(m, next, segments[1:])
	if err != nil {
		return "", err
	}
	return association + "/" + rest, nil
}

// SelectPath resolves a $select item. The last segment may be a structural or
// navigation property; the ones before it must be navigation properties.
func SelectPath(m Metadata, collection *EntityCollection, path string) (string, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "", Unresolvable(path, "select path cannot be empty")
	}
	return selectPath(m, collection, segments)
}

func selectPath(m Metadata, collection *EntityCollection, segments []string) (string, error) {
	if len(segments) == 1 {
		return propertyExactName(m, collection, segments[0])
	}

	association, err := m.GetNavigationPropertyExactName(collection.Name, segments[0])
	if err != nil {
		return "", err
	}
	next, err := partnerCollection(m, collection, association)
	if err != nil {
		return "", err
	}
	rest, err := selectPath(m, next, segments[1:])
	if err != nil {
		return "", err
	}
	return association + "/" + rest, nil
}

// OrderByPath resolves an $orderby item and appends " desc" when descending.
// Multi segment paths either navigate or address members of a complex property.
func OrderByPath(m Metadata, collection *EntityCollection, path string, descending bool) (string, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return "", Unresolvable(path, "order by path cannot be empty")
	}
	clause, err := orderByPath(m, collection, segments)
	if err != nil {
		return "", err
	}
	if descending {
		clause += " desc"
	}
	return clause, nil
}

func orderByPath(m Metadata, collection *EntityCollection, segments []string) (string, error) {
	if len(segments) == 1 {
		return propertyExactName(m, collection, segments[0])
	}

	switch {
	case m.HasNavigationProperty(collection.Name, segments[0]):
		association, err := m.GetNavigationPropertyExactName(collection.Name, segments[0])
		if err != nil {
			return "", err
		}
		next, err := partnerCollection(m, collection, association)
		if err != nil {
			return "", err
		}
		rest, err := orderByPath(m, next, segments[1:])
		if err != nil {
			return "", err
		}
		return association + "/" + rest, nil
	case m.HasStructuralProperty(collection.Name, segments[0]):
		return m.GetStructuralPropertyPath(collection.Name, segments...)
	default:
		return "", Unresolvable(segments[0], "property path [%s] not found", segments[0])
	}
}

func propertyExactName(m Metadata, collection *EntityCollection, name string) (string, error) {
	switch {
	case m.HasStructuralProperty(collection.Name, name):
		return m.GetStructuralPropertyExactName(collection.Name, name)
	case m.HasNavigationProperty(collection.Name, name):
		return m.GetNavigationPropertyExactName(collection.Name, name)
	}
	return name, nil
}

func partnerCollection(m Metadata, collection *EntityCollection, association string) (*EntityCollection, error) {
	typeName, err := m.GetNavigationPropertyPartnerTypeName(collection.Name, association)
	if err != nil {
		return nil, err
	}
	return m.GetEntityCollection(typeName)
}
