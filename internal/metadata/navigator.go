package metadata

import (
	"strings"
)

// Navigator adds collection path navigation to a Schema.
type Navigator struct {
	Schema
}

// New wraps schema with path navigation.
func New(schema Schema) *Navigator {
	return &Navigator{Schema: schema}
}

// GetEntityCollection resolves a collection path. When the last segment is a
// qualified type name the path names a derived collection of the segment
// before it.
func (n *Navigator) GetEntityCollection(collectionPath string) (*EntityCollection, error) {
	segments := strings.Split(collectionPath, "/")
	if len(segments) > 1 && includesTypeSpecification(segments) {
		base, err := n.GetEntityCollection(ExtractCollectionName(segments[len(segments)-2]))
		if err != nil {
			return nil, err
		}
		return n.GetDerivedEntityCollection(base, ExtractCollectionName(segments[len(segments)-1]))
	}

	name, err := n.GetEntityCollectionExactName(ExtractCollectionName(segments[len(segments)-1]))
	if err != nil {
		return nil, err
	}
	return &EntityCollection{Name: name}, nil
}

// GetDerivedEntityCollection resolves entityTypeName as a type deriving from
// the entity type of base.
func (n *Navigator) GetDerivedEntityCollection(base *EntityCollection, entityTypeName string) (*EntityCollection, error) {
	name, err := n.GetDerivedEntityTypeExactName(base.Name, entityTypeName)
	if err != nil {
		return nil, err
	}
	return &EntityCollection{Name: name, Base: base}, nil
}

// NavigateToCollection resolves the first segment of path as a collection and
// follows the remaining segments as navigation properties.
func (n *Navigator) NavigateToCollection(path string) (*EntityCollection, error) {
	segments := collectionPathSegments(path)
	if isSingleSegmentWithTypeSpecification(segments) {
		return n.GetEntityCollection(path)
	}
	root, err := n.GetEntityCollection(segments[0])
	if err != nil {
		return nil, err
	}
	return n.navigate(root, segments[1:])
}

// NavigateFrom follows path as navigation properties starting at root.
func (n *Navigator) NavigateFrom(root *EntityCollection, path string) (*EntityCollection, error) {
	return n.navigate(root, collectionPathSegments(path))
}

func (n *Navigator) navigate(root *EntityCollection, segments []string) (*EntityCollection, error) {
	if len(segments) == 0 {
		return root, nil
	}

	associationName, err := n.GetNavigationPropertyExactName(root.Name, segments[0])
	if err != nil {
		return nil, err
	}

	typed := isSingleSegmentWithTypeSpecification(segments)
	typeName := segments[len(segments)-1]
	if !typed {
		typeName, err = n.GetNavigationPropertyPartnerTypeName(root.Name, associationName)
		if err != nil {
			return nil, err
		}
	}
	collection, err := n.GetEntityCollection(typeName)
	if err != nil {
		return nil, err
	}
	if len(segments) == 1 || typed {
		return collection, nil
	}
	return n.navigate(collection, segments[1:])
}

// ExtractCollectionName strips a key predicate: "Products(1)" is "Products".
func ExtractCollectionName(segment string) string {
	if i := strings.IndexByte(segment, '('); i >= 0 {
		return segment[:i]
	}
	return segment
}

func collectionPathSegments(path string) []string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = ExtractCollectionName(s)
	}
	return segments
}

func includesTypeSpecification(segments []string) bool {
	return strings.Contains(segments[len(segments)-1], ".")
}

func isSingleSegmentWithTypeSpecification(segments []string) bool {
	return len(segments) == 2 && includesTypeSpecification(segments)
}
