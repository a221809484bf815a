// Package schema holds an in-memory service model that implements
// metadata.Schema. Models are built programmatically, from registered Go
// types, from GORM models, by introspecting a database, or from YAML.
package schema

import (
	"fmt"
	"strings"

	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/naming"
)

// Property is a structural property. Type is an Edm primitive name, a
// qualified enum or complex type name, or Collection(...) of one of them.
type Property struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// NavigationProperty points at another entity type.
type NavigationProperty struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Collection bool   `yaml:"collection,omitempty"`
}

// EntityType describes an entity type. Properties and navigation properties
// list only the ones declared on the type; BaseType contributes the rest.
type EntityType struct {
	Name                 string               `yaml:"name"`
	BaseType             string               `yaml:"baseType,omitempty"`
	Open                 bool                 `yaml:"open,omitempty"`
	Key                  []string             `yaml:"key,omitempty"`
	Properties           []Property           `yaml:"properties,omitempty"`
	NavigationProperties []NavigationProperty `yaml:"navigationProperties,omitempty"`
}

// ComplexType describes a structured type without identity.
type ComplexType struct {
	Name       string     `yaml:"name"`
	Properties []Property `yaml:"properties,omitempty"`
}

// EntitySet exposes the entities of one type.
type EntitySet struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entityType"`
}

// Operation is a function or action import. EntitySet names the collection
// its result belongs to, if any.
type Operation struct {
	Name      string `yaml:"name"`
	EntitySet string `yaml:"entitySet,omitempty"`
}

// Model is a service schema.
type Model struct {
	Namespace    string        `yaml:"namespace"`
	EntityTypes  []EntityType  `yaml:"entityTypes,omitempty"`
	ComplexTypes []ComplexType `yaml:"complexTypes,omitempty"`
	EntitySets   []EntitySet   `yaml:"entitySets,omitempty"`
	Functions    []Operation   `yaml:"functions,omitempty"`
	Actions      []Operation   `yaml:"actions,omitempty"`

	resolver naming.Resolver
}

var _ metadata.Schema = (*Model)(nil)

// NewModel creates an empty model for namespace.
func NewModel(namespace string) *Model {
	return &Model{Namespace: namespace}
}

// SetResolver selects how requested names are matched against schema names.
// Exact matches always win. A nil resolver restores naming.BestMatch.
func (m *Model) SetResolver(resolver naming.Resolver) *Model {
	m.resolver = resolver
	return m
}

func (m *Model) nameResolver() naming.Resolver {
	if m.resolver == nil {
		return naming.BestMatch
	}
	return m.resolver
}

// AddEntityType adds t to the model.
func (m *Model) AddEntityType(t EntityType) *Model {
	m.EntityTypes = append(m.EntityTypes, t)
	return m
}

// AddComplexType adds t to the model.
func (m *Model) AddComplexType(t ComplexType) *Model {
	m.ComplexTypes = append(m.ComplexTypes, t)
	return m
}

// AddEntitySet exposes entityType as the collection name.
func (m *Model) AddEntitySet(name, entityType string) *Model {
	m.EntitySets = append(m.EntitySets, EntitySet{Name: name, EntityType: entityType})
	return m
}

// AddFunction adds a function import returning entities of entitySet.
func (m *Model) AddFunction(name, entitySet string) *Model {
	m.Functions = append(m.Functions, Operation{Name: name, EntitySet: entitySet})
	return m
}

// AddAction adds an action import returning entities of entitySet.
func (m *Model) AddAction(name, entitySet string) *Model {
	m.Actions = append(m.Actions, Operation{Name: name, EntitySet: entitySet})
	return m
}

// Validate checks that every referenced type exists.
func (m *Model) Validate() error {
	seen := make(map[string]bool, len(m.EntityTypes))
	for _, t := range m.EntityTypes {
		if t.Name == "" {
			return fmt.Errorf("entity type name cannot be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate entity type %s", t.Name)
		}
		seen[t.Name] = true
	}
	for _, t := range m.EntityTypes {
		if t.BaseType != "" && m.entityTypeExact(t.BaseType) == nil {
			return fmt.Errorf("entity type %s: base type %s not found", t.Name, t.BaseType)
		}
		for _, nav := range t.NavigationProperties {
			if m.entityTypeExact(nav.Type) == nil {
				return fmt.Errorf("entity type %s: navigation property %s targets unknown type %s", t.Name, nav.Name, nav.Type)
			}
		}
	}
	for _, set := range m.EntitySets {
		if m.entityTypeExact(set.EntityType) == nil {
			return fmt.Errorf("entity set %s: entity type %s not found", set.Name, set.EntityType)
		}
	}
	for _, op := range append(append([]Operation(nil), m.Functions...), m.Actions...) {
		if op.EntitySet != "" && m.entitySetExact(op.EntitySet) == nil {
			return fmt.Errorf("operation %s: entity set %s not found", op.Name, op.EntitySet)
		}
	}
	return nil
}

// match returns the index of the item whose name equals requested, or failing
// that the first one the resolver accepts. It returns -1 when none matches.
func match(count int, nameOf func(int) string, requested string, resolver naming.Resolver) int {
	for i := 0; i < count; i++ {
		if nameOf(i) == requested {
			return i
		}
	}
	unqualified := unqualifiedName(requested)
	for i := 0; i < count; i++ {
		if nameOf(i) == unqualified {
			return i
		}
	}
	for i := 0; i < count; i++ {
		if resolver.IsMatch(nameOf(i), requested) {
			return i
		}
	}
	return -1
}

func unqualifiedName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func (m *Model) entityTypeExact(name string) *EntityType {
	name = unqualifiedName(name)
	for i := range m.EntityTypes {
		if m.EntityTypes[i].Name == name {
			return &m.EntityTypes[i]
		}
	}
	return nil
}

func (m *Model) entitySetExact(name string) *EntitySet {
	for i := range m.EntitySets {
		if m.EntitySets[i].Name == name {
			return &m.EntitySets[i]
		}
	}
	return nil
}

func (m *Model) findEntitySet(name string) *EntitySet {
	i := match(len(m.EntitySets), func(i int) string { return m.EntitySets[i].Name }, name, m.nameResolver())
	if i < 0 {
		return nil
	}
	return &m.EntitySets[i]
}

func (m *Model) findEntityType(name string) *EntityType {
	i := match(len(m.EntityTypes), func(i int) string { return m.EntityTypes[i].Name }, name, m.nameResolver())
	if i < 0 {
		return nil
	}
	return &m.EntityTypes[i]
}

func (m *Model) findComplexType(name string) *ComplexType {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "Collection("), ")")
	unqualified := unqualifiedName(name)
	for i := range m.ComplexTypes {
		if m.ComplexTypes[i].Name == unqualified {
			return &m.ComplexTypes[i]
		}
	}
	return nil
}

// entityTypeOf resolves a collection argument: an exact entity set or type
// name first, then the resolver over sets and types.
func (m *Model) entityTypeOf(collectionName string) (*EntityType, error) {
	if set := m.entitySetExact(collectionName); set != nil {
		return m.setType(set)
	}
	if t := m.entityTypeExact(collectionName); t != nil {
		return t, nil
	}
	if set := m.findEntitySet(collectionName); set != nil {
		return m.setType(set)
	}
	if t := m.findEntityType(collectionName); t != nil {
		return t, nil
	}
	return nil, metadata.Unresolvable(collectionName, "entity collection [%s] not found", collectionName)
}

func (m *Model) setType(set *EntitySet) (*EntityType, error) {
	t := m.entityTypeExact(set.EntityType)
	if t == nil {
		return nil, metadata.Unresolvable(set.EntityType, "entity type [%s] of entity set [%s] not found", set.EntityType, set.Name)
	}
	return t, nil
}

// hierarchy returns t and its base types, root first.
func (m *Model) hierarchy(t *EntityType) []*EntityType {
	var chain []*EntityType
	for current, depth := t, 0; current != nil && depth < 32; depth++ {
		chain = append([]*EntityType{current}, chain...)
		if current.BaseType == "" {
			break
		}
		current = m.entityTypeExact(current.BaseType)
	}
	return chain
}

func (m *Model) structuralProperties(t *EntityType) []Property {
	var props []Property
	for _, level := range m.hierarchy(t) {
		props = append(props, level.Properties...)
	}
	return props
}

func (m *Model) navigationProperties(t *EntityType) []NavigationProperty {
	var navs []NavigationProperty
	for _, level := range m.hierarchy(t) {
		navs = append(navs, level.NavigationProperties...)
	}
	return navs
}

func (m *Model) findProperty(props []Property, name string) *Property {
	i := match(len(props), func(i int) string { return props[i].Name }, name, m.nameResolver())
	if i < 0 {
		return nil
	}
	return &props[i]
}

func (m *Model) findNavigation(collectionName, propertyName string) (*NavigationProperty, error) {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return nil, err
	}
	navs := m.navigationProperties(t)
	i := match(len(navs), func(i int) string { return navs[i].Name }, propertyName, m.nameResolver())
	if i < 0 {
		return nil, metadata.Unresolvable(propertyName, "association [%s] not found in [%s]", propertyName, collectionName)
	}
	return &navs[i], nil
}

func (m *Model) qualify(name string) string {
	if m.Namespace == "" || strings.Contains(name, ".") {
		return name
	}
	return m.Namespace + "." + name
}

func (m *Model) GetEntityCollectionExactName(collectionName string) (string, error) {
	if set := m.entitySetExact(collectionName); set != nil {
		return set.Name, nil
	}
	t := m.entityTypeExact(collectionName)
	if t == nil {
		if set := m.findEntitySet(collectionName); set != nil {
			return set.Name, nil
		}
		t = m.findEntityType(collectionName)
	}
	if t == nil {
		return "", metadata.Unresolvable(collectionName, "entity collection [%s] not found", collectionName)
	}
	for _, set := range m.EntitySets {
		if unqualifiedName(set.EntityType) == t.Name {
			return set.Name, nil
		}
	}
	return t.Name, nil
}

func (m *Model) GetDerivedEntityTypeExactName(collectionName, entityTypeName string) (string, error) {
	base, err := m.entityTypeOf(collectionName)
	if err != nil {
		return "", err
	}
	candidates := make([]*EntityType, 0)
	for i := range m.EntityTypes {
		t := &m.EntityTypes[i]
		for _, level := range m.hierarchy(t) {
			if level == base && t != base {
				candidates = append(candidates, t)
				break
			}
		}
	}
	i := match(len(candidates), func(i int) string { return candidates[i].Name }, entityTypeName, m.nameResolver())
	if i < 0 {
		return "", metadata.Unresolvable(entityTypeName, "entity type [%s] not found as derived type of [%s]", entityTypeName, collectionName)
	}
	return candidates[i].Name, nil
}

func (m *Model) GetQualifiedTypeName(typeOrCollectionName string) (string, error) {
	if t, err := m.entityTypeOf(typeOrCollectionName); err == nil {
		return m.qualify(t.Name), nil
	}
	if c := m.findComplexType(typeOrCollectionName); c != nil {
		return m.qualify(c.Name), nil
	}
	return "", metadata.Unresolvable(typeOrCollectionName, "type [%s] not found", typeOrCollectionName)
}

func (m *Model) IsOpenType(collectionName string) bool {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return false
	}
	for _, level := range m.hierarchy(t) {
		if level.Open {
			return true
		}
	}
	return false
}

func (m *Model) HasStructuralProperty(collectionName, propertyName string) bool {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return false
	}
	return m.findProperty(m.structuralProperties(t), propertyName) != nil
}

func (m *Model) GetStructuralPropertyExactName(collectionName, propertyName string) (string, error) {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return "", err
	}
	prop := m.findProperty(m.structuralProperties(t), propertyName)
	if prop == nil {
		return "", metadata.Unresolvable(propertyName, "property [%s] not found in [%s]", propertyName, collectionName)
	}
	return prop.Name, nil
}

func (m *Model) GetStructuralPropertyPath(collectionName string, propertyNames ...string) (string, error) {
	if len(propertyNames) == 0 {
		return "", metadata.Unresolvable(collectionName, "property path of [%s] cannot be empty", collectionName)
	}
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return "", err
	}

	props := m.structuralProperties(t)
	exact := make([]string, 0, len(propertyNames))
	for i, name := range propertyNames {
		if props == nil {
			return "", metadata.Unresolvable(name, "property [%s] follows primitive property [%s]", name, propertyNames[i-1])
		}
		prop := m.findProperty(props, name)
		if prop == nil {
			return "", metadata.Unresolvable(name, "property [%s] not found in [%s]", name, collectionName)
		}
		exact = append(exact, prop.Name)

		props = nil
		if complexType := m.findComplexType(prop.Type); complexType != nil {
			props = complexType.Properties
		}
	}
	return strings.Join(exact, "/"), nil
}

func (m *Model) GetDeclaredKeyPropertyNames(collectionName string) ([]string, error) {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return nil, err
	}
	for _, level := range m.hierarchy(t) {
		if len(level.Key) > 0 {
			return append([]string(nil), level.Key...), nil
		}
	}
	return nil, nil
}

func (m *Model) GetNavigationPropertyNames(collectionName string) ([]string, error) {
	t, err := m.entityTypeOf(collectionName)
	if err != nil {
		return nil, err
	}
	navs := m.navigationProperties(t)
	names := make([]string, 0, len(navs))
	for _, nav := range navs {
		names = append(names, nav.Name)
	}
	return names, nil
}

func (m *Model) HasNavigationProperty(collectionName, propertyName string) bool {
	_, err := m.findNavigation(collectionName, propertyName)
	return err == nil
}

func (m *Model) GetNavigationPropertyExactName(collectionName, propertyName string) (string, error) {
	nav, err := m.findNavigation(collectionName, propertyName)
	if err != nil {
		return "", err
	}
	return nav.Name, nil
}

func (m *Model) GetNavigationPropertyPartnerTypeName(collectionName, propertyName string) (string, error) {
	nav, err := m.findNavigation(collectionName, propertyName)
	if err != nil {
		return "", err
	}
	return unqualifiedName(nav.Type), nil
}

func (m *Model) IsNavigationPropertyCollection(collectionName, propertyName string) bool {
	nav, err := m.findNavigation(collectionName, propertyName)
	return err == nil && nav.Collection
}

func (m *Model) findOperation(ops []Operation, name, kind string) (*Operation, error) {
	i := match(len(ops), func(i int) string { return ops[i].Name }, name, m.nameResolver())
	if i < 0 {
		return nil, metadata.Unresolvable(name, "%s [%s] not found", kind, name)
	}
	return &ops[i], nil
}

func (m *Model) GetFunctionFullName(functionName string) (string, error) {
	op, err := m.findOperation(m.Functions, functionName, "function")
	if err != nil {
		return "", err
	}
	return m.qualify(op.Name), nil
}

func (m *Model) GetFunctionReturnCollection(functionName string) (*metadata.EntityCollection, error) {
	op, err := m.findOperation(m.Functions, functionName, "function")
	if err != nil {
		return nil, err
	}
	return returnCollection(op), nil
}

func (m *Model) GetActionFullName(actionName string) (string, error) {
	op, err := m.findOperation(m.Actions, actionName, "action")
	if err != nil {
		return "", err
	}
	return m.qualify(op.Name), nil
}

func (m *Model) GetActionReturnCollection(actionName string) (*metadata.EntityCollection, error) {
	op, err := m.findOperation(m.Actions, actionName, "action")
	if err != nil {
		return nil, err
	}
	return returnCollection(op), nil
}

func returnCollection(op *Operation) *metadata.EntityCollection {
	if op.EntitySet == "" {
		return nil
	}
	return &metadata.EntityCollection{Name: op.EntitySet}
}
