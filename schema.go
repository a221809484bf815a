package odata

import (
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/schema"
)

// Model is an in-memory service schema. Build one with NewModel, load it
// with LoadSchemaYAML, or derive it from GORM models or a database.
type Model = schema.Model

// Schema model parts.
type (
	EntityType         = schema.EntityType
	ComplexType        = schema.ComplexType
	EntitySet          = schema.EntitySet
	Property           = schema.Property
	NavigationProperty = schema.NavigationProperty
	Operation          = schema.Operation
)

// NewModel creates an empty model for namespace.
func NewModel(namespace string) *Model {
	return schema.NewModel(namespace)
}

// LoadSchemaYAML reads and validates a schema document.
func LoadSchemaYAML(r io.Reader) (*Model, error) {
	return schema.LoadYAML(r)
}

// SchemaFromGORM builds a schema from GORM models. GORM relationships
// become navigation properties.
func SchemaFromGORM(db *gorm.DB, namespace string, models ...any) (*Model, error) {
	return schema.FromGORM(db, namespace, models...)
}

// SchemaFromDatabase builds a schema by introspecting the tables of db.
func SchemaFromDatabase(db *gorm.DB, namespace string) (*Model, error) {
	return schema.FromDatabase(db, namespace)
}

// UseGORM attaches the schema of GORM models, qualified with the namespace
// of the client.
func (c *Client) UseGORM(db *gorm.DB, models ...any) error {
	model, err := schema.FromGORM(db, c.Settings().Namespace, models...)
	if err != nil {
		return fmt.Errorf("failed to build schema from GORM models: %w", err)
	}
	return c.UseSchema(model)
}

// DecodeExpressionYAML reads an expression document such as
//
//	and:
//	  - eq: [{ref: ProductID}, 1]
//	  - call: {name: StartsWith, caller: {ref: ProductName}, args: [Ch]}
func DecodeExpressionYAML(r io.Reader) (Node, error) {
	return expr.DecodeYAML(r)
}
