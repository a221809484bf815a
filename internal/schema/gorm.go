package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"

	"github.com/nlstn/go-odata-client/internal/naming"
)

// FromGORM builds a model from GORM models. Columns become structural
// properties named after the Go field (or its json tag) and GORM
// relationships become navigation properties. Related models are added even
// when they are not passed explicitly.
func FromGORM(db *gorm.DB, namespace string, models ...any) (*Model, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}

	model := NewModel(namespace)
	done := make(map[string]bool)
	var pending []*gormschema.Schema

	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", m, err)
		}
		pending = append(pending, stmt.Schema)
	}

	for len(pending) > 0 {
		s := pending[0]
		pending = pending[1:]
		if done[s.Name] {
			continue
		}
		done[s.Name] = true

		entityType := EntityType{Name: s.Name}
		for _, field := range s.PrimaryFields {
			entityType.Key = append(entityType.Key, gormPropertyName(field))
		}
		for _, field := range s.Fields {
			if field.DBName == "" {
				continue
			}
			typeName := EdmTypeName(field.IndirectFieldType)
			if typeName == "" {
				typeName = gormDataTypeName(field.DataType)
			}
			entityType.Properties = append(entityType.Properties, Property{Name: gormPropertyName(field), Type: typeName})
		}

		names := make([]string, 0, len(s.Relationships.Relations))
		for name := range s.Relationships.Relations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rel := s.Relationships.Relations[name]
			if rel.FieldSchema == nil {
				continue
			}
			navName := rel.Name
			if rel.Field != nil {
				navName = gormPropertyName(rel.Field)
			}
			entityType.NavigationProperties = append(entityType.NavigationProperties, NavigationProperty{
				Name:       navName,
				Type:       rel.FieldSchema.Name,
				Collection: rel.Type == gormschema.HasMany || rel.Type == gormschema.Many2Many,
			})
			pending = append(pending, rel.FieldSchema)
		}

		model.AddEntityType(entityType)
		model.AddEntitySet(gormEntitySetName(s), s.Name)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func gormPropertyName(field *gormschema.Field) string {
	if tag := field.StructField.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// gormEntitySetName uses an EntitySetName method when the model declares one.
func gormEntitySetName(s *gormschema.Schema) string {
	if s.ModelType != nil {
		instance := reflect.New(s.ModelType).Interface()
		if named, ok := instance.(interface{ EntitySetName() string }); ok {
			return named.EntitySetName()
		}
	}
	return naming.Simple.Pluralize(s.Name)
}

func gormDataTypeName(dataType gormschema.DataType) string {
	switch dataType {
	case gormschema.Bool:
		return "Edm.Boolean"
	case gormschema.Int, gormschema.Uint:
		return "Edm.Int64"
	case gormschema.Float:
		return "Edm.Double"
	case gormschema.Time:
		return "Edm.DateTimeOffset"
	case gormschema.Bytes:
		return "Edm.Binary"
	}
	return "Edm.String"
}

// FromDatabase builds a model by introspecting the tables of db. Table names
// are singularized into entity type names, columns become properties and a
// column named <table>_id adds a navigation property to that table.
func FromDatabase(db *gorm.DB, namespace string) (*Model, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	migrator := db.Migrator()
	tables, err := migrator.GetTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	sort.Strings(tables)

	typeByTable := make(map[string]string)
	for _, table := range tables {
		if strings.HasPrefix(table, "sqlite_") {
			continue
		}
		typeByTable[table] = pascalCase(naming.Simple.Singularize(table))
	}

	model := NewModel(namespace)
	for _, table := range tables {
		typeName, ok := typeByTable[table]
		if !ok {
			continue
		}
		columns, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of table %s: %w", table, err)
		}

		entityType := EntityType{Name: typeName}
		for _, column := range columns {
			name := pascalCase(column.Name())
			if primary, ok := column.PrimaryKey(); ok && primary {
				entityType.Key = append(entityType.Key, name)
			}
			entityType.Properties = append(entityType.Properties, Property{Name: name, Type: columnTypeName(column.DatabaseTypeName())})

			if target, navName, ok := foreignKeyTarget(column.Name(), typeByTable); ok {
				entityType.NavigationProperties = append(entityType.NavigationProperties, NavigationProperty{
					Name: navName,
					Type: target,
				})
			}
		}

		model.AddEntityType(entityType)
		model.AddEntitySet(naming.Simple.Pluralize(typeName), typeName)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func foreignKeyTarget(column string, typeByTable map[string]string) (target, navName string, ok bool) {
	lower := strings.ToLower(column)
	if !strings.HasSuffix(lower, "_id") || len(lower) == len("_id") {
		return "", "", false
	}
	prefix := column[:len(column)-len("_id")]
	for table, typeName := range typeByTable {
		if strings.EqualFold(naming.Simple.Singularize(table), prefix) {
			return typeName, pascalCase(prefix), true
		}
	}
	return "", "", false
}

func columnTypeName(databaseType string) string {
	t := strings.ToUpper(databaseType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch strings.TrimSpace(t) {
	case "BOOL", "BOOLEAN":
		return "Edm.Boolean"
	case "SMALLINT", "INT2":
		return "Edm.Int16"
	case "INT", "INT4", "MEDIUMINT":
		return "Edm.Int32"
	case "INTEGER", "BIGINT", "INT8":
		return "Edm.Int64"
	case "REAL", "FLOAT", "FLOAT4":
		return "Edm.Single"
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return "Edm.Double"
	case "NUMERIC", "DECIMAL", "MONEY":
		return "Edm.Decimal"
	case "DATE":
		return "Edm.Date"
	case "DATETIME", "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return "Edm.DateTimeOffset"
	case "TIME", "INTERVAL":
		return "Edm.Duration"
	case "UUID", "UNIQUEIDENTIFIER":
		return "Edm.Guid"
	case "BLOB", "BYTEA", "BINARY", "VARBINARY":
		return "Edm.Binary"
	}
	return "Edm.String"
}

// pascalCase turns snake_case names into PascalCase, upper-casing "id".
func pascalCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "id") {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
