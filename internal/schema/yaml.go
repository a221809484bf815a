package schema

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a model document:
//
//	namespace: NorthwindModel
//	entityTypes:
//	  - name: Product
//	    key: [ProductID]
//	    properties:
//	      - {name: ProductID, type: Edm.Int32}
//	      - {name: ProductName, type: Edm.String}
//	    navigationProperties:
//	      - {name: Category, type: Category}
//	entitySets:
//	  - {name: Products, entityType: Product}
//
// Unknown fields are rejected and the model is validated.
func LoadYAML(r io.Reader) (*Model, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var model Model
	if err := decoder.Decode(&model); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("schema document is empty")
		}
		return nil, fmt.Errorf("failed to decode schema document: %w", err)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}
	return &model, nil
}

// WriteYAML encodes m as a document LoadYAML accepts.
func (m *Model) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to encode schema document: %w", err)
	}
	return encoder.Close()
}
