package weaviate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Class is a Weaviate class definition reduced to what the ontology tracks
type Class struct {
	Name        string
	Description string
	Properties  []*Property
}

// Property is a Weaviate property. A data type naming another class makes it
// a cross-reference.
type Property struct {
	Name        string
	DataType    []string
	Description string
}

// primitiveTypes maps Weaviate data types to ontology type names. Weaviate
// stores int as 64-bit and number as double.
var primitiveTypes = map[string]string{
	"text":           "text",
	"string":         "string",
	"int":            "long",
	"number":         "double",
	"boolean":        "boolean",
	"date":           "date",
	"uuid":           "uuid",
	"blob":           "blob",
	"geoCoordinates": "geo",
	"phoneNumber":    "phone",
	"object":         "object",
}

// isReference reports whether a data type names a class
func isReference(dataType string) bool {
	r := []rune(dataType)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

// propertyType converts a primitive Weaviate data type, including array
// forms such as "text[]"
func propertyType(dataType string) (string, error) {
	base, isArray := strings.CutSuffix(dataType, "[]")
	t, ok := primitiveTypes[base]
	if !ok {
		return "", fmt.Errorf("unsupported data type %q", dataType)
	}
	if isArray {
		return t + "[]", nil
	}
	return t, nil
}

// ToSchemaVersion converts classes into an unsaved schema version. Classes
// become entities, primitive properties become entity properties and
// cross-references become MANY_TO_MANY association links.
func ToSchemaVersion(classes []*Class) (*models.SchemaVersion, error) {
	s := models.NewSchemaVersion()
	for _, class := range classes {
		if _, dup := s.Entities[class.Name]; dup {
			return nil, fmt.Errorf("duplicate class %s", class.Name)
		}
		s.Entities[class.Name] = &models.EntityDef{
			ID:         class.Name,
			Properties: make(map[string]*models.PropertyDef),
		}
	}

	for _, class := range classes {
		entity := s.Entities[class.Name]
		for _, prop := range class.Properties {
			if len(prop.DataType) == 0 {
				return nil, fmt.Errorf("%s.%s: missing data type", class.Name, prop.Name)
			}

			if !isReference(prop.DataType[0]) {
				t, err := propertyType(prop.DataType[0])
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", class.Name, prop.Name, err)
				}
				entity.Properties[prop.Name] = &models.PropertyDef{Name: prop.Name, Type: t}
				continue
			}

			for _, target := range prop.DataType {
				if _, ok := s.Entities[target]; !ok {
					return nil, fmt.Errorf("%s.%s: references unknown class %s", class.Name, prop.Name, target)
				}
				id := class.Name + "." + prop.Name
				if len(prop.DataType) > 1 {
					id += "." + target
				}
				s.Links[id] = &models.LinkDef{
					ID:          id,
					Source:      class.Name,
					Target:      target,
					Cardinality: models.ManyToMany,
					Kind:        models.LinkAssociation,
				}
			}
		}
	}

	s.Normalize()
	return s, nil
}

// Import reads the schema of src and converts it
func Import(ctx context.Context, src SchemaSource) (*models.SchemaVersion, error) {
	classes, err := src.GetClasses(ctx)
	if err != nil {
		return nil, err
	}
	return ToSchemaVersion(classes)
}
