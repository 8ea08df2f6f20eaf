package genai

import "sort"

// Type is an OpenAPI data type as accepted by the responseSchema field.
type Type string

const (
	TypeObject  Type = "OBJECT"
	TypeArray   Type = "ARRAY"
	TypeString  Type = "STRING"
	TypeNumber  Type = "NUMBER"
	TypeInteger Type = "INTEGER"
	TypeBoolean Type = "BOOLEAN"
)

// Schema constrains the JSON the model is allowed to return.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	MinItems    *int               `json:"minItems,omitempty"`
	MaxItems    *int               `json:"maxItems,omitempty"`
}

// Object returns an object schema; every property is required unless listed in optional.
func Object(props map[string]*Schema, optional ...string) *Schema {
	skip := make(map[string]bool, len(optional))
	for _, o := range optional {
		skip[o] = true
	}

	required := make([]string, 0, len(props))
	for name := range props {
		if !skip[name] {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// String returns a string schema with a description.
func String(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }

// Number returns a number schema with a description.
func Number(desc string) *Schema { return &Schema{Type: TypeNumber, Description: desc} }

// Integer returns an integer schema with a description.
func Integer(desc string) *Schema { return &Schema{Type: TypeInteger, Description: desc} }

// Enum returns a string schema restricted to values.
func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

// ArrayOf returns an array schema of items with the given bounds.
func ArrayOf(items *Schema, minItems, maxItems int) *Schema {
	return &Schema{Type: TypeArray, Items: items, MinItems: &minItems, MaxItems: &maxItems}
}

// AsNullable marks s as nullable and returns it.
func (s *Schema) AsNullable() *Schema {
	s.Nullable = true
	return s
}
