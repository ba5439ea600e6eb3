package fieldset

import (
	"fmt"
	"strings"
)

// Type is the semantic type of a single field.
type Type string

// Supported field types. These are the only types the orchestrator
// registers with the CEP runtime; anything richer is the runtime's concern.
const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeFloat   Type = "float"
)

// NormalizeType canonicalizes a caller-supplied type name. Callers commonly
// write "int", "long", "double" or uppercase variants; all collapse onto the
// four supported types.
func NormalizeType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "text":
		return TypeString, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "integer", "int", "long":
		return TypeInteger, nil
	case "float", "double":
		return TypeFloat, nil
	default:
		return "", fmt.Errorf("unsupported field type %q", s)
	}
}

// GuessType infers a field type from a sample value. This is the primitive
// scalar guess used for lazy base-fieldset derivation and event
// classification; reserved types always override it.
func GuessType(value any) Type {
	switch v := value.(type) {
	case bool:
		return TypeBoolean
	case int, int32, int64, uint, uint32, uint64:
		return TypeInteger
	case float32:
		return TypeFloat
	case float64:
		// JSON numbers decode as float64; treat integral values as integers
		// so {"status":200} classifies the way callers expect.
		if v == float64(int64(v)) {
			return TypeInteger
		}
		return TypeFloat
	default:
		return TypeString
	}
}

// Field is a single named, typed field of a fieldset.
type Field struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// Definition returns the field's wire definition string, "name:type".
func (f Field) Definition() string {
	return f.Name + ":" + string(f.Type)
}
