package tool

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Field types accepted by FieldSpec.Type.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// FieldSpec describes one tool input.
type FieldSpec struct {
	Type        string     `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
	Enum        []string   `json:"enum,omitempty"`
	Items       *FieldSpec `json:"items,omitempty"`
	// AnyOf lists alternative types, e.g. a value accepted either as a string or
	// as an array of strings. Type is ignored when AnyOf is set.
	AnyOf []FieldSpec `json:"any_of,omitempty"`
}

// InputSchema renders inputs as a JSON Schema object suitable for tools/list.
func InputSchema(inputs map[string]FieldSpec) map[string]any {
	properties := make(map[string]any, len(inputs))
	required := make([]string, 0)
	for _, name := range sortedFieldNames(inputs) {
		spec := inputs[name]
		properties[name] = fieldSchema(spec)
		if spec.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       TypeObject,
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fieldSchema(spec FieldSpec) map[string]any {
	out := map[string]any{}
	if len(spec.AnyOf) > 0 {
		alternatives := make([]any, 0, len(spec.AnyOf))
		for _, alt := range spec.AnyOf {
			alternatives = append(alternatives, fieldSchema(alt))
		}
		out["anyOf"] = alternatives
	} else {
		out["type"] = spec.Type
	}
	if spec.Description != "" {
		out["description"] = spec.Description
	}
	if len(spec.Enum) > 0 {
		out["enum"] = spec.Enum
	}
	if spec.Items != nil {
		out["items"] = fieldSchema(*spec.Items)
	}
	return out
}

// validateArguments checks presence of required inputs and the primitive type
// of every known input. Unknown keys are accepted; handlers ignore them.
func validateArguments(inputs map[string]FieldSpec, args Arguments) []Diagnostic {
	var diags []Diagnostic
	for _, name := range sortedFieldNames(inputs) {
		spec := inputs[name]
		value, present := args[name]
		if !present || value == nil {
			if spec.Required {
				diags = append(diags, Diagnostic{
					Field:    name,
					Code:     "REQUIRED",
					Severity: SeverityError,
					Message:  fmt.Sprintf("%s is required", name),
				})
			}
			continue
		}
		if !valueMatches(spec, value) {
			diags = append(diags, Diagnostic{
				Field:    name,
				Code:     "TYPE_MISMATCH",
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s must be of type %s", name, describeType(spec)),
			})
			continue
		}
		if len(spec.Enum) > 0 {
			if s, ok := value.(string); ok && !slices.Contains(spec.Enum, s) {
				diags = append(diags, Diagnostic{
					Field:    name,
					Code:     "ENUM_MISMATCH",
					Severity: SeverityError,
					Message:  fmt.Sprintf("%s must be one of %v", name, spec.Enum),
				})
			}
		}
	}
	return diags
}

func valueMatches(spec FieldSpec, value any) bool {
	if len(spec.AnyOf) > 0 {
		for _, alt := range spec.AnyOf {
			if valueMatches(alt, value) {
				return true
			}
		}
		return false
	}
	switch spec.Type {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case float64:
			return v == math.Trunc(v)
		case int, int64:
			return true
		case string:
			// Numeric strings are common from model-generated arguments.
			_, err := strconv.Atoi(v)
			return err == nil
		}
		return false
	case TypeNumber:
		switch v := value.(type) {
		case float64, int, int64:
			return true
		case string:
			_, err := strconv.ParseFloat(v, 64)
			return err == nil
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return false
		}
		if spec.Items == nil {
			return true
		}
		for _, item := range items {
			if !valueMatches(*spec.Items, item) {
				return false
			}
		}
		return true
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func describeType(spec FieldSpec) string {
	if len(spec.AnyOf) == 0 {
		return spec.Type
	}
	out := ""
	for i, alt := range spec.AnyOf {
		if i > 0 {
			out += " or "
		}
		out += describeType(alt)
	}
	return out
}

func sortedFieldNames(fields map[string]FieldSpec) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
