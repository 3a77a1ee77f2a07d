package delegate

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports arguments that do not satisfy the tool's parameter
// schema. Surfaced to the model as a failed tool result so it can correct
// the call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// validateArgs checks args against the reflected schema: required fields
// present, known types, enum membership, numeric bounds. Unknown fields pass
// through; models add harmless extras often enough that rejecting them costs
// more than it protects.
func validateArgs(schema, args map[string]any) *ValidationError {
	if required, ok := schema["required"].([]any); ok {
		for _, item := range required {
			field, _ := item.(string)
			if _, present := args[field]; !present {
				return &ValidationError{Field: field, Message: "required field is missing"}
			}
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	for field, value := range args {
		propAny, known := properties[field]
		if !known {
			continue
		}
		prop, ok := propAny.(map[string]any)
		if !ok {
			continue
		}
		if verr := validateValue(field, value, prop); verr != nil {
			return verr
		}
	}
	return nil
}

func validateValue(field string, value any, prop map[string]any) *ValidationError {
	expectedType, _ := prop["type"].(string)

	switch expectedType {
	case "string":
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: field, Message: "expected a string"}
		}
		if enum, ok := prop["enum"].([]any); ok && !enumContains(enum, s) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("%q is not an allowed value", s)}
		}
	case "integer", "number":
		n, ok := toNumber(value)
		if !ok {
			return &ValidationError{Field: field, Message: "expected a number"}
		}
		if min, ok := toNumber(prop["minimum"]); ok && n < min {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %g", min)}
		}
		if max, ok := toNumber(prop["maximum"]); ok && n > max {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %g", max)}
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return &ValidationError{Field: field, Message: "expected a boolean"}
		}
	}
	return nil
}

func enumContains(enum []any, value string) bool {
	for _, item := range enum {
		if s, ok := item.(string); ok && s == value {
			return true
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
