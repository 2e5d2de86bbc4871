package llm

// Helpers for building JSON-Schema maps. The same map is rendered into
// prompts and compiled locally for validation.

func StringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func RequiredStringProp() map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "pattern": `\S`}
}

// NullableStringProp accepts a string or null.
func NullableStringProp() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func NumberProp() map[string]any {
	return map[string]any{"type": "number"}
}

func NonNegativeNumberProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}

func EnumProp(values []string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

// ObjectSchema returns a closed object schema.
func ObjectSchema(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func ArrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}
