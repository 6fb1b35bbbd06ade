package llm

import "github.com/joseph-ayodele/legal-docs/internal/entity"

// BuildFactsJSONSchema describes the fact record the extractor asks for. Every
// named fact is optional; scalars other than strings are tolerated and
// stringified later. Unknown keys are allowed and end up in additionalInfo.
func BuildFactsJSONSchema() map[string]any {
	props := map[string]any{}
	for _, name := range entity.FactFieldNames() {
		props[name] = map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	}
	props[entity.AdditionalInfoKey] = map[string]any{"type": []string{"object", "null"}}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
}

// BuildClassificationJSONSchema describes the classifier response.
func BuildClassificationJSONSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"type":       map[string]any{"type": "string"},
			"category":   map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number"},
		},
		"required":             []string{"type", "category", "confidence"},
		"additionalProperties": true,
	}
}
