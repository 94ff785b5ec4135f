// internal/scoring/registry.go
package scoring

import (
	"tender-scanner/internal/models"
)

// ModelSpec maps a column's model alias to a concrete provider model.
type ModelSpec struct {
	ID        string
	MaxTokens int
}

var modelRegistry = map[string]ModelSpec{
	"haiku":  {ID: "claude-haiku-4-5-20251001", MaxTokens: 1024},
	"sonnet": {ID: "claude-sonnet-4-5-20250929", MaxTokens: 1024},
	"opus":   {ID: "claude-opus-4-5-20251101", MaxTokens: 1024},
}

const defaultModel = "haiku"

// ResolveModel returns the provider model for a column alias, falling back
// to the default when the alias is empty or unknown.
func ResolveModel(alias string) ModelSpec {
	if spec, ok := modelRegistry[alias]; ok {
		return spec
	}
	return modelRegistry[defaultModel]
}

// scoreOutputSchema constrains score-mode output. Score is nullable: the
// model may decline to score when the entity gives it nothing to go on.
var scoreOutputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score": map[string]interface{}{
			"type":    []string{"number", "null"},
			"minimum": 1.0,
			"maximum": 10.0,
		},
		"reasoning": map[string]interface{}{
			"type": "string",
		},
	},
	"required":             []string{"score", "reasoning"},
	"additionalProperties": false,
}

// scoreValidationSchema checks shape only. Bounds stay out of local
// validation so an out-of-range score is clamped into [1, 10] after
// parsing instead of failing the entity.
var scoreValidationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score": map[string]interface{}{
			"type": []string{"number", "null"},
		},
		"reasoning": map[string]interface{}{
			"type": "string",
		},
	},
	"required":             []string{"score", "reasoning"},
	"additionalProperties": false,
}

var textOutputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"response": map[string]interface{}{
			"type": "string",
		},
	},
	"required":             []string{"response"},
	"additionalProperties": false,
}

// OutputSchema returns the JSON schema for a column's use case.
func OutputSchema(useCase models.UseCase) map[string]interface{} {
	if useCase.IsText() {
		return textOutputSchema
	}
	return scoreOutputSchema
}
