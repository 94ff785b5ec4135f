// internal/scoring/scorer.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"tender-scanner/internal/anthropic"
	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/common/metrics"
	"tender-scanner/internal/models"
)

// Provider is the single generation call the scorer needs. Satisfied by
// *anthropic.Client; tests substitute a fake.
type Provider interface {
	Generate(ctx context.Context, req anthropic.GenerateRequest) (string, error)
}

// Result is one scored (column, entity) pair. Err is set when the provider
// call or its output failed; a failed result is reported but never persisted.
type Result struct {
	ColumnID  string
	EntityID  string
	Score     *float64
	Reasoning string
	Response  string
	Err       error
}

// Scorer evaluates one entity against one column.
type Scorer struct {
	provider Provider
	logger   logger.Logger
}

func NewScorer(provider Provider, log logger.Logger) *Scorer {
	return &Scorer{provider: provider, logger: log}
}

// ScoreOne runs a single provider call and parses the structured output.
func (s *Scorer) ScoreOne(ctx context.Context, basePrompt string, column models.Column, entity models.Entity, searchQuery string) Result {
	result := Result{ColumnID: column.ColumnID, EntityID: entity.EntityID()}

	spec := ResolveModel(column.Model)

	timer := metrics.StartProviderCall(spec.ID)
	raw, err := s.provider.Generate(ctx, anthropic.GenerateRequest{
		Model:        spec.ID,
		SystemPrompt: BuildSystemPrompt(basePrompt, column),
		UserPrompt:   BuildUserPrompt(entity, searchQuery),
		MaxTokens:    spec.MaxTokens,
		JSONSchema:   OutputSchema(column.UseCase),
	})
	if err != nil {
		timer.Done("error")
		s.logger.Warn("provider call failed", map[string]interface{}{
			"columnId": column.ColumnID,
			"entityId": result.EntityID,
			"error":    err.Error(),
		})
		result.Err = err
		return result
	}
	timer.Done("success")

	if column.UseCase.IsText() {
		result.Response, result.Err = parseTextOutput(raw)
		return result
	}

	result.Score, result.Reasoning, result.Err = parseScoreOutput(raw)
	result.Response = raw
	if result.Err != nil {
		s.logger.Warn("unparseable provider output", map[string]interface{}{
			"columnId": column.ColumnID,
			"entityId": result.EntityID,
			"error":    result.Err.Error(),
		})
	}
	return result
}

type scoreOutput struct {
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

func parseScoreOutput(raw string) (*float64, string, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, "", err
	}

	if err := validateAgainst(scoreValidationSchema, payload); err != nil {
		return nil, "", err
	}

	var out scoreOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, "", fmt.Errorf("%w: %v", anthropic.ErrEmptyOutput, err)
	}

	if out.Score != nil {
		clamped := clampScore(*out.Score)
		out.Score = &clamped
	}
	return out.Score, out.Reasoning, nil
}

func parseTextOutput(raw string) (string, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		// Text columns tolerate non-JSON output; the raw text is the answer.
		return strings.TrimSpace(raw), nil
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil || out.Response == "" {
		return strings.TrimSpace(raw), nil
	}
	return out.Response, nil
}

// clampScore bounds a score into [1, 10] at one decimal place.
func clampScore(s float64) float64 {
	s = math.Round(s*10) / 10
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}

var (
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
	salvageScore  = regexp.MustCompile(`"score"\s*:\s*(null|[\d.]+)`)
	salvageReason = regexp.MustCompile(`"reasoning"\s*:\s*"((?:[^"\\]|\\.)*)`)
)

// extractJSON pulls the JSON object out of the raw output. When the output
// was truncated mid-object, salvage the score and partial reasoning rather
// than dropping the result.
func extractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	if m := jsonObjectRe.FindString(trimmed); m != "" && json.Valid([]byte(m)) {
		return m, nil
	}

	// Truncated output: rebuild a minimal object from the salvageable parts.
	scoreMatch := salvageScore.FindStringSubmatch(trimmed)
	if scoreMatch == nil {
		return "", fmt.Errorf("%w: no JSON object in output", anthropic.ErrEmptyOutput)
	}
	reasoning := ""
	if rm := salvageReason.FindStringSubmatch(trimmed); rm != nil {
		reasoning = rm[1]
	}
	rebuilt, err := json.Marshal(map[string]json.RawMessage{
		"score":     json.RawMessage(scoreMatch[1]),
		"reasoning": mustJSONString(reasoning),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", anthropic.ErrEmptyOutput, err)
	}
	return string(rebuilt), nil
}

func mustJSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func validateAgainst(schema map[string]interface{}, payload string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", anthropic.ErrEmptyOutput, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", anthropic.ErrEmptyOutput, strings.Join(msgs, "; "))
	}
	return nil
}
