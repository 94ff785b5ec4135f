// internal/models/scanner.go
package models

import "time"

// DomainType is the closed set of entity kinds a scanner can target.
type DomainType string

const (
	DomainTenders       DomainType = "tenders"
	DomainSignals       DomainType = "signals"
	DomainOrganizations DomainType = "organizations"
)

// ValidDomainTypes is used by request validation.
var ValidDomainTypes = map[DomainType]bool{
	DomainTenders:       true,
	DomainSignals:       true,
	DomainOrganizations: true,
}

// UseCase selects a column's output shape. "score" produces a numeric score
// plus reasoning; the rest produce free-text analysis only.
type UseCase string

const (
	UseCaseScore             UseCase = "score"
	UseCaseResearch          UseCase = "research"
	UseCaseDecisionMakers    UseCase = "decision-makers"
	UseCaseBidRecommendation UseCase = "bid-recommendation"
	UseCaseFindContacts      UseCase = "find-contacts"
)

// IsTextUseCase reports whether the use case produces text output only.
func (u UseCase) IsText() bool {
	switch u {
	case UseCaseResearch, UseCaseDecisionMakers, UseCaseBidRecommendation, UseCaseFindContacts:
		return true
	}
	return false
}

// ValidUseCases is used by request validation.
var ValidUseCases = map[UseCase]bool{
	UseCaseScore:             true,
	UseCaseResearch:          true,
	UseCaseDecisionMakers:    true,
	UseCaseBidRecommendation: true,
	UseCaseFindContacts:      true,
}

// Column is a user-authored evaluation unit attached to a scanner.
// The id is immutable; prompt, name and model are editable.
type Column struct {
	ColumnID string  `json:"columnId"`
	Name     string  `json:"name"`
	Prompt   string  `json:"prompt"`
	Model    string  `json:"model,omitempty"`
	UseCase  UseCase `json:"useCase,omitempty"`
	Position int     `json:"-"`
}

// ScoreEntry is the persisted result of evaluating one (column, entity) pair.
// At most one entry exists per pair; a rescore overwrites in place.
type ScoreEntry struct {
	ColumnID  string   `json:"columnId"`
	EntityID  string   `json:"entityId"`
	Score     *float64 `json:"score"` // nil for text-only columns
	Response  string   `json:"response"`
	Reasoning string   `json:"reasoning"`
}

// Scanner binds an entity domain to a set of columns and accumulated scores.
type Scanner struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Domain       DomainType `json:"domain"`
	SearchQuery  string     `json:"searchQuery,omitempty"`
	Columns      []Column   `json:"columns"`
	LastScoredAt *time.Time `json:"lastScoredAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ColumnByID returns the column with the given id, if present.
func (s *Scanner) ColumnByID(columnID string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].ColumnID == columnID {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// PrimaryColumn returns the first column, which drives the denormalized
// mirror score written back onto entity records.
func (s *Scanner) PrimaryColumn() (*Column, bool) {
	if len(s.Columns) == 0 {
		return nil, false
	}
	return &s.Columns[0], true
}
