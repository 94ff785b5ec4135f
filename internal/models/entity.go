// internal/models/entity.go
package models

import "time"

// Tender is the field projection of a contract notice used for scoring.
type Tender struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	BuyerName    string     `json:"buyerName"`
	Sector       string     `json:"sector"`
	BuyerRegion  string     `json:"buyerRegion"`
	ValueMin     *float64   `json:"valueMin,omitempty"`
	ValueMax     *float64   `json:"valueMax,omitempty"`
	CPVCodes     []string   `json:"cpvCodes,omitempty"`
	DeadlineDate *time.Time `json:"deadlineDate,omitempty"`
}

// Signal is the field projection of a board-meeting signal used for scoring.
type Signal struct {
	ID               string     `json:"id"`
	OrganizationName string     `json:"organizationName"`
	SignalType       string     `json:"signalType"`
	Title            string     `json:"title"`
	Insight          string     `json:"insight"`
	Sector           string     `json:"sector"`
	SourceDate       *time.Time `json:"sourceDate,omitempty"`
}

// Organization is the field projection of a buyer organization used for scoring.
type Organization struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Sector        string `json:"sector"`
	Region        string `json:"region"`
	Description   string `json:"description"`
	ContractCount int    `json:"contractCount"`
	Website       string `json:"website"`
}

// Entity is one business record under evaluation, tagged with its domain.
// Exactly one of Tender/Signal/Organization is set, matching Domain.
type Entity struct {
	Domain       DomainType
	Tender       *Tender
	Signal       *Signal
	Organization *Organization
}

// EntityID returns the underlying record's id.
func (e Entity) EntityID() string {
	switch e.Domain {
	case DomainTenders:
		return e.Tender.ID
	case DomainSignals:
		return e.Signal.ID
	case DomainOrganizations:
		return e.Organization.ID
	}
	return ""
}

// MirrorScore is the denormalized primary-column score written back onto
// tender and organization records for list-view display. Signals have no
// mirror field.
type MirrorScore struct {
	EntityID  string
	Score     float64
	Reasoning string
}
