// internal/models/alerts.go
package models

import "time"

// AlertRule fires when a column's score crosses a threshold during a run.
type AlertRule struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	ScannerID string  `json:"scannerId"`
	ColumnID  string  `json:"columnId"`
	Threshold float64 `json:"threshold"`
	Stage     string  `json:"stage"`
	IsActive  bool    `json:"isActive"`
}

// PipelineCard is the inbox card created by a triggered alert rule. The
// (user, entityType, entityId) key is unique; re-triggering a rule for the
// same entity is a no-op.
type PipelineCard struct {
	UserID     string    `json:"userId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Title      string    `json:"title"`
	Subtitle   string    `json:"subtitle,omitempty"`
	Stage      string    `json:"stage"`
	AddedBy    string    `json:"addedBy"`
	RuleID     string    `json:"ruleId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
