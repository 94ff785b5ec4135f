// internal/store/alert_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"tender-scanner/internal/models"
)

// AlertStore loads alert rules and writes the pipeline cards they create.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// ListActiveRules returns the active rules for one (scanner, column) pair.
func (s *AlertStore) ListActiveRules(ctx context.Context, userID, scannerID, columnID string) ([]models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, scanner_id, column_id, threshold, stage, is_active
		 FROM alert_rules
		 WHERE user_id = $1 AND scanner_id = $2 AND column_id = $3 AND is_active = TRUE`,
		userID, scannerID, columnID)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		var r models.AlertRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.ScannerID, &r.ColumnID,
			&r.Threshold, &r.Stage, &r.IsActive); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertCard inserts a pipeline card unless one already exists for the
// (user, entityType, entityId) key.
func (s *AlertStore) UpsertCard(ctx context.Context, card models.PipelineCard) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_cards (user_id, entity_type, entity_id, title, subtitle, stage, added_by, rule_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, entity_type, entity_id) DO NOTHING`,
		card.UserID, card.EntityType, card.EntityID, card.Title, card.Subtitle,
		card.Stage, card.AddedBy, card.RuleID, card.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pipeline card: %w", err)
	}
	return nil
}
