package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-scanner/internal/models"
)

func TestListActiveRules(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewAlertStore(db)

	mock.ExpectQuery(`FROM alert_rules\s+WHERE user_id = \$1 AND scanner_id = \$2 AND column_id = \$3 AND is_active = TRUE`).
		WithArgs("user-1", "sc-1", "col-a").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "scanner_id", "column_id", "threshold", "stage", "is_active"}).
			AddRow("r-1", "user-1", "sc-1", "col-a", 8.0, "review", true))

	rules, err := s.ListActiveRules(context.Background(), "user-1", "sc-1", "col-a")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 8.0, rules[0].Threshold)
	assert.Equal(t, "review", rules[0].Stage)
}

func TestUpsertCard_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewAlertStore(db)

	card := models.PipelineCard{
		UserID: "user-1", EntityType: "tenders", EntityID: "t-1",
		Title: "Road works", Subtitle: "Council A", Stage: "review",
		AddedBy: "alert-rule", RuleID: "r-1", CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO pipeline_cards .+ ON CONFLICT \(user_id, entity_type, entity_id\) DO NOTHING`).
		WithArgs(card.UserID, card.EntityType, card.EntityID, card.Title, card.Subtitle,
			card.Stage, card.AddedBy, card.RuleID, card.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpsertCard(context.Background(), card))
	assert.NoError(t, mock.ExpectationsWereMet())
}
