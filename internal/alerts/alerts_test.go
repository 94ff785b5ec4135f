package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/models"
)

type fakeRuleStore struct {
	rules    []models.AlertRule
	rulesErr error
	cards    []models.PipelineCard
	cardErr  error
}

func (f *fakeRuleStore) ListActiveRules(ctx context.Context, userID, scannerID, columnID string) ([]models.AlertRule, error) {
	return f.rules, f.rulesErr
}

func (f *fakeRuleStore) UpsertCard(ctx context.Context, card models.PipelineCard) error {
	if f.cardErr != nil {
		return f.cardErr
	}
	f.cards = append(f.cards, card)
	return nil
}

type fakePublisher struct {
	published []*sns.PublishInput
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, input)
	return &sns.PublishOutput{}, nil
}

func score(v float64) *float64 { return &v }

func testScanner() *models.Scanner {
	return &models.Scanner{ID: "sc-1", UserID: "user-1", Domain: models.DomainTenders}
}

func testEntities() map[string]models.Entity {
	return map[string]models.Entity{
		"t-1": {Domain: models.DomainTenders, Tender: &models.Tender{ID: "t-1", Title: "Road works", BuyerName: "Council A"}},
		"t-2": {Domain: models.DomainTenders, Tender: &models.Tender{ID: "t-2", Title: "IT support", BuyerName: "Council B"}},
	}
}

func TestEvaluate_ThresholdMatch(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: "r-1", UserID: "user-1", ScannerID: "sc-1", ColumnID: "col-a", Threshold: 8, Stage: "review", IsActive: true},
	}}
	pub := &fakePublisher{}
	n := New(store, pub, "arn:aws:sns:eu-west-2:123:alerts", logger.NewNoOpLogger())

	entries := []models.ScoreEntry{
		{ColumnID: "col-a", EntityID: "t-1", Score: score(8.5), Reasoning: "good"},
		{ColumnID: "col-a", EntityID: "t-2", Score: score(4.0), Reasoning: "weak"},
	}
	n.Evaluate(context.Background(), testScanner(), "col-a", entries, testEntities())

	require.Len(t, store.cards, 1)
	card := store.cards[0]
	assert.Equal(t, "t-1", card.EntityID)
	assert.Equal(t, "Road works", card.Title)
	assert.Equal(t, "Council A", card.Subtitle)
	assert.Equal(t, "review", card.Stage)
	assert.Equal(t, "alert-rule", card.AddedBy)

	require.Len(t, pub.published, 1)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*pub.published[0].Message), &payload))
	assert.Equal(t, "t-1", payload["entityId"])
	assert.Equal(t, 8.5, payload["score"])
}

func TestEvaluate_NullScoreNeverMatches(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: "r-1", ColumnID: "col-a", Threshold: 1, IsActive: true},
	}}
	n := New(store, nil, "", logger.NewNoOpLogger())

	entries := []models.ScoreEntry{
		{ColumnID: "col-a", EntityID: "t-1", Score: nil, Response: "text answer"},
	}
	n.Evaluate(context.Background(), testScanner(), "col-a", entries, testEntities())

	assert.Empty(t, store.cards)
}

func TestEvaluate_NoRulesNoWork(t *testing.T) {
	store := &fakeRuleStore{}
	pub := &fakePublisher{}
	n := New(store, pub, "arn", logger.NewNoOpLogger())

	n.Evaluate(context.Background(), testScanner(), "col-a",
		[]models.ScoreEntry{{ColumnID: "col-a", EntityID: "t-1", Score: score(9)}}, testEntities())

	assert.Empty(t, store.cards)
	assert.Empty(t, pub.published)
}

func TestEvaluate_PublishFailureIsBestEffort(t *testing.T) {
	store := &fakeRuleStore{rules: []models.AlertRule{
		{ID: "r-1", ColumnID: "col-a", Threshold: 5, IsActive: true},
	}}
	pub := &fakePublisher{err: errors.New("sns down")}
	n := New(store, pub, "arn", logger.NewNoOpLogger())

	n.Evaluate(context.Background(), testScanner(), "col-a",
		[]models.ScoreEntry{{ColumnID: "col-a", EntityID: "t-1", Score: score(9)}}, testEntities())

	// Card still written even though the notification failed.
	assert.Len(t, store.cards, 1)
}

func TestEvaluate_CardFailureSkipsPublish(t *testing.T) {
	store := &fakeRuleStore{
		rules:   []models.AlertRule{{ID: "r-1", ColumnID: "col-a", Threshold: 5, IsActive: true}},
		cardErr: errors.New("db down"),
	}
	pub := &fakePublisher{}
	n := New(store, pub, "arn", logger.NewNoOpLogger())

	n.Evaluate(context.Background(), testScanner(), "col-a",
		[]models.ScoreEntry{{ColumnID: "col-a", EntityID: "t-1", Score: score(9)}}, testEntities())

	assert.Empty(t, pub.published)
}
