// internal/alerts/alerts.go

// Package alerts turns finished column scores into pipeline cards and SNS
// notifications. Everything here is best effort: an alert failure never
// fails the scoring run that triggered it.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"tender-scanner/internal/common/aws"
	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/models"
)

// RuleStore is the storage surface the notifier needs.
type RuleStore interface {
	ListActiveRules(ctx context.Context, userID, scannerID, columnID string) ([]models.AlertRule, error)
	UpsertCard(ctx context.Context, card models.PipelineCard) error
}

type Notifier struct {
	store     RuleStore
	publisher aws.Publisher
	topicARN  string
	logger    logger.Logger
}

// New builds a notifier. publisher may be nil, in which case cards are
// still written but no notification is sent.
func New(store RuleStore, publisher aws.Publisher, topicARN string, log logger.Logger) *Notifier {
	return &Notifier{store: store, publisher: publisher, topicARN: topicARN, logger: log}
}

type notification struct {
	UserID     string  `json:"userId"`
	ScannerID  string  `json:"scannerId"`
	ColumnID   string  `json:"columnId"`
	EntityType string  `json:"entityType"`
	EntityID   string  `json:"entityId"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
}

// Evaluate applies the scanner's active rules for one column to a batch of
// freshly persisted entries. Entries without a numeric score never match.
func (n *Notifier) Evaluate(ctx context.Context, scanner *models.Scanner, columnID string, entries []models.ScoreEntry, entities map[string]models.Entity) {
	rules, err := n.store.ListActiveRules(ctx, scanner.UserID, scanner.ID, columnID)
	if err != nil {
		n.logger.Warn("alert rule lookup failed", map[string]interface{}{
			"scannerId": scanner.ID,
			"error":     err.Error(),
		})
		return
	}
	if len(rules) == 0 {
		return
	}

	for _, entry := range entries {
		if entry.ColumnID != columnID || entry.Score == nil {
			continue
		}
		for _, rule := range rules {
			if *entry.Score < rule.Threshold {
				continue
			}
			n.fire(ctx, scanner, rule, entry, entities[entry.EntityID])
		}
	}
}

func (n *Notifier) fire(ctx context.Context, scanner *models.Scanner, rule models.AlertRule, entry models.ScoreEntry, entity models.Entity) {
	title, subtitle := cardText(entity)

	card := models.PipelineCard{
		UserID:     scanner.UserID,
		EntityType: string(scanner.Domain),
		EntityID:   entry.EntityID,
		Title:      title,
		Subtitle:   subtitle,
		Stage:      rule.Stage,
		AddedBy:    "alert-rule",
		RuleID:     rule.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := n.store.UpsertCard(ctx, card); err != nil {
		n.logger.Warn("pipeline card write failed", map[string]interface{}{
			"entityId": entry.EntityID,
			"ruleId":   rule.ID,
			"error":    err.Error(),
		})
		return
	}

	if n.publisher == nil || n.topicARN == "" {
		return
	}

	payload, err := json.Marshal(notification{
		UserID:     scanner.UserID,
		ScannerID:  scanner.ID,
		ColumnID:   entry.ColumnID,
		EntityType: string(scanner.Domain),
		EntityID:   entry.EntityID,
		Title:      title,
		Score:      *entry.Score,
		Threshold:  rule.Threshold,
	})
	if err != nil {
		return
	}

	_, err = n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Subject:  awssdk.String("Scanner score alert"),
		Message:  awssdk.String(string(payload)),
	})
	if err != nil {
		n.logger.Warn("alert publish failed", map[string]interface{}{
			"entityId": entry.EntityID,
			"ruleId":   rule.ID,
			"error":    err.Error(),
		})
	}
}

func cardText(entity models.Entity) (title, subtitle string) {
	switch entity.Domain {
	case models.DomainTenders:
		if entity.Tender != nil {
			return entity.Tender.Title, entity.Tender.BuyerName
		}
	case models.DomainSignals:
		if entity.Signal != nil {
			return entity.Signal.Title, entity.Signal.OrganizationName
		}
	case models.DomainOrganizations:
		if entity.Organization != nil {
			return entity.Organization.Name, entity.Organization.Sector
		}
	}
	return "Scored entity", ""
}
