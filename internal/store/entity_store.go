// internal/store/entity_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"tender-scanner/internal/models"
)

// EntityStore loads the per-domain field projections the scoring pipeline
// reads, and writes the denormalized mirror score back onto entity records.
// Entities are never otherwise mutated by this subsystem.
type EntityStore struct {
	db *sql.DB
}

func NewEntityStore(db *sql.DB) *EntityStore {
	return &EntityStore{db: db}
}

// ListForDomain returns the full unfiltered entity set for a domain, selecting
// only the projection the prompt composer needs.
func (s *EntityStore) ListForDomain(ctx context.Context, domain models.DomainType) ([]models.Entity, error) {
	switch domain {
	case models.DomainTenders:
		return s.listTenders(ctx)
	case models.DomainSignals:
		return s.listSignals(ctx)
	case models.DomainOrganizations:
		return s.listOrganizations(ctx)
	default:
		return nil, fmt.Errorf("unknown domain type: %s", domain)
	}
}

func (s *EntityStore) listTenders(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, buyer_name, sector, buyer_region,
		        value_min, value_max, cpv_codes, deadline_date
		 FROM contracts`)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		t := &models.Tender{}
		var valueMin, valueMax sql.NullFloat64
		var deadline sql.NullTime
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.BuyerName, &t.Sector,
			&t.BuyerRegion, &valueMin, &valueMax, pq.Array(&t.CPVCodes), &deadline); err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		if valueMin.Valid {
			t.ValueMin = &valueMin.Float64
		}
		if valueMax.Valid {
			t.ValueMax = &valueMax.Float64
		}
		if deadline.Valid {
			t.DeadlineDate = &deadline.Time
		}
		entities = append(entities, models.Entity{Domain: models.DomainTenders, Tender: t})
	}
	return entities, rows.Err()
}

func (s *EntityStore) listSignals(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_name, signal_type, title, insight, sector, source_date
		 FROM signals`)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		sig := &models.Signal{}
		var sourceDate sql.NullTime
		if err := rows.Scan(&sig.ID, &sig.OrganizationName, &sig.SignalType,
			&sig.Title, &sig.Insight, &sig.Sector, &sourceDate); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if sourceDate.Valid {
			sig.SourceDate = &sourceDate.Time
		}
		entities = append(entities, models.Entity{Domain: models.DomainSignals, Signal: sig})
	}
	return entities, rows.Err()
}

func (s *EntityStore) listOrganizations(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sector, region, description, contract_count, website
		 FROM buyers`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Sector, &org.Region,
			&org.Description, &org.ContractCount, &org.Website); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		entities = append(entities, models.Entity{Domain: models.DomainOrganizations, Organization: org})
	}
	return entities, rows.Err()
}

// WriteMirrorScores copies the primary column's scores onto entity records.
// Only tenders and organizations carry the mirror fields.
func (s *EntityStore) WriteMirrorScores(ctx context.Context, domain models.DomainType, scores []models.MirrorScore) error {
	if len(scores) == 0 {
		return nil
	}

	var table string
	switch domain {
	case models.DomainTenders:
		table = "contracts"
	case models.DomainOrganizations:
		table = "buyers"
	default:
		return fmt.Errorf("domain %s has no mirror score field", domain)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror write: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`UPDATE %s SET match_score = $2, match_reasoning = $3 WHERE id = $1`, table)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare mirror write: %w", err)
	}
	defer stmt.Close()

	for _, m := range scores {
		if _, err := stmt.ExecContext(ctx, m.EntityID, m.Score, m.Reasoning); err != nil {
			return fmt.Errorf("mirror write %s: %w", m.EntityID, err)
		}
	}

	return tx.Commit()
}
