// internal/store/profile_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tender-scanner/internal/models"
)

// ProfileStore loads the company profile the base scoring context is built from.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetByUser returns the user's company profile, or ErrNotFound.
func (s *ProfileStore) GetByUser(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	p := &models.CompanyProfile{}
	query := `SELECT user_id, company_name, summary, sectors, capabilities, keywords,
	                 certifications, ideal_contract_description, regions, company_size
	          FROM company_profiles WHERE user_id = $1`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.CompanyName, &p.Summary,
		pq.Array(&p.Sectors), pq.Array(&p.Capabilities), pq.Array(&p.Keywords),
		pq.Array(&p.Certifications), &p.IdealContractDescription,
		pq.Array(&p.Regions), &p.CompanySize,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}
