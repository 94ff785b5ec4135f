package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileGetByUser(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewProfileStore(db)

	mock.ExpectQuery(`FROM company_profiles WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "company_name", "summary", "sectors", "capabilities", "keywords",
			"certifications", "ideal_contract_description", "regions", "company_size"}).
			AddRow("user-1", "Acme", "summary", "{Construction,Infrastructure}", "{Surfacing}",
				"{highways}", "{\"ISO 9001\"}", "Highway frameworks", "{\"North West\"}", "50-200"))

	profile, err := s.GetByUser(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Acme", profile.CompanyName)
	assert.Equal(t, []string{"Construction", "Infrastructure"}, profile.Sectors)
	assert.Equal(t, []string{"ISO 9001"}, profile.Certifications)
}

func TestProfileGetByUser_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewProfileStore(db)

	mock.ExpectQuery(`FROM company_profiles`).
		WithArgs("user-2").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetByUser(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
}
