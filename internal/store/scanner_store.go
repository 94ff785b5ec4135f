// internal/store/scanner_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tender-scanner/internal/models"
)

// ScannerStore persists scanners and their columns.
type ScannerStore struct {
	db *sql.DB
}

func NewScannerStore(db *sql.DB) *ScannerStore {
	return &ScannerStore{db: db}
}

// GetForUser loads a scanner owned by the given user, including its columns
// in stored order. Returns ErrNotFound for a missing scanner OR one owned by
// someone else; callers must not distinguish the two.
func (s *ScannerStore) GetForUser(ctx context.Context, scannerID, userID string) (*models.Scanner, error) {
	scanner := &models.Scanner{}
	var lastScored sql.NullTime

	query := `SELECT id, user_id, name, description, domain, search_query, last_scored_at, created_at
	          FROM scanners WHERE id = $1 AND user_id = $2`
	err := s.db.QueryRowContext(ctx, query, scannerID, userID).Scan(
		&scanner.ID, &scanner.UserID, &scanner.Name, &scanner.Description,
		&scanner.Domain, &scanner.SearchQuery, &lastScored, &scanner.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load scanner: %w", err)
	}
	if lastScored.Valid {
		scanner.LastScoredAt = &lastScored.Time
	}

	columns, err := s.listColumns(ctx, scannerID)
	if err != nil {
		return nil, err
	}
	scanner.Columns = columns

	return scanner, nil
}

func (s *ScannerStore) listColumns(ctx context.Context, scannerID string) ([]models.Column, error) {
	query := `SELECT column_id, name, prompt, model, use_case, position
	          FROM scanner_columns WHERE scanner_id = $1 ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query, scannerID)
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ColumnID, &c.Name, &c.Prompt, &c.Model, &c.UseCase, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// ListByUser returns all scanners owned by the user, without columns.
func (s *ScannerStore) ListByUser(ctx context.Context, userID string) ([]models.Scanner, error) {
	query := `SELECT id, user_id, name, description, domain, search_query, last_scored_at, created_at
	          FROM scanners WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list scanners: %w", err)
	}
	defer rows.Close()

	var scanners []models.Scanner
	for rows.Next() {
		var sc models.Scanner
		var lastScored sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Name, &sc.Description,
			&sc.Domain, &sc.SearchQuery, &lastScored, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scanner: %w", err)
		}
		if lastScored.Valid {
			sc.LastScoredAt = &lastScored.Time
		}
		scanners = append(scanners, sc)
	}
	return scanners, rows.Err()
}

// Create inserts a scanner and its initial columns.
func (s *ScannerStore) Create(ctx context.Context, scanner *models.Scanner) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create scanner: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scanners (id, user_id, name, description, domain, search_query, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scanner.ID, scanner.UserID, scanner.Name, scanner.Description,
		scanner.Domain, scanner.SearchQuery, scanner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scanner: %w", err)
	}

	for i, c := range scanner.Columns {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scanner_columns (scanner_id, column_id, name, prompt, model, use_case, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			scanner.ID, c.ColumnID, c.Name, c.Prompt, c.Model, c.UseCase, i,
		)
		if err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
	}

	return tx.Commit()
}

// Delete removes a scanner; columns and score entries cascade via FK.
func (s *ScannerStore) Delete(ctx context.Context, scannerID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scanners WHERE id = $1 AND user_id = $2`, scannerID, userID)
	if err != nil {
		return fmt.Errorf("delete scanner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddColumn appends a column at the end of the scanner's column order.
func (s *ScannerStore) AddColumn(ctx context.Context, scannerID string, column models.Column) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scanner_columns (scanner_id, column_id, name, prompt, model, use_case, position)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         (SELECT COALESCE(MAX(position), -1) + 1 FROM scanner_columns WHERE scanner_id = $1))`,
		scannerID, column.ColumnID, column.Name, column.Prompt, column.Model, column.UseCase,
	)
	if err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	return nil
}

// UpdateColumn edits the mutable fields of a column. The column id is immutable.
func (s *ScannerStore) UpdateColumn(ctx context.Context, scannerID string, column models.Column) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scanner_columns SET name = $3, prompt = $4, model = $5, use_case = $6
		 WHERE scanner_id = $1 AND column_id = $2`,
		scannerID, column.ColumnID, column.Name, column.Prompt, column.Model, column.UseCase,
	)
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteColumn removes a column and cascade-deletes its score entries in one
// transaction, so no entry can outlive its column.
func (s *ScannerStore) DeleteColumn(ctx context.Context, scannerID, columnID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete column: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM scanner_columns WHERE scanner_id = $1 AND column_id = $2`,
		scannerID, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM scanner_scores WHERE scanner_id = $1 AND column_id = $2`,
		scannerID, columnID)
	if err != nil {
		return fmt.Errorf("delete column scores: %w", err)
	}

	return tx.Commit()
}

// TouchLastScored stamps the scanner's last-scored time.
func (s *ScannerStore) TouchLastScored(ctx context.Context, scannerID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scanners SET last_scored_at = $2 WHERE id = $1`, scannerID, t)
	if err != nil {
		return fmt.Errorf("touch last scored: %w", err)
	}
	return nil
}
