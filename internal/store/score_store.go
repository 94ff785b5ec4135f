// internal/store/score_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"tender-scanner/internal/models"
)

// ScoreStore persists score entries. The table carries a unique key on
// (scanner_id, column_id, entity_id), which is what holds the at-most-one
// entry invariant: a rescore upserts, it never appends.
type ScoreStore struct {
	db *sql.DB
}

func NewScoreStore(db *sql.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

// DeleteAll clears every score entry for a scanner (full-rescore scope).
func (s *ScoreStore) DeleteAll(ctx context.Context, scannerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM scanner_scores WHERE scanner_id = $1`, scannerID)
	if err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return nil
}

// DeleteForColumn clears only one column's entries (single-column scope).
func (s *ScoreStore) DeleteForColumn(ctx context.Context, scannerID, columnID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM scanner_scores WHERE scanner_id = $1 AND column_id = $2`,
		scannerID, columnID)
	if err != nil {
		return fmt.Errorf("clear column scores: %w", err)
	}
	return nil
}

// UpsertBatch writes accumulated entries in one transaction.
func (s *ScoreStore) UpsertBatch(ctx context.Context, scannerID string, entries []models.ScoreEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin score upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scanner_scores (scanner_id, column_id, entity_id, score, response, reasoning)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (scanner_id, column_id, entity_id)
		 DO UPDATE SET score = EXCLUDED.score, response = EXCLUDED.response, reasoning = EXCLUDED.reasoning`)
	if err != nil {
		return fmt.Errorf("prepare score upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var score sql.NullFloat64
		if e.Score != nil {
			score = sql.NullFloat64{Float64: *e.Score, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, scannerID, e.ColumnID, e.EntityID, score, e.Response, e.Reasoning); err != nil {
			return fmt.Errorf("upsert score %s/%s: %w", e.ColumnID, e.EntityID, err)
		}
	}

	return tx.Commit()
}

// ListByScanner returns all persisted entries for a scanner.
func (s *ScoreStore) ListByScanner(ctx context.Context, scannerID string) ([]models.ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_id, entity_id, score, response, reasoning
		 FROM scanner_scores WHERE scanner_id = $1`, scannerID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var entries []models.ScoreEntry
	for rows.Next() {
		var e models.ScoreEntry
		var score sql.NullFloat64
		if err := rows.Scan(&e.ColumnID, &e.EntityID, &score, &e.Response, &e.Reasoning); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if score.Valid {
			v := score.Float64
			e.Score = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
