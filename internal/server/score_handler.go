// internal/server/score_handler.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tender-scanner/internal/common/auth"
	stderrors "tender-scanner/internal/common/errors"
	"tender-scanner/internal/common/metrics"
	"tender-scanner/internal/models"
	"tender-scanner/internal/runlock"
	"tender-scanner/internal/scoring"
	"tender-scanner/internal/store"
)

// persistTimeout bounds the write-back that runs after the request context
// is gone. Results accumulated before a cancellation are still persisted.
const persistTimeout = 30 * time.Second

// handleScoreAll scores every column of the scanner over every entity in
// its domain, streaming progress as server-sent events.
func (s *Server) handleScoreAll(w http.ResponseWriter, r *http.Request) {
	s.runScoring(w, r, "")
}

// handleScoreColumn scores a single column. The body must carry the column
// id; the other columns and their persisted scores are untouched.
func (s *Server) handleScoreColumn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ColumnID string `json:"columnId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ColumnID == "" {
		s.writeError(w, stderrors.NewColumnIDRequiredError())
		return
	}
	s.runScoring(w, r, body.ColumnID)
}

func (s *Server) runScoring(w http.ResponseWriter, r *http.Request, columnID string) {
	ctx := r.Context()
	userID, _ := auth.UserID(ctx)

	mode := "full"
	if columnID != "" {
		mode = "column"
	}

	scannerID := r.PathValue("id")
	if _, err := uuid.Parse(scannerID); err != nil {
		s.writeError(w, stderrors.NewInvalidScannerIDError(scannerID))
		return
	}

	scanner, err := s.scanners.GetForUser(ctx, scannerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, stderrors.NewScannerNotFoundError(scannerID))
			return
		}
		s.writeError(w, stderrors.NewQueryExecutionFailedError("scanner", err))
		return
	}

	columns := scanner.Columns
	if columnID != "" {
		column, ok := scanner.ColumnByID(columnID)
		if !ok {
			s.writeError(w, stderrors.NewColumnNotFoundError(columnID))
			return
		}
		columns = []models.Column{*column}
	}

	profile, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, stderrors.NewProfileMissingError())
			return
		}
		s.writeError(w, stderrors.NewQueryExecutionFailedError("profile", err))
		return
	}

	entities, err := s.entities.ListForDomain(ctx, scanner.Domain)
	if err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("entities", err))
		return
	}
	if len(entities) == 0 {
		s.writeError(w, stderrors.NewNoEntitiesError(string(scanner.Domain)))
		return
	}

	runID := uuid.NewString()
	if err := s.lock.Acquire(ctx, scannerID, runID); err != nil {
		if errors.Is(err, runlock.ErrAlreadyRunning) {
			s.writeError(w, stderrors.NewRunInProgressError(scannerID))
			return
		}
		s.writeError(w, stderrors.NewInternalError(err))
		return
	}

	// Previous scores for the run's scope are cleared up front so a crash
	// mid-run never leaves a mix of old and new entries.
	if columnID != "" {
		err = s.scores.DeleteForColumn(ctx, scannerID, columnID)
	} else {
		err = s.scores.DeleteAll(ctx, scannerID)
	}
	if err != nil {
		s.releaseLock(scannerID, runID)
		s.writeError(w, stderrors.NewScorePersistFailedError(err))
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		s.releaseLock(scannerID, runID)
		s.writeError(w, stderrors.NewInternalError(err))
		return
	}

	metrics.ScoringRunsStarted.WithLabelValues(mode).Inc()
	metrics.ScoringRunsActive.Inc()
	defer metrics.ScoringRunsActive.Dec()
	start := time.Now()

	basePrompt := scoring.ComposeBasePrompt(profile)
	events := s.engine.Run(ctx, scanner, columns, entities, basePrompt)

	var accumulated []models.ScoreEntry
	completed := false
	for ev := range events {
		if ev.Type == scoring.EventProgress {
			accumulated = append(accumulated, models.ScoreEntry{
				ColumnID:  ev.ColumnID,
				EntityID:  ev.EntityID,
				Score:     ev.Score,
				Response:  ev.Response,
				Reasoning: ev.Reasoning,
			})
		}
		if ev.Type == scoring.EventComplete {
			completed = true
		}
		if err := stream.Send(ev); err != nil {
			// Client went away; the engine winds down via the context.
			break
		}
	}

	// The request context may already be cancelled; finish the write-back
	// on a detached context so partial results survive disconnects.
	bg, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s.finishRun(bg, scanner, columns, entities, accumulated, columnID)
	s.releaseLock(scannerID, runID)

	status := "completed"
	if !completed {
		status = "cancelled"
	}
	if s.obs != nil {
		s.obs.RecordRun(bg, mode, status)
		s.obs.RecordRunDuration(bg, time.Since(start), mode)
	}
	s.logger.Info("scoring run finished", map[string]interface{}{
		"scannerId": scannerID,
		"mode":      mode,
		"status":    status,
		"persisted": len(accumulated),
	})
}

// finishRun persists accumulated results and fans out the side effects:
// mirror scores, last-scored timestamp, search index, alert rules.
func (s *Server) finishRun(ctx context.Context, scanner *models.Scanner, columns []models.Column, entities []models.Entity, accumulated []models.ScoreEntry, columnID string) {
	if len(accumulated) == 0 {
		return
	}

	if err := s.scores.UpsertBatch(ctx, scanner.ID, accumulated); err != nil {
		s.logger.Error("score persistence failed", map[string]interface{}{
			"scannerId": scanner.ID,
			"entries":   len(accumulated),
			"error":     err.Error(),
		})
		return
	}
	metrics.ScoreEntriesPersisted.WithLabelValues(string(scanner.Domain)).Add(float64(len(accumulated)))

	if err := s.scanners.TouchLastScored(ctx, scanner.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("last-scored update failed", map[string]interface{}{
			"scannerId": scanner.ID, "error": err.Error(),
		})
	}

	s.writeMirrors(ctx, scanner, accumulated, columnID)
	s.indexScores(ctx, scanner, accumulated)

	if s.notifier != nil {
		byID := make(map[string]models.Entity, len(entities))
		for _, e := range entities {
			byID[e.EntityID()] = e
		}
		for _, col := range columns {
			s.notifier.Evaluate(ctx, scanner, col.ColumnID, accumulated, byID)
		}
	}
}

// writeMirrors denormalizes the primary column's scores onto the entity
// records themselves. Signals carry no mirror fields.
func (s *Server) writeMirrors(ctx context.Context, scanner *models.Scanner, accumulated []models.ScoreEntry, columnID string) {
	if scanner.Domain == models.DomainSignals {
		return
	}
	primary, ok := scanner.PrimaryColumn()
	if !ok {
		return
	}
	// A single-column run only mirrors when it scored the primary column.
	if columnID != "" && columnID != primary.ColumnID {
		return
	}

	var mirrors []models.MirrorScore
	for _, entry := range accumulated {
		if entry.ColumnID != primary.ColumnID || entry.Score == nil {
			continue
		}
		mirrors = append(mirrors, models.MirrorScore{
			EntityID:  entry.EntityID,
			Score:     *entry.Score,
			Reasoning: entry.Reasoning,
		})
	}
	if len(mirrors) == 0 {
		return
	}

	if err := s.entities.WriteMirrorScores(ctx, scanner.Domain, mirrors); err != nil {
		s.logger.Warn("mirror score write failed", map[string]interface{}{
			"scannerId": scanner.ID, "error": err.Error(),
		})
	}
}

func (s *Server) indexScores(ctx context.Context, scanner *models.Scanner, accumulated []models.ScoreEntry) {
	if s.indexer == nil {
		return
	}
	docs := make(map[string]interface{}, len(accumulated))
	for _, entry := range accumulated {
		docID := fmt.Sprintf("%s:%s:%s", scanner.ID, entry.ColumnID, entry.EntityID)
		docs[docID] = map[string]interface{}{
			"scannerId": scanner.ID,
			"columnId":  entry.ColumnID,
			"entityId":  entry.EntityID,
			"domain":    string(scanner.Domain),
			"score":     entry.Score,
			"reasoning": entry.Reasoning,
			"response":  entry.Response,
		}
	}
	if err := s.indexer.BulkIndex(ctx, docs); err != nil {
		s.logger.Warn("score index update failed", map[string]interface{}{
			"scannerId": scanner.ID, "error": err.Error(),
		})
	}
}

func (s *Server) releaseLock(scannerID, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lock.Release(ctx, scannerID, runID); err != nil {
		s.logger.Warn("run lock release failed", map[string]interface{}{
			"scannerId": scannerID, "error": err.Error(),
		})
	}
}
