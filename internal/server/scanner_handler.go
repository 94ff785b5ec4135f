// internal/server/scanner_handler.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"tender-scanner/internal/common/auth"
	stderrors "tender-scanner/internal/common/errors"
	"tender-scanner/internal/models"
	"tender-scanner/internal/store"
)

func (s *Server) handleListScanners(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	scanners, err := s.scanners.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("scanners", err))
		return
	}
	if scanners == nil {
		scanners = []models.Scanner{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"scanners": scanners})
}

type createScannerRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Domain      models.DomainType `json:"domain"`
	SearchQuery string            `json:"searchQuery"`
	Columns     []columnRequest   `json:"columns"`
}

type columnRequest struct {
	Name    string         `json:"name"`
	Prompt  string         `json:"prompt"`
	Model   string         `json:"model"`
	UseCase models.UseCase `json:"useCase"`
}

func (cr columnRequest) validate() error {
	if cr.Name == "" || cr.Prompt == "" {
		return errors.New("column name and prompt are required")
	}
	if cr.UseCase != "" && !models.ValidUseCases[cr.UseCase] {
		return errors.New("unknown use case: " + string(cr.UseCase))
	}
	return nil
}

func (cr columnRequest) toModel(position int) models.Column {
	useCase := cr.UseCase
	if useCase == "" {
		useCase = models.UseCaseScore
	}
	return models.Column{
		ColumnID: uuid.NewString(),
		Name:     cr.Name,
		Prompt:   cr.Prompt,
		Model:    cr.Model,
		UseCase:  useCase,
		Position: position,
	}
}

func (s *Server) handleCreateScanner(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req createScannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		s.badRequest(w, "name is required")
		return
	}
	if !models.ValidDomainTypes[req.Domain] {
		s.badRequest(w, "unknown domain: "+string(req.Domain))
		return
	}
	for _, col := range req.Columns {
		if err := col.validate(); err != nil {
			s.badRequest(w, err.Error())
			return
		}
	}

	scanner := &models.Scanner{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
		SearchQuery: req.SearchQuery,
		CreatedAt:   time.Now().UTC(),
	}
	for i, col := range req.Columns {
		scanner.Columns = append(scanner.Columns, col.toModel(i))
	}

	if err := s.scanners.Create(r.Context(), scanner); err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("create scanner", err))
		return
	}
	s.writeJSON(w, http.StatusCreated, scanner)
}

func (s *Server) handleGetScanner(w http.ResponseWriter, r *http.Request) {
	scanner, ok := s.loadScanner(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, scanner)
}

func (s *Server) handleDeleteScanner(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	scannerID := r.PathValue("id")
	if _, err := uuid.Parse(scannerID); err != nil {
		s.writeError(w, stderrors.NewInvalidScannerIDError(scannerID))
		return
	}

	if err := s.scanners.Delete(r.Context(), scannerID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, stderrors.NewScannerNotFoundError(scannerID))
			return
		}
		s.writeError(w, stderrors.NewQueryExecutionFailedError("delete scanner", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	scanner, ok := s.loadScanner(w, r)
	if !ok {
		return
	}

	var req columnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	column := req.toModel(len(scanner.Columns))
	if err := s.scanners.AddColumn(r.Context(), scanner.ID, column); err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("add column", err))
		return
	}
	s.writeJSON(w, http.StatusCreated, column)
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	scanner, ok := s.loadScanner(w, r)
	if !ok {
		return
	}

	columnID := r.PathValue("columnId")
	column, found := scanner.ColumnByID(columnID)
	if !found {
		s.writeError(w, stderrors.NewColumnNotFoundError(columnID))
		return
	}

	// Partial update: absent fields keep their current value. The column id
	// and use case are immutable.
	var req struct {
		Name   *string `json:"name"`
		Prompt *string `json:"prompt"`
		Model  *string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}

	updated := *column
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Prompt != nil {
		updated.Prompt = *req.Prompt
	}
	if req.Model != nil {
		updated.Model = *req.Model
	}
	if updated.Name == "" || updated.Prompt == "" {
		s.badRequest(w, "column name and prompt are required")
		return
	}

	if err := s.scanners.UpdateColumn(r.Context(), scanner.ID, updated); err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("update column", err))
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	scanner, ok := s.loadScanner(w, r)
	if !ok {
		return
	}

	columnID := r.PathValue("columnId")
	if _, found := scanner.ColumnByID(columnID); !found {
		s.writeError(w, stderrors.NewColumnNotFoundError(columnID))
		return
	}

	if err := s.scanners.DeleteColumn(r.Context(), scanner.ID, columnID); err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("delete column", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	scanner, ok := s.loadScanner(w, r)
	if !ok {
		return
	}

	entries, err := s.scores.ListByScanner(r.Context(), scanner.ID)
	if err != nil {
		s.writeError(w, stderrors.NewQueryExecutionFailedError("scores", err))
		return
	}
	if entries == nil {
		entries = []models.ScoreEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scannerId": scanner.ID,
		"entries":   entries,
	})
}

// loadScanner validates the path id and loads the scanner for the
// authenticated user, writing the error response itself on failure.
func (s *Server) loadScanner(w http.ResponseWriter, r *http.Request) (*models.Scanner, bool) {
	userID, _ := auth.UserID(r.Context())

	scannerID := r.PathValue("id")
	if _, err := uuid.Parse(scannerID); err != nil {
		s.writeError(w, stderrors.NewInvalidScannerIDError(scannerID))
		return nil, false
	}

	scanner, err := s.scanners.GetForUser(r.Context(), scannerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, stderrors.NewScannerNotFoundError(scannerID))
			return nil, false
		}
		s.writeError(w, stderrors.NewQueryExecutionFailedError("scanner", err))
		return nil, false
	}
	return scanner, true
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{
		Error: errorDetail{Code: "VALIDATION_FAILED", Message: msg},
	})
}
