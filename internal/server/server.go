// internal/server/server.go

// Package server exposes the scanner and scoring HTTP surface. Scoring runs
// stream server-sent events; everything else is plain JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tender-scanner/internal/common/auth"
	stderrors "tender-scanner/internal/common/errors"
	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/common/observability"
	"tender-scanner/internal/models"
	"tender-scanner/internal/scoring"
)

// Storage surfaces the handlers depend on. Satisfied by the concrete
// postgres stores; tests substitute fakes.
type ScannerStore interface {
	GetForUser(ctx context.Context, scannerID, userID string) (*models.Scanner, error)
	ListByUser(ctx context.Context, userID string) ([]models.Scanner, error)
	Create(ctx context.Context, scanner *models.Scanner) error
	Delete(ctx context.Context, scannerID, userID string) error
	AddColumn(ctx context.Context, scannerID string, column models.Column) error
	UpdateColumn(ctx context.Context, scannerID string, column models.Column) error
	DeleteColumn(ctx context.Context, scannerID, columnID string) error
	TouchLastScored(ctx context.Context, scannerID string, t time.Time) error
}

type ScoreStore interface {
	DeleteAll(ctx context.Context, scannerID string) error
	DeleteForColumn(ctx context.Context, scannerID, columnID string) error
	UpsertBatch(ctx context.Context, scannerID string, entries []models.ScoreEntry) error
	ListByScanner(ctx context.Context, scannerID string) ([]models.ScoreEntry, error)
}

type EntityStore interface {
	ListForDomain(ctx context.Context, domain models.DomainType) ([]models.Entity, error)
	WriteMirrorScores(ctx context.Context, domain models.DomainType, scores []models.MirrorScore) error
}

type ProfileStore interface {
	GetByUser(ctx context.Context, userID string) (*models.CompanyProfile, error)
}

// RunLock serializes runs per scanner.
type RunLock interface {
	Acquire(ctx context.Context, scannerID, runID string) error
	Release(ctx context.Context, scannerID, runID string) error
}

// Engine drives a scoring run and streams its events.
type Engine interface {
	Run(ctx context.Context, scanner *models.Scanner, columns []models.Column, entities []models.Entity, basePrompt string) <-chan scoring.Event
}

// Indexer mirrors persisted score entries into the search index.
type Indexer interface {
	BulkIndex(ctx context.Context, docs map[string]interface{}) error
}

// Notifier fans persisted scores out to alert rules.
type Notifier interface {
	Evaluate(ctx context.Context, scanner *models.Scanner, columnID string, entries []models.ScoreEntry, entities map[string]models.Entity)
}

type Server struct {
	scanners ScannerStore
	scores   ScoreStore
	entities EntityStore
	profiles ProfileStore
	engine   Engine
	lock     RunLock
	indexer  Indexer
	notifier Notifier
	verifier auth.Verifier
	obs      *observability.Observability
	logger   logger.Logger

	mux http.Handler
}

type Options struct {
	Scanners ScannerStore
	Scores   ScoreStore
	Entities EntityStore
	Profiles ProfileStore
	Engine   Engine
	Lock     RunLock
	Indexer  Indexer
	Notifier Notifier
	Verifier auth.Verifier
	Obs      *observability.Observability
	Logger   logger.Logger
}

func New(opts Options) *Server {
	s := &Server{
		scanners: opts.Scanners,
		scores:   opts.Scores,
		entities: opts.Entities,
		profiles: opts.Profiles,
		engine:   opts.Engine,
		lock:     opts.Lock,
		indexer:  opts.Indexer,
		notifier: opts.Notifier,
		verifier: opts.Verifier,
		obs:      opts.Obs,
		logger:   opts.Logger,
	}

	mux := http.NewServeMux()

	api := http.NewServeMux()
	api.HandleFunc("GET /api/scanners", s.handleListScanners)
	api.HandleFunc("POST /api/scanners", s.handleCreateScanner)
	api.HandleFunc("GET /api/scanners/{id}", s.handleGetScanner)
	api.HandleFunc("DELETE /api/scanners/{id}", s.handleDeleteScanner)
	api.HandleFunc("POST /api/scanners/{id}/columns", s.handleAddColumn)
	api.HandleFunc("PATCH /api/scanners/{id}/columns/{columnId}", s.handleUpdateColumn)
	api.HandleFunc("DELETE /api/scanners/{id}/columns/{columnId}", s.handleDeleteColumn)
	api.HandleFunc("GET /api/scanners/{id}/scores", s.handleListScores)
	api.HandleFunc("POST /api/scanners/{id}/score", s.handleScoreAll)
	api.HandleFunc("POST /api/scanners/{id}/score-column", s.handleScoreColumn)

	mux.Handle("/api/", s.withAuth(api))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.mux = s.withLogging(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var std *stderrors.StandardError
	if errors.As(err, &std) {
		s.writeJSON(w, stderrors.HTTPStatus(std.Code), errorBody{
			Error: errorDetail{Code: string(std.Code), Message: std.Message},
		})
		return
	}
	s.logger.Error("unhandled error", map[string]interface{}{"error": err.Error()})
	s.writeJSON(w, http.StatusInternalServerError, errorBody{
		Error: errorDetail{Code: "INTERNAL_ERROR", Message: "internal server error"},
	})
}
