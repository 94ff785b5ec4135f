// pkg/scanclient/store.go

// Package scanclient aggregates scoring run events into a queryable view of
// per-cell state. Consumers feed it stream events as they arrive and bulk
// snapshots loaded from the API, and read cell values and per-column
// progress off it.
package scanclient

import (
	"sync"

	"tender-scanner/internal/scoring"
)

// CellState is one (column, entity) cell of the scoring grid.
type CellState struct {
	Score     *float64
	Reasoning string
	Response  string
	IsLoading bool
	IsQueued  bool
	Error     string
}

// Progress summarizes one column's run.
type Progress struct {
	Scored  int
	Total   int
	Running bool
}

type cellKey struct {
	columnID string
	entityID string
}

// Store holds scoring state for one scanner. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	cells    map[cellKey]CellState
	progress map[string]Progress
}

func NewStore() *Store {
	return &Store{
		cells:    map[cellKey]CellState{},
		progress: map[string]Progress{},
	}
}

// SetScore writes one cell, clearing any transient loading state.
func (s *Store) SetScore(columnID, entityID string, score *float64, reasoning, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[cellKey{columnID, entityID}] = CellState{
		Score:     score,
		Reasoning: reasoning,
		Response:  response,
	}
}

// MarkQueued flags every given entity as pending for a column. Stream events
// carry no entity list, so the caller invokes this alongside the column_start
// event with the entities it is scoring. The grid shows spinners before
// results arrive.
func (s *Store) MarkQueued(columnID string, entityIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range entityIDs {
		s.cells[cellKey{columnID, id}] = CellState{IsQueued: true}
	}
}

// MarkLoading flags one cell as having an evaluation in flight, promoting it
// from queued. Loading cells survive LoadScores the same way queued ones do.
func (s *Store) MarkLoading(columnID, entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[cellKey{columnID, entityID}] = CellState{IsLoading: true}
}

// Cell returns one cell's state.
func (s *Store) Cell(columnID, entityID string) (CellState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.cells[cellKey{columnID, entityID}]
	return cell, ok
}

// LoadScores merges a persisted snapshot into the store. Cells that are
// mid-run (loading or queued) and absent from the snapshot are kept, so a
// background refresh never wipes live progress off the grid.
func (s *Store) LoadScores(entries []SnapshotEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[cellKey]bool, len(entries))
	for _, e := range entries {
		key := cellKey{e.ColumnID, e.EntityID}
		incoming[key] = true
		s.cells[key] = CellState{
			Score:     e.Score,
			Reasoning: e.Reasoning,
			Response:  e.Response,
		}
	}

	for key, cell := range s.cells {
		if incoming[key] {
			continue
		}
		if cell.IsLoading || cell.IsQueued {
			continue
		}
		delete(s.cells, key)
	}
}

// SnapshotEntry is one persisted score entry as returned by the API.
type SnapshotEntry struct {
	ColumnID  string   `json:"columnId"`
	EntityID  string   `json:"entityId"`
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
	Response  string   `json:"response"`
}

// ClearScores drops every cell and resets all progress counters.
func (s *Store) ClearScores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = map[cellKey]CellState{}
	s.progress = map[string]Progress{}
}

// ClearColumn drops every cell for one column, for a single-column rescore.
func (s *Store) ClearColumn(columnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cells {
		if key.columnID == columnID {
			delete(s.cells, key)
		}
	}
	delete(s.progress, columnID)
}

// ColumnProgress returns a column's run progress.
func (s *Store) ColumnProgress(columnID string) Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress[columnID]
}

// Apply folds one stream event into the store. Events carry no entity list,
// so a caller that wants queued spinners pairs the column_start event with a
// MarkQueued call for the column's entities.
func (s *Store) Apply(ev scoring.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case scoring.EventColumnStart:
		s.progress[ev.ColumnID] = Progress{Total: ev.Total, Running: true}

	case scoring.EventProgress:
		s.cells[cellKey{ev.ColumnID, ev.EntityID}] = CellState{
			Score:     ev.Score,
			Reasoning: ev.Reasoning,
			Response:  ev.Response,
		}
		p := s.progress[ev.ColumnID]
		if ev.Scored > p.Scored {
			p.Scored = ev.Scored
		}
		p.Total = ev.Total
		p.Running = true
		s.progress[ev.ColumnID] = p

	case scoring.EventError:
		if ev.ColumnID != "" && ev.EntityID != "" {
			s.cells[cellKey{ev.ColumnID, ev.EntityID}] = CellState{Error: ev.Message}
		}

	case scoring.EventColumnComplete:
		p := s.progress[ev.ColumnID]
		p.Scored = ev.Scored
		p.Running = false
		s.progress[ev.ColumnID] = p
	}
}
