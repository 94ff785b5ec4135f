// internal/scoring/engine.go
package scoring

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/models"
)

// Event types emitted over a scoring run, in stream order.
const (
	EventColumnStart    = "column_start"
	EventProgress       = "progress"
	EventError          = "error"
	EventColumnComplete = "column_complete"
	EventComplete       = "complete"
)

// Event is one frame of a scoring run stream.
type Event struct {
	Type       string
	ColumnID   string
	ColumnName string
	EntityID   string
	Score      *float64
	Reasoning  string
	Response   string
	Scored     int
	Total      int
	Message    string
}

// MarshalJSON renders only the fields that belong to the event's type, so
// every frame on the wire has exactly the shape consumers expect.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": e.Type}
	switch e.Type {
	case EventColumnStart:
		m["columnId"] = e.ColumnID
		m["columnName"] = e.ColumnName
		m["total"] = e.Total
	case EventProgress:
		m["columnId"] = e.ColumnID
		m["entityId"] = e.EntityID
		m["score"] = e.Score
		m["reasoning"] = e.Reasoning
		m["response"] = e.Response
		m["scored"] = e.Scored
		m["total"] = e.Total
	case EventError:
		if e.ColumnID != "" {
			m["columnId"] = e.ColumnID
		}
		if e.EntityID != "" {
			m["entityId"] = e.EntityID
		}
		if e.Message != "" {
			m["message"] = e.Message
		}
	case EventColumnComplete:
		m["columnId"] = e.ColumnID
		m["scored"] = e.Scored
	}
	return json.Marshal(m)
}

// Engine drives a scoring run: columns strictly in sequence, entities within
// a column fanned out across a bounded worker pool.
type Engine struct {
	scorer      *Scorer
	concurrency int
	logger      logger.Logger
}

func NewEngine(scorer *Scorer, concurrency int, log logger.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{scorer: scorer, concurrency: concurrency, logger: log}
}

// Run streams events for the given columns over the given entities. The
// channel closes when the run finishes or the context is cancelled. A
// per-entity failure emits an error event and the run continues; only
// cancellation stops the run early. Results already emitted as progress
// remain valid after cancellation; in-flight calls settle silently.
func (e *Engine) Run(ctx context.Context, scanner *models.Scanner, columns []models.Column, entities []models.Entity, basePrompt string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		total := len(entities)
		for _, column := range columns {
			if ctx.Err() != nil {
				return
			}

			e.emit(ctx, events, Event{
				Type:       EventColumnStart,
				ColumnID:   column.ColumnID,
				ColumnName: column.Name,
				Total:      total,
			})

			var mu sync.Mutex
			scored := 0

			g := new(errgroup.Group)
			g.SetLimit(e.concurrency)

			for _, entity := range entities {
				if ctx.Err() != nil {
					break
				}
				entity := entity
				g.Go(func() error {
					if ctx.Err() != nil {
						return nil
					}
					result := e.scorer.ScoreOne(ctx, basePrompt, column, entity, scanner.SearchQuery)
					if ctx.Err() != nil {
						// Cancelled while in flight; discard the result.
						return nil
					}
					// The scored counter tracks settled evaluations, failures
					// included, so column_complete always reports how many
					// entities the column got through.
					mu.Lock()
					scored++
					if result.Err != nil {
						e.emit(ctx, events, Event{
							Type:     EventError,
							ColumnID: column.ColumnID,
							EntityID: result.EntityID,
							Message:  result.Err.Error(),
						})
					} else {
						e.emit(ctx, events, Event{
							Type:      EventProgress,
							ColumnID:  column.ColumnID,
							EntityID:  result.EntityID,
							Score:     result.Score,
							Reasoning: result.Reasoning,
							Response:  result.Response,
							Scored:    scored,
							Total:     total,
						})
					}
					mu.Unlock()
					return nil
				})
			}

			g.Wait()

			if ctx.Err() != nil {
				return
			}
			e.emit(ctx, events, Event{
				Type:     EventColumnComplete,
				ColumnID: column.ColumnID,
				Scored:   scored,
			})
		}

		e.emit(ctx, events, Event{Type: EventComplete})
	}()

	return events
}

func (e *Engine) emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
