package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-scanner/internal/anthropic"
	"tender-scanner/internal/common/logger"
	"tender-scanner/internal/models"
)

// scriptedProvider returns a canned output per entity, identified by a
// marker the engine passes in the user prompt.
type scriptedProvider struct {
	mu       sync.Mutex
	failFor  map[string]bool
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	started  chan struct{}
	block    chan struct{}
}

func (p *scriptedProvider) Generate(ctx context.Context, req anthropic.GenerateRequest) (string, error) {
	cur := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		max := atomic.LoadInt32(&p.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxSeen, max, cur) {
			break
		}
	}

	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for id, fail := range p.failFor {
		// Entity titles embed their id in these tests.
		if fail && strings.Contains(req.UserPrompt, id+"\n") {
			return "", fmt.Errorf("%w: scripted failure", anthropic.ErrCallFailed)
		}
	}
	return `{"score": 7.0, "reasoning": "ok"}`, nil
}

func makeEntities(n int) []models.Entity {
	out := make([]models.Entity, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t-%d", i)
		out = append(out, models.Entity{
			Domain: models.DomainTenders,
			Tender: &models.Tender{ID: id, Title: "Tender " + id},
		})
	}
	return out
}

func makeScanner(columns ...models.Column) *models.Scanner {
	return &models.Scanner{ID: "sc-1", UserID: "user-1", Domain: models.DomainTenders, Columns: columns}
}

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRun_TwoColumnsThreeEntitiesOneFailure(t *testing.T) {
	provider := &scriptedProvider{failFor: map[string]bool{"t-1": true}}

	colA := models.Column{ColumnID: "col-a", Name: "Fit", UseCase: models.UseCaseScore}
	colB := models.Column{ColumnID: "col-b", Name: "Risk", UseCase: models.UseCaseScore}
	scanner := makeScanner(colA, colB)
	entities := makeEntities(3)

	engine := NewEngine(NewScorer(provider, logger.NewNoOpLogger()), 5, logger.NewNoOpLogger())
	events := collect(engine.Run(context.Background(), scanner, scanner.Columns, entities, "BASE"))

	byType := map[string][]Event{}
	for _, ev := range events {
		byType[ev.Type] = append(byType[ev.Type], ev)
	}

	assert.Len(t, byType[EventColumnStart], 2)
	assert.Len(t, byType[EventColumnComplete], 2)
	assert.Len(t, byType[EventComplete], 1)

	// One entity fails in each column; the other two score.
	assert.Len(t, byType[EventProgress], 4)
	assert.Len(t, byType[EventError], 2)

	// Failures still count as settled, so each column reports all 3.
	for _, cc := range byType[EventColumnComplete] {
		assert.Equal(t, 3, cc.Scored)
	}

	// Per-column scored counter strictly increases across progress frames
	// even when a failure claims one of the slots.
	perColumn := map[string]int{}
	for _, ev := range byType[EventProgress] {
		assert.Greater(t, ev.Scored, perColumn[ev.ColumnID])
		perColumn[ev.ColumnID] = ev.Scored
	}

	// Stream order: the final frame is complete, column_start for col-b
	// comes after col-a's column_complete.
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
	var idxAComplete, idxBStart int
	for i, ev := range events {
		if ev.Type == EventColumnComplete && ev.ColumnID == "col-a" {
			idxAComplete = i
		}
		if ev.Type == EventColumnStart && ev.ColumnID == "col-b" {
			idxBStart = i
		}
	}
	assert.Greater(t, idxBStart, idxAComplete)
}

func TestRun_ScoredCounterMonotonic(t *testing.T) {
	provider := &scriptedProvider{}
	col := models.Column{ColumnID: "col-a", Name: "Fit", UseCase: models.UseCaseScore}
	scanner := makeScanner(col)
	entities := makeEntities(10)

	engine := NewEngine(NewScorer(provider, logger.NewNoOpLogger()), 5, logger.NewNoOpLogger())
	events := collect(engine.Run(context.Background(), scanner, scanner.Columns, entities, "BASE"))

	last := 0
	for _, ev := range events {
		if ev.Type != EventProgress {
			continue
		}
		assert.Equal(t, last+1, ev.Scored)
		assert.Equal(t, 10, ev.Total)
		last = ev.Scored
	}
	assert.Equal(t, 10, last)
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	provider := &scriptedProvider{delay: 10 * time.Millisecond}
	col := models.Column{ColumnID: "col-a", UseCase: models.UseCaseScore}
	scanner := makeScanner(col)
	entities := makeEntities(20)

	engine := NewEngine(NewScorer(provider, logger.NewNoOpLogger()), 5, logger.NewNoOpLogger())
	collect(engine.Run(context.Background(), scanner, scanner.Columns, entities, "BASE"))

	assert.LessOrEqual(t, atomic.LoadInt32(&provider.maxSeen), int32(5))
	assert.Greater(t, atomic.LoadInt32(&provider.maxSeen), int32(1))
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	provider := &scriptedProvider{
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	col := models.Column{ColumnID: "col-a", UseCase: models.UseCaseScore}
	scanner := makeScanner(col)
	entities := makeEntities(50)

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(NewScorer(provider, logger.NewNoOpLogger()), 2, logger.NewNoOpLogger())
	events := engine.Run(ctx, scanner, scanner.Columns, entities, "BASE")

	// Wait until at least one call is in flight, then cancel and unblock.
	<-provider.started
	cancel()
	close(provider.block)

	got := collect(events)

	// No terminal frames after cancellation, and nowhere near all 50
	// entities were dispatched.
	for _, ev := range got {
		assert.NotEqual(t, EventComplete, ev.Type)
		assert.NotEqual(t, EventColumnComplete, ev.Type)
	}
}

func TestEventMarshal_WireShapes(t *testing.T) {
	score := 8.5
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			"column_start",
			Event{Type: EventColumnStart, ColumnID: "c1", ColumnName: "Fit", Total: 3},
			`{"columnId":"c1","columnName":"Fit","total":3,"type":"column_start"}`,
		},
		{
			"progress with score",
			Event{Type: EventProgress, ColumnID: "c1", EntityID: "t-1", Score: &score, Reasoning: "r", Response: "resp", Scored: 1, Total: 3},
			`{"columnId":"c1","entityId":"t-1","reasoning":"r","response":"resp","score":8.5,"scored":1,"total":3,"type":"progress"}`,
		},
		{
			"progress with null score",
			Event{Type: EventProgress, ColumnID: "c1", EntityID: "t-1", Scored: 2, Total: 3},
			`{"columnId":"c1","entityId":"t-1","reasoning":"","response":"","score":null,"scored":2,"total":3,"type":"progress"}`,
		},
		{
			"column_complete",
			Event{Type: EventColumnComplete, ColumnID: "c1", Scored: 2},
			`{"columnId":"c1","scored":2,"type":"column_complete"}`,
		},
		{
			"complete",
			Event{Type: EventComplete},
			`{"type":"complete"}`,
		},
		{
			"error",
			Event{Type: EventError, ColumnID: "c1", EntityID: "t-1", Message: "boom"},
			`{"columnId":"c1","entityId":"t-1","message":"boom","type":"error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}
