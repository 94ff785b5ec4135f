package scanclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-scanner/internal/scoring"
)

func score(v float64) *float64 { return &v }

func TestSetAndGetCell(t *testing.T) {
	s := NewStore()
	s.SetScore("col-a", "t-1", score(8.5), "good fit", "raw")

	cell, ok := s.Cell("col-a", "t-1")
	require.True(t, ok)
	assert.Equal(t, 8.5, *cell.Score)
	assert.Equal(t, "good fit", cell.Reasoning)

	_, ok = s.Cell("col-a", "t-2")
	assert.False(t, ok)
}

func TestSetScoreOverwrites(t *testing.T) {
	s := NewStore()
	s.SetScore("col-a", "t-1", score(3.0), "weak", "")
	s.SetScore("col-a", "t-1", score(9.0), "rescored", "")

	cell, _ := s.Cell("col-a", "t-1")
	assert.Equal(t, 9.0, *cell.Score)
	assert.Equal(t, "rescored", cell.Reasoning)
}

func TestLoadScores_Merge(t *testing.T) {
	s := NewStore()
	s.SetScore("col-a", "t-1", score(2.0), "stale", "")

	s.LoadScores([]SnapshotEntry{
		{ColumnID: "col-a", EntityID: "t-1", Score: score(8.0), Reasoning: "fresh"},
		{ColumnID: "col-b", EntityID: "t-2", Score: nil, Response: "text answer"},
	})

	cell, _ := s.Cell("col-a", "t-1")
	assert.Equal(t, 8.0, *cell.Score)

	cell, ok := s.Cell("col-b", "t-2")
	require.True(t, ok)
	assert.Nil(t, cell.Score)
	assert.Equal(t, "text answer", cell.Response)
}

func TestLoadScores_PreservesInFlightCells(t *testing.T) {
	s := NewStore()
	s.MarkQueued("col-a", []string{"t-1", "t-2"})
	s.SetScore("col-b", "t-9", score(5.0), "settled", "")

	// Snapshot knows nothing about the queued cells or the settled one.
	s.LoadScores([]SnapshotEntry{
		{ColumnID: "col-a", EntityID: "t-3", Score: score(7.0)},
	})

	// Queued cells survive; the settled cell absent from the snapshot is
	// dropped as stale.
	cell, ok := s.Cell("col-a", "t-1")
	require.True(t, ok)
	assert.True(t, cell.IsQueued)

	_, ok = s.Cell("col-b", "t-9")
	assert.False(t, ok)

	cell, _ = s.Cell("col-a", "t-3")
	assert.Equal(t, 7.0, *cell.Score)
}

func TestLoadScores_PreservesLoadingCell(t *testing.T) {
	s := NewStore()
	s.MarkLoading("col-a", "t-1")

	// A refresh snapshot that does not include the in-flight cell must not
	// wipe its loading flag.
	s.LoadScores([]SnapshotEntry{
		{ColumnID: "col-a", EntityID: "t-2", Score: score(6.0)},
	})

	cell, ok := s.Cell("col-a", "t-1")
	require.True(t, ok)
	assert.True(t, cell.IsLoading)

	// Once the cell settles, its result replaces the flag and a later
	// snapshot includes it normally.
	s.SetScore("col-a", "t-1", score(7.0), "done", "")
	cell, _ = s.Cell("col-a", "t-1")
	assert.False(t, cell.IsLoading)
	assert.Equal(t, 7.0, *cell.Score)
}

func TestMarkLoadingPromotesQueuedCell(t *testing.T) {
	s := NewStore()
	s.MarkQueued("col-a", []string{"t-1", "t-2"})

	s.MarkLoading("col-a", "t-1")

	cell, _ := s.Cell("col-a", "t-1")
	assert.True(t, cell.IsLoading)
	assert.False(t, cell.IsQueued)

	cell, _ = s.Cell("col-a", "t-2")
	assert.True(t, cell.IsQueued)
}

func TestClearColumn(t *testing.T) {
	s := NewStore()
	s.SetScore("col-a", "t-1", score(8.0), "", "")
	s.SetScore("col-a", "t-2", score(6.0), "", "")
	s.SetScore("col-b", "t-1", score(4.0), "", "")

	s.ClearColumn("col-a")

	_, ok := s.Cell("col-a", "t-1")
	assert.False(t, ok)
	_, ok = s.Cell("col-b", "t-1")
	assert.True(t, ok)
}

func TestClearScores(t *testing.T) {
	s := NewStore()
	s.SetScore("col-a", "t-1", score(8.0), "", "")
	s.SetScore("col-b", "t-1", score(4.0), "", "")
	s.Apply(scoring.Event{Type: scoring.EventColumnStart, ColumnID: "col-a", Total: 2})

	s.ClearScores()

	_, ok := s.Cell("col-a", "t-1")
	assert.False(t, ok)
	_, ok = s.Cell("col-b", "t-1")
	assert.False(t, ok)
	assert.Equal(t, Progress{}, s.ColumnProgress("col-a"))
}

func TestApply_RunLifecycle(t *testing.T) {
	s := NewStore()

	s.Apply(scoring.Event{Type: scoring.EventColumnStart, ColumnID: "col-a", ColumnName: "Fit", Total: 3})
	s.MarkQueued("col-a", []string{"t-1", "t-2", "t-3"})
	p := s.ColumnProgress("col-a")
	assert.True(t, p.Running)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 0, p.Scored)

	cell, _ := s.Cell("col-a", "t-2")
	assert.True(t, cell.IsQueued)

	s.Apply(scoring.Event{Type: scoring.EventProgress, ColumnID: "col-a", EntityID: "t-1", Score: score(8.0), Reasoning: "r", Scored: 1, Total: 3})
	s.Apply(scoring.Event{Type: scoring.EventError, ColumnID: "col-a", EntityID: "t-2", Message: "provider call failed"})
	s.Apply(scoring.Event{Type: scoring.EventProgress, ColumnID: "col-a", EntityID: "t-3", Score: score(5.5), Reasoning: "r", Scored: 3, Total: 3})
	s.Apply(scoring.Event{Type: scoring.EventColumnComplete, ColumnID: "col-a", Scored: 3})

	p = s.ColumnProgress("col-a")
	assert.False(t, p.Running)
	assert.Equal(t, 3, p.Scored)

	cell, _ = s.Cell("col-a", "t-1")
	assert.Equal(t, 8.0, *cell.Score)
	assert.False(t, cell.IsQueued)

	cell, _ = s.Cell("col-a", "t-2")
	assert.Equal(t, "provider call failed", cell.Error)
	assert.Nil(t, cell.Score)
}

func TestApply_ProgressCounterNeverRegresses(t *testing.T) {
	s := NewStore()
	s.Apply(scoring.Event{Type: scoring.EventColumnStart, ColumnID: "col-a", Total: 5})
	s.Apply(scoring.Event{Type: scoring.EventProgress, ColumnID: "col-a", EntityID: "t-2", Scored: 2, Total: 5})
	// A duplicate or reordered frame with a lower counter is ignored.
	s.Apply(scoring.Event{Type: scoring.EventProgress, ColumnID: "col-a", EntityID: "t-1", Scored: 1, Total: 5})

	assert.Equal(t, 2, s.ColumnProgress("col-a").Scored)
}
