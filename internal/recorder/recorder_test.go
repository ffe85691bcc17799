package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

func openTest(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(context.Background(), filepath.Join(t.TempDir(), "runs.db"), "abc123", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sampleRun(id string, started time.Time, err error) *contracts.RunResult {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	fetch := contracts.NewStageReport(contracts.StageFetch, 3)
	fetch.Succeed("A")
	fetch.Succeed("B")
	fetch.Exclude("C", errors.New("404"))
	fetch.Attempts = 2
	fetch.Duration = 1500 * time.Millisecond

	return &contracts.RunResult{
		RunID:      id,
		Range:      contracts.NewDateRange(day.AddDate(0, 0, -6), day),
		Symbols:    []string{"A", "B", "C"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Stages:     []contracts.StageReport{fetch},
		Movers: contracts.Movers{
			Gainers: []contracts.MoverRecord{{Symbol: "A", Date: day, PctChange: 1.5}, {Symbol: "B", Date: day, PctChange: -2}},
			Losers:  []contracts.MoverRecord{{Symbol: "B", Date: day, PctChange: -2}, {Symbol: "A", Date: day, PctChange: 1.5}},
		},
		Err: err,
	}
}

func TestSQLiteRecorder_RecordAndReadBack(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordRun(ctx, sampleRun("run-1", start, nil)))

	runs, err := r.LatestRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, "2023-12-30", got.From)
	assert.Equal(t, "2024-01-05", got.To)
	assert.Equal(t, 3, got.Symbols)
	assert.Equal(t, "abc123", got.ConfigHash)
	assert.True(t, start.Equal(got.StartedAt))

	require.Len(t, got.Stages, 1)
	assert.Equal(t, contracts.StageFetch, got.Stages[0].Stage)
	assert.Equal(t, 2, got.Stages[0].Attempts)
	assert.Equal(t, contracts.Counts{Succeeded: 2, Excluded: 1}, got.Stages[0].Counts)
	assert.Equal(t, 1500*time.Millisecond, got.Stages[0].Duration)
	assert.Equal(t, "404", got.Stages[0].Excluded["C"])

	runID, movers, err := r.LatestMovers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	require.Len(t, movers.Gainers, 2)
	assert.Equal(t, "A", movers.Gainers[0].Symbol)
	assert.Equal(t, 1.5, movers.Gainers[0].PctChange)
	assert.Equal(t, "B", movers.Losers[0].Symbol)
}

func TestSQLiteRecorder_LatestMoversSkipsFailedRuns(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordRun(ctx, sampleRun("ok", start, nil)))
	require.NoError(t, r.RecordRun(ctx, sampleRun("bad", start.Add(time.Hour), errors.New("persist failed"))))

	runs, err := r.LatestRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "bad", runs[0].RunID)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "persist failed", runs[0].Error)

	runID, _, err := r.LatestMovers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", runID)

	limited, err := r.LatestRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteRecorder_RecordIsIdempotent(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), nil)

	require.NoError(t, r.RecordRun(ctx, run))
	require.NoError(t, r.RecordRun(ctx, run))

	runs, err := r.LatestRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Len(t, runs[0].Stages, 1)
}

func TestSQLiteRecorder_Empty(t *testing.T) {
	r := openTest(t)

	runs, err := r.LatestRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, movers, err := r.LatestMovers(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNotFound)
	assert.True(t, movers.IsEmpty())
}

func TestNoopRecorder(t *testing.T) {
	var s Store = NoopRecorder{}
	assert.NoError(t, s.RecordRun(context.Background(), &contracts.RunResult{}))

	_, _, err := s.LatestMovers(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}
