package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

type runnerFunc func(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error)

func (f runnerFunc) RunOnce(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error) {
	return f(ctx, symbols, rng)
}

func TestPipelineJob_RunUsesLookbackWindow(t *testing.T) {
	var gotSymbols []string
	var gotRange contracts.DateRange

	runner := runnerFunc(func(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error) {
		gotSymbols, gotRange = symbols, rng
		return &contracts.RunResult{RunID: "r1", Range: rng}, nil
	})

	job := NewPipelineJob(runner, []string{"PETR4.SA", "VALE3.SA"}, 7, "0 0 0 * * *", logger.NewNop())
	job.now = func() time.Time { return time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC) }

	_, ok := job.LastResult()
	assert.False(t, ok)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"PETR4.SA", "VALE3.SA"}, gotSymbols)
	assert.Equal(t, "2024-03-08..2024-03-15", gotRange.String())
	assert.Equal(t, "pipeline", job.Name())
	assert.Equal(t, "0 0 0 * * *", job.Schedule())

	last, ok := job.LastResult()
	require.True(t, ok)
	assert.Equal(t, "r1", last.RunID)
}

func TestPipelineJob_KeepsFailedResult(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error) {
		err := errors.New("persist exhausted")
		return &contracts.RunResult{RunID: "r2", Err: err}, err
	})

	job := NewPipelineJob(runner, []string{"A"}, 7, "@daily", logger.NewNop())
	require.Error(t, job.Run(context.Background()))

	last, ok := job.LastResult()
	require.True(t, ok)
	assert.Equal(t, "failed", last.Status())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheckJob(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	job := NewHealthCheckJob(map[string]Pinger{"postgres": ok}, logger.NewNop())
	assert.NoError(t, job.Run(context.Background()))

	job = NewHealthCheckJob(map[string]Pinger{"postgres": ok, "redis": down}, logger.NewNop())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
