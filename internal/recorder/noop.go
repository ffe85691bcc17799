package recorder

import (
	"context"

	"github.com/wonny/tickerflow/internal/contracts"
)

// NoopRecorder discards run history
type NoopRecorder struct{}

func (NoopRecorder) RecordRun(context.Context, *contracts.RunResult) error { return nil }

func (NoopRecorder) LatestRuns(context.Context, int) ([]RunRecord, error) { return []RunRecord{}, nil }

func (NoopRecorder) LatestMovers(context.Context) (string, contracts.Movers, error) {
	return "", contracts.EmptyMovers(), contracts.ErrNotFound
}

func (NoopRecorder) Close() error { return nil }
