package recorder

import (
	"context"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
)

// RunRecord is one row of run history
type RunRecord struct {
	RunID      string        `json:"run_id"`
	Status     string        `json:"status"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Symbols    int           `json:"symbols"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Error      string        `json:"error,omitempty"`
	ConfigHash string        `json:"config_hash,omitempty"`
	Stages     []StageRecord `json:"stages"`
}

// StageRecord is the stored summary of one stage
type StageRecord struct {
	Stage    contracts.Stage   `json:"stage"`
	Attempts int               `json:"attempts"`
	Input    int               `json:"input"`
	Counts   contracts.Counts  `json:"counts"`
	Duration time.Duration     `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Excluded map[string]string `json:"excluded,omitempty"`
}

// Reader reads stored run history
type Reader interface {
	LatestRuns(ctx context.Context, n int) ([]RunRecord, error)
	LatestMovers(ctx context.Context) (string, contracts.Movers, error)
}

// Store is a recorder that can also be read back
type Store interface {
	contracts.RunRecorder
	Reader
	Close() error
}

// toRecord flattens a run result
func toRecord(result *contracts.RunResult, configHash string) RunRecord {
	rec := RunRecord{
		RunID:      result.RunID,
		Status:     result.Status(),
		From:       result.Range.From.Format(contracts.DateLayout),
		To:         result.Range.To.Format(contracts.DateLayout),
		Symbols:    len(result.Symbols),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		ConfigHash: configHash,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	for _, rep := range result.Stages {
		rec.Stages = append(rec.Stages, StageRecord{
			Stage:    rep.Stage,
			Attempts: rep.Attempts,
			Input:    rep.Input,
			Counts:   rep.Counts(),
			Duration: rep.Duration,
			Error:    rep.Error,
			Excluded: rep.Excluded,
		})
	}
	return rec
}
