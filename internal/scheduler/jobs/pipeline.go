package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// Runner runs the pipeline once
type Runner interface {
	RunOnce(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error)
}

// PipelineJob runs the daily pipeline over the configured universe
// ⭐ SSOT: 파이프라인 스케줄은 이 Job에서만
type PipelineJob struct {
	runner       Runner
	universe     []string
	lookbackDays int
	schedule     string
	logger       *logger.Logger

	now func() time.Time

	mu   sync.RWMutex
	last *contracts.RunResult
}

// NewPipelineJob creates a new pipeline job
func NewPipelineJob(runner Runner, universe []string, lookbackDays int, schedule string, log *logger.Logger) *PipelineJob {
	return &PipelineJob{
		runner:       runner,
		universe:     append([]string(nil), universe...),
		lookbackDays: lookbackDays,
		schedule:     schedule,
		logger:       log.WithField("job", "pipeline"),
		now:          time.Now,
	}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return "pipeline"
}

// Schedule returns the cron schedule (daily at midnight by default)
func (j *PipelineJob) Schedule() string {
	return j.schedule
}

// Range returns the date range a run started now would cover
func (j *PipelineJob) Range() contracts.DateRange {
	return contracts.LookbackRange(j.now(), j.lookbackDays)
}

// Run executes the pipeline over the lookback window ending today
func (j *PipelineJob) Run(ctx context.Context) error {
	rng := j.Range()
	j.logger.WithFields(map[string]interface{}{
		"range":   rng.String(),
		"symbols": len(j.universe),
	}).Info("Starting scheduled pipeline run")

	result, err := j.runner.RunOnce(ctx, j.universe, rng)
	if result != nil {
		j.mu.Lock()
		j.last = result
		j.mu.Unlock()
	}
	return err
}

// LastResult returns the result of the most recent run, if any
func (j *PipelineJob) LastResult() (*contracts.RunResult, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last, j.last != nil
}
