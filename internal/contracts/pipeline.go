package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 리포트, run history row 에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   fetch → quality → indicators → persist → report → rank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Stage represents a pipeline stage
type Stage string

const (
	// StageFetch: provider 에서 종목별 일봉 수집
	StageFetch Stage = "fetch"

	// StageQuality: 빈 시리즈 / 결측값 검증
	StageQuality Stage = "quality"

	// StageIndicators: SMA_50, Volatility 계산
	StageIndicators Stage = "indicators"

	// StagePersist: (symbol, date) 단위 파티션 저장
	StagePersist Stage = "persist"

	// StageEmit: consolidated report 출력
	StageEmit Stage = "report"

	// StageRank: top movers 산출
	StageRank Stage = "rank"
)

// AllStages returns stages in execution order
func AllStages() []Stage {
	return []Stage{StageFetch, StageQuality, StageIndicators, StagePersist, StageEmit, StageRank}
}

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// IsValid checks if stage is a known pipeline stage
func (s Stage) IsValid() bool {
	for _, st := range AllStages() {
		if s == st {
			return true
		}
	}
	return false
}

// StageFunc is one pipeline step. It receives the batch by hand-off and returns
// the batch for the next stage. A non-nil error is batch-level and retryable.
type StageFunc func(ctx context.Context, in Batch) (Batch, StageReport, error)

// RetryPolicy is applied by the orchestrator to a whole stage
type RetryPolicy struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff"`
}

// Attempts returns the total number of tries the policy allows
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Counts is the per-stage summary triple
type Counts struct {
	Succeeded int `json:"succeeded"`
	Excluded  int `json:"excluded"`
	Failed    int `json:"failed"`
}

// StageReport is what a stage tells the orchestrator about one attempt
type StageReport struct {
	Stage     Stage             `json:"stage"`
	Input     int               `json:"input"`
	Succeeded []string          `json:"succeeded"`
	Excluded  map[string]string `json:"excluded,omitempty"` // dropped from the batch
	Failed    map[string]string `json:"failed,omitempty"`   // kept but stage work failed
	Warnings  map[string]string `json:"warnings,omitempty"`
	Attempts  int               `json:"attempts"`
	Duration  time.Duration     `json:"duration"`
	Error     string            `json:"error,omitempty"`
}

// NewStageReport creates an empty report for a stage
func NewStageReport(stage Stage, input int) StageReport {
	return StageReport{
		Stage:     stage,
		Input:     input,
		Succeeded: []string{},
		Excluded:  map[string]string{},
		Failed:    map[string]string{},
		Warnings:  map[string]string{},
	}
}

// Succeed marks a symbol as processed
func (r *StageReport) Succeed(symbol string) {
	r.Succeeded = append(r.Succeeded, symbol)
}

// Exclude marks a symbol as dropped from the batch
func (r *StageReport) Exclude(symbol string, err error) {
	if r.Excluded == nil {
		r.Excluded = map[string]string{}
	}
	r.Excluded[symbol] = err.Error()
}

// Fail marks a symbol as kept but failed in this stage
func (r *StageReport) Fail(symbol string, err error) {
	if r.Failed == nil {
		r.Failed = map[string]string{}
	}
	r.Failed[symbol] = err.Error()
}

// Warn records a non-fatal observation for a symbol
func (r *StageReport) Warn(symbol, message string) {
	if r.Warnings == nil {
		r.Warnings = map[string]string{}
	}
	r.Warnings[symbol] = message
}

// Counts returns the succeeded/excluded/failed triple
func (r StageReport) Counts() Counts {
	return Counts{
		Succeeded: len(r.Succeeded),
		Excluded:  len(r.Excluded),
		Failed:    len(r.Failed),
	}
}

// RunResult is returned by a single pipeline run
type RunResult struct {
	RunID      string              `json:"run_id"`
	Range      DateRange           `json:"range"`
	Symbols    []string            `json:"symbols"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Stages     []StageReport       `json:"stages"`
	Movers     Movers              `json:"movers"`
	Partitions map[string][]string `json:"partitions"` // symbol → written paths
	Batch      Batch               `json:"-"`
	Err        error               `json:"-"`
}

// Status returns "success" or "failed"
func (r *RunResult) Status() string {
	if r.Err != nil {
		return "failed"
	}
	return "success"
}

// Duration returns the wall time of the run
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Stage returns the report for a stage, if it ran
func (r *RunResult) Stage(s Stage) (StageReport, bool) {
	for _, rep := range r.Stages {
		if rep.Stage == s {
			return rep, true
		}
	}
	return StageReport{}, false
}

// ExcludedSymbols returns every symbol excluded by any stage, sorted
func (r *RunResult) ExcludedSymbols() []string {
	seen := map[string]struct{}{}
	for _, rep := range r.Stages {
		for sym := range rep.Excluded {
			seen[sym] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Summary renders one line per stage with its counts
func (r *RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s [%s] %s\n", r.RunID, r.Range, r.Status())
	for _, rep := range r.Stages {
		c := rep.Counts()
		fmt.Fprintf(&b, "  %-10s succeeded=%d excluded=%d failed=%d attempts=%d",
			rep.Stage, c.Succeeded, c.Excluded, c.Failed, rep.Attempts)
		if rep.Error != "" {
			fmt.Fprintf(&b, " error=%q", rep.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
