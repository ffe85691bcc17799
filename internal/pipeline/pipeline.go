package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/tickerflow/internal/collector"
	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/flowconfig"
	"github.com/wonny/tickerflow/internal/indicators"
	"github.com/wonny/tickerflow/internal/quality"
	"github.com/wonny/tickerflow/internal/ranking"
	"github.com/wonny/tickerflow/pkg/logger"
)

// Deps are the collaborators of a pipeline
type Deps struct {
	Provider  contracts.Provider
	Store     contracts.PartitionStore
	Emitter   contracts.ReportEmitter
	Recorder  contracts.RunRecorder // optional
	Observers []contracts.Observer  // optional
	Logger    *logger.Logger
}

// Options tune one pipeline instance
type Options struct {
	TopN           int
	QualityMode    quality.Mode
	Workers        int
	Policies       map[contracts.Stage]contracts.RetryPolicy
	PartitionRetry contracts.RetryPolicy
}

// OptionsFromConfig maps the YAML pipeline config onto Options
func OptionsFromConfig(cfg *flowconfig.Config) Options {
	return Options{
		TopN:           cfg.TopN,
		QualityMode:    quality.Mode(cfg.QualityMode),
		Workers:        cfg.Workers,
		Policies:       cfg.Stages.Policies(),
		PartitionRetry: cfg.PartitionRetry,
	}
}

// Pipeline runs fetch → quality → indicators → persist → report → rank
// ⭐ SSOT: 단계 순서와 재시도 정책 적용은 여기서만
type Pipeline struct {
	deps      Deps
	opts      Options
	collector *collector.Collector
	gate      *quality.Gate
	engine    *indicators.Engine
	ranker    *ranking.Ranker
	logger    *logger.Logger

	// sleep waits out a retry backoff; replaced in tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New validates deps and options and wires the stage components
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Provider == nil {
		return nil, &contracts.ConfigurationError{Field: "provider", Message: "required"}
	}
	if deps.Store == nil {
		return nil, &contracts.ConfigurationError{Field: "store", Message: "required"}
	}
	if deps.Emitter == nil {
		return nil, &contracts.ConfigurationError{Field: "emitter", Message: "required"}
	}
	if opts.TopN < 1 {
		return nil, &contracts.ConfigurationError{Field: "top_n", Message: "must be >= 1"}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Policies == nil {
		opts.Policies = map[contracts.Stage]contracts.RetryPolicy{}
	}
	for stage, p := range opts.Policies {
		if p.MaxRetries < 0 || p.Backoff < 0 {
			return nil, &contracts.ConfigurationError{Field: "stages." + stage.String(), Message: "retry policy must be non-negative"}
		}
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	deps.Logger = log

	return &Pipeline{
		deps:      deps,
		opts:      opts,
		collector: collector.NewCollector(deps.Provider, log),
		gate:      quality.NewGate(opts.QualityMode, log),
		engine:    indicators.NewEngine(log),
		ranker:    ranking.NewRanker(opts.TopN, log),
		logger:    log.WithField("module", "pipeline"),
		sleep:     time.Sleep,
		now:       time.Now,
	}, nil
}

// namedStage pairs a stage with its function for one run
type namedStage struct {
	stage contracts.Stage
	fn    contracts.StageFunc
}

// RunOnce executes every stage once over symbols and rng.
// Configuration errors return before any stage runs. A stage that exhausts
// its retries aborts the run; the partial RunResult is still returned.
func (p *Pipeline) RunOnce(ctx context.Context, symbols []string, rng contracts.DateRange) (*contracts.RunResult, error) {
	if err := flowconfig.ValidateUniverse(symbols); err != nil {
		return nil, err
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	result := &contracts.RunResult{
		RunID:      uuid.NewString(),
		Range:      rng,
		Symbols:    append([]string(nil), symbols...),
		StartedAt:  p.now(),
		Movers:     contracts.EmptyMovers(),
		Partitions: map[string][]string{},
	}

	log := p.logger.WithFields(map[string]interface{}{
		"run_id":  result.RunID,
		"symbols": len(symbols),
		"range":   rng.String(),
	})
	log.Info("Pipeline run started")

	stages := []namedStage{
		{contracts.StageFetch, p.fetchStage(symbols, rng)},
		{contracts.StageQuality, p.gate.Check},
		{contracts.StageIndicators, p.engine.Compute},
		{contracts.StagePersist, p.persistStage(result)},
		{contracts.StageEmit, p.reportStage(rng.To)},
		{contracts.StageRank, p.rankStage(rng.To, result)},
	}

	// 단계 내부는 취소하지 않음; 호출자 deadline 은 단계 사이에서만 확인
	stageCtx := context.WithoutCancel(ctx)

	batch := contracts.Batch{}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			result.Err = fmt.Errorf("run stopped before %s: %w", st.stage, err)
			break
		}

		next, report, err := p.runStage(stageCtx, result.RunID, st, batch)
		result.Stages = append(result.Stages, report)
		if err != nil {
			result.Err = err
			break
		}
		batch = next
	}

	result.Batch = batch
	result.FinishedAt = p.now()

	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.RecordRun(context.WithoutCancel(ctx), result); err != nil {
			log.WithError(err).Warn("Failed to record run")
		}
	}

	fields := map[string]interface{}{
		"status":   result.Status(),
		"duration": result.Duration().String(),
		"excluded": len(result.ExcludedSymbols()),
		"remained": len(batch),
	}
	if result.Err != nil {
		log.WithFields(fields).WithError(result.Err).Error("Pipeline run failed")
	} else {
		log.WithFields(fields).Info("Pipeline run completed")
	}
	log.Debug(result.Summary())

	return result, result.Err
}

// runStage applies the stage retry policy. The input batch is handed to every
// attempt unchanged; stages never write to their input.
func (p *Pipeline) runStage(ctx context.Context, runID string, st namedStage, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
	policy := p.opts.Policies[st.stage]
	attempts := policy.Attempts()

	log := p.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"stage":  st.stage.String(),
	})

	var report contracts.StageReport
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		out, rep, err := st.fn(ctx, in)

		rep.Stage = st.stage
		rep.Attempts = attempt
		if rep.Input == 0 {
			rep.Input = len(in)
		}
		if rep.Duration == 0 {
			rep.Duration = time.Since(start)
		}

		if err == nil {
			c := rep.Counts()
			log.WithFields(map[string]interface{}{
				"attempt":   attempt,
				"succeeded": c.Succeeded,
				"excluded":  c.Excluded,
				"failed":    c.Failed,
			}).Info("Stage completed")
			p.notify(runID, rep)
			return out, rep, nil
		}

		rep.Error = err.Error()
		report, lastErr = rep, err
		p.notify(runID, rep)

		if attempt < attempts {
			log.WithError(err).WithFields(map[string]interface{}{
				"attempt": attempt,
				"backoff": policy.Backoff.String(),
			}).Warn("Stage failed, retrying")
			p.sleep(policy.Backoff)
		}
	}

	fatal := &contracts.StageFatalError{Stage: st.stage, Attempts: attempts, Err: lastErr}
	report.Error = fatal.Error()
	log.WithError(lastErr).WithField("attempts", attempts).Error("Stage retries exhausted")
	return nil, report, fatal
}

func (p *Pipeline) notify(runID string, report contracts.StageReport) {
	for _, o := range p.deps.Observers {
		o.OnStage(runID, report)
	}
}
