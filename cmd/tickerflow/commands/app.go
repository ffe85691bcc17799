package commands

import (
	"context"
	"fmt"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/flowconfig"
	"github.com/wonny/tickerflow/internal/pipeline"
	"github.com/wonny/tickerflow/internal/provider"
	"github.com/wonny/tickerflow/internal/recorder"
	"github.com/wonny/tickerflow/internal/report"
	"github.com/wonny/tickerflow/internal/scheduler/jobs"
	"github.com/wonny/tickerflow/internal/storage"
	"github.com/wonny/tickerflow/pkg/config"
	"github.com/wonny/tickerflow/pkg/logger"
	"github.com/wonny/tickerflow/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg      *config.Config
	flow     *flowconfig.Config
	flowHash string
	log      *logger.Logger

	rdb     *redis.Client
	store   contracts.PartitionStore
	history recorder.Store

	closers []func()
}

// loadApp reads env + pipeline config and opens backends.
// dryRun keeps everything in memory: no redis, no store, no run history.
func loadApp(ctx context.Context, dryRun bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if pipelineFile != "" {
		cfg.PipelineFile = pipelineFile
	}

	log := logger.New(cfg)

	flow, err := flowconfig.LoadOrDefault(cfg.PipelineFile)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}
	for _, w := range flowconfig.Warn(flow) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}

	hash, err := flowconfig.Hash(flow)
	if err != nil {
		return nil, fmt.Errorf("hash pipeline config: %w", err)
	}

	a := &app{cfg: cfg, flow: flow, flowHash: hash, log: log}

	if dryRun {
		a.rdb = redis.Disabled()
		a.store = storage.NewMemoryStore()
		a.history = recorder.NoopRecorder{}
		return a, nil
	}

	if a.rdb, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.rdb.Close() })

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	history, err := recorder.NewSQLiteRecorder(ctx, cfg.SQLitePath, hash, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.history = history
	a.closers = append(a.closers, func() { _ = history.Close() })

	log.WithFields(map[string]interface{}{
		"provider":    cfg.Provider.Name,
		"store":       cfg.Store.Backend,
		"universe":    len(flow.Universe),
		"config_hash": hash[:12],
	}).Info("Application initialized")

	return a, nil
}

// provider builds the configured market data provider
func (a *app) provider() (contracts.Provider, error) {
	return provider.New(a.cfg, a.rdb, a.log)
}

// newPipeline wires a pipeline over prov with the store emitter and run history
func (a *app) newPipeline(prov contracts.Provider, topN int, observers ...contracts.Observer) (*pipeline.Pipeline, error) {
	opts := pipeline.OptionsFromConfig(a.flow)
	if topN > 0 {
		opts.TopN = topN
	}

	return pipeline.New(pipeline.Deps{
		Provider:  prov,
		Store:     a.store,
		Emitter:   report.Multi{report.NewStoreEmitter(a.store, a.log), report.NewLogEmitter(a.log)},
		Recorder:  a.history,
		Observers: observers,
		Logger:    a.log,
	}, opts)
}

// pingTargets lists backends with a liveness check
func (a *app) pingTargets() map[string]jobs.Pinger {
	targets := map[string]jobs.Pinger{"redis": a.rdb}
	if p, ok := a.store.(jobs.Pinger); ok {
		targets["store"] = p
	}
	return targets
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
