package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tickerflow/internal/collector"
	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/storage"
)

// fetchStage fetches every symbol. Per-symbol provider errors exclude that
// symbol; empty responses stay in the batch for the quality gate to judge.
func (p *Pipeline) fetchStage(symbols []string, rng contracts.DateRange) contracts.StageFunc {
	return func(ctx context.Context, _ contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
		start := time.Now()
		report := contracts.NewStageReport(contracts.StageFetch, len(symbols))
		out := make(contracts.Batch, len(symbols))

		results := p.collector.FetchAll(ctx, symbols, rng, collector.Config{Workers: p.opts.Workers})
		for _, r := range results {
			if r.Error != nil {
				err := r.Error
				if !errors.Is(err, contracts.ErrFetch) {
					err = fmt.Errorf("%w: %w", contracts.ErrFetch, err)
				}
				var symErr *contracts.SymbolError
				if !errors.As(err, &symErr) {
					err = &contracts.SymbolError{Stage: contracts.StageFetch, Symbol: r.Symbol, Err: err}
				}
				report.Exclude(r.Symbol, err)
				continue
			}
			out[r.Symbol] = r.Series
			report.Succeed(r.Symbol)
		}
		report.Duration = time.Since(start)

		if len(symbols) > 0 && len(out) == 0 {
			return nil, report, fmt.Errorf("%w: all %d symbols failed", contracts.ErrProviderOutage, len(symbols))
		}
		return out, report, nil
	}
}

// persistStage writes one blob per (symbol, date). A write is retried with
// PartitionRetry; a write that still fails marks the symbol failed and the
// loop moves on. Only a stage in which every write failed is an error.
func (p *Pipeline) persistStage(result *contracts.RunResult) contracts.StageFunc {
	return func(ctx context.Context, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
		start := time.Now()
		report := contracts.NewStageReport(contracts.StagePersist, len(in))
		partitions := map[string][]string{}
		attempted, written := 0, 0

		for _, sym := range in.Symbols() {
			series := in[sym]
			var symErr error

			for i, row := range series.Rows {
				path := contracts.PartitionKey{Symbol: sym, Date: row.Date}.Path()
				attempted++

				payload, err := storage.EncodePartition(series, i)
				if err == nil {
					err = p.writePartition(ctx, path, payload)
				}
				if err != nil {
					p.logger.WithError(err).WithFields(map[string]interface{}{
						"symbol": sym,
						"path":   path,
					}).Error("Partition write failed")
					symErr = err
					continue
				}

				written++
				partitions[sym] = append(partitions[sym], path)
			}

			if symErr != nil {
				report.Fail(sym, &contracts.SymbolError{Stage: contracts.StagePersist, Symbol: sym, Err: symErr})
			} else {
				report.Succeed(sym)
			}
		}
		report.Duration = time.Since(start)

		if attempted > 0 && written == 0 {
			return nil, report, fmt.Errorf("%w: all %d partition writes failed", contracts.ErrStorageWrite, attempted)
		}

		result.Partitions = partitions
		return in, report, nil
	}
}

// writePartition applies PartitionRetry to a single write
func (p *Pipeline) writePartition(ctx context.Context, path string, payload []byte) error {
	policy := p.opts.PartitionRetry
	var err error
	for attempt := 1; attempt <= policy.Attempts(); attempt++ {
		if err = p.deps.Store.Write(ctx, path, payload); err == nil {
			return nil
		}
		if attempt < policy.Attempts() {
			p.sleep(policy.Backoff)
		}
	}
	return err
}

// reportStage emits the consolidated table; the batch passes through unchanged
func (p *Pipeline) reportStage(runDate time.Time) contracts.StageFunc {
	return func(ctx context.Context, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
		report := contracts.NewStageReport(contracts.StageEmit, len(in))
		rows := BuildReportRows(in)

		if err := p.deps.Emitter.EmitConsolidated(ctx, runDate, rows); err != nil {
			return nil, report, fmt.Errorf("emit consolidated report: %w", err)
		}
		for _, sym := range in.Symbols() {
			report.Succeed(sym)
		}
		return in, report, nil
	}
}

// rankStage ranks the batch and emits the movers table
func (p *Pipeline) rankStage(runDate time.Time, result *contracts.RunResult) contracts.StageFunc {
	return func(ctx context.Context, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
		movers, report := p.ranker.Rank(ctx, in)

		if err := p.deps.Emitter.EmitMovers(ctx, runDate, movers); err != nil {
			return nil, report, fmt.Errorf("emit movers: %w", err)
		}

		result.Movers = movers
		return in, report, nil
	}
}

// BuildReportRows flattens the batch into report rows ordered by symbol then date
func BuildReportRows(batch contracts.Batch) []contracts.ReportRow {
	var rows []contracts.ReportRow
	for _, sym := range batch.Symbols() {
		s := batch[sym]
		for i, r := range s.Rows {
			rows = append(rows, contracts.ReportRow{
				Symbol:     sym,
				Date:       r.Date,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				SMA50:      s.DerivedAt(contracts.DerivedSMA50, i),
				Volatility: s.DerivedAt(contracts.DerivedVolatility, i),
			})
		}
	}
	return rows
}
