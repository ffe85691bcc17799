package report

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// LogEmitter writes report tables to the logger
type LogEmitter struct {
	logger *logger.Logger
}

// NewLogEmitter creates a log-only emitter
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{logger: log.WithField("module", "report")}
}

// EmitConsolidated logs the latest row of each symbol
func (e *LogEmitter) EmitConsolidated(ctx context.Context, runDate time.Time, rows []contracts.ReportRow) error {
	latest := map[string]contracts.ReportRow{}
	for _, r := range rows {
		if cur, ok := latest[r.Symbol]; !ok || r.Date.After(cur.Date) {
			latest[r.Symbol] = r
		}
	}

	for sym, r := range latest {
		fields := map[string]interface{}{
			"symbol": sym,
			"date":   r.Date.Format(contracts.DateLayout),
			"close":  r.Close,
		}
		if !contracts.IsNull(r.SMA50) {
			fields["sma_50"] = r.SMA50
		}
		if !contracts.IsNull(r.Volatility) {
			fields["volatility"] = r.Volatility
		}
		e.logger.WithFields(fields).Debug("Report row")
	}

	e.logger.WithFields(map[string]interface{}{
		"run_date": runDate.Format(contracts.DateLayout),
		"symbols":  len(latest),
		"rows":     len(rows),
	}).Info("Consolidated report")
	return nil
}

// EmitMovers logs the gainers and losers in rank order
func (e *LogEmitter) EmitMovers(ctx context.Context, runDate time.Time, movers contracts.Movers) error {
	for i, m := range movers.Gainers {
		e.logger.WithFields(map[string]interface{}{
			"rank":   i + 1,
			"symbol": m.Symbol,
			"pct":    m.PctChange,
		}).Info("Top gainer")
	}
	for i, m := range movers.Losers {
		e.logger.WithFields(map[string]interface{}{
			"rank":   i + 1,
			"symbol": m.Symbol,
			"pct":    m.PctChange,
		}).Info("Top loser")
	}
	return nil
}

// Multi fans out to several emitters and joins their errors
type Multi []contracts.ReportEmitter

// EmitConsolidated calls every emitter
func (m Multi) EmitConsolidated(ctx context.Context, runDate time.Time, rows []contracts.ReportRow) error {
	var errs []error
	for _, e := range m {
		if err := e.EmitConsolidated(ctx, runDate, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EmitMovers calls every emitter
func (m Multi) EmitMovers(ctx context.Context, runDate time.Time, movers contracts.Movers) error {
	var errs []error
	for _, e := range m {
		if err := e.EmitMovers(ctx, runDate, movers); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
