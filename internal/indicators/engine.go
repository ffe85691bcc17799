package indicators

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// Window is the rolling window for SMA_50 and Volatility
const Window = 50

// Engine computes derived columns for every series in a batch
// ⭐ SSOT: 지표 계산은 여기서만
type Engine struct {
	window int
	logger *logger.Logger
}

// NewEngine creates an engine with the standard 50-row window
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		window: Window,
		logger: log.WithField("module", "indicators"),
	}
}

// Compute returns a new batch with SMA_50 and Volatility attached.
// Series shorter than the window keep Derived nil and are reported failed.
func (e *Engine) Compute(ctx context.Context, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
	start := time.Now()
	report := contracts.NewStageReport(contracts.StageIndicators, len(in))
	out := make(contracts.Batch, len(in))

	for _, sym := range in.Symbols() {
		series := in[sym].Clone()
		out[sym] = series

		if err := e.computeSeries(series); err != nil {
			symErr := &contracts.SymbolError{Stage: contracts.StageIndicators, Symbol: sym, Err: err}
			e.logger.WithError(symErr).WithFields(map[string]interface{}{
				"symbol": sym,
				"rows":   series.Len(),
			}).Warn("Indicators not computed")
			series.Derived = nil
			report.Fail(sym, symErr)
			continue
		}
		report.Succeed(sym)
	}

	report.Duration = time.Since(start)

	c := report.Counts()
	e.logger.WithFields(map[string]interface{}{
		"computed": c.Succeeded,
		"failed":   c.Failed,
		"window":   e.window,
	}).Info("Indicators computed")

	return out, report, nil
}

// computeSeries fills s.Derived. Panics become symbol-scoped errors.
func (e *Engine) computeSeries(s *contracts.DataSeries) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indicator panic: %v", r)
		}
	}()

	if s.Len() < e.window {
		return fmt.Errorf("%w: %d rows, window %d", contracts.ErrInsufficientHistory, s.Len(), e.window)
	}

	c := closes(s.Rows)
	s.Derived = map[string][]float64{
		contracts.DerivedSMA50:      RollingMean(c, e.window),
		contracts.DerivedVolatility: RollingSampleStd(PctReturns(c), e.window),
	}
	return nil
}
