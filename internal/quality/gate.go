package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// Mode selects how empty series are handled
type Mode string

const (
	// ModeLenient excludes an empty series and keeps the batch going
	ModeLenient Mode = "lenient"
	// ModeStrict fails the whole batch on the first empty series
	ModeStrict Mode = "strict"
)

// Gate validates each series before indicators run
// ⭐ SSOT: quality 단계 검증은 여기서만
type Gate struct {
	mode   Mode
	logger *logger.Logger
}

// NewGate creates a gate. Unknown modes fall back to lenient.
func NewGate(mode Mode, log *logger.Logger) *Gate {
	if mode != ModeStrict {
		mode = ModeLenient
	}
	return &Gate{
		mode:   mode,
		logger: log.WithField("module", "quality"),
	}
}

// Mode returns the active mode
func (g *Gate) Mode() Mode {
	return g.mode
}

// Check filters the batch.
//   - empty rows: excluded (lenient) or batch error (strict)
//   - latest row without open/close: excluded
//   - nulls in any row: warning only
func (g *Gate) Check(ctx context.Context, in contracts.Batch) (contracts.Batch, contracts.StageReport, error) {
	start := time.Now()
	report := contracts.NewStageReport(contracts.StageQuality, len(in))
	out := make(contracts.Batch, len(in))

	for _, sym := range in.Symbols() {
		series := in[sym]

		if series.IsEmpty() {
			err := &contracts.SymbolError{Stage: contracts.StageQuality, Symbol: sym, Err: contracts.ErrEmptySeries}
			if g.mode == ModeStrict {
				report.Duration = time.Since(start)
				return nil, report, err
			}
			g.logger.WithField("symbol", sym).Warn("Empty series excluded")
			report.Exclude(sym, err)
			continue
		}

		last, _ := series.Last()
		if !last.Priced() {
			err := &contracts.SymbolError{
				Stage:  contracts.StageQuality,
				Symbol: sym,
				Err:    fmt.Errorf("%w: open/close on %s", contracts.ErrMissingField, last.Date.Format(contracts.DateLayout)),
			}
			g.logger.WithError(err).WithField("symbol", sym).Warn("Latest row unpriced, symbol excluded")
			report.Exclude(sym, err)
			continue
		}

		if n := countNullRows(series); n > 0 {
			msg := fmt.Sprintf("%d of %d rows have null fields", n, series.Len())
			g.logger.WithFields(map[string]interface{}{
				"symbol":    sym,
				"null_rows": n,
				"rows":      series.Len(),
			}).Warn("Series has null fields")
			report.Warn(sym, msg)
		}

		out[sym] = series
		report.Succeed(sym)
	}

	report.Duration = time.Since(start)

	c := report.Counts()
	g.logger.WithFields(map[string]interface{}{
		"mode":     string(g.mode),
		"passed":   c.Succeeded,
		"excluded": c.Excluded,
		"warnings": len(report.Warnings),
	}).Info("Quality check completed")

	return out, report, nil
}

func countNullRows(s *contracts.DataSeries) int {
	n := 0
	for _, r := range s.Rows {
		if r.HasNulls() {
			n++
		}
	}
	return n
}
