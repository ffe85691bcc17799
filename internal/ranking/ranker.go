package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// DefaultTopN is the number of gainers and losers reported
const DefaultTopN = 3

var hundred = decimal.NewFromInt(100)

// Ranker selects top gainers and losers from the latest session of each series
// ⭐ SSOT: top movers 산출 로직은 여기서만
type Ranker struct {
	topN   int
	logger *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(topN int, log *logger.Logger) *Ranker {
	return &Ranker{
		topN:   topN,
		logger: log.WithField("module", "ranking"),
	}
}

// TopN returns the configured list size
func (r *Ranker) TopN() int {
	return r.topN
}

// Rank ranks the batch and reports which symbols were left out
func (r *Ranker) Rank(ctx context.Context, batch contracts.Batch) (contracts.Movers, contracts.StageReport) {
	start := time.Now()
	report := contracts.NewStageReport(contracts.StageRank, len(batch))

	records, excluded := collect(batch)
	for sym, err := range excluded {
		report.Exclude(sym, err)
	}
	for _, rec := range records {
		report.Succeed(rec.Symbol)
	}

	movers := selectMovers(records, r.topN)
	report.Duration = time.Since(start)

	fields := map[string]interface{}{
		"ranked":   len(records),
		"excluded": len(excluded),
		"top_n":    r.topN,
	}
	if len(movers.Gainers) > 0 {
		fields["top_gainer"] = movers.Gainers[0].Symbol
		fields["top_gainer_pct"] = movers.Gainers[0].PctChange
	}
	r.logger.WithFields(fields).Info("Ranking completed")

	return movers, report
}

// Rank computes movers for batch without logging
func Rank(batch contracts.Batch, topN int) contracts.Movers {
	records, _ := collect(batch)
	return selectMovers(records, topN)
}

// PctChange returns (close-open)/open*100 rounded to 2 places, half away from zero.
// ok is false when open is zero or either price is missing.
func PctChange(row contracts.Row) (float64, bool) {
	if !row.Priced() || row.Open == 0 {
		return 0, false
	}

	open := decimal.NewFromFloat(row.Open)
	closePrice := decimal.NewFromFloat(row.Close)

	pct, _ := closePrice.Sub(open).Div(open).Mul(hundred).Round(2).Float64()
	return pct, true
}

// collect builds one record per rankable symbol, sorted by pct desc then symbol asc
func collect(batch contracts.Batch) ([]contracts.MoverRecord, map[string]error) {
	records := make([]contracts.MoverRecord, 0, len(batch))
	excluded := map[string]error{}

	for sym, s := range batch {
		last, ok := s.Last()
		if !ok {
			excluded[sym] = contracts.ErrEmptySeries
			continue
		}

		pct, ok := PctChange(last)
		if !ok {
			excluded[sym] = fmt.Errorf("%w: open=%v close=%v", contracts.ErrMissingField, last.Open, last.Close)
			continue
		}

		records = append(records, contracts.MoverRecord{
			Symbol:    sym,
			Date:      last.Date,
			PctChange: pct,
		})
	}

	// 동률은 종목명 오름차순 (map 순회 순서와 무관하게 결정적)
	sort.Slice(records, func(i, j int) bool {
		if records[i].PctChange != records[j].PctChange {
			return records[i].PctChange > records[j].PctChange
		}
		return records[i].Symbol < records[j].Symbol
	})

	return records, excluded
}

// selectMovers applies the top/bottom-N selection to a sorted slice.
// With fewer records than topN, gainers keep sorted order and losers are reversed.
func selectMovers(sorted []contracts.MoverRecord, topN int) contracts.Movers {
	movers := contracts.EmptyMovers()
	n := len(sorted)
	if n == 0 || topN <= 0 {
		return movers
	}

	if n < topN {
		movers.Gainers = append(movers.Gainers, sorted...)
		for i := n - 1; i >= 0; i-- {
			movers.Losers = append(movers.Losers, sorted[i])
		}
		return movers
	}

	movers.Gainers = append(movers.Gainers, sorted[:topN]...)
	movers.Losers = append(movers.Losers, sorted[n-topN:]...)
	return movers
}
