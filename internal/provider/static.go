package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
)

// StaticProvider serves fixed series from memory.
// Used by tests and by `run --dry-run`.
type StaticProvider struct {
	mu     sync.Mutex
	series map[string]*contracts.DataSeries
	errs   map[string]error
	flaky  map[string]int // symbol → remaining transient failures
	calls  map[string]int
}

// NewStaticProvider creates an empty provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		series: map[string]*contracts.DataSeries{},
		errs:   map[string]error{},
		flaky:  map[string]int{},
		calls:  map[string]int{},
	}
}

// Name returns the provider name
func (p *StaticProvider) Name() string { return "static" }

// Set registers the series returned for symbol
func (p *StaticProvider) Set(series *contracts.DataSeries) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[series.Symbol] = series.Clone()
	return p
}

// FailWith makes every fetch of symbol return err
func (p *StaticProvider) FailWith(symbol string, err error) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[symbol] = err
	return p
}

// FailTimes makes the next n fetches of symbol fail
func (p *StaticProvider) FailTimes(symbol string, n int) *StaticProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flaky[symbol] = n
	return p
}

// Calls returns how many times symbol was fetched
func (p *StaticProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// Fetch returns a copy of the registered series restricted to rng.
// Unknown symbols return an empty series.
func (p *StaticProvider) Fetch(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[symbol]++

	if err, ok := p.errs[symbol]; ok {
		return nil, fmt.Errorf("%w: %s: %v", contracts.ErrFetch, symbol, err)
	}
	if n := p.flaky[symbol]; n > 0 {
		p.flaky[symbol] = n - 1
		return nil, fmt.Errorf("%w: %s: transient failure", contracts.ErrFetch, symbol)
	}

	s, ok := p.series[symbol]
	if !ok {
		return contracts.NewSeries(symbol, nil), nil
	}

	rows := make([]contracts.Row, 0, s.Len())
	for _, r := range s.Rows {
		if rng.Contains(r.Date) {
			rows = append(rows, r)
		}
	}
	return contracts.NewSeries(symbol, rows), nil
}

// Synthetic builds a deterministic random-walk series for symbol over the
// weekdays of rng. The same inputs always produce the same rows.
func Synthetic(symbol string, rng contracts.DateRange) *contracts.DataSeries {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum64()

	price := 10 + float64(seed%9000)/100
	var rows []contracts.Row
	for d, i := rng.From, 0; !d.After(rng.To); d, i = d.AddDate(0, 0, 1), i+1 {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		step := math.Sin(float64(seed%97)+float64(i)*0.7) * 0.02
		open := round2(price)
		closePrice := round2(price * (1 + step))
		rows = append(rows, contracts.Row{
			Date:   d,
			Open:   open,
			High:   math.Max(open, closePrice) * 1.005,
			Low:    math.Min(open, closePrice) * 0.995,
			Close:  closePrice,
			Volume: float64(100000 + (seed+uint64(i)*7919)%900000),
		})
		price = closePrice
	}
	return contracts.NewSeries(symbol, rows)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
