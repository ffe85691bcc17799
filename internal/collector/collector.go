package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

// Collector fans symbol fetches out to a worker pool
// ⭐ SSOT: 종목별 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	provider contracts.Provider
	logger   *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
}

// NewCollector creates a new Collector instance
func NewCollector(provider contracts.Provider, log *logger.Logger) *Collector {
	return &Collector{
		provider: provider,
		logger:   log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of one symbol fetch
type FetchResult struct {
	Symbol string
	Series *contracts.DataSeries
	Error  error
}

// FetchAll fetches every symbol once. Results are sorted by symbol,
// independent of completion order.
func (c *Collector) FetchAll(ctx context.Context, symbols []string, rng contracts.DateRange, cfg Config) []FetchResult {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbols":  len(symbols),
		"from":     rng.From.Format(contracts.DateLayout),
		"to":       rng.To.Format(contracts.DateLayout),
		"workers":  workers,
		"provider": c.provider.Name(),
	}).Info("Starting price collection")

	start := time.Now()
	results := make([]FetchResult, 0, len(symbols))
	resultCh := make(chan FetchResult, len(symbols))
	symbolCh := make(chan string, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, symbolCh, resultCh, rng)
		}(i)
	}

	for _, sym := range symbols {
		symbolCh <- sym
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	failCount := 0
	for result := range resultCh {
		if result.Error != nil {
			failCount++
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Symbol < results[j].Symbol
	})

	c.logger.WithFields(map[string]interface{}{
		"success":  len(results) - failCount,
		"failed":   failCount,
		"total":    len(results),
		"duration": time.Since(start).String(),
	}).Info("Price collection completed")

	return results
}

// worker fetches symbols until the channel is drained
func (c *Collector) worker(ctx context.Context, workerID int, symbolCh <-chan string, resultCh chan<- FetchResult, rng contracts.DateRange) {
	for sym := range symbolCh {
		select {
		case <-ctx.Done():
			resultCh <- FetchResult{Symbol: sym, Error: ctx.Err()}
			continue
		default:
		}

		series, err := c.fetchOne(ctx, sym, rng)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"symbol": sym,
			}).Error("Failed to fetch prices")
			resultCh <- FetchResult{Symbol: sym, Error: err}
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"symbol": sym,
			"count":  series.Len(),
		}).Debug("Fetched prices")

		resultCh <- FetchResult{Symbol: sym, Series: series}
	}
}

// fetchOne calls the provider, turning panics and nil series into errors
func (c *Collector) fetchOne(ctx context.Context, sym string, rng contracts.DateRange) (series *contracts.DataSeries, err error) {
	defer func() {
		if r := recover(); r != nil {
			series, err = nil, &contracts.SymbolError{
				Stage:  contracts.StageFetch,
				Symbol: sym,
				Err:    fmt.Errorf("%w: panic: %v", contracts.ErrFetch, r),
			}
			c.logger.WithField("symbol", sym).Errorf("provider panic: %v", r)
		}
	}()

	series, err = c.provider.Fetch(ctx, sym, rng)
	if err != nil {
		return nil, err
	}
	if series == nil {
		series = contracts.NewSeries(sym, nil)
	}
	series.Symbol = sym
	return series, nil
}
