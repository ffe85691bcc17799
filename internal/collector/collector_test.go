package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

type funcProvider func(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error)

func (f funcProvider) Name() string { return "func" }

func (f funcProvider) Fetch(ctx context.Context, symbol string, rng contracts.DateRange) (*contracts.DataSeries, error) {
	return f(ctx, symbol, rng)
}

var rng = contracts.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC))

func TestFetchAll_SortedAndIsolated(t *testing.T) {
	p := funcProvider(func(ctx context.Context, symbol string, _ contracts.DateRange) (*contracts.DataSeries, error) {
		switch symbol {
		case "BAD":
			return nil, fmt.Errorf("%w: timeout", contracts.ErrFetch)
		case "NIL":
			return nil, nil
		case "PANIC":
			panic("boom")
		}
		return contracts.NewSeries(symbol, []contracts.Row{{Date: rng.From, Open: 1, Close: 1}}), nil
	})

	c := NewCollector(p, logger.NewNop())
	results := c.FetchAll(context.Background(), []string{"E", "BAD", "A", "NIL", "PANIC", "C"}, rng, Config{Workers: 3})

	require.Len(t, results, 6)
	var got []string
	for _, r := range results {
		got = append(got, r.Symbol)
	}
	assert.Equal(t, []string{"A", "BAD", "C", "E", "NIL", "PANIC"}, got)

	assert.True(t, errors.Is(results[1].Error, contracts.ErrFetch))
	assert.True(t, errors.Is(results[5].Error, contracts.ErrFetch))
	assert.Contains(t, results[5].Error.Error(), "panic: boom")
	require.NoError(t, results[4].Error)
	assert.True(t, results[4].Series.IsEmpty(), "nil series becomes empty")
	assert.Equal(t, 1, results[0].Series.Len())
}

func TestFetchAll_CanceledContext(t *testing.T) {
	p := funcProvider(func(ctx context.Context, symbol string, _ contracts.DateRange) (*contracts.DataSeries, error) {
		return contracts.NewSeries(symbol, nil), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewCollector(p, logger.NewNop()).FetchAll(ctx, []string{"A", "B"}, rng, Config{Workers: 1})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestFetchAll_NoSymbols(t *testing.T) {
	p := funcProvider(func(context.Context, string, contracts.DateRange) (*contracts.DataSeries, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	})
	assert.Empty(t, NewCollector(p, logger.NewNop()).FetchAll(context.Background(), nil, rng, Config{Workers: 4}))
}
