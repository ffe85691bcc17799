package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/logger"
)

func row(d int, open, close float64) contracts.Row {
	return contracts.Row{
		Date:   time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		Open:   open,
		High:   close + 1,
		Low:    open - 1,
		Close:  close,
		Volume: 1000,
	}
}

func TestGate_LenientExcludesEmpty(t *testing.T) {
	gate := NewGate(ModeLenient, logger.NewNop())
	in := contracts.Batch{
		"A": contracts.NewSeries("A", []contracts.Row{row(1, 10, 11)}),
		"B": contracts.NewSeries("B", nil),
	}

	out, report, err := gate.Check(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, out.Symbols())
	assert.Equal(t, contracts.Counts{Succeeded: 1, Excluded: 1}, report.Counts())
	assert.Contains(t, report.Excluded["B"], "empty series")
	assert.Len(t, in, 2, "input batch untouched")
}

func TestGate_StrictFailsBatch(t *testing.T) {
	gate := NewGate(ModeStrict, logger.NewNop())
	in := contracts.Batch{
		"A": contracts.NewSeries("A", []contracts.Row{row(1, 10, 11)}),
		"B": contracts.NewSeries("B", nil),
	}

	out, _, err := gate.Check(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, contracts.ErrEmptySeries))

	var symErr *contracts.SymbolError
	require.ErrorAs(t, err, &symErr)
	assert.Equal(t, "B", symErr.Symbol)
}

func TestGate_UnknownModeIsLenient(t *testing.T) {
	assert.Equal(t, ModeLenient, NewGate("loose", logger.NewNop()).Mode())
}

func TestGate_LatestRowUnpricedExcluded(t *testing.T) {
	gate := NewGate(ModeLenient, logger.NewNop())
	in := contracts.Batch{
		"A": contracts.NewSeries("A", []contracts.Row{row(1, 10, 11), row(2, contracts.Null(), 12)}),
	}

	out, report, err := gate.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, report.Excluded["A"], "missing required field")
}

func TestGate_OlderNullsOnlyWarn(t *testing.T) {
	gate := NewGate(ModeLenient, logger.NewNop())
	old := row(1, contracts.Null(), contracts.Null())
	in := contracts.Batch{
		"A": contracts.NewSeries("A", []contracts.Row{old, row(2, 10, 11)}),
	}

	out, report, err := gate.Check(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, out, "A")
	assert.Equal(t, 1, report.Counts().Succeeded)
	assert.Equal(t, "1 of 2 rows have null fields", report.Warnings["A"])
}

func TestGate_PassedSeriesHavePricedLatestRow(t *testing.T) {
	gate := NewGate(ModeLenient, logger.NewNop())
	in := contracts.Batch{
		"A": contracts.NewSeries("A", []contracts.Row{row(1, 10, 11)}),
		"B": contracts.NewSeries("B", []contracts.Row{row(1, 10, contracts.Null())}),
		"C": contracts.NewSeries("C", nil),
		"D": contracts.NewSeries("D", []contracts.Row{row(1, 0, 5)}),
	}

	out, _, err := gate.Check(context.Background(), in)
	require.NoError(t, err)

	for sym, s := range out {
		last, ok := s.Last()
		require.True(t, ok, sym)
		assert.True(t, last.Priced(), sym)
	}
	assert.Equal(t, []string{"A", "D"}, out.Symbols())
}
