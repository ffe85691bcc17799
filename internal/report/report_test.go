package report

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/internal/storage"
	"github.com/wonny/tickerflow/pkg/logger"
)

var runDate = time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

func sampleMovers() contracts.Movers {
	return contracts.Movers{
		Gainers: []contracts.MoverRecord{
			{Symbol: "A", Date: runDate, PctChange: 1.5},
			{Symbol: "B", Date: runDate, PctChange: -2},
		},
		Losers: []contracts.MoverRecord{
			{Symbol: "B", Date: runDate, PctChange: -2},
			{Symbol: "A", Date: runDate, PctChange: 1.5},
		},
	}
}

func TestEncodeConsolidated(t *testing.T) {
	rows := []contracts.ReportRow{
		{Symbol: "A", Date: runDate, Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 100,
			SMA50: contracts.Null(), Volatility: contracts.Null()},
		{Symbol: "B", Date: runDate, Open: 20, High: 21, Low: 19, Close: 20.5, Volume: 200,
			SMA50: 19.75, Volatility: 0.012},
	}

	out, err := EncodeConsolidated(rows)
	require.NoError(t, err)
	assert.Equal(t,
		"symbol,date,open,high,low,close,volume,SMA_50,Volatility\n"+
			"A,2024-01-16,10,11,9.5,10.5,100,,\n"+
			"B,2024-01-16,20,21,19,20.5,200,19.75,0.012\n",
		string(out))
}

func TestEncodeMoversTable(t *testing.T) {
	m := sampleMovers()
	m.Losers = m.Losers[:1]

	out, err := EncodeMoversTable(m)
	require.NoError(t, err)
	assert.Equal(t,
		"rank,top_gainer,gainer_pct,top_loser,loser_pct\n"+
			"1,A,1.50,B,-2.00\n"+
			"2,B,-2.00,,\n",
		string(out))

	empty, err := EncodeMoversTable(contracts.EmptyMovers())
	require.NoError(t, err)
	assert.Equal(t, "rank,top_gainer,gainer_pct,top_loser,loser_pct\n", string(empty))
}

func TestStoreEmitter_WritesArtifacts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e := NewStoreEmitter(store, logger.NewNop())

	require.NoError(t, e.EmitConsolidated(ctx, runDate, nil))
	require.NoError(t, e.EmitMovers(ctx, runDate, sampleMovers()))

	assert.Equal(t, []string{
		"reports/2024-01-16/consolidated.csv",
		"reports/2024-01-16/top_movers.csv",
		"reports/2024-01-16/top_movers.json",
	}, store.Paths("reports/"))

	raw, err := store.Read(ctx, MoversJSONPath(runDate))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n  "), "pretty printed")

	var decoded contracts.Movers
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "A", decoded.Gainers[0].Symbol)
	assert.Equal(t, "B", decoded.Losers[0].Symbol)
}

func TestStoreEmitter_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e := NewStoreEmitter(store, logger.NewNop())

	require.NoError(t, e.EmitMovers(ctx, runDate, sampleMovers()))
	first, _ := store.Read(ctx, MoversCSVPath(runDate))
	require.NoError(t, e.EmitMovers(ctx, runDate, sampleMovers()))
	second, _ := store.Read(ctx, MoversCSVPath(runDate))

	assert.Equal(t, first, second)
	assert.Len(t, store.Paths("reports/"), 2)
}

func TestStoreEmitter_PropagatesWriteError(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailWrite = func(string) error { return errors.New("read-only") }
	e := NewStoreEmitter(store, logger.NewNop())

	err := e.EmitMovers(context.Background(), runDate, sampleMovers())
	assert.True(t, errors.Is(err, contracts.ErrStorageWrite))
}

func TestMulti_JoinsErrors(t *testing.T) {
	failing := storage.NewMemoryStore()
	failing.FailWrite = func(string) error { return errors.New("down") }
	ok := storage.NewMemoryStore()

	m := Multi{
		NewLogEmitter(logger.NewNop()),
		NewStoreEmitter(failing, logger.NewNop()),
		NewStoreEmitter(ok, logger.NewNop()),
	}

	err := m.EmitConsolidated(context.Background(), runDate, []contracts.ReportRow{{Symbol: "A", Date: runDate}})
	assert.True(t, errors.Is(err, contracts.ErrStorageWrite))
	assert.Len(t, ok.Paths(""), 1, "other emitters still run")

	assert.NoError(t, Multi{NewLogEmitter(logger.NewNop())}.EmitMovers(context.Background(), runDate, sampleMovers()))
}
