package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickerflow/internal/contracts"
)

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"PETR4.SA", "VALE3.SA"}, parseSymbols(" petr4.sa, ,VALE3.SA,"))
	assert.Nil(t, parseSymbols(" , "))
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	rng, err := resolveRange("", "", 7, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08..2024-03-15", rng.String())

	rng, err = resolveRange("2024-01-01", "2024-01-31", 7, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01..2024-01-31", rng.String())

	_, err = resolveRange("2024-01-01", "", 7, now)
	assert.True(t, contracts.IsConfiguration(err))

	_, err = resolveRange("2024-02-01", "2024-01-01", 7, now)
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "scheduler", "api", "version"} {
		assert.True(t, names[want], want)
	}

	flag := runCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
