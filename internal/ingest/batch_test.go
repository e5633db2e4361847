package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSymbols(codes ...string) []market.Symbol {
	out := make([]market.Symbol, 0, len(codes))
	for _, c := range codes {
		out = append(out, market.Symbol{Code: c, Status: market.SymbolActive})
	}
	return out
}

func TestLoadAllIsolatesPerSymbolFailures(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3})
	f.directory.symbols = activeSymbols("AAA", "BBB", "CCC")
	f.provider.fetchFn = func(symbol string, start, end time.Time) ([]market.Bar, error) {
		if symbol == "BBB" {
			return nil, &provider.Error{Kind: provider.KindConnection, Provider: "test", Symbol: symbol, Err: errors.New("reset by peer")}
		}
		return dailyBars(symbol, start, end), nil
	}

	result, err := f.engine.LoadAll(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "BBB", result.Errors[0].Symbol)
	assert.Equal(t, "connection", result.Errors[0].Kind)
	assert.False(t, result.Aborted)

	// The failure on BBB must not stop CCC from loading.
	require.Len(t, f.provider.calls, 3)
	assert.Equal(t, "CCC", f.provider.calls[2].symbol)
	f.checkpoints.get(t, "CCC", "test", market.Daily)
}

func TestLoadAllAbortsOnAuthFailure(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3, DelistingDetection: true})
	f.directory.symbols = activeSymbols("AAA", "BBB", "CCC")
	f.provider.fetchFn = func(symbol string, start, end time.Time) ([]market.Bar, error) {
		return nil, &provider.Error{Kind: provider.KindAuth, Provider: "test", Err: errors.New("invalid api key")}
	}

	result, err := f.engine.LoadAll(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, f.provider.calls, 1, "no further symbols attempted after an auth failure")
	assert.Zero(t, f.lifecycle.sweepCalls, "sweep skipped on abort")
}

func TestLoadAllRunsDelistingSweep(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3, DelistingDetection: true})
	f.directory.symbols = activeSymbols("AAA")
	f.lifecycle.sweepResult = []string{"ZZZ"}

	result, err := f.engine.LoadAll(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.lifecycle.sweepCalls)
	assert.Contains(t, result.Delisted, "ZZZ")
}

func TestLoadAllMaxSymbolsTruncates(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3})
	f.directory.symbols = activeSymbols("AAA", "BBB", "CCC", "DDD")

	result, err := f.engine.LoadAll(context.Background(), BatchOptions{MaxSymbols: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Len(t, f.provider.calls, 2)
}

func TestLoadAllDirectoryFailureIsFatal(t *testing.T) {
	f := newFixture(date(2026, time.March, 20), Config{})
	f.directory.err = errors.New("db locked")

	_, err := f.engine.LoadAll(context.Background(), BatchOptions{})
	require.Error(t, err)
	assert.Empty(t, f.provider.calls)
}

func TestLoadAllAppendsRunLog(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3})
	f.directory.symbols = activeSymbols("AAA", "BBB")
	f.provider.fetchFn = func(symbol string, start, end time.Time) ([]market.Bar, error) {
		if symbol == "BBB" {
			return nil, &provider.Error{Kind: provider.KindRateLimit, Provider: "test", Symbol: symbol, Err: errors.New("throttled")}
		}
		return dailyBars(symbol, start, end), nil
	}

	result, err := f.engine.LoadAll(context.Background(), BatchOptions{})
	require.NoError(t, err)

	require.Len(t, f.runs.records, 1)
	rec := f.runs.records[0]
	assert.Equal(t, result.Total, rec.Total)
	assert.Equal(t, result.Successful, rec.Successful)
	assert.Equal(t, result.Failed, rec.Failed)
	assert.Equal(t, result.TotalRecords, rec.TotalRecords)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "BBB")
	assert.Equal(t, "1d", rec.Granularity, "unset granularity logs as daily")

	_, err = f.engine.LoadAll(context.Background(), BatchOptions{
		Granularity: market.Granularity{Unit: market.UnitHour, Multiplier: 1},
	})
	require.NoError(t, err)
	require.Len(t, f.runs.records, 2)
	assert.Equal(t, "1h", f.runs.records[1].Granularity)
}

func TestLoadAllCanceledContextStopsPacing(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{DefaultLookbackDays: 3, RequestsPerMinute: 1})
	f.directory.symbols = activeSymbols("AAA", "BBB")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.LoadAll(ctx, BatchOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.provider.calls, 1, "pacing honors cancellation between symbols")
}
