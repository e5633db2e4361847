package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/provider"
	"marketsync/internal/store"
	"marketsync/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectGapWithinThresholdDoesNothing(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{})
	f.checkpoints.SaveCheckpoint(context.Background(), &store.Checkpoint{
		Symbol:             "AAPL",
		Source:             "test",
		Granularity:        market.Daily,
		LastSuccessfulDate: datePtr(2026, time.March, 15),
		Status:             model.CheckpointSuccess,
	})

	result, err := f.engine.DetectGapAndBackfill(context.Background(), "AAPL", market.Daily, 7, 30)
	require.NoError(t, err)

	assert.False(t, result.BackfillNeeded)
	assert.Equal(t, 5, result.GapDays)
	assert.Zero(t, result.RecordsLoaded)
	assert.Empty(t, f.provider.calls)
}

func TestBackfillWindowBoundedByMaxBackfill(t *testing.T) {
	today := date(2026, time.March, 20)
	lastSuccess := today.AddDate(0, 0, -40)
	f := newFixture(today, Config{})
	f.checkpoints.SaveCheckpoint(context.Background(), &store.Checkpoint{
		Symbol:             "AAPL",
		Source:             "test",
		Granularity:        market.Daily,
		LastSuccessfulDate: &lastSuccess,
		Status:             model.CheckpointSuccess,
	})

	result, err := f.engine.DetectGapAndBackfill(context.Background(), "AAPL", market.Daily, 7, 10)
	require.NoError(t, err)

	assert.True(t, result.BackfillNeeded)
	assert.Equal(t, 40, result.GapDays)
	assert.Equal(t, 10, result.RecordsLoaded)

	require.Len(t, f.provider.calls, 1)
	call := f.provider.calls[0]
	assert.Equal(t, lastSuccess.AddDate(0, 0, 1), call.start)
	assert.Equal(t, lastSuccess.AddDate(0, 0, 10), call.end, "window capped at 10 days")
}

func TestBackfillWithoutCheckpointUsesRecentWindow(t *testing.T) {
	today := date(2026, time.March, 20)
	f := newFixture(today, Config{})

	result, err := f.engine.DetectGapAndBackfill(context.Background(), "NEWCO", market.Daily, 7, 10)
	require.NoError(t, err)

	assert.True(t, result.BackfillNeeded)
	assert.Equal(t, GapSentinelDays, result.GapDays)

	require.Len(t, f.provider.calls, 1)
	call := f.provider.calls[0]
	assert.Equal(t, today.AddDate(0, 0, -9), call.start)
	assert.Equal(t, today, call.end)
}

func TestHealthCheck(t *testing.T) {
	today := date(2026, time.March, 20)

	t.Run("healthy", func(t *testing.T) {
		f := newFixture(today, Config{})
		assert.True(t, f.engine.HealthCheck(context.Background()))
		assert.Equal(t, []string{"AAPL"}, f.provider.probes)
	})

	t.Run("store down", func(t *testing.T) {
		f := newFixture(today, Config{})
		f.bars.pingErr = errors.New("locked")
		assert.False(t, f.engine.HealthCheck(context.Background()))
	})

	t.Run("provider unreachable", func(t *testing.T) {
		f := newFixture(today, Config{})
		f.provider.probeFn = func(symbol string) (*market.SymbolMeta, error) {
			return nil, &provider.Error{Kind: provider.KindConnection, Provider: "test", Err: errors.New("timeout")}
		}
		assert.False(t, f.engine.HealthCheck(context.Background()))
	})

	t.Run("unknown canary still proves reachability", func(t *testing.T) {
		f := newFixture(today, Config{CanarySymbol: "NOPE"})
		f.provider.probeFn = func(symbol string) (*market.SymbolMeta, error) {
			return nil, &provider.Error{Kind: provider.KindData, Provider: "test", Symbol: symbol, Err: errors.New("unknown ticker")}
		}
		assert.True(t, f.engine.HealthCheck(context.Background()))
	})
}

func TestProgressPercent(t *testing.T) {
	f := newFixture(date(2026, time.March, 20), Config{})
	f.bars.stats = store.ProgressStats{TotalSymbols: 4, SymbolsWithData: 3, TotalRecords: 1200}

	report, err := f.engine.Progress(context.Background(), date(2026, time.February, 1), date(2026, time.March, 20))
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalSymbols)
	assert.Equal(t, 3, report.SymbolsWithData)
	assert.Equal(t, int64(1200), report.TotalRecords)
	assert.InDelta(t, 75.0, report.ProgressPercent, 0.001)
}
