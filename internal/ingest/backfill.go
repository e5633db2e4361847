package ingest

import (
	"context"
	"time"

	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/provider"
)

// GapSentinelDays stands in for the gap when a symbol has no checkpoint
// at all: effectively "infinitely stale".
const GapSentinelDays = 1 << 20

// BackfillResult reports what a gap check found and did.
type BackfillResult struct {
	BackfillNeeded bool `json:"backfill_needed"`
	GapDays        int  `json:"gap_days"`
	RecordsLoaded  int  `json:"records_loaded"`
}

// DetectGapAndBackfill measures how stale a symbol's checkpoint is and,
// past maxGapDays, loads a catch-up window bounded by maxBackfillDays.
// The backfill delegates to LoadSymbol with an explicit range so the
// window is not recomputed from the checkpoint.
func (e *Engine) DetectGapAndBackfill(ctx context.Context, symbol string, gran market.Granularity, maxGapDays, maxBackfillDays int) (*BackfillResult, error) {
	symbol, err := market.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !gran.Valid() {
		gran = market.Daily
	}
	cp, err := e.checkpoints.Checkpoint(ctx, symbol, e.provider.Name(), gran)
	if err != nil {
		return nil, err
	}

	today := market.DateOf(e.nowFn())
	gapDays := GapSentinelDays
	var lastSuccess *time.Time
	if cp != nil && cp.LastSuccessfulDate != nil {
		lastSuccess = cp.LastSuccessfulDate
		gapDays = market.DaysBetween(*lastSuccess, today)
	}

	result := &BackfillResult{GapDays: gapDays}
	if gapDays <= maxGapDays {
		return result, nil
	}
	result.BackfillNeeded = true

	window := gapDays
	if maxBackfillDays > 0 && window > maxBackfillDays {
		window = maxBackfillDays
	}
	var start time.Time
	if lastSuccess != nil {
		start = lastSuccess.AddDate(0, 0, 1)
	} else {
		// No checkpoint: backfill the most recent window instead.
		start = today.AddDate(0, 0, -(window - 1))
	}
	end := start.AddDate(0, 0, window-1)
	if end.After(today) {
		end = today
	}

	logger.Infof("backfilling %s: gap=%dd window=[%s .. %s]",
		symbol, gapDays, start.Format(time.DateOnly), end.Format(time.DateOnly))

	count, err := e.LoadSymbol(ctx, symbol, LoadOptions{
		Start:       &start,
		End:         &end,
		Granularity: gran,
		Incremental: false,
	})
	result.RecordsLoaded = count
	return result, err
}

// HealthCheck reports whether both the provider and the checkpoint store
// answer. A data-class provider error still proves reachability.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	if err := e.bars.Ping(ctx); err != nil {
		logger.Warnf("health: store ping failed: %v", err)
		return false
	}
	if _, err := e.provider.ProbeSymbol(ctx, e.cfg.CanarySymbol); err != nil {
		if provider.KindOf(err) != provider.KindData {
			logger.Warnf("health: provider unreachable: %v", err)
			return false
		}
	}
	return true
}

// ProgressReport aggregates stored coverage for reporting.
type ProgressReport struct {
	TotalSymbols    int     `json:"total_symbols"`
	SymbolsWithData int     `json:"symbols_with_data"`
	TotalRecords    int64   `json:"total_records"`
	ProgressPercent float64 `json:"progress_percent"`
}

// Progress is a read-only aggregate over stored bars and symbols.
func (e *Engine) Progress(ctx context.Context, from, to time.Time) (*ProgressReport, error) {
	stats, err := e.bars.Progress(ctx, from, to)
	if err != nil {
		return nil, err
	}
	report := &ProgressReport{
		TotalSymbols:    stats.TotalSymbols,
		SymbolsWithData: stats.SymbolsWithData,
		TotalRecords:    stats.TotalRecords,
	}
	if stats.TotalSymbols > 0 {
		report.ProgressPercent = float64(stats.SymbolsWithData) / float64(stats.TotalSymbols) * 100
	}
	return report, nil
}
