package ingest

import (
	"context"
	"fmt"
	"time"

	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/provider"
	"marketsync/internal/store/runlog"
)

// BatchOptions selects the range and mode for an all-symbols run.
type BatchOptions struct {
	Start       *time.Time
	End         *time.Time
	Granularity market.Granularity
	// MaxSymbols truncates the active list; 0 means no limit.
	MaxSymbols  int
	Incremental bool
	ForceFull   bool
}

func (o BatchOptions) granularity() market.Granularity {
	if o.Granularity.Valid() {
		return o.Granularity
	}
	return market.Daily
}

// BatchError pins a failure to the symbol that caused it.
type BatchError struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Err    string `json:"error"`
}

// BatchResult summarizes an all-symbols run. The engine never decides
// process exit policy; callers inspect Failed/Errors themselves.
type BatchResult struct {
	RunID        string       `json:"run_id,omitempty"`
	Total        int          `json:"total"`
	Successful   int          `json:"successful"`
	Failed       int          `json:"failed"`
	TotalRecords int          `json:"total_records"`
	Errors       []BatchError `json:"errors,omitempty"`
	Delisted     []string     `json:"delisted,omitempty"`
	Aborted      bool         `json:"aborted,omitempty"`
}

// LoadAll ingests every active symbol in a fixed order, isolating
// per-symbol failures so one bad symbol cannot sink the batch. The only
// hard stop is an auth failure, since no later symbol could succeed.
func (e *Engine) LoadAll(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	startedAt := e.nowFn()

	active, err := e.symbols.ListActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active symbols: %w", err)
	}
	if opts.MaxSymbols > 0 && len(active) > opts.MaxSymbols {
		active = active[:opts.MaxSymbols]
	}

	result := &BatchResult{Total: len(active)}
	loadOpts := LoadOptions{
		Start:       opts.Start,
		End:         opts.End,
		Granularity: opts.Granularity,
		Incremental: opts.Incremental,
		ForceFull:   opts.ForceFull,
	}

	for i, sym := range active {
		count, delisted, err := e.loadSymbol(ctx, sym.Code, loadOpts)
		if delisted {
			result.Delisted = append(result.Delisted, sym.Code)
		}
		if err != nil {
			result.Failed++
			kind := provider.KindOf(err)
			result.Errors = append(result.Errors, BatchError{
				Symbol: sym.Code,
				Kind:   kind.String(),
				Err:    err.Error(),
			})
			logger.Warnf("batch: %s failed: %v", sym.Code, err)
			if kind == provider.KindAuth {
				logger.Errorf("batch: aborting, credentials rejected by provider")
				result.Aborted = true
				break
			}
		} else {
			result.Successful++
			result.TotalRecords += count
		}
		if i < len(active)-1 {
			if err := e.pace(ctx); err != nil {
				return result, err
			}
		}
	}

	// The sweep re-probes everything still active. Symbols delisted
	// inline above are no longer active, so there is no double count.
	if e.cfg.DelistingDetection && e.lifecycle != nil && !result.Aborted {
		swept, err := e.lifecycle.SweepDelisted(ctx)
		if err != nil {
			logger.Warnf("batch: delisting sweep failed: %v", err)
		}
		result.Delisted = append(result.Delisted, swept...)
	}

	e.appendRunLog(ctx, startedAt, opts, result)
	logger.Infof("batch complete: %d/%d symbols, %d records, %d failed",
		result.Successful, result.Total, result.TotalRecords, result.Failed)
	return result, nil
}

// pace sleeps between provider calls to stay inside the request budget.
func (e *Engine) pace(ctx context.Context) error {
	if e.cfg.RequestsPerMinute <= 0 {
		return nil
	}
	delay := time.Minute / time.Duration(e.cfg.RequestsPerMinute)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) appendRunLog(ctx context.Context, startedAt time.Time, opts BatchOptions, result *BatchResult) {
	if e.runs == nil {
		return
	}
	errs := make([]string, 0, len(result.Errors))
	for _, be := range result.Errors {
		errs = append(errs, be.Symbol+": "+be.Err)
	}
	runID, err := e.runs.Append(ctx, runlog.Record{
		StartedAt:    startedAt,
		FinishedAt:   e.nowFn(),
		Granularity:  opts.granularity().String(),
		Total:        result.Total,
		Successful:   result.Successful,
		Failed:       result.Failed,
		TotalRecords: result.TotalRecords,
		Errors:       errs,
		Delisted:     result.Delisted,
	})
	if err != nil {
		logger.Warnf("batch: appending run log failed: %v", err)
		return
	}
	result.RunID = runID
}
