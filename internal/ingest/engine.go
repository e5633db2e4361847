// Package ingest implements the incremental ingestion engine: it decides
// what date range to fetch per symbol, persists bars idempotently, tracks
// progress through durable checkpoints, and reacts to symbols going bad.
package ingest

import (
	"context"
	"fmt"
	"time"

	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/provider"
	"marketsync/internal/store"
	"marketsync/internal/store/model"
	"marketsync/internal/store/runlog"

	"github.com/shopspring/decimal"
)

// BarStore is the idempotent persistence contract for bars.
type BarStore interface {
	UpsertBars(ctx context.Context, bars []market.Bar) (int, error)
	Progress(ctx context.Context, from, to time.Time) (*store.ProgressStats, error)
	Ping(ctx context.Context) error
}

// CheckpointStore is the durable progress contract.
type CheckpointStore interface {
	Checkpoint(ctx context.Context, symbol, source string, gran market.Granularity) (*store.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp *store.Checkpoint) error
}

// SymbolDirectory lists the symbols a batch run covers.
type SymbolDirectory interface {
	ListActiveSymbols(ctx context.Context) ([]market.Symbol, error)
}

// Lifecycle is the delisting side of the symbol manager.
type Lifecycle interface {
	ProbeHealth(ctx context.Context, symbol string) bool
	MarkDelisted(ctx context.Context, symbol string, lastPrice decimal.NullDecimal, notes string) (bool, error)
	SweepDelisted(ctx context.Context) ([]string, error)
}

// RunLog records batch run summaries. Optional.
type RunLog interface {
	Append(ctx context.Context, rec runlog.Record) (string, error)
}

// Config tunes the engine. Zero values get sensible defaults.
type Config struct {
	// DefaultLookbackDays bounds a full load with no explicit start.
	DefaultLookbackDays int
	// RequestsPerMinute is the provider budget; the pacing delay between
	// symbols in a batch is derived from it.
	RequestsPerMinute int
	// DelistingDetection enables health probes on empty results and
	// not-found failures, plus the post-batch sweep.
	DelistingDetection bool
	// Adjusted requests split/dividend adjusted prices.
	Adjusted bool
	// CanarySymbol is probed by HealthCheck to prove the provider is
	// reachable.
	CanarySymbol string
}

const (
	defaultLookbackDays = 365
	defaultCanarySymbol = "AAPL"
)

func (c Config) withDefaults() Config {
	if c.DefaultLookbackDays <= 0 {
		c.DefaultLookbackDays = defaultLookbackDays
	}
	if c.CanarySymbol == "" {
		c.CanarySymbol = defaultCanarySymbol
	}
	return c
}

// Engine orchestrates fetch, transform, persist and checkpoint for each
// symbol. All collaborators are injected; the engine holds no durable
// state of its own.
type Engine struct {
	provider    provider.Client
	bars        BarStore
	checkpoints CheckpointStore
	symbols     SymbolDirectory
	lifecycle   Lifecycle
	runs        RunLog
	cfg         Config

	nowFn func() time.Time
}

func NewEngine(pc provider.Client, bars BarStore, checkpoints CheckpointStore, symbols SymbolDirectory, lifecycle Lifecycle, runs RunLog, cfg Config) *Engine {
	return &Engine{
		provider:    pc,
		bars:        bars,
		checkpoints: checkpoints,
		symbols:     symbols,
		lifecycle:   lifecycle,
		runs:        runs,
		cfg:         cfg.withDefaults(),
		nowFn:       time.Now,
	}
}

// LoadOptions selects the range and mode for a single-symbol load.
type LoadOptions struct {
	// Start and End are civil dates, both inclusive. Nil means derive
	// from the checkpoint (incremental) or the default lookback (full).
	Start *time.Time
	End   *time.Time
	// Granularity defaults to daily bars.
	Granularity market.Granularity
	// Incremental resumes from the checkpoint's last successful date.
	Incremental bool
	// ForceFull ignores the checkpoint even when Incremental is set.
	ForceFull bool
}

func (o LoadOptions) granularity() market.Granularity {
	if o.Granularity.Valid() {
		return o.Granularity
	}
	return market.Daily
}

// LoadSymbol ingests one symbol and returns the number of bars written.
// The checkpoint is always updated before an error is returned, so
// durable state never goes stale.
func (e *Engine) LoadSymbol(ctx context.Context, symbol string, opts LoadOptions) (int, error) {
	count, _, err := e.loadSymbol(ctx, symbol, opts)
	return count, err
}

func (e *Engine) loadSymbol(ctx context.Context, symbol string, opts LoadOptions) (count int, delisted bool, err error) {
	symbol, err = market.NormalizeSymbol(symbol)
	if err != nil {
		return 0, false, err
	}
	gran := opts.granularity()
	source := e.provider.Name()

	prior, err := e.checkpoints.Checkpoint(ctx, symbol, source, gran)
	if err != nil {
		return 0, false, fmt.Errorf("reading checkpoint for %s: %w", symbol, err)
	}

	today := market.DateOf(e.nowFn())
	start, end := e.resolveRange(opts, prior, today)
	if start.After(end) {
		logger.Debugf("%s already loaded through %s, nothing to do", symbol, end.Format(time.DateOnly))
		return 0, false, nil
	}

	logger.Debugf("loading %s [%s .. %s] gran=%s incremental=%v",
		symbol, start.Format(time.DateOnly), end.Format(time.DateOnly), gran, opts.Incremental && !opts.ForceFull)

	bars, err := e.provider.FetchBars(ctx, symbol, start, end, gran, e.cfg.Adjusted)
	if err != nil {
		if e.cfg.DelistingDetection && provider.KindOf(err) == provider.KindData {
			delisted = e.probeAndMaybeDelist(ctx, symbol)
		}
		e.recordFailure(ctx, symbol, source, gran, prior, today, err)
		return 0, delisted, fmt.Errorf("fetching %s: %w", symbol, err)
	}

	if len(bars) == 0 {
		// An empty range is a normal outcome, not a failure, but it can
		// also be the first sign of a delisting.
		if e.cfg.DelistingDetection {
			delisted = e.probeAndMaybeDelist(ctx, symbol)
		}
		cp := &store.Checkpoint{
			Symbol:             symbol,
			Source:             source,
			Granularity:        gran,
			LastRunDate:        today,
			LastSuccessfulDate: priorSuccess(prior),
			RecordsLoaded:      0,
			Status:             model.CheckpointSuccess,
		}
		if err := e.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
			return 0, delisted, fmt.Errorf("saving checkpoint for %s: %w", symbol, err)
		}
		return 0, delisted, nil
	}

	count, err = e.bars.UpsertBars(ctx, bars)
	if err != nil {
		e.recordFailure(ctx, symbol, source, gran, prior, today, err)
		return 0, false, fmt.Errorf("persisting %s: %w", symbol, err)
	}

	lastSuccess := priorSuccess(prior)
	if latest, ok := market.LatestDate(bars); ok {
		if lastSuccess == nil || latest.After(*lastSuccess) {
			lastSuccess = &latest
		}
	}
	cp := &store.Checkpoint{
		Symbol:             symbol,
		Source:             source,
		Granularity:        gran,
		LastRunDate:        today,
		LastSuccessfulDate: lastSuccess,
		RecordsLoaded:      count,
		Status:             model.CheckpointSuccess,
	}
	if err := e.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		return count, false, fmt.Errorf("saving checkpoint for %s: %w", symbol, err)
	}
	logger.Infof("loaded %d bars for %s through %s", count, symbol, lastSuccess.Format(time.DateOnly))
	return count, false, nil
}

// resolveRange picks the fetch window: incremental loads resume the day
// after the last confirmed date, full loads use the explicit range or the
// default lookback.
func (e *Engine) resolveRange(opts LoadOptions, prior *store.Checkpoint, today time.Time) (time.Time, time.Time) {
	end := today
	if opts.End != nil {
		end = market.DateOf(*opts.End)
	}
	if opts.Incremental && !opts.ForceFull && prior != nil && prior.LastSuccessfulDate != nil {
		return prior.LastSuccessfulDate.AddDate(0, 0, 1), end
	}
	if opts.Start != nil {
		return market.DateOf(*opts.Start), end
	}
	return today.AddDate(0, 0, -e.cfg.DefaultLookbackDays), end
}

// recordFailure writes a failed checkpoint preserving the prior
// last_successful_date; a failure never advances progress.
func (e *Engine) recordFailure(ctx context.Context, symbol, source string, gran market.Granularity, prior *store.Checkpoint, today time.Time, cause error) {
	cp := &store.Checkpoint{
		Symbol:             symbol,
		Source:             source,
		Granularity:        gran,
		LastRunDate:        today,
		LastSuccessfulDate: priorSuccess(prior),
		RecordsLoaded:      0,
		Status:             model.CheckpointFailed,
		ErrorMessage:       cause.Error(),
	}
	if err := e.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		logger.Errorf("saving failed checkpoint for %s: %v", symbol, err)
	}
}

func (e *Engine) probeAndMaybeDelist(ctx context.Context, symbol string) bool {
	if e.lifecycle == nil {
		return false
	}
	if e.lifecycle.ProbeHealth(ctx, symbol) {
		return false
	}
	ok, err := e.lifecycle.MarkDelisted(ctx, symbol, decimal.NullDecimal{}, "no data and provider probe failed")
	if err != nil {
		logger.Errorf("delisting %s: %v", symbol, err)
		return false
	}
	return ok
}

func priorSuccess(prior *store.Checkpoint) *time.Time {
	if prior == nil || prior.LastSuccessfulDate == nil {
		return nil
	}
	d := *prior.LastSuccessfulDate
	return &d
}
