// Package app wires configuration, storage, the provider client and the
// ingestion engine into a runnable application, and drives serve mode.
package app

import (
	"context"
	"fmt"
	"time"

	mscfg "marketsync/internal/config"
	"marketsync/internal/ingest"
	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/scheduler"
	"marketsync/internal/store/gormstore"
	"marketsync/internal/store/runlog"
	"marketsync/internal/symbols"
	opshttp "marketsync/internal/transport/http/ops"

	"golang.org/x/sync/errgroup"
)

// App holds the assembled ingestion stack. Commands use its accessors
// for one-shot operations; Run drives the long-lived serve mode.
type App struct {
	cfg     *mscfg.Config
	cfgPath string

	engine      *ingest.Engine
	manager     *symbols.Manager
	store       *gormstore.Store
	runs        *runlog.Store
	ops         *opshttp.Server
	granularity market.Granularity
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *mscfg.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg, opts...).Build(context.Background())
}

// Config exposes the loaded configuration.
func (a *App) Config() *mscfg.Config { return a.cfg }

// Engine exposes the ingestion engine for one-shot commands.
func (a *App) Engine() *ingest.Engine { return a.engine }

// Symbols exposes the symbol lifecycle manager.
func (a *App) Symbols() *symbols.Manager { return a.manager }

// Store exposes the persistence layer.
func (a *App) Store() *gormstore.Store { return a.store }

// RunLog exposes the batch run audit log. Nil when not configured.
func (a *App) RunLog() *runlog.Store { return a.runs }

// Granularity is the configured default bar granularity.
func (a *App) Granularity() market.Granularity { return a.granularity }

// Close releases the database handles.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("close run log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
	}
}

// Run starts serve mode: scheduled batch loads, the ops HTTP surface
// and, when a config path is known, live log-level reloads. It blocks
// until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	interval, err := time.ParseDuration(a.cfg.Schedule.Interval)
	if err != nil {
		return fmt.Errorf("parse schedule interval: %w", err)
	}
	offset := time.Duration(a.cfg.Schedule.OffsetSeconds) * time.Second

	active, err := a.store.ListActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list active symbols: %w", err)
	}
	summarize(a.cfg, len(active)).Print()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.ops.Run(ctx)
	})

	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, interval, offset)
		sched.RunImmediately = a.cfg.Schedule.RunImmediately
		sched.Start(func() { a.runBatch(ctx) })
		return nil
	})

	if a.cfgPath != "" {
		group.Go(func() error {
			err := mscfg.Watch(ctx, a.cfgPath, func(next *mscfg.Config) {
				if next.App.LogLevel != a.cfg.App.LogLevel {
					logger.Infof("config reload: log level %s -> %s", a.cfg.App.LogLevel, next.App.LogLevel)
					logger.SetLevel(next.App.LogLevel)
				}
				a.cfg.App.LogLevel = next.App.LogLevel
			})
			if err != nil {
				logger.Warnf("config watch disabled: %v", err)
			}
			return nil
		})
	}

	return group.Wait()
}

func (a *App) runBatch(ctx context.Context) {
	result, err := a.engine.LoadAll(ctx, ingest.BatchOptions{
		Granularity: a.granularity,
		MaxSymbols:  a.cfg.Ingestion.MaxSymbols,
		Incremental: a.cfg.Ingestion.Incremental,
	})
	if err != nil {
		logger.Errorf("scheduled batch failed: %v", err)
		return
	}
	logger.Infof("scheduled batch: %d/%d symbols ok, %d records, %d delisted",
		result.Successful, result.Total, result.TotalRecords, len(result.Delisted))
}
