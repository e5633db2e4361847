package app

import (
	"context"
	"fmt"
	"time"

	mscfg "marketsync/internal/config"
	"marketsync/internal/ingest"
	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/provider"
	"marketsync/internal/store/gormstore"
	"marketsync/internal/store/runlog"
	"marketsync/internal/symbols"
	opshttp "marketsync/internal/transport/http/ops"
)

// AppBuilder assembles the ingestion stack step by step. Each stage can
// be overridden, which keeps the wiring testable without a real
// provider or database on disk.
type AppBuilder struct {
	cfg     *mscfg.Config
	cfgPath string

	providerFn func(mscfg.ProviderConfig) (provider.Client, error)
	storeFn    func(mscfg.DatabaseConfig) (*gormstore.Store, error)
	runLogFn   func(mscfg.DatabaseConfig) (*runlog.Store, error)

	providerOverride provider.Client
}

type AppBuilderOption func(*AppBuilder)

// WithProvider substitutes the upstream client, mainly for tests.
func WithProvider(pc provider.Client) AppBuilderOption {
	return func(b *AppBuilder) { b.providerOverride = pc }
}

// WithConfigPath enables live config reloads in serve mode by telling
// the app which file to watch.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.cfgPath = path }
}

func NewAppBuilder(cfg *mscfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		providerFn: buildProvider,
		storeFn:    buildStore,
		runLogFn:   buildRunLog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildProvider(cfg mscfg.ProviderConfig) (provider.Client, error) {
	return provider.New(provider.Options{
		Name:    cfg.Name,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

func buildStore(cfg mscfg.DatabaseConfig) (*gormstore.Store, error) {
	return gormstore.Open(cfg.Path)
}

func buildRunLog(cfg mscfg.DatabaseConfig) (*runlog.Store, error) {
	if cfg.RunLogPath == "" {
		return nil, nil
	}
	return runlog.Open(cfg.RunLogPath)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	pc := b.providerOverride
	if pc == nil {
		var err error
		pc, err = b.providerFn(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("build provider: %w", err)
		}
	}

	st, err := b.storeFn(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	runs, err := b.runLogFn(cfg.Database)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open run log: %w", err)
	}

	manager := symbols.NewManager(st, pc)
	if cfg.Symbols.SeedFile != "" {
		n, err := manager.ImportSeedFile(ctx, cfg.Symbols.SeedFile)
		if err != nil {
			logger.Warnf("symbol seed import failed (%s): %v", cfg.Symbols.SeedFile, err)
		} else if n > 0 {
			logger.Infof("symbol seed: registered %d symbols from %s", n, cfg.Symbols.SeedFile)
		}
	}

	gran, err := market.ParseGranularity(cfg.Ingestion.Granularity)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("parse granularity: %w", err)
	}

	var runLog ingest.RunLog
	if runs != nil {
		runLog = runs
	}
	engine := ingest.NewEngine(pc, st, st, st, manager, runLog, ingest.Config{
		DefaultLookbackDays: cfg.Ingestion.LookbackDays,
		RequestsPerMinute:   cfg.Provider.RequestsPerMinute,
		DelistingDetection:  cfg.Ingestion.DelistingDetection,
		Adjusted:            cfg.Provider.Adjusted,
		CanarySymbol:        cfg.Provider.CanarySymbol,
	})

	var runReader opshttp.RunLogReader
	if runs != nil {
		runReader = runs
	}
	ops, err := opshttp.NewServer(opshttp.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Engine: engine,
		Store:  st,
		RunLog: runReader,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build ops http: %w", err)
	}

	return &App{
		cfg:         cfg,
		cfgPath:     b.cfgPath,
		engine:      engine,
		manager:     manager,
		store:       st,
		runs:        runs,
		ops:         ops,
		granularity: gran,
	}, nil
}
