package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"marketsync/internal/app"
	mscfg "marketsync/internal/config"
	"marketsync/internal/ingest"
	"marketsync/internal/logger"
	"marketsync/internal/market"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "marketsync",
		Usage:   "Incremental OHLCV market data ingestion",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format: text, json or yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "load",
				Usage:     "Load bars for one symbol",
				ArgsUsage: "SYMBOL",
				Action:    runLoad,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "end", Usage: "End date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "granularity", Usage: "Bar granularity, e.g. 1d or 5m"},
					&cli.BoolFlag{Name: "full", Usage: "Ignore the checkpoint and reload the whole range"},
				},
			},
			{
				Name:   "load-all",
				Usage:  "Load bars for every active symbol",
				Action: runLoadAll,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "granularity", Usage: "Bar granularity, e.g. 1d or 5m"},
					&cli.IntFlag{Name: "max-symbols", Usage: "Limit the number of symbols processed"},
					&cli.BoolFlag{Name: "full", Usage: "Ignore checkpoints and reload the whole range"},
				},
			},
			{
				Name:      "backfill",
				Usage:     "Detect a checkpoint gap for a symbol and backfill it",
				ArgsUsage: "SYMBOL",
				Action:    runBackfill,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-gap", Usage: "Acceptable gap in days before backfilling"},
					&cli.IntFlag{Name: "max-backfill", Usage: "Upper bound on the backfill window in days"},
				},
			},
			{
				Name:   "sweep",
				Usage:  "Probe active symbols and mark unhealthy ones delisted",
				Action: runSweep,
			},
			{
				Name:   "health",
				Usage:  "Check database and provider reachability",
				Action: runHealth,
			},
			{
				Name:   "progress",
				Usage:  "Report ingestion coverage over a date range",
				Action: runProgress,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Range start (YYYY-MM-DD), default 30 days ago"},
					&cli.StringFlag{Name: "to", Usage: "Range end (YYYY-MM-DD), default today"},
				},
			},
			{
				Name:  "symbols",
				Usage: "Manage the symbol directory",
				Subcommands: []*cli.Command{
					{
						Name:      "import",
						Usage:     "Register symbols from a JSON seed file",
						ArgsUsage: "FILE",
						Action:    runSymbolsImport,
					},
					{
						Name:   "list",
						Usage:  "List known symbols and their status",
						Action: runSymbolsList,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run scheduled batch loads with the ops HTTP endpoint",
				Action: runServe,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("marketsync: %v", err)
	}
}

func buildApp(c *cli.Context) (*app.App, func(), error) {
	cfgPath := c.String("config")
	cfg, err := mscfg.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	a, err := app.NewApp(cfg, app.WithConfigPath(cfgPath))
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		a.Close()
		if logFile != nil {
			logFile.Close()
		}
	}
	return a, cleanup, nil
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func parseDateFlag(c *cli.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q: %w", name, raw, err)
	}
	return &t, nil
}

func parseGranularityFlag(c *cli.Context, fallback market.Granularity) (market.Granularity, error) {
	raw := strings.TrimSpace(c.String("granularity"))
	if raw == "" {
		return fallback, nil
	}
	return market.ParseGranularity(raw)
}

func emit(c *cli.Context, v any) error {
	switch strings.ToLower(c.String("output")) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	default:
		fmt.Printf("%+v\n", v)
		return nil
	}
}

func runLoad(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: marketsync load SYMBOL")
	}
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	start, err := parseDateFlag(c, "start")
	if err != nil {
		return err
	}
	end, err := parseDateFlag(c, "end")
	if err != nil {
		return err
	}
	gran, err := parseGranularityFlag(c, a.Granularity())
	if err != nil {
		return err
	}

	count, err := a.Engine().LoadSymbol(ctx, c.Args().First(), ingest.LoadOptions{
		Start:       start,
		End:         end,
		Granularity: gran,
		Incremental: !c.Bool("full"),
		ForceFull:   c.Bool("full"),
	})
	if err != nil {
		return err
	}
	return emit(c, map[string]any{"symbol": c.Args().First(), "records": count})
}

func runLoadAll(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	gran, err := parseGranularityFlag(c, a.Granularity())
	if err != nil {
		return err
	}

	maxSymbols := c.Int("max-symbols")
	if !c.IsSet("max-symbols") {
		maxSymbols = a.Config().Ingestion.MaxSymbols
	}

	result, err := a.Engine().LoadAll(ctx, ingest.BatchOptions{
		Granularity: gran,
		MaxSymbols:  maxSymbols,
		Incremental: !c.Bool("full"),
		ForceFull:   c.Bool("full"),
	})
	if err != nil {
		return err
	}
	if err := emit(c, result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", result.Failed, result.Total)
	}
	return nil
}

func runBackfill(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: marketsync backfill SYMBOL")
	}
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	maxGap := c.Int("max-gap")
	if !c.IsSet("max-gap") {
		maxGap = a.Config().Ingestion.MaxGapDays
	}
	maxBackfill := c.Int("max-backfill")
	if !c.IsSet("max-backfill") {
		maxBackfill = a.Config().Ingestion.MaxBackfillDays
	}
	result, err := a.Engine().DetectGapAndBackfill(ctx, c.Args().First(), a.Granularity(), maxGap, maxBackfill)
	if err != nil {
		return err
	}
	return emit(c, result)
}

func runSweep(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	delisted, err := a.Symbols().SweepDelisted(ctx)
	if err != nil {
		return err
	}
	return emit(c, map[string]any{"delisted": delisted, "count": len(delisted)})
}

func runHealth(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if !a.Engine().HealthCheck(ctx) {
		return fmt.Errorf("unhealthy: database or provider unreachable")
	}
	return emit(c, map[string]any{"status": "ok"})
}

func runProgress(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	from, err := parseDateFlag(c, "from")
	if err != nil {
		return err
	}
	to, err := parseDateFlag(c, "to")
	if err != nil {
		return err
	}
	end := market.Today()
	if to != nil {
		end = market.DateOf(*to)
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = market.DateOf(*from)
	}

	report, err := a.Engine().Progress(ctx, start, end)
	if err != nil {
		return err
	}
	return emit(c, report)
}

func runSymbolsImport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: marketsync symbols import FILE")
	}
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	n, err := a.Symbols().ImportSeedFile(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return emit(c, map[string]any{"registered": n})
}

func runSymbolsList(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	list, err := a.Store().ListSymbols(ctx)
	if err != nil {
		return err
	}
	if strings.ToLower(c.String("output")) != "text" {
		return emit(c, list)
	}
	for _, s := range list {
		fmt.Printf("%-10s %-8s %s\n", s.Code, s.Status, s.Name)
	}
	return nil
}

func runServe(c *cli.Context) error {
	a, cleanup, err := buildApp(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	return a.Run(ctx)
}
