package app

import (
	"fmt"
	"strings"

	mscfg "marketsync/internal/config"
)

// StartupSummary is the banner serve mode prints before the first run.
type StartupSummary struct {
	Env         string
	Provider    string
	Granularity string
	Incremental bool
	Delisting   bool
	Schedule    string
	HTTPAddr    string
	SymbolCount int
}

func summarize(cfg *mscfg.Config, symbolCount int) *StartupSummary {
	return &StartupSummary{
		Env:         cfg.App.Env,
		Provider:    cfg.Provider.Name,
		Granularity: cfg.Ingestion.Granularity,
		Incremental: cfg.Ingestion.Incremental,
		Delisting:   cfg.Ingestion.DelistingDetection,
		Schedule:    fmt.Sprintf("every %s +%ds", cfg.Schedule.Interval, cfg.Schedule.OffsetSeconds),
		HTTPAddr:    cfg.App.HTTPAddr,
		SymbolCount: symbolCount,
	}
}

func (s *StartupSummary) Print() {
	if s == nil {
		return
	}
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("MARKETSYNC STARTUP")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  env:          %s\n", s.Env)
	fmt.Printf("  provider:     %s\n", s.Provider)
	fmt.Printf("  granularity:  %s\n", s.Granularity)
	fmt.Printf("  incremental:  %v\n", s.Incremental)
	fmt.Printf("  delisting:    %v\n", s.Delisting)
	fmt.Printf("  schedule:     %s\n", s.Schedule)
	fmt.Printf("  ops http:     %s\n", s.HTTPAddr)
	fmt.Printf("  symbols:      %d active\n", s.SymbolCount)
	fmt.Println(strings.Repeat("=", 60))
}
