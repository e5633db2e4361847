package config

import (
	"fmt"
	"strings"
	"time"

	"marketsync/internal/market"
)

func validate(c *Config) error {
	if err := c.Provider.validate(); err != nil {
		return err
	}
	if err := c.Ingestion.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Name)) {
	case "polygon", "binance":
	default:
		return fmt.Errorf("provider.name must be polygon or binance, got %q", p.Name)
	}
	if p.RequestsPerMinute < 0 {
		return fmt.Errorf("provider.requests_per_minute must be >= 0")
	}
	if p.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	return nil
}

func (i *IngestionConfig) validate() error {
	if _, err := market.ParseGranularity(i.Granularity); err != nil {
		return fmt.Errorf("ingestion.granularity: %w", err)
	}
	if i.LookbackDays <= 0 {
		return fmt.Errorf("ingestion.lookback_days must be > 0")
	}
	if i.MaxGapDays < 0 || i.MaxBackfillDays < 0 {
		return fmt.Errorf("ingestion gap/backfill bounds must be >= 0")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if _, err := time.ParseDuration(s.Interval); err != nil {
		return fmt.Errorf("schedule.interval: %w", err)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("schedule.offset_seconds must be >= 0")
	}
	return nil
}
