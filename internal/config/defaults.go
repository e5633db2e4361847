package config

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":8087"
	defaultProviderName  = "polygon"
	defaultTimeoutSecs   = 30
	defaultRequestsPerMn = 5
	defaultCanarySymbol  = "AAPL"
	defaultGranularity   = "1d"
	defaultLookbackDays  = 365
	defaultMaxGapDays    = 7
	defaultMaxBackfill   = 30
	defaultDBPath        = "data/marketsync.db"
	defaultRunLogPath    = "data/runs.db"
	defaultInterval      = "24h"
	defaultOffsetSecs    = 3600
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Provider.applyDefaults(keys)
	c.Ingestion.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (p *ProviderConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("provider.name", &p.Name, defaultProviderName),
		intFieldDefault("provider.timeout_seconds", &p.TimeoutSeconds, defaultTimeoutSecs),
		intFieldDefault("provider.requests_per_minute", &p.RequestsPerMinute, defaultRequestsPerMn),
		stringFieldDefault("provider.canary_symbol", &p.CanarySymbol, defaultCanarySymbol),
		boolFieldDefault("provider.adjusted", &p.Adjusted, true),
	)
}

func (i *IngestionConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ingestion.granularity", &i.Granularity, defaultGranularity),
		intFieldDefault("ingestion.lookback_days", &i.LookbackDays, defaultLookbackDays),
		intFieldDefault("ingestion.max_gap_days", &i.MaxGapDays, defaultMaxGapDays),
		intFieldDefault("ingestion.max_backfill_days", &i.MaxBackfillDays, defaultMaxBackfill),
		boolFieldDefault("ingestion.incremental", &i.Incremental, true),
		boolFieldDefault("ingestion.delisting_detection", &i.DelistingDetection, true),
	)
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.path", &d.Path, defaultDBPath),
		stringFieldDefault("database.run_log_path", &d.RunLogPath, defaultRunLogPath),
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("schedule.interval", &s.Interval, defaultInterval),
		intFieldDefault("schedule.offset_seconds", &s.OffsetSeconds, defaultOffsetSecs),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
