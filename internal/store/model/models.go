package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CheckpointStatus string

const (
	CheckpointSuccess CheckpointStatus = "success"
	CheckpointFailed  CheckpointStatus = "failed"
	CheckpointPartial CheckpointStatus = "partial"
)

// BarModel is one OHLCV row. The unique index over (symbol, ts, source)
// is what makes the bulk upsert idempotent.
type BarModel struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	Symbol    string          `gorm:"column:symbol;uniqueIndex:idx_bar_identity,priority:1"`
	Timestamp time.Time       `gorm:"column:ts;uniqueIndex:idx_bar_identity,priority:2"`
	Source    string          `gorm:"column:source;uniqueIndex:idx_bar_identity,priority:3"`
	Open      decimal.Decimal `gorm:"column:open;type:TEXT"`
	High      decimal.Decimal `gorm:"column:high;type:TEXT"`
	Low       decimal.Decimal `gorm:"column:low;type:TEXT"`
	Close     decimal.Decimal `gorm:"column:close;type:TEXT"`
	Volume    int64           `gorm:"column:volume"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (BarModel) TableName() string { return "bars" }

// CheckpointModel records ingestion progress for one
// (symbol, source, granularity) key. Rows are upserted on every attempt
// and never deleted.
type CheckpointModel struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Symbol   string `gorm:"column:symbol;uniqueIndex:idx_checkpoint_key,priority:1"`
	Source   string `gorm:"column:source;uniqueIndex:idx_checkpoint_key,priority:2"`
	GranUnit string `gorm:"column:gran_unit;uniqueIndex:idx_checkpoint_key,priority:3"`
	GranMult int    `gorm:"column:gran_mult;uniqueIndex:idx_checkpoint_key,priority:4"`

	LastRunDate        time.Time        `gorm:"column:last_run_date"`
	LastSuccessfulDate *time.Time       `gorm:"column:last_successful_date"`
	RecordsLoaded      int              `gorm:"column:records_loaded"`
	Status             CheckpointStatus `gorm:"column:status"`
	ErrorMessage       string           `gorm:"column:error_message"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (CheckpointModel) TableName() string { return "checkpoints" }

// SymbolModel is the registry row for a tracked security. Symbols are
// soft-deleted by flipping status to delisted, never removed.
type SymbolModel struct {
	Code     string `gorm:"column:code;primaryKey"`
	Name     string `gorm:"column:name"`
	Exchange string `gorm:"column:exchange"`
	Sector   string `gorm:"column:sector"`
	Status   string `gorm:"column:status;index"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (SymbolModel) TableName() string { return "symbols" }

// DelistingRecordModel is the append-only audit trail of delisting events.
type DelistingRecordModel struct {
	ID         string              `gorm:"column:id;primaryKey"`
	Symbol     string              `gorm:"column:symbol;index"`
	DelistDate time.Time           `gorm:"column:delist_date"`
	LastPrice  decimal.NullDecimal `gorm:"column:last_price;type:TEXT"`
	Details    datatypes.JSON      `gorm:"column:details;type:TEXT"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
}

func (DelistingRecordModel) TableName() string { return "delisting_records" }
