// Package store defines the durable records exchanged between the
// ingestion engine and the persistence backends.
package store

import (
	"time"

	"marketsync/internal/market"
	"marketsync/internal/store/model"

	"github.com/shopspring/decimal"
)

// Checkpoint is the durable ingestion progress for one
// (symbol, source, granularity) key.
//
// LastRunDate is the date of the most recent attempt regardless of outcome.
// LastSuccessfulDate is the latest date for which data is confirmed present;
// it never regresses and is nil until the first bar lands.
type Checkpoint struct {
	Symbol      string
	Source      string
	Granularity market.Granularity

	LastRunDate        time.Time
	LastSuccessfulDate *time.Time
	RecordsLoaded      int
	Status             model.CheckpointStatus
	ErrorMessage       string
}

// DelistingRecord is one immutable delisting audit event.
type DelistingRecord struct {
	ID         string
	Symbol     string
	DelistDate time.Time
	LastPrice  decimal.NullDecimal
	Notes      string
}

// ProgressStats aggregates coverage over the bar and symbol tables.
type ProgressStats struct {
	TotalSymbols    int
	SymbolsWithData int
	TotalRecords    int64
}
