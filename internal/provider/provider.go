package provider

import (
	"context"
	"time"

	"marketsync/internal/market"
)

// Client fetches bars and symbol metadata from one upstream data source.
// Implementations return *Error so callers can classify failures.
type Client interface {
	// Name identifies the source; it is stored alongside every bar and
	// checkpoint written from this client.
	Name() string

	// FetchBars returns all bars for symbol in [start, end] (civil dates,
	// inclusive) at the requested granularity. An empty result is not an
	// error: it means the provider has no data for the range.
	FetchBars(ctx context.Context, symbol string, start, end time.Time, gran market.Granularity, adjusted bool) ([]market.Bar, error)

	// ProbeSymbol looks up entity metadata for a symbol. A KindData error
	// means the provider does not know the symbol.
	ProbeSymbol(ctx context.Context, symbol string) (*market.SymbolMeta, error)
}
