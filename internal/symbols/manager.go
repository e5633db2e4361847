// Package symbols manages the lifecycle of tracked securities:
// registration, upstream health probes, and one-way delisting.
package symbols

import (
	"context"

	"marketsync/internal/logger"
	"marketsync/internal/market"
	"marketsync/internal/provider"

	"github.com/shopspring/decimal"
)

// Registry is the slice of the persistence layer the manager needs.
type Registry interface {
	RegisterSymbol(ctx context.Context, sym market.Symbol) error
	GetSymbol(ctx context.Context, code string) (*market.Symbol, error)
	ListActiveSymbols(ctx context.Context) ([]market.Symbol, error)
	MarkDelisted(ctx context.Context, code string, lastPrice decimal.NullDecimal, notes string) (bool, error)
}

// Prober is the provider-side metadata lookup.
type Prober interface {
	ProbeSymbol(ctx context.Context, symbol string) (*market.SymbolMeta, error)
}

// Manager owns symbol status transitions. Only active → delisted exists;
// nothing un-delists a symbol automatically.
type Manager struct {
	registry Registry
	prober   Prober
}

func NewManager(registry Registry, prober Prober) *Manager {
	return &Manager{registry: registry, prober: prober}
}

// Register normalizes and stores a symbol as active.
func (m *Manager) Register(ctx context.Context, sym market.Symbol) error {
	code, err := market.NormalizeSymbol(sym.Code)
	if err != nil {
		return err
	}
	sym.Code = code
	if sym.Status == "" {
		sym.Status = market.SymbolActive
	}
	return m.registry.RegisterSymbol(ctx, sym)
}

// ProbeHealth asks the provider whether a symbol still exists upstream.
// Only an unambiguous "does not exist" answer is treated as unhealthy:
// rate limits and transient network failures report healthy so a flaky
// provider cannot delist a live symbol.
func (m *Manager) ProbeHealth(ctx context.Context, symbol string) bool {
	meta, err := m.prober.ProbeSymbol(ctx, symbol)
	if err != nil {
		if provider.KindOf(err) == provider.KindData {
			logger.Infof("symbol %s not found upstream: %v", symbol, err)
			return false
		}
		logger.Warnf("probe for %s failed transiently, assuming healthy: %v", symbol, err)
		return true
	}
	// Some providers keep serving metadata for dead tickers with an
	// explicit inactive flag instead of a 404.
	return meta.Active
}

// MarkDelisted flips the symbol to delisted and appends an audit record.
// Returns false when the symbol is not registered. Repeat calls leave the
// symbol delisted; the extra audit rows are acceptable.
func (m *Manager) MarkDelisted(ctx context.Context, symbol string, lastPrice decimal.NullDecimal, notes string) (bool, error) {
	known, err := m.registry.MarkDelisted(ctx, symbol, lastPrice, notes)
	if err != nil {
		return false, err
	}
	if !known {
		logger.Warnf("cannot delist unknown symbol %s", symbol)
		return false, nil
	}
	logger.Infof("symbol %s marked delisted (%s)", symbol, notes)
	return true, nil
}

// SweepDelisted probes every active symbol and delists the unhealthy
// ones, returning the newly delisted codes.
func (m *Manager) SweepDelisted(ctx context.Context) ([]string, error) {
	active, err := m.registry.ListActiveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	var delisted []string
	for _, sym := range active {
		if m.ProbeHealth(ctx, sym.Code) {
			continue
		}
		ok, err := m.MarkDelisted(ctx, sym.Code, decimal.NullDecimal{}, "delisted by sweep")
		if err != nil {
			return delisted, err
		}
		if ok {
			delisted = append(delisted, sym.Code)
		}
	}
	return delisted, nil
}
