package symbols

import (
	"context"
	"errors"
	"testing"

	"marketsync/internal/market"
	"marketsync/internal/provider"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRegistry struct {
	symbols  map[string]market.Symbol
	delisted []string
	listErr  error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{symbols: make(map[string]market.Symbol)}
}

func (r *memRegistry) RegisterSymbol(_ context.Context, sym market.Symbol) error {
	r.symbols[sym.Code] = sym
	return nil
}

func (r *memRegistry) GetSymbol(_ context.Context, code string) (*market.Symbol, error) {
	sym, ok := r.symbols[code]
	if !ok {
		return nil, nil
	}
	return &sym, nil
}

func (r *memRegistry) ListActiveSymbols(context.Context) ([]market.Symbol, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []market.Symbol
	for _, sym := range r.symbols {
		if sym.Status == market.SymbolActive {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (r *memRegistry) MarkDelisted(_ context.Context, code string, _ decimal.NullDecimal, _ string) (bool, error) {
	sym, ok := r.symbols[code]
	if !ok {
		return false, nil
	}
	sym.Status = market.SymbolDelisted
	r.symbols[code] = sym
	r.delisted = append(r.delisted, code)
	return true, nil
}

type stubProber struct {
	fn func(symbol string) (*market.SymbolMeta, error)
}

func (p *stubProber) ProbeSymbol(_ context.Context, symbol string) (*market.SymbolMeta, error) {
	if p.fn == nil {
		return &market.SymbolMeta{Symbol: symbol, Active: true}, nil
	}
	return p.fn(symbol)
}

func TestRegisterNormalizesCode(t *testing.T) {
	reg := newMemRegistry()
	m := NewManager(reg, &stubProber{})

	err := m.Register(context.Background(), market.Symbol{Code: "  aapl "})
	require.NoError(t, err)

	sym, ok := reg.symbols["AAPL"]
	require.True(t, ok)
	assert.Equal(t, market.SymbolActive, sym.Status)
}

func TestRegisterRejectsEmptyCode(t *testing.T) {
	m := NewManager(newMemRegistry(), &stubProber{})
	err := m.Register(context.Background(), market.Symbol{Code: "   "})
	require.Error(t, err)
}

func TestProbeHealth(t *testing.T) {
	cases := []struct {
		name    string
		fn      func(string) (*market.SymbolMeta, error)
		healthy bool
	}{
		{
			name:    "active upstream",
			fn:      nil,
			healthy: true,
		},
		{
			name: "inactive metadata",
			fn: func(symbol string) (*market.SymbolMeta, error) {
				return &market.SymbolMeta{Symbol: symbol, Active: false}, nil
			},
			healthy: false,
		},
		{
			name: "not found",
			fn: func(symbol string) (*market.SymbolMeta, error) {
				return nil, &provider.Error{Kind: provider.KindData, Provider: "test", Symbol: symbol, Err: errors.New("unknown ticker")}
			},
			healthy: false,
		},
		{
			name: "rate limited stays healthy",
			fn: func(symbol string) (*market.SymbolMeta, error) {
				return nil, &provider.Error{Kind: provider.KindRateLimit, Provider: "test", Err: errors.New("throttled")}
			},
			healthy: true,
		},
		{
			name: "network failure stays healthy",
			fn: func(symbol string) (*market.SymbolMeta, error) {
				return nil, &provider.Error{Kind: provider.KindConnection, Provider: "test", Err: errors.New("timeout")}
			},
			healthy: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(newMemRegistry(), &stubProber{fn: tc.fn})
			assert.Equal(t, tc.healthy, m.ProbeHealth(context.Background(), "AAPL"))
		})
	}
}

func TestMarkDelistedUnknownSymbol(t *testing.T) {
	m := NewManager(newMemRegistry(), &stubProber{})
	ok, err := m.MarkDelisted(context.Background(), "NOPE", decimal.NullDecimal{}, "test")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepDelistedOnlyRemovesUnhealthy(t *testing.T) {
	reg := newMemRegistry()
	m := NewManager(reg, &stubProber{fn: func(symbol string) (*market.SymbolMeta, error) {
		if symbol == "DEADCO" {
			return nil, &provider.Error{Kind: provider.KindData, Provider: "test", Symbol: symbol, Err: errors.New("unknown ticker")}
		}
		return &market.SymbolMeta{Symbol: symbol, Active: true}, nil
	}})
	require.NoError(t, m.Register(context.Background(), market.Symbol{Code: "AAPL"}))
	require.NoError(t, m.Register(context.Background(), market.Symbol{Code: "DEADCO"}))

	delisted, err := m.SweepDelisted(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"DEADCO"}, delisted)
	assert.Equal(t, market.SymbolDelisted, reg.symbols["DEADCO"].Status)
	assert.Equal(t, market.SymbolActive, reg.symbols["AAPL"].Status)
}
