package market

import (
	"fmt"
	"strings"
)

// SymbolStatus is the lifecycle state of a tracked symbol.
// Transitions are one-way: active symbols can be delisted, delisted
// symbols are never reactivated automatically.
type SymbolStatus string

const (
	SymbolActive   SymbolStatus = "active"
	SymbolDelisted SymbolStatus = "delisted"
)

// Symbol is a tracked security.
type Symbol struct {
	Code     string
	Name     string
	Exchange string
	Sector   string
	Status   SymbolStatus
}

// SymbolMeta is provider-side metadata returned by a probe.
type SymbolMeta struct {
	Symbol   string
	Name     string
	Exchange string
	Active   bool
}

// NormalizeSymbol canonicalizes a user-supplied symbol code.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return s, nil
}
