package symbols

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"marketsync/internal/market"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// seedSchema constrains the symbol seed file: a JSON array of objects
// with at least a code.
const seedSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["code"],
		"properties": {
			"code": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"exchange": {"type": "string"},
			"sector": {"type": "string"}
		}
	}
}`

var compiledSeedSchema = jsonschema.MustCompileString("symbols.seed.json", seedSchema)

// LoadSeedFile parses and validates a seed file into symbols.
func LoadSeedFile(path string) ([]market.Symbol, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("seed file is not valid JSON: %w", err)
	}
	if err := compiledSeedSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("seed file failed schema validation: %w", err)
	}
	var out []market.Symbol
	gjson.ParseBytes(raw).ForEach(func(_, entry gjson.Result) bool {
		out = append(out, market.Symbol{
			Code:     entry.Get("code").String(),
			Name:     entry.Get("name").String(),
			Exchange: entry.Get("exchange").String(),
			Sector:   entry.Get("sector").String(),
			Status:   market.SymbolActive,
		})
		return true
	})
	return out, nil
}

// ImportSeedFile registers every symbol from a seed file and returns the
// number registered.
func (m *Manager) ImportSeedFile(ctx context.Context, path string) (int, error) {
	syms, err := LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	for i, sym := range syms {
		if err := m.Register(ctx, sym); err != nil {
			return i, fmt.Errorf("registering %s: %w", sym.Code, err)
		}
	}
	return len(syms), nil
}
