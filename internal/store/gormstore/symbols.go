package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/store"
	"marketsync/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type delistingDetails struct {
	Notes string `json:"notes,omitempty"`
}

// RegisterSymbol creates the registry row for a symbol, or refreshes its
// descriptive fields. Status is owned by the lifecycle manager and is
// never touched by re-registration.
func (s *Store) RegisterSymbol(ctx context.Context, sym market.Symbol) error {
	now := time.Now().Unix()
	status := sym.Status
	if status == "" {
		status = market.SymbolActive
	}
	m := model.SymbolModel{
		Code:          sym.Code,
		Name:          sym.Name,
		Exchange:      sym.Exchange,
		Sector:        sym.Sector,
		Status:        string(status),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	updates := clause.Assignments(map[string]interface{}{
		"name":       gorm.Expr("excluded.name"),
		"exchange":   gorm.Expr("excluded.exchange"),
		"sector":     gorm.Expr("excluded.sector"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	})
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: updates,
		}).
		Create(&m).Error
}

// GetSymbol returns nil when the code is unknown.
func (s *Store) GetSymbol(ctx context.Context, code string) (*market.Symbol, error) {
	var m model.SymbolModel
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sym := symbolFromModel(m)
	return &sym, nil
}

// ListActiveSymbols returns active symbols in a fixed (code) order so
// batch runs process them deterministically.
func (s *Store) ListActiveSymbols(ctx context.Context) ([]market.Symbol, error) {
	return s.listByStatus(ctx, market.SymbolActive)
}

// ListSymbols returns every registered symbol regardless of status.
func (s *Store) ListSymbols(ctx context.Context) ([]market.Symbol, error) {
	var rows []model.SymbolModel
	if err := s.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	return symbolsFromModels(rows), nil
}

func (s *Store) listByStatus(ctx context.Context, status market.SymbolStatus) ([]market.Symbol, error) {
	var rows []model.SymbolModel
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("code").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return symbolsFromModels(rows), nil
}

// MarkDelisted flips a symbol to delisted and appends one audit record,
// in a single transaction. Returns false when the symbol is unknown.
func (s *Store) MarkDelisted(ctx context.Context, code string, lastPrice decimal.NullDecimal, notes string) (bool, error) {
	known := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.SymbolModel
		err := tx.Where("code = ?", code).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		known = true
		now := time.Now()
		if err := tx.Model(&model.SymbolModel{}).
			Where("code = ?", code).
			Updates(map[string]interface{}{
				"status":     string(market.SymbolDelisted),
				"updated_at": now.Unix(),
			}).Error; err != nil {
			return err
		}
		details, err := json.Marshal(delistingDetails{Notes: notes})
		if err != nil {
			return err
		}
		record := model.DelistingRecordModel{
			ID:            uuid.NewString(),
			Symbol:        code,
			DelistDate:    market.DateOf(now),
			LastPrice:     lastPrice,
			Details:       datatypes.JSON(details),
			CreatedAtUnix: now.Unix(),
		}
		return tx.Create(&record).Error
	})
	return known, err
}

// DelistingRecords lists the audit trail for one symbol, oldest first.
func (s *Store) DelistingRecords(ctx context.Context, symbol string) ([]store.DelistingRecord, error) {
	var rows []model.DelistingRecordModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]store.DelistingRecord, 0, len(rows))
	for _, m := range rows {
		var details delistingDetails
		_ = json.Unmarshal(m.Details, &details)
		out = append(out, store.DelistingRecord{
			ID:         m.ID,
			Symbol:     m.Symbol,
			DelistDate: m.DelistDate,
			LastPrice:  m.LastPrice,
			Notes:      details.Notes,
		})
	}
	return out, nil
}

func symbolFromModel(m model.SymbolModel) market.Symbol {
	return market.Symbol{
		Code:     m.Code,
		Name:     m.Name,
		Exchange: m.Exchange,
		Sector:   m.Sector,
		Status:   market.SymbolStatus(m.Status),
	}
}

func symbolsFromModels(rows []model.SymbolModel) []market.Symbol {
	out := make([]market.Symbol, 0, len(rows))
	for _, m := range rows {
		out = append(out, symbolFromModel(m))
	}
	return out
}
