package gormstore

import (
	"context"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/store"
	"marketsync/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

// UpsertBars bulk-writes bars keyed on (symbol, ts, source). Conflicting
// rows are overwritten in place (last-write-wins), never duplicated.
func (s *Store) UpsertBars(ctx context.Context, bars []market.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	rows := make([]model.BarModel, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, model.BarModel{
			Symbol:        b.Symbol,
			Timestamp:     b.Timestamp.UTC(),
			Source:        b.Source,
			Open:          b.Open,
			High:          b.High,
			Low:           b.Low,
			Close:         b.Close,
			Volume:        b.Volume,
			CreatedAtUnix: now,
			UpdatedAtUnix: now,
		})
	}
	updates := clause.Assignments(map[string]interface{}{
		"open":       gorm.Expr("excluded.open"),
		"high":       gorm.Expr("excluded.high"),
		"low":        gorm.Expr("excluded.low"),
		"close":      gorm.Expr("excluded.close"),
		"volume":     gorm.Expr("excluded.volume"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	})
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "ts"}, {Name: "source"}},
			DoUpdates: updates,
		}).
		CreateInBatches(&rows, upsertBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CountBars returns the number of stored bars for a symbol.
func (s *Store) CountBars(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.BarModel{}).
		Where("symbol = ?", symbol).
		Count(&n).Error
	return n, err
}

// Progress aggregates bar coverage over [from, to] for reporting.
func (s *Store) Progress(ctx context.Context, from, to time.Time) (*store.ProgressStats, error) {
	var stats store.ProgressStats

	var totalSymbols int64
	if err := s.db.WithContext(ctx).Model(&model.SymbolModel{}).Count(&totalSymbols).Error; err != nil {
		return nil, err
	}
	stats.TotalSymbols = int(totalSymbols)

	rangeQuery := s.db.WithContext(ctx).Model(&model.BarModel{})
	if !from.IsZero() {
		rangeQuery = rangeQuery.Where("ts >= ?", from.UTC())
	}
	if !to.IsZero() {
		rangeQuery = rangeQuery.Where("ts <= ?", to.UTC())
	}

	var withData int64
	if err := rangeQuery.Session(&gorm.Session{}).Distinct("symbol").Count(&withData).Error; err != nil {
		return nil, err
	}
	stats.SymbolsWithData = int(withData)

	if err := rangeQuery.Session(&gorm.Session{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
