package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/store"
	"marketsync/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Checkpoint reads the progress record for one key. A missing key is not
// an error: it returns (nil, nil).
func (s *Store) Checkpoint(ctx context.Context, symbol, source string, gran market.Granularity) (*store.Checkpoint, error) {
	var m model.CheckpointModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND source = ? AND gran_unit = ? AND gran_mult = ?",
			symbol, source, string(gran.Unit), gran.Multiplier).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp := checkpointFromModel(m)
	return &cp, nil
}

// SaveCheckpoint upserts the progress record for cp's key. This is the
// only code path that writes last_successful_date.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *store.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is required")
	}
	now := time.Now().Unix()
	m := model.CheckpointModel{
		Symbol:             cp.Symbol,
		Source:             cp.Source,
		GranUnit:           string(cp.Granularity.Unit),
		GranMult:           cp.Granularity.Multiplier,
		LastRunDate:        cp.LastRunDate.UTC(),
		LastSuccessfulDate: cp.LastSuccessfulDate,
		RecordsLoaded:      cp.RecordsLoaded,
		Status:             cp.Status,
		ErrorMessage:       cp.ErrorMessage,
		CreatedAtUnix:      now,
		UpdatedAtUnix:      now,
	}
	updates := clause.Assignments(map[string]interface{}{
		"last_run_date":        gorm.Expr("excluded.last_run_date"),
		"last_successful_date": gorm.Expr("excluded.last_successful_date"),
		"records_loaded":       gorm.Expr("excluded.records_loaded"),
		"status":               gorm.Expr("excluded.status"),
		"error_message":        gorm.Expr("excluded.error_message"),
		"updated_at":           gorm.Expr("excluded.updated_at"),
	})
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "symbol"}, {Name: "source"}, {Name: "gran_unit"}, {Name: "gran_mult"},
			},
			DoUpdates: updates,
		}).
		Create(&m).Error
}

// ListCheckpoints returns every progress record, newest attempt first.
func (s *Store) ListCheckpoints(ctx context.Context) ([]store.Checkpoint, error) {
	var rows []model.CheckpointModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.Checkpoint, 0, len(rows))
	for _, m := range rows {
		out = append(out, checkpointFromModel(m))
	}
	return out, nil
}

func checkpointFromModel(m model.CheckpointModel) store.Checkpoint {
	return store.Checkpoint{
		Symbol:             m.Symbol,
		Source:             m.Source,
		Granularity:        market.Granularity{Unit: market.Unit(m.GranUnit), Multiplier: m.GranMult},
		LastRunDate:        m.LastRunDate,
		LastSuccessfulDate: m.LastSuccessfulDate,
		RecordsLoaded:      m.RecordsLoaded,
		Status:             m.Status,
		ErrorMessage:       m.ErrorMessage,
	}
}
