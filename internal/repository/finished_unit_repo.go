package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// FinishedUnitRepository handles produced units, their moving-average cost
// and the cost history audit trail.
type FinishedUnitRepository interface {
	Create(ctx context.Context, fu *model.FinishedUnit) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FinishedUnit, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.FinishedUnit, error)
	Update(ctx context.Context, fu *model.FinishedUnit) error

	// AdjustInventoryTx adds delta (negative = consumption) to the unit's
	// inventory count; consumptions are guarded so the count never goes
	// below zero.
	AdjustInventoryTx(tx *gorm.DB, id uuid.UUID, delta int) error

	// UpdateCostTx rewrites the stored moving-average cost.
	UpdateCostTx(tx *gorm.DB, id uuid.UUID, cost decimal.Decimal) error

	CreateCostHistoryTx(tx *gorm.DB, h *model.UnitCostHistory) error

	DB() *gorm.DB
}

type finishedUnitRepo struct{ db *gorm.DB }

func NewFinishedUnitRepository(db *gorm.DB) FinishedUnitRepository {
	return &finishedUnitRepo{db: db}
}

func (r *finishedUnitRepo) Create(ctx context.Context, fu *model.FinishedUnit) error {
	return r.db.WithContext(ctx).Create(fu).Error
}

func (r *finishedUnitRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FinishedUnit, error) {
	var fu model.FinishedUnit
	err := r.db.WithContext(ctx).First(&fu, "id = ?", id).Error
	return &fu, err
}

func (r *finishedUnitRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.FinishedUnit, error) {
	var fu model.FinishedUnit
	err := tx.First(&fu, "id = ?", id).Error
	return &fu, err
}

func (r *finishedUnitRepo) Update(ctx context.Context, fu *model.FinishedUnit) error {
	return r.db.WithContext(ctx).Save(fu).Error
}

func (r *finishedUnitRepo) AdjustInventoryTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	q := tx.Model(&model.FinishedUnit{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("inventory_count >= ?", -delta)
	}
	res := q.Update("inventory_count", gorm.Expr("inventory_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finished unit %s: inventory adjustment by %d rejected", id, delta)
	}
	return nil
}

func (r *finishedUnitRepo) UpdateCostTx(tx *gorm.DB, id uuid.UUID, cost decimal.Decimal) error {
	return tx.Model(&model.FinishedUnit{}).
		Where("id = ?", id).Update("unit_cost", cost).Error
}

func (r *finishedUnitRepo) CreateCostHistoryTx(tx *gorm.DB, h *model.UnitCostHistory) error {
	return tx.Create(h).Error
}

func (r *finishedUnitRepo) DB() *gorm.DB { return r.db }
