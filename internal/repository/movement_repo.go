package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// StockMovementRepository appends audit rows for every quantity change.
// Movements are written inside the transaction that performs the change and
// are never updated or deleted.
type StockMovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.StockMovement) error
	ListByEntity(ctx context.Context, kind model.StockEntityKind, entityID uuid.UUID) ([]model.StockMovement, error)
}

type movementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &movementRepo{db: db}
}

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *movementRepo) ListByEntity(ctx context.Context, kind model.StockEntityKind, entityID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}
