package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// MaterialRepository handles wrapping-material pools and their named units.
type MaterialRepository interface {
	CreateMaterial(ctx context.Context, m *model.Material) error
	FindMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error)
	CreateUnit(ctx context.Context, u *model.MaterialUnit) error
	FindUnit(ctx context.Context, id uuid.UUID) (*model.MaterialUnit, error)
	// ListProducts returns the active products tagged with the material —
	// the contributors to its lot pool.
	ListProducts(ctx context.Context, materialID uuid.UUID) ([]model.Product, error)
}

type materialRepo struct{ db *gorm.DB }

func NewMaterialRepository(db *gorm.DB) MaterialRepository { return &materialRepo{db: db} }

func (r *materialRepo) CreateMaterial(ctx context.Context, m *model.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *materialRepo) FindMaterial(ctx context.Context, id uuid.UUID) (*model.Material, error) {
	var m model.Material
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	return &m, err
}

func (r *materialRepo) CreateUnit(ctx context.Context, u *model.MaterialUnit) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *materialRepo) FindUnit(ctx context.Context, id uuid.UUID) (*model.MaterialUnit, error) {
	var u model.MaterialUnit
	err := r.db.WithContext(ctx).Preload("Material").First(&u, "id = ?", id).Error
	return &u, err
}

func (r *materialRepo) ListProducts(ctx context.Context, materialID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("material_id = ? AND active = true", materialID).
		Find(&products).Error
	return products, err
}
