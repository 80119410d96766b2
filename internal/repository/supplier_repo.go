package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// SupplierRepository handles lot provenance records.
type SupplierRepository interface {
	Create(ctx context.Context, s *model.Supplier) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	List(ctx context.Context) ([]model.Supplier, error)
}

type supplierRepo struct{ db *gorm.DB }

func NewSupplierRepository(db *gorm.DB) SupplierRepository { return &supplierRepo{db: db} }

func (r *supplierRepo) Create(ctx context.Context, s *model.Supplier) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *supplierRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var s model.Supplier
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *supplierRepo) List(ctx context.Context) ([]model.Supplier, error) {
	var suppliers []model.Supplier
	err := r.db.WithContext(ctx).Where("active = true").Order("name ASC").Find(&suppliers).Error
	return suppliers, err
}
