package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// ProductRepository defines the data access contract for purchasable
// products. Services depend on this interface, not on the concrete GORM
// implementation, enabling clean unit testing via stubs.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListByFamily(ctx context.Context, family string) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Deactivate(ctx context.Context, id uuid.UUID) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) ListByFamily(ctx context.Context, family string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("family = ? AND active = true", family).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).Update("active", false).Error
}

func (r *productRepo) DB() *gorm.DB { return r.db }
