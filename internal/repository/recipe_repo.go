package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// RecipeRepository handles recipes, their ingredient lines and production
// batch records.
type RecipeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, recipe *model.Recipe) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
	CreateBatchTx(tx *gorm.DB, batch *model.Batch) error
	ListBatches(ctx context.Context, recipeID uuid.UUID) ([]model.Batch, error)
	DB() *gorm.DB
}

type recipeRepo struct{ db *gorm.DB }

func NewRecipeRepository(db *gorm.DB) RecipeRepository { return &recipeRepo{db: db} }

func (r *recipeRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *recipeRepo) Create(ctx context.Context, tx *gorm.DB, recipe *model.Recipe) error {
	// Ingredient lines ride along through the association.
	return r.tx(tx).WithContext(ctx).Create(recipe).Error
}

func (r *recipeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("FinishedUnit").
		First(&recipe, "id = ?", id).Error
	return &recipe, err
}

func (r *recipeRepo) CreateBatchTx(tx *gorm.DB, batch *model.Batch) error {
	return tx.Create(batch).Error
}

func (r *recipeRepo) ListBatches(ctx context.Context, recipeID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("produced_at DESC").
		Find(&batches).Error
	return batches, err
}

func (r *recipeRepo) DB() *gorm.DB { return r.db }
