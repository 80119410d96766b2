package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// AssemblyRepository handles the two composition parents (assemblies and
// gift packages) plus recorded assembly runs.
type AssemblyRepository interface {
	CreateAssembly(ctx context.Context, a *model.Assembly) error
	FindAssembly(ctx context.Context, id uuid.UUID) (*model.Assembly, error)
	CreatePackage(ctx context.Context, p *model.GiftPackage) error
	FindPackage(ctx context.Context, id uuid.UUID) (*model.GiftPackage, error)

	CreateRunTx(tx *gorm.DB, run *model.AssemblyRun) error
	FindRun(ctx context.Context, id uuid.UUID) (*model.AssemblyRun, error)
	ListRuns(ctx context.Context, assemblyID uuid.UUID) ([]model.AssemblyRun, error)

	DB() *gorm.DB
}

type assemblyRepo struct{ db *gorm.DB }

func NewAssemblyRepository(db *gorm.DB) AssemblyRepository { return &assemblyRepo{db: db} }

func (r *assemblyRepo) CreateAssembly(ctx context.Context, a *model.Assembly) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assemblyRepo) FindAssembly(ctx context.Context, id uuid.UUID) (*model.Assembly, error) {
	var a model.Assembly
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *assemblyRepo) CreatePackage(ctx context.Context, p *model.GiftPackage) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *assemblyRepo) FindPackage(ctx context.Context, id uuid.UUID) (*model.GiftPackage, error) {
	var p model.GiftPackage
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *assemblyRepo) CreateRunTx(tx *gorm.DB, run *model.AssemblyRun) error {
	// Items ride along through the association.
	return tx.Create(run).Error
}

func (r *assemblyRepo) FindRun(ctx context.Context, id uuid.UUID) (*model.AssemblyRun, error) {
	var run model.AssemblyRun
	err := r.db.WithContext(ctx).Preload("Items").First(&run, "id = ?", id).Error
	return &run, err
}

func (r *assemblyRepo) ListRuns(ctx context.Context, assemblyID uuid.UUID) ([]model.AssemblyRun, error) {
	var runs []model.AssemblyRun
	err := r.db.WithContext(ctx).
		Where("assembly_id = ?", assemblyID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

func (r *assemblyRepo) DB() *gorm.DB { return r.db }
