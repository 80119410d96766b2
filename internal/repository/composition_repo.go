package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// CompositionRepository handles graph edges and their lot assignments.
// Structural validation (duplicates, cycles, XOR tags) lives in the service
// layer; the repository only moves rows.
type CompositionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.Composition) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Composition, error)
	Update(ctx context.Context, tx *gorm.DB, c *model.Composition) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	// ListByParent returns a parent's edges ordered by sort_order then id.
	ListByParent(ctx context.Context, parent model.ParentRef) ([]model.Composition, error)

	// FindEdge resolves the unique (parent, component) edge, if any.
	FindEdge(ctx context.Context, parent model.ParentRef, kind model.ComponentKind, componentID uuid.UUID) (*model.Composition, error)

	// ListParentsOf returns every edge whose component is the given entity —
	// the reverse adjacency used for upward cache invalidation.
	ListParentsOf(ctx context.Context, kind model.ComponentKind, componentID uuid.UUID) ([]model.Composition, error)

	// ListSubAssemblyIDs returns the ids of the assemblies directly composed
	// into the given assembly — the forward adjacency the cycle check walks.
	ListSubAssemblyIDs(ctx context.Context, assemblyID uuid.UUID) ([]uuid.UUID, error)

	UpdateSortOrderTx(tx *gorm.DB, id uuid.UUID, sortOrder int) error

	// Assignments
	ListAssignments(ctx context.Context, compositionID uuid.UUID) ([]model.CompositionAssignment, error)
	DeleteAssignmentsTx(tx *gorm.DB, compositionID uuid.UUID) error
	CreateAssignmentsTx(tx *gorm.DB, assignments []model.CompositionAssignment) error

	DB() *gorm.DB
}

type compositionRepo struct{ db *gorm.DB }

func NewCompositionRepository(db *gorm.DB) CompositionRepository { return &compositionRepo{db: db} }

func (r *compositionRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *compositionRepo) Create(ctx context.Context, tx *gorm.DB, c *model.Composition) error {
	return r.tx(tx).WithContext(ctx).Create(c).Error
}

func (r *compositionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Composition, error) {
	var c model.Composition
	err := r.db.WithContext(ctx).Preload("Assignments").First(&c, "id = ?", id).Error
	return &c, err
}

func (r *compositionRepo) Update(ctx context.Context, tx *gorm.DB, c *model.Composition) error {
	return r.tx(tx).WithContext(ctx).Save(c).Error
}

func (r *compositionRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	// Assignments cascade at the storage level; delete them explicitly as
	// well so SQLite-backed tests behave identically.
	handle := r.tx(tx).WithContext(ctx)
	if err := handle.Where("composition_id = ?", id).
		Delete(&model.CompositionAssignment{}).Error; err != nil {
		return err
	}
	return handle.Delete(&model.Composition{}, "id = ?", id).Error
}

func (r *compositionRepo) ListByParent(ctx context.Context, parent model.ParentRef) ([]model.Composition, error) {
	var edges []model.Composition
	err := r.db.WithContext(ctx).
		Where("parent_kind = ? AND parent_id = ?", parent.Kind, parent.ID).
		Order("sort_order ASC, id ASC").
		Preload("Assignments").
		Find(&edges).Error
	return edges, err
}

func (r *compositionRepo) FindEdge(ctx context.Context, parent model.ParentRef, kind model.ComponentKind, componentID uuid.UUID) (*model.Composition, error) {
	var c model.Composition
	err := r.db.WithContext(ctx).
		Where("parent_kind = ? AND parent_id = ? AND component_kind = ? AND component_id = ?",
			parent.Kind, parent.ID, kind, componentID).
		First(&c).Error
	return &c, err
}

func (r *compositionRepo) ListParentsOf(ctx context.Context, kind model.ComponentKind, componentID uuid.UUID) ([]model.Composition, error) {
	var edges []model.Composition
	err := r.db.WithContext(ctx).
		Where("component_kind = ? AND component_id = ?", kind, componentID).
		Find(&edges).Error
	return edges, err
}

func (r *compositionRepo) ListSubAssemblyIDs(ctx context.Context, assemblyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Composition{}).
		Where("parent_kind = ? AND parent_id = ? AND component_kind = ?",
			model.ParentAssembly, assemblyID, model.ComponentSubAssembly).
		Pluck("component_id", &ids).Error
	return ids, err
}

func (r *compositionRepo) UpdateSortOrderTx(tx *gorm.DB, id uuid.UUID, sortOrder int) error {
	return tx.Model(&model.Composition{}).
		Where("id = ?", id).Update("sort_order", sortOrder).Error
}

func (r *compositionRepo) ListAssignments(ctx context.Context, compositionID uuid.UUID) ([]model.CompositionAssignment, error) {
	var rows []model.CompositionAssignment
	err := r.db.WithContext(ctx).
		Where("composition_id = ?", compositionID).
		Preload("Lot").Preload("Lot.Product").
		Find(&rows).Error
	return rows, err
}

func (r *compositionRepo) DeleteAssignmentsTx(tx *gorm.DB, compositionID uuid.UUID) error {
	return tx.Where("composition_id = ?", compositionID).
		Delete(&model.CompositionAssignment{}).Error
}

func (r *compositionRepo) CreateAssignmentsTx(tx *gorm.DB, assignments []model.CompositionAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return tx.Create(&assignments).Error
}

func (r *compositionRepo) DB() *gorm.DB { return r.db }
