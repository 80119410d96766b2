package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/repository"
)

// CompositionService mutates the composition graph. Every rule — live
// references, the generic-packaging constraints, no self-reference, edge
// uniqueness, acyclicity — is checked before any write, so a violation
// commits nothing. Every successful mutation invalidates the cached
// hierarchies of the affected parent and its ancestors.
type CompositionService interface {
	CreateEdge(ctx context.Context, req dto.CreateEdgeRequest) (*dto.CompositionResponse, error)
	UpdateEdge(ctx context.Context, id uuid.UUID, req dto.UpdateEdgeRequest) (*dto.CompositionResponse, error)
	DeleteEdge(ctx context.Context, id uuid.UUID) error
	ListEdges(ctx context.Context, parent model.ParentRef) ([]dto.CompositionResponse, error)

	// ReorderEdges rewrites sort_order over the parent's full edge set. The
	// supplied ids must match the existing edges exactly.
	ReorderEdges(ctx context.Context, parent model.ParentRef, orderedIDs []uuid.UUID) error

	// CopyEdges duplicates every edge of source onto target, re-running
	// duplicate and cycle validation per edge, all-or-nothing. Assignments
	// are not copied: lot choices belong to one composition.
	CopyEdges(ctx context.Context, source, target model.ParentRef) error
}

type compositionService struct {
	compositions  repository.CompositionRepository
	assemblies    repository.AssemblyRepository
	products      repository.ProductRepository
	finishedUnits repository.FinishedUnitRepository
	materials     repository.MaterialRepository
	hierarchy     HierarchyService
}

func NewCompositionService(
	compositions repository.CompositionRepository,
	assemblies repository.AssemblyRepository,
	products repository.ProductRepository,
	finishedUnits repository.FinishedUnitRepository,
	materials repository.MaterialRepository,
	hierarchy HierarchyService,
) CompositionService {
	return &compositionService{
		compositions:  compositions,
		assemblies:    assemblies,
		products:      products,
		finishedUnits: finishedUnits,
		materials:     materials,
		hierarchy:     hierarchy,
	}
}

// resolveParent confirms the parent reference points at a live entity.
func (s *compositionService) resolveParent(ctx context.Context, parent model.ParentRef) error {
	if !parent.Kind.Valid() {
		return apperror.NewFieldValidation("parent.kind", "unknown parent kind")
	}

	switch parent.Kind {
	case model.ParentAssembly:
		assembly, err := s.assemblies.FindAssembly(ctx, parent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("assembly", parent.ID)
			}
			return apperror.WrapPersistence("find assembly", err)
		}
		if !assembly.Active {
			return apperror.NewFieldValidation("parent.id", "assembly is inactive")
		}
	case model.ParentPackage:
		pkg, err := s.assemblies.FindPackage(ctx, parent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("package", parent.ID)
			}
			return apperror.WrapPersistence("find package", err)
		}
		if !pkg.Active {
			return apperror.NewFieldValidation("parent.id", "package is inactive")
		}
	}
	return nil
}

// resolveComponent confirms the component reference points at a live entity
// of the stated kind and that the generic flag is coherent with it.
func (s *compositionService) resolveComponent(ctx context.Context, kind model.ComponentKind, id uuid.UUID, isGeneric bool) error {
	if !kind.Valid() {
		return apperror.NewFieldValidation("component_kind", "unknown component kind")
	}
	if isGeneric && kind != model.ComponentPackaging {
		return apperror.NewFieldValidation("is_generic", "only packaging components can be generic")
	}

	switch kind {
	case model.ComponentFinishedUnit:
		fu, err := s.finishedUnits.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("finished unit", id)
			}
			return apperror.WrapPersistence("find finished unit", err)
		}
		if !fu.Active {
			return apperror.NewFieldValidation("component_id", "finished unit is inactive")
		}
	case model.ComponentSubAssembly:
		assembly, err := s.assemblies.FindAssembly(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("assembly", id)
			}
			return apperror.WrapPersistence("find assembly", err)
		}
		if !assembly.Active {
			return apperror.NewFieldValidation("component_id", "assembly is inactive")
		}
	case model.ComponentPackaging:
		product, err := s.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("product", id)
			}
			return apperror.WrapPersistence("find product", err)
		}
		if !product.Active {
			return apperror.NewFieldValidation("component_id", "product is inactive")
		}
		if product.Kind != model.ProductPackaging {
			return apperror.NewFieldValidation("component_id", "product is not packaging")
		}
		if isGeneric && !product.IsGeneric {
			return apperror.NewFieldValidation("is_generic", "product is not a generic placeholder")
		}
		if !isGeneric && product.IsGeneric {
			return apperror.NewFieldValidation("component_id",
				"generic placeholder products require a generic edge")
		}
	case model.ComponentMaterialUnit:
		if _, err := s.materials.FindUnit(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("material unit", id)
			}
			return apperror.WrapPersistence("find material unit", err)
		}
	case model.ComponentMaterial:
		if _, err := s.materials.FindMaterial(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("material", id)
			}
			return apperror.WrapPersistence("find material", err)
		}
	}
	return nil
}

// checkEdge runs the inter-edge rules against a target parent: uniqueness
// of (parent, component), no self-reference, acyclicity.
func (s *compositionService) checkEdge(ctx context.Context, parent model.ParentRef, kind model.ComponentKind, componentID uuid.UUID) error {
	if parent.Kind == model.ParentAssembly && kind == model.ComponentSubAssembly && parent.ID == componentID {
		return apperror.NewFieldValidation("component_id", "assembly cannot contain itself")
	}

	if _, err := s.compositions.FindEdge(ctx, parent, kind, componentID); err == nil {
		return &apperror.DuplicateEdgeError{ParentID: parent.ID, ComponentID: componentID}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.WrapPersistence("find edge", err)
	}

	if parent.Kind == model.ParentAssembly && kind == model.ComponentSubAssembly {
		ok, err := s.hierarchy.ValidateNoCycle(ctx, parent.ID, componentID)
		if err != nil {
			return err
		}
		if !ok {
			return &apperror.CircularReferenceError{ParentID: parent.ID, ComponentID: componentID}
		}
	}
	return nil
}

func (s *compositionService) CreateEdge(ctx context.Context, req dto.CreateEdgeRequest) (*dto.CompositionResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if err := s.resolveParent(ctx, req.Parent); err != nil {
		return nil, err
	}
	if err := s.resolveComponent(ctx, req.ComponentKind, req.ComponentID, req.IsGeneric); err != nil {
		return nil, err
	}
	if err := s.checkEdge(ctx, req.Parent, req.ComponentKind, req.ComponentID); err != nil {
		return nil, err
	}

	edge := &model.Composition{
		ParentKind:    req.Parent.Kind,
		ParentID:      req.Parent.ID,
		ComponentKind: req.ComponentKind,
		ComponentID:   req.ComponentID,
		Quantity:      req.Quantity,
		SortOrder:     req.SortOrder,
		IsGeneric:     req.IsGeneric,
		Notes:         req.Notes,
	}

	err := runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		return apperror.WrapPersistence("create composition", s.compositions.Create(ctx, tx, edge))
	})
	if err != nil {
		return nil, err
	}

	if err := s.hierarchy.InvalidateUp(ctx, req.Parent); err != nil {
		return nil, err
	}

	log.Debug().
		Str("parent", req.Parent.ID.String()).
		Str("component_kind", string(req.ComponentKind)).
		Str("component", req.ComponentID.String()).
		Msg("composition edge created")

	return edgeToResponse(edge), nil
}

func (s *compositionService) UpdateEdge(ctx context.Context, id uuid.UUID, req dto.UpdateEdgeRequest) (*dto.CompositionResponse, error) {
	edge, err := s.compositions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("composition", id)
		}
		return nil, apperror.WrapPersistence("find composition", err)
	}

	quantityChanged := false
	if req.Quantity != nil {
		if !req.Quantity.IsPositive() {
			return nil, apperror.NewFieldValidation("quantity", "must be positive")
		}
		quantityChanged = !edge.Quantity.Equal(*req.Quantity)
		edge.Quantity = *req.Quantity
	}
	if req.SortOrder != nil {
		if *req.SortOrder < 0 {
			return nil, apperror.NewFieldValidation("sort_order", "must not be negative")
		}
		edge.SortOrder = *req.SortOrder
	}
	if req.Notes != nil {
		edge.Notes = *req.Notes
	}

	err = runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		// Assignments summed to the old requirement; a changed quantity
		// leaves them unbalanced and partial sets are never kept.
		if quantityChanged && edge.IsGeneric {
			if err := s.compositions.DeleteAssignmentsTx(tx, edge.ID); err != nil {
				return apperror.WrapPersistence("delete assignments", err)
			}
		}
		edge.Assignments = nil
		return apperror.WrapPersistence("update composition", s.compositions.Update(ctx, tx, edge))
	})
	if err != nil {
		return nil, err
	}

	if err := s.hierarchy.InvalidateUp(ctx, edge.Parent()); err != nil {
		return nil, err
	}
	return edgeToResponse(edge), nil
}

func (s *compositionService) DeleteEdge(ctx context.Context, id uuid.UUID) error {
	edge, err := s.compositions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFound("composition", id)
		}
		return apperror.WrapPersistence("find composition", err)
	}

	err = runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		return apperror.WrapPersistence("delete composition", s.compositions.Delete(ctx, tx, id))
	})
	if err != nil {
		return err
	}

	return s.hierarchy.InvalidateUp(ctx, edge.Parent())
}

func (s *compositionService) ListEdges(ctx context.Context, parent model.ParentRef) ([]dto.CompositionResponse, error) {
	if err := s.resolveParent(ctx, parent); err != nil {
		return nil, err
	}
	edges, err := s.compositions.ListByParent(ctx, parent)
	if err != nil {
		return nil, apperror.WrapPersistence("list compositions", err)
	}

	responses := make([]dto.CompositionResponse, 0, len(edges))
	for i := range edges {
		responses = append(responses, *edgeToResponse(&edges[i]))
	}
	return responses, nil
}

func (s *compositionService) ReorderEdges(ctx context.Context, parent model.ParentRef, orderedIDs []uuid.UUID) error {
	if err := s.resolveParent(ctx, parent); err != nil {
		return err
	}

	existing, err := s.compositions.ListByParent(ctx, parent)
	if err != nil {
		return apperror.WrapPersistence("list compositions", err)
	}

	if len(orderedIDs) != len(existing) {
		return apperror.NewFieldValidation("ordered_ids",
			"supplied id set does not match the parent's edges")
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for i := range existing {
		known[existing[i].ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !known[id] || seen[id] {
			return apperror.NewFieldValidation("ordered_ids",
				"supplied id set does not match the parent's edges")
		}
		seen[id] = true
	}

	err = runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		for position, id := range orderedIDs {
			if err := s.compositions.UpdateSortOrderTx(tx, id, position); err != nil {
				return apperror.WrapPersistence("update sort order", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.hierarchy.InvalidateUp(ctx, parent)
}

func (s *compositionService) CopyEdges(ctx context.Context, source, target model.ParentRef) error {
	if err := s.resolveParent(ctx, source); err != nil {
		return err
	}
	if err := s.resolveParent(ctx, target); err != nil {
		return err
	}

	edges, err := s.compositions.ListByParent(ctx, source)
	if err != nil {
		return apperror.WrapPersistence("list compositions", err)
	}

	// Validate the full set against the target before the first write.
	for i := range edges {
		if err := s.checkEdge(ctx, target, edges[i].ComponentKind, edges[i].ComponentID); err != nil {
			return err
		}
	}

	err = runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		for i := range edges {
			copied := &model.Composition{
				ParentKind:    target.Kind,
				ParentID:      target.ID,
				ComponentKind: edges[i].ComponentKind,
				ComponentID:   edges[i].ComponentID,
				Quantity:      edges[i].Quantity,
				SortOrder:     edges[i].SortOrder,
				IsGeneric:     edges[i].IsGeneric,
				Notes:         edges[i].Notes,
			}
			if err := s.compositions.Create(ctx, tx, copied); err != nil {
				return apperror.WrapPersistence("copy composition", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.hierarchy.InvalidateUp(ctx, target)
}

func edgeToResponse(edge *model.Composition) *dto.CompositionResponse {
	return &dto.CompositionResponse{
		ID:            edge.ID,
		Parent:        edge.Parent(),
		ComponentKind: edge.ComponentKind,
		ComponentID:   edge.ComponentID,
		Quantity:      edge.Quantity,
		SortOrder:     edge.SortOrder,
		IsGeneric:     edge.IsGeneric,
		Notes:         edge.Notes,
	}
}
