package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/cache"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/repository"
)

// DefaultMaxDepth bounds hierarchy expansion when the caller does not state
// a ceiling.
const DefaultMaxDepth = 10

// HierarchyService traverses the composition graph: cycle validation before
// edge inserts, recursive cost/availability aggregation, and bill-of-
// materials flattening. Computed trees are cached per (parent, depth) with a
// TTL; graph mutations invalidate the affected parent and every ancestor.
type HierarchyService interface {
	// ValidateNoCycle reports whether an edge parentID → candidateID keeps
	// the graph acyclic: false iff parentID is reachable from candidateID
	// over sub-assembly edges, including parentID == candidateID.
	ValidateNoCycle(ctx context.Context, parentID, candidateID uuid.UUID) (bool, error)

	// GetHierarchy expands the parent's composition tree down to maxDepth
	// (DefaultMaxDepth when <= 0). Nodes cut off by the ceiling carry a
	// truncation marker instead of children.
	GetHierarchy(ctx context.Context, parent model.ParentRef, maxDepth int) (*dto.HierarchyNode, error)

	// Flatten walks the whole reachable graph breadth-first, multiplying
	// edge quantities along each path. A sub-assembly shared by two paths
	// contributes through both: leaf quantities accumulate per path.
	Flatten(ctx context.Context, parent model.ParentRef, quantity decimal.Decimal) ([]dto.FlattenedComponent, error)

	// TotalCost is the root aggregate of GetHierarchy at the default depth.
	TotalCost(ctx context.Context, assemblyID uuid.UUID) (decimal.Decimal, error)

	// Availability checks whether quantity parents can be assembled from
	// current stock, listing every short leaf.
	Availability(ctx context.Context, parent model.ParentRef, quantity decimal.Decimal) (*dto.AvailabilityResult, error)

	// InvalidateUp drops cached trees for the parent and every ancestor
	// reachable over reverse edges.
	InvalidateUp(ctx context.Context, parent model.ParentRef) error
}

type hierarchyService struct {
	compositions  repository.CompositionRepository
	assemblies    repository.AssemblyRepository
	finishedUnits repository.FinishedUnitRepository
	products      repository.ProductRepository
	materials     repository.MaterialRepository
	lots          repository.LotRepository
	inventory     InventoryService
	cache         cache.HierarchyCache
}

func NewHierarchyService(
	compositions repository.CompositionRepository,
	assemblies repository.AssemblyRepository,
	finishedUnits repository.FinishedUnitRepository,
	products repository.ProductRepository,
	materials repository.MaterialRepository,
	lots repository.LotRepository,
	inventory InventoryService,
	hierarchyCache cache.HierarchyCache,
) HierarchyService {
	return &hierarchyService{
		compositions:  compositions,
		assemblies:    assemblies,
		finishedUnits: finishedUnits,
		products:      products,
		materials:     materials,
		lots:          lots,
		inventory:     inventory,
		cache:         hierarchyCache,
	}
}

func (s *hierarchyService) ValidateNoCycle(ctx context.Context, parentID, candidateID uuid.UUID) (bool, error) {
	if parentID == candidateID {
		return false, nil
	}

	visited := map[uuid.UUID]bool{candidateID: true}
	queue := []uuid.UUID{candidateID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := s.compositions.ListSubAssemblyIDs(ctx, current)
		if err != nil {
			return false, apperror.WrapPersistence("list sub-assemblies", err)
		}
		for _, child := range children {
			if child == parentID {
				return false, nil
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			queue = append(queue, child)
		}
	}
	return true, nil
}

func (s *hierarchyService) GetHierarchy(ctx context.Context, parent model.ParentRef, maxDepth int) (*dto.HierarchyNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if node, ok := s.cache.Get(ctx, parent, maxDepth); ok {
		return node, nil
	}

	node, err := s.buildTree(ctx, parent, maxDepth, 0, map[uuid.UUID]bool{})
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, parent, maxDepth, node)
	return node, nil
}

// buildTree expands one parent. ancestors carries the assembly ids on the
// current path so corrupted cyclic data surfaces as CircularReferenceError
// instead of an endless descent.
func (s *hierarchyService) buildTree(ctx context.Context, parent model.ParentRef, maxDepth, depth int, ancestors map[uuid.UUID]bool) (*dto.HierarchyNode, error) {
	root := &dto.HierarchyNode{
		ComponentKind:  model.ComponentKind(parent.Kind),
		ComponentID:    parent.ID,
		Quantity:       decimal.NewFromInt(1),
		UnitCost:       decimal.Zero,
		TotalCost:      decimal.Zero,
		InventoryCount: decimal.Zero,
	}

	switch parent.Kind {
	case model.ParentAssembly:
		assembly, err := s.assemblies.FindAssembly(ctx, parent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("assembly", parent.ID)
			}
			return nil, apperror.WrapPersistence("find assembly", err)
		}
		root.DisplayName = assembly.Name
		ancestors[parent.ID] = true
		defer delete(ancestors, parent.ID)
	case model.ParentPackage:
		pkg, err := s.assemblies.FindPackage(ctx, parent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("package", parent.ID)
			}
			return nil, apperror.WrapPersistence("find package", err)
		}
		root.DisplayName = pkg.Name
	default:
		return nil, apperror.NewFieldValidation("parent", "unknown parent kind")
	}

	edges, err := s.compositions.ListByParent(ctx, parent)
	if err != nil {
		return nil, apperror.WrapPersistence("list compositions", err)
	}

	for i := range edges {
		child, err := s.buildEdge(ctx, &edges[i], maxDepth, depth+1, ancestors)
		if err != nil {
			return nil, err
		}
		root.TotalCost = root.TotalCost.Add(child.TotalCost)
		root.Children = append(root.Children, *child)
	}
	root.UnitCost = root.TotalCost
	return root, nil
}

func (s *hierarchyService) buildEdge(ctx context.Context, edge *model.Composition, maxDepth, depth int, ancestors map[uuid.UUID]bool) (*dto.HierarchyNode, error) {
	node := &dto.HierarchyNode{
		ComponentKind:  edge.ComponentKind,
		ComponentID:    edge.ComponentID,
		Quantity:       edge.Quantity,
		IsGeneric:      edge.IsGeneric,
		UnitCost:       decimal.Zero,
		TotalCost:      decimal.Zero,
		InventoryCount: decimal.Zero,
	}

	switch edge.ComponentKind {
	case model.ComponentFinishedUnit:
		fu, err := s.finishedUnits.FindByID(ctx, edge.ComponentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("finished unit", edge.ComponentID)
			}
			return nil, apperror.WrapPersistence("find finished unit", err)
		}
		node.DisplayName = fu.Name
		node.Unit = "unit"
		node.UnitCost = fu.UnitCost
		node.TotalCost = fu.UnitCost.Mul(edge.Quantity)
		node.InventoryCount = decimal.NewFromInt(int64(fu.InventoryCount))

	case model.ComponentSubAssembly:
		if ancestors[edge.ComponentID] {
			return nil, &apperror.CircularReferenceError{
				ParentID:    edge.ParentID,
				ComponentID: edge.ComponentID,
			}
		}
		if depth >= maxDepth {
			assembly, err := s.assemblies.FindAssembly(ctx, edge.ComponentID)
			if err == nil {
				node.DisplayName = assembly.Name
			}
			node.Truncated = true
			return node, nil
		}
		sub, err := s.buildTree(ctx, model.ParentRef{Kind: model.ParentAssembly, ID: edge.ComponentID}, maxDepth, depth, ancestors)
		if err != nil {
			return nil, err
		}
		node.DisplayName = sub.DisplayName
		node.UnitCost = sub.TotalCost
		node.TotalCost = sub.TotalCost.Mul(edge.Quantity)
		node.Children = sub.Children

	case model.ComponentPackaging:
		product, err := s.products.FindByID(ctx, edge.ComponentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("product", edge.ComponentID)
			}
			return nil, apperror.WrapPersistence("find packaging product", err)
		}
		node.DisplayName = product.Name
		node.Unit = product.Unit

		assigned := assignedTotal(edge.Assignments)
		if edge.IsGeneric && assigned.Equal(edge.Quantity) {
			// Fully assigned generics cost exactly what their chosen lots
			// cost; everything else is estimated from the family pool.
			actual, err := s.assignedCost(ctx, edge)
			if err != nil {
				return nil, err
			}
			node.TotalCost = actual
			node.UnitCost = actual.DivRound(edge.Quantity, CostScale)
		} else {
			avg, err := s.inventory.WeightedAverageCost(ctx, product.Family)
			if err != nil {
				return nil, err
			}
			node.UnitCost = avg
			node.TotalCost = avg.Mul(edge.Quantity)
		}

		available, err := s.inventory.FamilyAvailability(ctx, product.Family, product.Unit)
		if err != nil {
			return nil, err
		}
		node.InventoryCount = available

	case model.ComponentMaterialUnit:
		mu, err := s.materials.FindUnit(ctx, edge.ComponentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("material unit", edge.ComponentID)
			}
			return nil, apperror.WrapPersistence("find material unit", err)
		}
		node.DisplayName = mu.Name
		node.Unit = "unit"
		avg, err := s.inventory.MaterialWeightedCost(ctx, mu.MaterialID)
		if err != nil {
			return nil, err
		}
		node.UnitCost = avg.Mul(mu.QuantityPerUnit)
		node.TotalCost = node.UnitCost.Mul(edge.Quantity)
		count, err := s.inventory.MaterialUnitAvailability(ctx, mu.ID)
		if err != nil {
			return nil, err
		}
		node.InventoryCount = decimal.NewFromInt(count)

	case model.ComponentMaterial:
		material, err := s.materials.FindMaterial(ctx, edge.ComponentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewNotFound("material", edge.ComponentID)
			}
			return nil, apperror.WrapPersistence("find material", err)
		}
		node.DisplayName = material.Name
		node.Unit = material.BaseUnit
		avg, err := s.inventory.MaterialWeightedCost(ctx, material.ID)
		if err != nil {
			return nil, err
		}
		node.UnitCost = avg
		node.TotalCost = avg.Mul(edge.Quantity)

	default:
		return nil, apperror.NewFieldValidation("component_kind", "unknown component kind")
	}

	return node, nil
}

// assignedCost is Σ(quantity_assigned × lot unit cost) over an edge's
// persisted assignments.
func (s *hierarchyService) assignedCost(ctx context.Context, edge *model.Composition) (decimal.Decimal, error) {
	rows, err := s.compositions.ListAssignments(ctx, edge.ID)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("list assignments", err)
	}
	total := decimal.Zero
	for i := range rows {
		lot := rows[i].Lot
		if lot == nil {
			lot, err = s.lots.FindByID(ctx, rows[i].LotID)
			if err != nil {
				return decimal.Zero, apperror.WrapPersistence("find assigned lot", err)
			}
		}
		total = total.Add(rows[i].QuantityAssigned.Mul(lot.UnitCost))
	}
	return total, nil
}

func assignedTotal(rows []model.CompositionAssignment) decimal.Decimal {
	total := decimal.Zero
	for i := range rows {
		total = total.Add(rows[i].QuantityAssigned)
	}
	return total
}

// flattenTarget aggregates one leaf across every path that reaches it.
type flattenTarget struct {
	kind     model.ComponentKind
	id       uuid.UUID
	quantity decimal.Decimal
	order    int
}

func (s *hierarchyService) Flatten(ctx context.Context, parent model.ParentRef, quantity decimal.Decimal) ([]dto.FlattenedComponent, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewFieldValidation("quantity", "must be positive")
	}

	type queued struct {
		parent     model.ParentRef
		multiplier decimal.Decimal
		ancestors  map[uuid.UUID]bool
	}

	leaves := map[string]*flattenTarget{}
	var orderCounter int

	queue := []queued{{parent: parent, multiplier: quantity, ancestors: map[uuid.UUID]bool{}}}
	if parent.Kind == model.ParentAssembly {
		queue[0].ancestors[parent.ID] = true
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		edges, err := s.compositions.ListByParent(ctx, item.parent)
		if err != nil {
			return nil, apperror.WrapPersistence("list compositions", err)
		}

		for i := range edges {
			edge := &edges[i]
			if edge.ComponentKind == model.ComponentSubAssembly {
				if item.ancestors[edge.ComponentID] {
					return nil, &apperror.CircularReferenceError{
						ParentID:    edge.ParentID,
						ComponentID: edge.ComponentID,
					}
				}
				next := make(map[uuid.UUID]bool, len(item.ancestors)+1)
				for id := range item.ancestors {
					next[id] = true
				}
				next[edge.ComponentID] = true
				queue = append(queue, queued{
					parent:     model.ParentRef{Kind: model.ParentAssembly, ID: edge.ComponentID},
					multiplier: item.multiplier.Mul(edge.Quantity),
					ancestors:  next,
				})
				continue
			}

			key := string(edge.ComponentKind) + ":" + edge.ComponentID.String()
			target, ok := leaves[key]
			if !ok {
				target = &flattenTarget{
					kind:     edge.ComponentKind,
					id:       edge.ComponentID,
					quantity: decimal.Zero,
					order:    orderCounter,
				}
				orderCounter++
				leaves[key] = target
			}
			target.quantity = target.quantity.Add(edge.Quantity.Mul(item.multiplier))
		}
	}

	ordered := make([]*flattenTarget, 0, len(leaves))
	for _, target := range leaves {
		ordered = append(ordered, target)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	result := make([]dto.FlattenedComponent, 0, len(ordered))
	for _, target := range ordered {
		row, err := s.flattenRow(ctx, target)
		if err != nil {
			return nil, err
		}
		result = append(result, *row)
	}
	return result, nil
}

func (s *hierarchyService) flattenRow(ctx context.Context, target *flattenTarget) (*dto.FlattenedComponent, error) {
	row := &dto.FlattenedComponent{
		ComponentKind:      target.kind,
		ComponentID:        target.id,
		CumulativeQuantity: target.quantity,
	}

	switch target.kind {
	case model.ComponentFinishedUnit:
		fu, err := s.finishedUnits.FindByID(ctx, target.id)
		if err != nil {
			return nil, apperror.WrapPersistence("find finished unit", err)
		}
		row.DisplayName = fu.Name
		row.Unit = "unit"
		row.UnitCost = fu.UnitCost
	case model.ComponentPackaging:
		product, err := s.products.FindByID(ctx, target.id)
		if err != nil {
			return nil, apperror.WrapPersistence("find packaging product", err)
		}
		row.DisplayName = product.Name
		row.Unit = product.Unit
		avg, err := s.inventory.WeightedAverageCost(ctx, product.Family)
		if err != nil {
			return nil, err
		}
		row.UnitCost = avg
	case model.ComponentMaterialUnit:
		mu, err := s.materials.FindUnit(ctx, target.id)
		if err != nil {
			return nil, apperror.WrapPersistence("find material unit", err)
		}
		row.DisplayName = mu.Name
		row.Unit = "unit"
		avg, err := s.inventory.MaterialWeightedCost(ctx, mu.MaterialID)
		if err != nil {
			return nil, err
		}
		row.UnitCost = avg.Mul(mu.QuantityPerUnit)
	case model.ComponentMaterial:
		material, err := s.materials.FindMaterial(ctx, target.id)
		if err != nil {
			return nil, apperror.WrapPersistence("find material", err)
		}
		row.DisplayName = material.Name
		row.Unit = material.BaseUnit
		avg, err := s.inventory.MaterialWeightedCost(ctx, material.ID)
		if err != nil {
			return nil, err
		}
		row.UnitCost = avg
	}

	row.Cost = row.UnitCost.Mul(row.CumulativeQuantity)
	return row, nil
}

func (s *hierarchyService) TotalCost(ctx context.Context, assemblyID uuid.UUID) (decimal.Decimal, error) {
	node, err := s.GetHierarchy(ctx, model.ParentRef{Kind: model.ParentAssembly, ID: assemblyID}, DefaultMaxDepth)
	if err != nil {
		return decimal.Zero, err
	}
	return node.TotalCost, nil
}

func (s *hierarchyService) Availability(ctx context.Context, parent model.ParentRef, quantity decimal.Decimal) (*dto.AvailabilityResult, error) {
	flattened, err := s.Flatten(ctx, parent, quantity)
	if err != nil {
		return nil, err
	}

	result := &dto.AvailabilityResult{CanAssemble: true}
	for i := range flattened {
		leaf := &flattened[i]
		available, err := s.leafAvailability(ctx, leaf)
		if err != nil {
			return nil, err
		}
		if available.LessThan(leaf.CumulativeQuantity) {
			result.CanAssemble = false
			result.Missing = append(result.Missing, dto.MissingComponent{
				ComponentKind: leaf.ComponentKind,
				ComponentID:   leaf.ComponentID,
				DisplayName:   leaf.DisplayName,
				Required:      leaf.CumulativeQuantity,
				Available:     available,
			})
		}
	}
	return result, nil
}

func (s *hierarchyService) leafAvailability(ctx context.Context, leaf *dto.FlattenedComponent) (decimal.Decimal, error) {
	switch leaf.ComponentKind {
	case model.ComponentFinishedUnit:
		fu, err := s.finishedUnits.FindByID(ctx, leaf.ComponentID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("find finished unit", err)
		}
		return decimal.NewFromInt(int64(fu.InventoryCount)), nil
	case model.ComponentPackaging:
		product, err := s.products.FindByID(ctx, leaf.ComponentID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("find packaging product", err)
		}
		return s.inventory.FamilyAvailability(ctx, product.Family, product.Unit)
	case model.ComponentMaterialUnit:
		count, err := s.inventory.MaterialUnitAvailability(ctx, leaf.ComponentID)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(count), nil
	case model.ComponentMaterial:
		lots, err := s.lots.FindLiveByMaterial(ctx, nil, leaf.ComponentID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("list material lots", err)
		}
		total := decimal.Zero
		for i := range lots {
			total = total.Add(lots[i].QuantityRemaining)
		}
		return total, nil
	}
	return decimal.Zero, nil
}

func (s *hierarchyService) InvalidateUp(ctx context.Context, parent model.ParentRef) error {
	s.cache.Invalidate(ctx, parent)

	if parent.Kind != model.ParentAssembly {
		return nil
	}

	visited := map[uuid.UUID]bool{parent.ID: true}
	queue := []uuid.UUID{parent.ID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := s.compositions.ListParentsOf(ctx, model.ComponentSubAssembly, current)
		if err != nil {
			return apperror.WrapPersistence("list parent edges", err)
		}
		for i := range edges {
			ref := edges[i].Parent()
			s.cache.Invalidate(ctx, ref)
			if ref.Kind == model.ParentAssembly && !visited[ref.ID] {
				visited[ref.ID] = true
				queue = append(queue, ref.ID)
			}
		}
	}
	return nil
}
