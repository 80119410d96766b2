package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/repository"
)

// AssemblyService records assembly runs: finished units, packaging lots and
// materials are consumed in one transaction and the component cost is frozen
// into an AssemblyRun snapshot.
type AssemblyService interface {
	CheckAvailability(ctx context.Context, assemblyID uuid.UUID, quantity int) (*dto.AvailabilityResult, error)

	// Assemble builds req.Quantity finished goods. Generic packaging edges
	// anywhere in the reachable graph must be fully assigned regardless of
	// policy; stock shortfalls follow the caller's policy.
	Assemble(ctx context.Context, req dto.AssembleRequest) (*dto.AssemblyResult, error)
}

type assemblyService struct {
	assemblies    repository.AssemblyRepository
	compositions  repository.CompositionRepository
	finishedUnits repository.FinishedUnitRepository
	products      repository.ProductRepository
	materials     repository.MaterialRepository
	lots          repository.LotRepository
	movements     repository.StockMovementRepository
	inventory     InventoryService
	hierarchy     HierarchyService
}

func NewAssemblyService(
	assemblies repository.AssemblyRepository,
	compositions repository.CompositionRepository,
	finishedUnits repository.FinishedUnitRepository,
	products repository.ProductRepository,
	materials repository.MaterialRepository,
	lots repository.LotRepository,
	movements repository.StockMovementRepository,
	inventory InventoryService,
	hierarchy HierarchyService,
) AssemblyService {
	return &assemblyService{
		assemblies:    assemblies,
		compositions:  compositions,
		finishedUnits: finishedUnits,
		products:      products,
		materials:     materials,
		lots:          lots,
		movements:     movements,
		inventory:     inventory,
		hierarchy:     hierarchy,
	}
}

func (s *assemblyService) CheckAvailability(ctx context.Context, assemblyID uuid.UUID, quantity int) (*dto.AvailabilityResult, error) {
	if quantity <= 0 {
		return nil, apperror.NewFieldValidation("quantity", "must be positive")
	}
	return s.hierarchy.Availability(ctx,
		model.ParentRef{Kind: model.ParentAssembly, ID: assemblyID},
		decimal.NewFromInt(int64(quantity)))
}

// requirement is one leaf edge of the assembly's reachable graph with the
// multiplier accumulated along its path.
type requirement struct {
	edge       model.Composition
	multiplier decimal.Decimal
}

// collectRequirements expands sub-assemblies depth-first, multiplying edge
// quantities along each path. Shared sub-assemblies contribute once per
// path; ancestors guards against corrupted cyclic data.
func (s *assemblyService) collectRequirements(ctx context.Context, parent model.ParentRef, multiplier decimal.Decimal, ancestors map[uuid.UUID]bool, out *[]requirement) error {
	edges, err := s.compositions.ListByParent(ctx, parent)
	if err != nil {
		return apperror.WrapPersistence("list compositions", err)
	}

	for i := range edges {
		edge := edges[i]
		if edge.ComponentKind == model.ComponentSubAssembly {
			if ancestors[edge.ComponentID] {
				return &apperror.CircularReferenceError{
					ParentID:    edge.ParentID,
					ComponentID: edge.ComponentID,
				}
			}
			ancestors[edge.ComponentID] = true
			err := s.collectRequirements(ctx,
				model.ParentRef{Kind: model.ParentAssembly, ID: edge.ComponentID},
				multiplier.Mul(edge.Quantity), ancestors, out)
			delete(ancestors, edge.ComponentID)
			if err != nil {
				return err
			}
			continue
		}
		*out = append(*out, requirement{edge: edge, multiplier: multiplier})
	}
	return nil
}

func (s *assemblyService) Assemble(ctx context.Context, req dto.AssembleRequest) (*dto.AssemblyResult, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	assembly, err := s.assemblies.FindAssembly(ctx, req.AssemblyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("assembly", req.AssemblyID)
		}
		return nil, apperror.WrapPersistence("find assembly", err)
	}

	parentRef := model.ParentRef{Kind: model.ParentAssembly, ID: req.AssemblyID}
	quantity := decimal.NewFromInt(int64(req.Quantity))

	var requirements []requirement
	ancestors := map[uuid.UUID]bool{req.AssemblyID: true}
	if err := s.collectRequirements(ctx, parentRef, quantity, ancestors, &requirements); err != nil {
		return nil, err
	}

	// Generic edges must be fully assigned before anything is consumed,
	// regardless of shortfall policy.
	for i := range requirements {
		edge := &requirements[i].edge
		if edge.IsGeneric && !assignedTotal(edge.Assignments).Equal(edge.Quantity) {
			return nil, &apperror.InvalidAssignmentError{
				CompositionID: edge.ID,
				Required:      edge.Quantity,
				Assigned:      assignedTotal(edge.Assignments),
			}
		}
	}

	run := &model.AssemblyRun{
		ID:         uuid.New(),
		AssemblyID: req.AssemblyID,
		Quantity:   req.Quantity,
	}
	result := &dto.AssemblyResult{
		AssemblyRunID:  run.ID,
		FinishedGoodID: req.AssemblyID,
		Satisfied:      true,
	}

	err = runTx(ctx, s.assemblies.DB(), func(tx *gorm.DB) error {
		totalCost := decimal.Zero

		for i := range requirements {
			edge := &requirements[i].edge
			multiplier := requirements[i].multiplier

			var cost decimal.Decimal
			var err error
			switch edge.ComponentKind {
			case model.ComponentFinishedUnit:
				cost, err = s.consumeFinishedUnit(ctx, tx, run, edge, multiplier, req.Policy, result)
			case model.ComponentPackaging:
				if edge.IsGeneric {
					cost, err = s.consumeAssignedLots(ctx, tx, run, edge, multiplier, req.Policy, result)
				} else {
					cost, err = s.consumePackagingFamily(ctx, tx, run, edge, multiplier, req.Policy, result)
				}
			case model.ComponentMaterialUnit, model.ComponentMaterial:
				cost, err = s.consumeMaterial(ctx, tx, run, edge, multiplier, req.Policy, result)
			default:
				err = apperror.NewFieldValidation("component_kind", "unknown component kind")
			}
			if err != nil {
				return err
			}
			totalCost = totalCost.Add(cost)
		}

		run.TotalComponentCost = totalCost
		run.PerUnitCost = totalCost.DivRound(quantity, CostScale)
		run.Shortfall = !result.Satisfied
		if err := s.assemblies.CreateRunTx(tx, run); err != nil {
			return apperror.WrapPersistence("create assembly run", err)
		}

		result.QuantityAssembled = req.Quantity
		result.TotalComponentCost = totalCost
		result.PerUnitCost = run.PerUnitCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Consumption changed stock everywhere under this assembly.
	if err := s.hierarchy.InvalidateUp(ctx, parentRef); err != nil {
		return nil, err
	}

	log.Info().
		Str("assembly", assembly.Name).
		Int("quantity", req.Quantity).
		Str("total_cost", result.TotalComponentCost.String()).
		Bool("satisfied", result.Satisfied).
		Msg("assembly run recorded")

	return result, nil
}

func (s *assemblyService) consumeFinishedUnit(ctx context.Context, tx *gorm.DB, run *model.AssemblyRun, edge *model.Composition, multiplier decimal.Decimal, policy dto.ShortfallPolicy, result *dto.AssemblyResult) (decimal.Decimal, error) {
	needed := edge.Quantity.Mul(multiplier)
	if !needed.Equal(needed.Truncate(0)) {
		return decimal.Zero, apperror.NewFieldValidation("quantity",
			"finished unit requirements must be whole numbers")
	}
	neededCount := int(needed.IntPart())

	fu, err := s.finishedUnits.FindByIDTx(tx, edge.ComponentID)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("find finished unit", err)
	}

	take := neededCount
	shortfall := decimal.Zero
	if fu.InventoryCount < neededCount {
		if policy == dto.ShortfallFail {
			return decimal.Zero, fmt.Errorf("%w: finished unit %s has %d of %d",
				ErrShortfall, fu.Name, fu.InventoryCount, neededCount)
		}
		take = fu.InventoryCount
		shortfall = decimal.NewFromInt(int64(neededCount - take))
		result.Satisfied = false
	}

	takeDec := decimal.NewFromInt(int64(take))
	cost := fu.UnitCost.Mul(takeDec)

	if take > 0 {
		if err := s.finishedUnits.AdjustInventoryTx(tx, fu.ID, -take); err != nil {
			return decimal.Zero, apperror.WrapPersistence("adjust finished unit inventory", err)
		}
		if err := s.movements.CreateTx(tx, &model.StockMovement{
			EntityKind:     model.StockEntityFinishedUnit,
			EntityID:       fu.ID,
			Delta:          takeDec.Neg(),
			QuantityBefore: decimal.NewFromInt(int64(fu.InventoryCount)),
			QuantityAfter:  decimal.NewFromInt(int64(fu.InventoryCount - take)),
			Reason:         "assembly_run",
			ReferenceID:    &run.ID,
		}); err != nil {
			return decimal.Zero, apperror.WrapPersistence("record finished unit movement", err)
		}
	}

	run.Items = append(run.Items, model.AssemblyRunItem{
		ComponentKind: model.ComponentFinishedUnit,
		ComponentID:   fu.ID,
		Quantity:      takeDec,
		Unit:          "unit",
		UnitCost:      fu.UnitCost,
		Cost:          cost,
	})
	result.FinishedUnitConsumptions = append(result.FinishedUnitConsumptions, dto.ComponentConsumption{
		ComponentKind: model.ComponentFinishedUnit,
		ComponentID:   fu.ID,
		DisplayName:   fu.Name,
		Quantity:      takeDec,
		Unit:          "unit",
		Cost:          cost,
		Shortfall:     shortfall,
	})
	return cost, nil
}

func (s *assemblyService) consumeAssignedLots(ctx context.Context, tx *gorm.DB, run *model.AssemblyRun, edge *model.Composition, multiplier decimal.Decimal, policy dto.ShortfallPolicy, result *dto.AssemblyResult) (decimal.Decimal, error) {
	total := decimal.Zero

	for i := range edge.Assignments {
		assignment := &edge.Assignments[i]
		lot, err := s.lots.FindByID(ctx, assignment.LotID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("find assigned lot", err)
		}

		needed := assignment.QuantityAssigned.Mul(multiplier)
		take := needed
		shortfall := decimal.Zero
		if lot.QuantityRemaining.LessThan(needed) {
			if policy == dto.ShortfallFail {
				return decimal.Zero, fmt.Errorf("%w: assigned lot %s has %s of %s",
					ErrShortfall, lot.ID, lot.QuantityRemaining, needed)
			}
			take = lot.QuantityRemaining
			shortfall = needed.Sub(take)
			result.Satisfied = false
		}

		cost := take.Mul(lot.UnitCost)
		unit := ""
		name := ""
		if lot.Product != nil {
			unit = lot.Product.Unit
			name = lot.Product.Name
		}

		if take.IsPositive() {
			if err := s.lots.DecrementTx(tx, lot.ID, take); err != nil {
				return decimal.Zero, apperror.WrapPersistence("decrement assigned lot", err)
			}
			if err := s.movements.CreateTx(tx, &model.StockMovement{
				EntityKind:     model.StockEntityLot,
				EntityID:       lot.ID,
				Delta:          take.Neg(),
				QuantityBefore: lot.QuantityRemaining,
				QuantityAfter:  lot.QuantityRemaining.Sub(take),
				Reason:         "assembly_run",
				ReferenceID:    &run.ID,
			}); err != nil {
				return decimal.Zero, apperror.WrapPersistence("record lot movement", err)
			}
		}

		lotID := lot.ID
		run.Items = append(run.Items, model.AssemblyRunItem{
			ComponentKind: model.ComponentPackaging,
			ComponentID:   edge.ComponentID,
			LotID:         &lotID,
			Quantity:      take,
			Unit:          unit,
			UnitCost:      lot.UnitCost,
			Cost:          cost,
		})
		result.PackagingConsumptions = append(result.PackagingConsumptions, dto.ComponentConsumption{
			ComponentKind: model.ComponentPackaging,
			ComponentID:   edge.ComponentID,
			DisplayName:   name,
			LotID:         &lotID,
			Quantity:      take,
			Unit:          unit,
			Cost:          cost,
			Shortfall:     shortfall,
		})
		total = total.Add(cost)
	}
	return total, nil
}

func (s *assemblyService) consumePackagingFamily(ctx context.Context, tx *gorm.DB, run *model.AssemblyRun, edge *model.Composition, multiplier decimal.Decimal, policy dto.ShortfallPolicy, result *dto.AssemblyResult) (decimal.Decimal, error) {
	product, err := s.products.FindByID(ctx, edge.ComponentID)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("find packaging product", err)
	}

	needed := edge.Quantity.Mul(multiplier)
	consumption, err := s.inventory.ConsumeTx(ctx, tx, dto.ConsumeRequest{
		Family:      product.Family,
		Quantity:    needed,
		TargetUnit:  product.Unit,
		Reason:      "assembly_run",
		ReferenceID: &run.ID,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !consumption.Satisfied {
		if policy == dto.ShortfallFail {
			return decimal.Zero, fmt.Errorf("%w: %s short by %s %s",
				ErrShortfall, product.Family, consumption.Shortfall, product.Unit)
		}
		result.Satisfied = false
	}

	for i := range consumption.Breakdown {
		row := &consumption.Breakdown[i]
		lotID := row.LotID
		run.Items = append(run.Items, model.AssemblyRunItem{
			ComponentKind: model.ComponentPackaging,
			ComponentID:   edge.ComponentID,
			LotID:         &lotID,
			Quantity:      row.Quantity,
			Unit:          row.Unit,
			UnitCost:      row.UnitCost,
			Cost:          row.Cost,
		})
	}
	result.PackagingConsumptions = append(result.PackagingConsumptions, dto.ComponentConsumption{
		ComponentKind: model.ComponentPackaging,
		ComponentID:   edge.ComponentID,
		DisplayName:   product.Name,
		Quantity:      consumption.Consumed,
		Unit:          product.Unit,
		Cost:          consumption.TotalCost,
		Shortfall:     consumption.Shortfall,
		Breakdown:     consumption.Breakdown,
	})
	return consumption.TotalCost, nil
}

func (s *assemblyService) consumeMaterial(ctx context.Context, tx *gorm.DB, run *model.AssemblyRun, edge *model.Composition, multiplier decimal.Decimal, policy dto.ShortfallPolicy, result *dto.AssemblyResult) (decimal.Decimal, error) {
	var materialID uuid.UUID
	var displayName, baseUnit string
	needed := edge.Quantity.Mul(multiplier)

	if edge.ComponentKind == model.ComponentMaterialUnit {
		mu, err := s.materials.FindUnit(ctx, edge.ComponentID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("find material unit", err)
		}
		materialID = mu.MaterialID
		displayName = mu.Name
		needed = needed.Mul(mu.QuantityPerUnit)
		if mu.Material != nil {
			baseUnit = mu.Material.BaseUnit
		}
	} else {
		material, err := s.materials.FindMaterial(ctx, edge.ComponentID)
		if err != nil {
			return decimal.Zero, apperror.WrapPersistence("find material", err)
		}
		materialID = material.ID
		displayName = material.Name
		baseUnit = material.BaseUnit
	}

	consumption, err := s.inventory.ConsumeMaterialTx(ctx, tx, materialID, needed, false, "assembly_run", &run.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !consumption.Satisfied {
		if policy == dto.ShortfallFail {
			return decimal.Zero, fmt.Errorf("%w: material %s short by %s %s",
				ErrShortfall, displayName, consumption.Shortfall, baseUnit)
		}
		result.Satisfied = false
	}

	for i := range consumption.Breakdown {
		row := &consumption.Breakdown[i]
		lotID := row.LotID
		run.Items = append(run.Items, model.AssemblyRunItem{
			ComponentKind: edge.ComponentKind,
			ComponentID:   edge.ComponentID,
			LotID:         &lotID,
			Quantity:      row.Quantity,
			Unit:          row.Unit,
			UnitCost:      row.UnitCost,
			Cost:          row.Cost,
		})
	}
	result.PackagingConsumptions = append(result.PackagingConsumptions, dto.ComponentConsumption{
		ComponentKind: edge.ComponentKind,
		ComponentID:   edge.ComponentID,
		DisplayName:   displayName,
		Quantity:      consumption.Consumed,
		Unit:          baseUnit,
		Cost:          consumption.TotalCost,
		Shortfall:     consumption.Shortfall,
		Breakdown:     consumption.Breakdown,
	})
	return consumption.TotalCost, nil
}
