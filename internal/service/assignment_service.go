package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/repository"
)

// AssignmentService resolves generic packaging edges to concrete lots. An
// assignment set either covers the edge's required quantity exactly or it is
// rejected whole — the store never holds partial progress.
type AssignmentService interface {
	// Assign atomically replaces the composition's assignment set. Every
	// lot must belong to the placeholder's product family and the supplied
	// quantities must sum to the composition's quantity exactly.
	Assign(ctx context.Context, compositionID uuid.UUID, lots []dto.LotAssignment) error

	// EstimatedCost prices a requirement from the family's weighted-average
	// lot cost, usable before any assignment exists.
	EstimatedCost(ctx context.Context, family string, quantity decimal.Decimal) (decimal.Decimal, error)

	// ActualCost is Σ(quantity_assigned × lot unit cost); zero before any
	// assignment exists.
	ActualCost(ctx context.Context, compositionID uuid.UUID) (decimal.Decimal, error)

	IsFullyAssigned(ctx context.Context, parent model.ParentRef) (bool, error)
	PendingRequirements(ctx context.Context, parent model.ParentRef) ([]dto.PendingRequirement, error)
}

type assignmentService struct {
	compositions repository.CompositionRepository
	lots         repository.LotRepository
	products     repository.ProductRepository
	inventory    InventoryService
	hierarchy    HierarchyService
}

func NewAssignmentService(
	compositions repository.CompositionRepository,
	lots repository.LotRepository,
	products repository.ProductRepository,
	inventory InventoryService,
	hierarchy HierarchyService,
) AssignmentService {
	return &assignmentService{
		compositions: compositions,
		lots:         lots,
		products:     products,
		inventory:    inventory,
		hierarchy:    hierarchy,
	}
}

func (s *assignmentService) Assign(ctx context.Context, compositionID uuid.UUID, lots []dto.LotAssignment) error {
	if len(lots) == 0 {
		return apperror.NewFieldValidation("lots", "at least one lot assignment is required")
	}
	for i := range lots {
		if err := dto.Validate(lots[i]); err != nil {
			return err
		}
	}

	edge, err := s.compositions.FindByID(ctx, compositionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFound("composition", compositionID)
		}
		return apperror.WrapPersistence("find composition", err)
	}
	if !edge.IsGeneric {
		return apperror.NewFieldValidation("composition_id", "composition is not generic")
	}

	placeholder, err := s.products.FindByID(ctx, edge.ComponentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFound("product", edge.ComponentID)
		}
		return apperror.WrapPersistence("find placeholder product", err)
	}

	// Resolve and vet every lot before totalling, so a family mismatch is
	// reported ahead of a sum mismatch.
	total := decimal.Zero
	rows := make([]model.CompositionAssignment, 0, len(lots))
	seen := make(map[uuid.UUID]bool, len(lots))
	for i := range lots {
		if seen[lots[i].LotID] {
			return apperror.NewFieldValidation("lots", "duplicate lot in assignment set")
		}
		seen[lots[i].LotID] = true

		lot, err := s.lots.FindByID(ctx, lots[i].LotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFound("lot", lots[i].LotID)
			}
			return apperror.WrapPersistence("find lot", err)
		}
		if lot.Product == nil || lot.Product.Family != placeholder.Family {
			lotFamily := ""
			if lot.Product != nil {
				lotFamily = lot.Product.Family
			}
			return &apperror.ProductMismatchError{
				LotID:          lot.ID,
				RequiredFamily: placeholder.Family,
				LotFamily:      lotFamily,
			}
		}
		if lot.QuantityRemaining.LessThan(lots[i].Quantity) {
			return apperror.NewFieldValidation("lots",
				"lot "+lot.ID.String()+" has less remaining than assigned")
		}

		total = total.Add(lots[i].Quantity)
		rows = append(rows, model.CompositionAssignment{
			CompositionID:    compositionID,
			LotID:            lots[i].LotID,
			QuantityAssigned: lots[i].Quantity,
		})
	}

	if !total.Equal(edge.Quantity) {
		return &apperror.InvalidAssignmentError{
			CompositionID: compositionID,
			Required:      edge.Quantity,
			Assigned:      total,
		}
	}

	err = runTx(ctx, s.compositions.DB(), func(tx *gorm.DB) error {
		if err := s.compositions.DeleteAssignmentsTx(tx, compositionID); err != nil {
			return apperror.WrapPersistence("delete prior assignments", err)
		}
		return apperror.WrapPersistence("create assignments",
			s.compositions.CreateAssignmentsTx(tx, rows))
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("composition", compositionID.String()).
		Int("lots", len(rows)).
		Msg("generic composition assigned")

	// The edge's cost changed from estimate to actual.
	return s.hierarchy.InvalidateUp(ctx, edge.Parent())
}

func (s *assignmentService) EstimatedCost(ctx context.Context, family string, quantity decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, apperror.NewFieldValidation("quantity", "must be positive")
	}
	avg, err := s.inventory.WeightedAverageCost(ctx, family)
	if err != nil {
		return decimal.Zero, err
	}
	return avg.Mul(quantity), nil
}

func (s *assignmentService) ActualCost(ctx context.Context, compositionID uuid.UUID) (decimal.Decimal, error) {
	rows, err := s.compositions.ListAssignments(ctx, compositionID)
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

func (s *assignmentService) IsFullyAssigned(ctx context.Context, parent model.ParentRef) (bool, error) {
	pending, err := s.PendingRequirements(ctx, parent)
	if err != nil {
		return false, err
	}
	return len(pending) == 0, nil
}

func (s *assignmentService) PendingRequirements(ctx context.Context, parent model.ParentRef) ([]dto.PendingRequirement, error) {
	edges, err := s.compositions.ListByParent(ctx, parent)
	if err != nil {
		return nil, apperror.WrapPersistence("list compositions", err)
	}

	var pending []dto.PendingRequirement
	for i := range edges {
		edge := &edges[i]
		if !edge.IsGeneric {
			continue
		}
		assigned := assignedTotal(edge.Assignments)
		if assigned.Equal(edge.Quantity) {
			continue
		}

		family := ""
		if product, err := s.products.FindByID(ctx, edge.ComponentID); err == nil {
			family = product.Family
		}
		pending = append(pending, dto.PendingRequirement{
			CompositionID: edge.ID,
			Family:        family,
			Required:      edge.Quantity,
			Assigned:      assigned,
		})
	}
	return pending, nil
}
