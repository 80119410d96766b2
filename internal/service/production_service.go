package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/apperror"
	"github.com/kentonium3/bake-tracker/internal/dto"
	"github.com/kentonium3/bake-tracker/internal/model"
	"github.com/kentonium3/bake-tracker/internal/repository"
)

// ErrShortfall aborts an operation whose caller chose the fail policy and
// whose stock could not cover the requirement. The detail names the first
// short component.
var ErrShortfall = errors.New("insufficient stock")

// ProductionService turns raw-ingredient lots into finished units: recipes
// describe the ingredients per batch, ProduceBatch consumes them FIFO and
// rolls the ingredient cost into the finished unit's moving-average cost.
type ProductionService interface {
	CreateRecipe(ctx context.Context, req dto.CreateRecipeRequest) (*dto.RecipeResponse, error)
	ProduceBatch(ctx context.Context, req dto.ProduceBatchRequest) (*dto.BatchResult, error)
}

type productionService struct {
	recipes       repository.RecipeRepository
	finishedUnits repository.FinishedUnitRepository
	compositions  repository.CompositionRepository
	movements     repository.StockMovementRepository
	inventory     InventoryService
	hierarchy     HierarchyService
}

func NewProductionService(
	recipes repository.RecipeRepository,
	finishedUnits repository.FinishedUnitRepository,
	compositions repository.CompositionRepository,
	movements repository.StockMovementRepository,
	inventory InventoryService,
	hierarchy HierarchyService,
) ProductionService {
	return &productionService{
		recipes:       recipes,
		finishedUnits: finishedUnits,
		compositions:  compositions,
		movements:     movements,
		inventory:     inventory,
		hierarchy:     hierarchy,
	}
}

func (s *productionService) CreateRecipe(ctx context.Context, req dto.CreateRecipeRequest) (*dto.RecipeResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.finishedUnits.FindByID(ctx, req.FinishedUnitID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("finished unit", req.FinishedUnitID)
		}
		return nil, apperror.WrapPersistence("find finished unit", err)
	}

	recipe := &model.Recipe{
		Name:           req.Name,
		FinishedUnitID: req.FinishedUnitID,
		YieldQuantity:  req.YieldQuantity,
		Notes:          req.Notes,
	}
	for _, line := range req.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, model.RecipeIngredient{
			Family:    line.Family,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
			SortOrder: line.SortOrder,
		})
	}

	err := runTx(ctx, s.recipes.DB(), func(tx *gorm.DB) error {
		return apperror.WrapPersistence("create recipe", s.recipes.Create(ctx, tx, recipe))
	})
	if err != nil {
		return nil, err
	}
	return recipeToResponse(recipe), nil
}

func (s *productionService) ProduceBatch(ctx context.Context, req dto.ProduceBatchRequest) (*dto.BatchResult, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	recipe, err := s.recipes.FindByID(ctx, req.RecipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("recipe", req.RecipeID)
		}
		return nil, apperror.WrapPersistence("find recipe", err)
	}
	if len(recipe.Ingredients) == 0 {
		return nil, apperror.NewFieldValidation("recipe_id", "recipe has no ingredients")
	}

	produced := recipe.YieldQuantity * req.BatchCount
	batchCount := decimal.NewFromInt(int64(req.BatchCount))

	// The batch id is minted up front so every consumption movement can
	// reference it.
	batch := &model.Batch{
		ID:         uuid.New(),
		RecipeID:   recipe.ID,
		BatchCount: req.BatchCount,
		ProducedAt: time.Now(),
		Notes:      req.Notes,
	}

	result := &dto.BatchResult{
		BatchID:          batch.ID,
		FinishedUnitID:   recipe.FinishedUnitID,
		QuantityProduced: produced,
	}

	err = runTx(ctx, s.recipes.DB(), func(tx *gorm.DB) error {
		ingredientCost := decimal.Zero

		for _, line := range recipe.Ingredients {
			needed := line.Quantity.Mul(batchCount)
			consumption, err := s.inventory.ConsumeTx(ctx, tx, dto.ConsumeRequest{
				Family:      line.Family,
				Quantity:    needed,
				TargetUnit:  line.Unit,
				Reason:      "batch",
				ReferenceID: &batch.ID,
			})
			if err != nil {
				return err
			}

			if !consumption.Satisfied {
				if req.Policy == dto.ShortfallFail {
					return fmt.Errorf("%w: %s short by %s %s",
						ErrShortfall, line.Family, consumption.Shortfall, line.Unit)
				}
				result.Shortfalls = append(result.Shortfalls, dto.IngredientShortfall{
					Family:    line.Family,
					Requested: needed,
					Shortfall: consumption.Shortfall,
					Unit:      line.Unit,
				})
			}

			ingredientCost = ingredientCost.Add(consumption.TotalCost)
			result.Consumptions = append(result.Consumptions, *consumption)
		}

		fu, err := s.finishedUnits.FindByIDTx(tx, recipe.FinishedUnitID)
		if err != nil {
			return apperror.WrapPersistence("find finished unit", err)
		}

		producedDec := decimal.NewFromInt(int64(produced))
		perUnit := ingredientCost.DivRound(producedDec, CostScale)

		// Inventory-weighted moving average of the prior stock and the new
		// batch.
		priorCount := decimal.NewFromInt(int64(fu.InventoryCount))
		newCost := priorCount.Mul(fu.UnitCost).Add(ingredientCost).
			DivRound(priorCount.Add(producedDec), CostScale)

		if err := s.finishedUnits.UpdateCostTx(tx, fu.ID, newCost); err != nil {
			return apperror.WrapPersistence("update finished unit cost", err)
		}
		if err := s.finishedUnits.AdjustInventoryTx(tx, fu.ID, produced); err != nil {
			return apperror.WrapPersistence("adjust finished unit inventory", err)
		}
		if err := s.finishedUnits.CreateCostHistoryTx(tx, &model.UnitCostHistory{
			FinishedUnitID: fu.ID,
			CostBefore:     fu.UnitCost,
			CostAfter:      newCost,
			BatchID:        &batch.ID,
		}); err != nil {
			return apperror.WrapPersistence("record cost history", err)
		}
		if err := s.movements.CreateTx(tx, &model.StockMovement{
			EntityKind:     model.StockEntityFinishedUnit,
			EntityID:       fu.ID,
			Delta:          producedDec,
			QuantityBefore: priorCount,
			QuantityAfter:  priorCount.Add(producedDec),
			Reason:         "batch",
			ReferenceID:    &batch.ID,
		}); err != nil {
			return apperror.WrapPersistence("record production movement", err)
		}

		batch.QuantityProduced = produced
		batch.IngredientCost = ingredientCost
		batch.PerUnitCost = perUnit
		batch.Shortfall = len(result.Shortfalls) > 0
		if err := s.recipes.CreateBatchTx(tx, batch); err != nil {
			return apperror.WrapPersistence("create batch", err)
		}

		result.IngredientCost = ingredientCost
		result.PerUnitCost = perUnit
		result.NewUnitCost = newCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The finished unit's cost moved: every parent composed from it holds a
	// stale aggregate.
	if err := s.invalidateParentsOf(ctx, recipe.FinishedUnitID); err != nil {
		return nil, err
	}

	log.Info().
		Str("recipe", recipe.Name).
		Int("produced", produced).
		Str("per_unit_cost", result.PerUnitCost.String()).
		Msg("batch produced")

	return result, nil
}

func (s *productionService) invalidateParentsOf(ctx context.Context, finishedUnitID uuid.UUID) error {
	edges, err := s.compositions.ListParentsOf(ctx, model.ComponentFinishedUnit, finishedUnitID)
	if err != nil {
		return apperror.WrapPersistence("list parent edges", err)
	}
	for i := range edges {
		if err := s.hierarchy.InvalidateUp(ctx, edges[i].Parent()); err != nil {
			return err
		}
	}
	return nil
}

func recipeToResponse(recipe *model.Recipe) *dto.RecipeResponse {
	resp := &dto.RecipeResponse{
		ID:             recipe.ID,
		Name:           recipe.Name,
		FinishedUnitID: recipe.FinishedUnitID,
		YieldQuantity:  recipe.YieldQuantity,
		Notes:          recipe.Notes,
	}
	for _, line := range recipe.Ingredients {
		resp.Ingredients = append(resp.Ingredients, dto.RecipeIngredientRequest{
			Family:    line.Family,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
			SortOrder: line.SortOrder,
		})
	}
	return resp
}
