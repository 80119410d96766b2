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
	"github.com/kentonium3/bake-tracker/internal/unit"
)

// QuantityScale is the fixed precision stock quantities are carried at.
const QuantityScale = 3

// CostScale is the fixed precision of unit costs and cost aggregates.
const CostScale = 4

// InventoryService is the inventory ledger plus the FIFO consumption engine:
// purchases create lots, consumption depletes them oldest-first under unit
// conversion, accumulating exact decimal cost.
type InventoryService interface {
	RegisterPurchase(ctx context.Context, req dto.RegisterPurchaseRequest) (*dto.LotResponse, error)

	// Consume satisfies a quantity of a product family from its lots,
	// oldest purchase first. Insufficient stock is not an error: the result
	// carries Shortfall and Satisfied for the caller's policy. A failed
	// unit conversion aborts the whole call with nothing mutated.
	Consume(ctx context.Context, req dto.ConsumeRequest) (*dto.ConsumptionResult, error)

	// ConsumeTx is Consume running inside a caller-supplied transaction so
	// multi-step operations (batches, assembly runs) stay atomic.
	ConsumeTx(ctx context.Context, tx *gorm.DB, req dto.ConsumeRequest) (*dto.ConsumptionResult, error)

	// ConsumeMaterialTx depletes the lot pool of every product tagged with
	// the material, in the material's base unit.
	ConsumeMaterialTx(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, dryRun bool, reason string, referenceID *uuid.UUID) (*dto.ConsumptionResult, error)

	// WeightedAverageCost is Σ(qty × cost) / Σ(qty) over the family's live
	// lots — the estimate used before concrete lots are chosen.
	WeightedAverageCost(ctx context.Context, family string) (decimal.Decimal, error)

	// MaterialWeightedCost is the same aggregate over a material's pool,
	// per base unit.
	MaterialWeightedCost(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error)

	// FamilyAvailability totals the family's remaining stock in the given
	// unit.
	FamilyAvailability(ctx context.Context, family, targetUnit string) (decimal.Decimal, error)

	// MaterialUnitAvailability = floor(Σ remaining base units / quantity
	// per unit): how many bows the ribbon on hand yields.
	MaterialUnitAvailability(ctx context.Context, materialUnitID uuid.UUID) (int64, error)
}

type inventoryService struct {
	lots      repository.LotRepository
	products  repository.ProductRepository
	materials repository.MaterialRepository
	movements repository.StockMovementRepository
	converter unit.Converter
}

func NewInventoryService(
	lots repository.LotRepository,
	products repository.ProductRepository,
	materials repository.MaterialRepository,
	movements repository.StockMovementRepository,
	converter unit.Converter,
) InventoryService {
	return &inventoryService{
		lots:      lots,
		products:  products,
		materials: materials,
		movements: movements,
		converter: converter,
	}
}

func (s *inventoryService) RegisterPurchase(ctx context.Context, req dto.RegisterPurchaseRequest) (*dto.LotResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("product", req.ProductID)
		}
		return nil, apperror.WrapPersistence("find product", err)
	}
	if product.IsGeneric {
		return nil, apperror.NewFieldValidation("product_id",
			"generic placeholder products cannot own lots")
	}
	if !product.Active {
		return nil, apperror.NewFieldValidation("product_id", "product is inactive")
	}

	lot := &model.Lot{
		ProductID:         req.ProductID,
		QuantityRemaining: req.Quantity.Round(QuantityScale),
		UnitCost:          req.UnitCost.Round(CostScale),
		PurchaseDate:      req.PurchaseDate,
		SupplierID:        req.SupplierID,
	}

	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		if err := s.lots.Create(ctx, tx, lot); err != nil {
			return apperror.WrapPersistence("create lot", err)
		}
		movement := &model.StockMovement{
			EntityKind:     model.StockEntityLot,
			EntityID:       lot.ID,
			Delta:          lot.QuantityRemaining,
			QuantityBefore: decimal.Zero,
			QuantityAfter:  lot.QuantityRemaining,
			Reason:         "purchase",
		}
		return apperror.WrapPersistence("record purchase movement", s.movements.CreateTx(tx, movement))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("product", product.Name).
		Str("quantity", lot.QuantityRemaining.String()).
		Str("unit_cost", lot.UnitCost.String()).
		Msg("purchase registered")

	return &dto.LotResponse{
		ID:                lot.ID,
		ProductID:         lot.ProductID,
		QuantityRemaining: lot.QuantityRemaining,
		UnitCost:          lot.UnitCost,
		PurchaseDate:      lot.PurchaseDate,
		SupplierID:        lot.SupplierID,
	}, nil
}

func (s *inventoryService) Consume(ctx context.Context, req dto.ConsumeRequest) (*dto.ConsumptionResult, error) {
	if req.DryRun {
		// The dry-run path never opens a transaction: the identical walk
		// runs against a plain read and mutates nothing.
		return s.ConsumeTx(ctx, nil, req)
	}

	var result *dto.ConsumptionResult
	err := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		var err error
		result, err = s.ConsumeTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *inventoryService) ConsumeTx(ctx context.Context, tx *gorm.DB, req dto.ConsumeRequest) (*dto.ConsumptionResult, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	lots, err := s.lots.FindLiveByFamily(ctx, tx, req.Family)
	if err != nil {
		return nil, apperror.WrapPersistence("list lots for family "+req.Family, err)
	}

	return s.walkLots(ctx, tx, lots, req.Quantity, req.TargetUnit, req.DryRun, req.Reason, req.ReferenceID)
}

func (s *inventoryService) ConsumeMaterialTx(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, dryRun bool, reason string, referenceID *uuid.UUID) (*dto.ConsumptionResult, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewFieldValidation("quantity", "must be positive")
	}

	material, err := s.materials.FindMaterial(ctx, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("material", materialID)
		}
		return nil, apperror.WrapPersistence("find material", err)
	}

	lots, err := s.lots.FindLiveByMaterial(ctx, tx, materialID)
	if err != nil {
		return nil, apperror.WrapPersistence("list lots for material "+material.Name, err)
	}

	return s.walkLots(ctx, tx, lots, qty, material.BaseUnit, dryRun, reason, referenceID)
}

// walkLots is the FIFO core. lots arrive oldest-first; each iteration
// converts a lot's remaining quantity into the target unit, takes
// min(available, still needed), converts the take back into the lot's
// native unit for the deduction, and accumulates cost as lot-unit quantity
// × exact unit cost with no intermediate rounding. A dry run performs the
// identical arithmetic and skips only the writes, so its breakdown matches
// a subsequent real run byte for byte.
func (s *inventoryService) walkLots(ctx context.Context, tx *gorm.DB, lots []model.Lot, needed decimal.Decimal, targetUnit string, dryRun bool, reason string, referenceID *uuid.UUID) (*dto.ConsumptionResult, error) {
	if reason == "" {
		reason = "consumption"
	}

	result := &dto.ConsumptionResult{
		Consumed:  decimal.Zero,
		Shortfall: decimal.Zero,
		TotalCost: decimal.Zero,
	}
	remaining := needed

	for i := range lots {
		if !remaining.IsPositive() {
			break
		}
		lot := &lots[i]

		lotUnit := targetUnit
		if lot.Product != nil {
			lotUnit = lot.Product.Unit
		}

		available, err := s.converter.Convert(ctx, lot.QuantityRemaining, lotUnit, targetUnit)
		if err != nil {
			return nil, fmt.Errorf("convert lot %s from %q to %q: %w", lot.ID, lotUnit, targetUnit, err)
		}
		if !available.IsPositive() {
			continue
		}

		take := decimal.Min(available, remaining)
		takeInLotUnit, err := s.converter.Convert(ctx, take, targetUnit, lotUnit)
		if err != nil {
			return nil, fmt.Errorf("convert take from %q to %q: %w", targetUnit, lotUnit, err)
		}
		// Round-trip rounding can overshoot the lot by a whisker; the
		// deduction is clamped so the guard never trips on dust.
		if takeInLotUnit.GreaterThan(lot.QuantityRemaining) {
			takeInLotUnit = lot.QuantityRemaining
		}

		cost := takeInLotUnit.Mul(lot.UnitCost)
		remainingInLot := lot.QuantityRemaining.Sub(takeInLotUnit)

		if !dryRun {
			if err := s.lots.DecrementTx(tx, lot.ID, takeInLotUnit); err != nil {
				return nil, apperror.WrapPersistence("decrement lot "+lot.ID.String(), err)
			}
			movement := &model.StockMovement{
				EntityKind:     model.StockEntityLot,
				EntityID:       lot.ID,
				Delta:          takeInLotUnit.Neg(),
				QuantityBefore: lot.QuantityRemaining,
				QuantityAfter:  remainingInLot,
				Reason:         reason,
				ReferenceID:    referenceID,
			}
			if err := s.movements.CreateTx(tx, movement); err != nil {
				return nil, apperror.WrapPersistence("record consumption movement", err)
			}
		}

		result.Breakdown = append(result.Breakdown, dto.LotConsumption{
			LotID:          lot.ID,
			ProductID:      lot.ProductID,
			Quantity:       takeInLotUnit,
			Unit:           lotUnit,
			RemainingInLot: remainingInLot,
			UnitCost:       lot.UnitCost,
			Cost:           cost,
		})
		result.TotalCost = result.TotalCost.Add(cost)
		result.Consumed = result.Consumed.Add(take)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		result.Shortfall = remaining
	}
	result.Satisfied = !result.Shortfall.IsPositive()
	return result, nil
}

func (s *inventoryService) WeightedAverageCost(ctx context.Context, family string) (decimal.Decimal, error) {
	lots, err := s.lots.FindLiveByFamily(ctx, nil, family)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("list lots for family "+family, err)
	}
	return weightedCost(lots), nil
}

func (s *inventoryService) MaterialWeightedCost(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error) {
	lots, err := s.lots.FindLiveByMaterial(ctx, nil, materialID)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("list lots for material", err)
	}
	return weightedCost(lots), nil
}

// weightedCost is Σ(qty × cost) / Σ(qty), rounded at CostScale. Zero when no
// stock exists.
func weightedCost(lots []model.Lot) decimal.Decimal {
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for i := range lots {
		totalQty = totalQty.Add(lots[i].QuantityRemaining)
		totalCost = totalCost.Add(lots[i].QuantityRemaining.Mul(lots[i].UnitCost))
	}
	if !totalQty.IsPositive() {
		return decimal.Zero
	}
	return totalCost.DivRound(totalQty, CostScale)
}

func (s *inventoryService) FamilyAvailability(ctx context.Context, family, targetUnit string) (decimal.Decimal, error) {
	lots, err := s.lots.FindLiveByFamily(ctx, nil, family)
	if err != nil {
		return decimal.Zero, apperror.WrapPersistence("list lots for family "+family, err)
	}

	total := decimal.Zero
	for i := range lots {
		lotUnit := targetUnit
		if lots[i].Product != nil {
			lotUnit = lots[i].Product.Unit
		}
		converted, err := s.converter.Convert(ctx, lots[i].QuantityRemaining, lotUnit, targetUnit)
		if err != nil {
			return decimal.Zero, fmt.Errorf("convert lot %s availability: %w", lots[i].ID, err)
		}
		total = total.Add(converted)
	}
	return total, nil
}

func (s *inventoryService) MaterialUnitAvailability(ctx context.Context, materialUnitID uuid.UUID) (int64, error) {
	mu, err := s.materials.FindUnit(ctx, materialUnitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperror.NewNotFound("material unit", materialUnitID)
		}
		return 0, apperror.WrapPersistence("find material unit", err)
	}
	if !mu.QuantityPerUnit.IsPositive() {
		return 0, apperror.NewFieldValidation("quantity_per_unit", "must be positive")
	}

	lots, err := s.lots.FindLiveByMaterial(ctx, nil, mu.MaterialID)
	if err != nil {
		return 0, apperror.WrapPersistence("list lots for material", err)
	}

	total := decimal.Zero
	for i := range lots {
		total = total.Add(lots[i].QuantityRemaining)
	}
	return total.Div(mu.QuantityPerUnit).Floor().IntPart(), nil
}
