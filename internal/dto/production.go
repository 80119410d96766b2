package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipeIngredientRequest is one ingredient line: a quantity of a product
// family, expressed in the recipe's own unit.
type RecipeIngredientRequest struct {
	Family    string          `json:"family" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit      string          `json:"unit" validate:"required"`
	SortOrder int             `json:"sort_order" validate:"gte=0"`
}

// CreateRecipeRequest defines how one batch of a finished unit is produced.
type CreateRecipeRequest struct {
	Name           string                    `json:"name" validate:"required"`
	FinishedUnitID uuid.UUID                 `json:"finished_unit_id" validate:"required"`
	YieldQuantity  int                       `json:"yield_quantity" validate:"gt=0"`
	Notes          string                    `json:"notes"`
	Ingredients    []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
}

// RecipeResponse mirrors a persisted recipe with its ingredient lines.
type RecipeResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Name           string                    `json:"name"`
	FinishedUnitID uuid.UUID                 `json:"finished_unit_id"`
	YieldQuantity  int                       `json:"yield_quantity"`
	Notes          string                    `json:"notes,omitempty"`
	Ingredients    []RecipeIngredientRequest `json:"ingredients"`
}

// ProduceBatchRequest runs a recipe BatchCount times. Policy decides what an
// ingredient shortfall means — there is no default.
type ProduceBatchRequest struct {
	RecipeID   uuid.UUID       `json:"recipe_id" validate:"required"`
	BatchCount int             `json:"batch_count" validate:"gt=0"`
	Policy     ShortfallPolicy `json:"policy" validate:"required,oneof=fail partial"`
	Notes      string          `json:"notes"`
}

// IngredientShortfall reports one ingredient the batch could not fully cover.
type IngredientShortfall struct {
	Family    string          `json:"family"`
	Requested decimal.Decimal `json:"requested"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Unit      string          `json:"unit"`
}

// BatchResult is the outcome of a production run: what was consumed, what it
// cost, and the finished unit's updated moving-average cost.
type BatchResult struct {
	BatchID          uuid.UUID             `json:"batch_id"`
	FinishedUnitID   uuid.UUID             `json:"finished_unit_id"`
	QuantityProduced int                   `json:"quantity_produced"`
	IngredientCost   decimal.Decimal       `json:"ingredient_cost"`
	PerUnitCost      decimal.Decimal       `json:"per_unit_cost"`
	NewUnitCost      decimal.Decimal       `json:"new_unit_cost"`
	Consumptions     []ConsumptionResult   `json:"consumptions"`
	Shortfalls       []IngredientShortfall `json:"shortfalls,omitempty"`
}
