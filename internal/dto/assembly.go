package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// AssembleRequest builds Quantity finished goods from an assembly's
// composition tree. Policy decides what a component shortfall means; generic
// edges must be fully assigned regardless of policy.
type AssembleRequest struct {
	AssemblyID uuid.UUID       `json:"assembly_id" validate:"required"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
	Policy     ShortfallPolicy `json:"policy" validate:"required,oneof=fail partial"`
}

// ComponentConsumption is one consumption line of an assembly run. LotID is
// set for lot-backed consumptions (assigned packaging); FIFO consumptions of
// a whole family carry the per-lot breakdown instead.
type ComponentConsumption struct {
	ComponentKind model.ComponentKind `json:"component_kind"`
	ComponentID   uuid.UUID           `json:"component_id"`
	DisplayName   string              `json:"display_name"`
	LotID         *uuid.UUID          `json:"lot_id,omitempty"`
	Quantity      decimal.Decimal     `json:"quantity"`
	Unit          string              `json:"unit"`
	Cost          decimal.Decimal     `json:"cost"`
	Shortfall     decimal.Decimal     `json:"shortfall"`
	Breakdown     []LotConsumption    `json:"breakdown,omitempty"`
}

// AssemblyResult is the cost snapshot of one assembly run.
type AssemblyResult struct {
	AssemblyRunID            uuid.UUID              `json:"assembly_run_id"`
	FinishedGoodID           uuid.UUID              `json:"finished_good_id"`
	QuantityAssembled        int                    `json:"quantity_assembled"`
	TotalComponentCost       decimal.Decimal        `json:"total_component_cost"`
	PerUnitCost              decimal.Decimal        `json:"per_unit_cost"`
	Satisfied                bool                   `json:"satisfied"`
	FinishedUnitConsumptions []ComponentConsumption `json:"finished_unit_consumptions"`
	PackagingConsumptions    []ComponentConsumption `json:"packaging_consumptions"`
}
