package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShortfallPolicy is the caller-supplied decision on what a stock shortfall
// means: abort the whole operation, or proceed and report what was missing.
// There is deliberately no default — each caller states its policy.
type ShortfallPolicy string

const (
	ShortfallFail    ShortfallPolicy = "fail"
	ShortfallPartial ShortfallPolicy = "partial"
)

// RegisterPurchaseRequest creates a new lot for a product.
type RegisterPurchaseRequest struct {
	ProductID    uuid.UUID       `json:"product_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost     decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	PurchaseDate time.Time       `json:"purchase_date" validate:"required"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
}

// LotResponse mirrors a persisted lot.
type LotResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductID         uuid.UUID       `json:"product_id"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	PurchaseDate      time.Time       `json:"purchase_date"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
}

// ConsumeRequest asks the FIFO engine for a quantity of a product family,
// expressed in TargetUnit. DryRun previews the identical computation without
// persisting anything.
type ConsumeRequest struct {
	Family     string          `json:"family" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"gt=0"`
	TargetUnit string          `json:"target_unit" validate:"required"`
	DryRun     bool            `json:"dry_run"`

	// Reason and ReferenceID flow into the stock-movement audit rows.
	// Reason defaults to "consumption" when empty.
	Reason      string     `json:"reason,omitempty"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
}

// LotConsumption is one breakdown row of a consumption: what was taken from
// which lot, in the lot's native unit, and at what cost.
type LotConsumption struct {
	LotID          uuid.UUID       `json:"lot_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity_consumed"`
	Unit           string          `json:"unit"`
	RemainingInLot decimal.Decimal `json:"remaining_in_lot"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Cost           decimal.Decimal `json:"cost"`
}

// ConsumptionResult reports a FIFO consumption. Insufficient stock is not an
// error: Shortfall carries the unmet remainder (in the requested target
// unit) and Satisfied flags full fulfilment, so the caller applies its own
// policy.
type ConsumptionResult struct {
	Consumed  decimal.Decimal  `json:"consumed"`
	Breakdown []LotConsumption `json:"breakdown"`
	Shortfall decimal.Decimal  `json:"shortfall"`
	Satisfied bool             `json:"satisfied"`
	TotalCost decimal.Decimal  `json:"total_cost"`
}
