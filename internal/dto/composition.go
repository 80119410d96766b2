package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// CreateEdgeRequest adds one composition edge under an assembly or package.
type CreateEdgeRequest struct {
	Parent        model.ParentRef     `json:"parent" validate:"required"`
	ComponentKind model.ComponentKind `json:"component_kind" validate:"required"`
	ComponentID   uuid.UUID           `json:"component_id" validate:"required"`
	Quantity      decimal.Decimal     `json:"quantity" validate:"gt=0"`
	SortOrder     int                 `json:"sort_order" validate:"gte=0"`
	IsGeneric     bool                `json:"is_generic"`
	Notes         string              `json:"notes"`
}

// UpdateEdgeRequest changes mutable edge attributes. Nil fields are left
// untouched. A quantity change on a generic edge drops its assignments —
// they no longer sum to the requirement and a partial set is never kept.
type UpdateEdgeRequest struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	SortOrder *int             `json:"sort_order,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}

// CompositionResponse mirrors a persisted edge.
type CompositionResponse struct {
	ID            uuid.UUID           `json:"id"`
	Parent        model.ParentRef     `json:"parent"`
	ComponentKind model.ComponentKind `json:"component_kind"`
	ComponentID   uuid.UUID           `json:"component_id"`
	Quantity      decimal.Decimal     `json:"quantity"`
	SortOrder     int                 `json:"sort_order"`
	IsGeneric     bool                `json:"is_generic"`
	Notes         string              `json:"notes,omitempty"`
}

// LotAssignment is one line of a deferred-packaging assignment: take
// Quantity from the named lot.
type LotAssignment struct {
	LotID    uuid.UUID       `json:"lot_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// PendingRequirement describes a generic edge whose assigned lots do not yet
// cover its required quantity.
type PendingRequirement struct {
	CompositionID uuid.UUID       `json:"composition_id"`
	Family        string          `json:"family"`
	Required      decimal.Decimal `json:"required"`
	Assigned      decimal.Decimal `json:"assigned"`
}
