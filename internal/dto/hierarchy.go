package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// HierarchyNode is one node of an expanded composition tree. The root node
// describes the parent itself (quantity 1, cost = sum of children); inner
// nodes describe one composition edge each. Truncated marks nodes cut off by
// the depth ceiling: their children were not expanded and TotalCost covers
// only the node's own aggregate as cached or stored.
type HierarchyNode struct {
	ComponentKind  model.ComponentKind `json:"component_kind"`
	ComponentID    uuid.UUID           `json:"component_id"`
	DisplayName    string              `json:"display_name"`
	Quantity       decimal.Decimal     `json:"quantity"`
	Unit           string              `json:"unit,omitempty"`
	UnitCost       decimal.Decimal     `json:"unit_cost"`
	TotalCost      decimal.Decimal     `json:"total_cost"`
	InventoryCount decimal.Decimal     `json:"inventory_count"`
	IsGeneric      bool                `json:"is_generic,omitempty"`
	Truncated      bool                `json:"truncated,omitempty"`
	Children       []HierarchyNode     `json:"children,omitempty"`
}

// FlattenedComponent is one row of a flattened bill of materials: a leaf
// component with its cumulative quantity across every path that reaches it.
type FlattenedComponent struct {
	ComponentKind      model.ComponentKind `json:"component_kind"`
	ComponentID        uuid.UUID           `json:"component_id"`
	DisplayName        string              `json:"display_name"`
	Unit               string              `json:"unit,omitempty"`
	CumulativeQuantity decimal.Decimal     `json:"cumulative_quantity"`
	UnitCost           decimal.Decimal     `json:"unit_cost"`
	Cost               decimal.Decimal     `json:"cost"`
}

// MissingComponent reports one leaf whose available stock falls short of
// what an assembly run would need.
type MissingComponent struct {
	ComponentKind model.ComponentKind `json:"component_kind"`
	ComponentID   uuid.UUID           `json:"component_id"`
	DisplayName   string              `json:"display_name"`
	Required      decimal.Decimal     `json:"required"`
	Available     decimal.Decimal     `json:"available"`
}

// AvailabilityResult answers "can N of this parent be assembled right now".
// Missing is empty when CanAssemble is true.
type AvailabilityResult struct {
	CanAssemble bool               `json:"can_assemble"`
	Missing     []MissingComponent `json:"missing"`
}
