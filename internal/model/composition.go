package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParentKind discriminates the two owners a composition edge can hang from.
type ParentKind string

const (
	ParentAssembly ParentKind = "assembly"
	ParentPackage  ParentKind = "package"
)

func (k ParentKind) Valid() bool {
	return k == ParentAssembly || k == ParentPackage
}

// ComponentKind discriminates the five component references. Exactly one of
// five is guaranteed structurally: a composition stores one (kind, id) pair,
// not five nullable foreign keys.
type ComponentKind string

const (
	ComponentFinishedUnit ComponentKind = "finished_unit"
	ComponentSubAssembly  ComponentKind = "assembly"
	ComponentPackaging    ComponentKind = "packaging"
	ComponentMaterialUnit ComponentKind = "material_unit"
	ComponentMaterial     ComponentKind = "material"
)

func (k ComponentKind) Valid() bool {
	switch k {
	case ComponentFinishedUnit, ComponentSubAssembly, ComponentPackaging,
		ComponentMaterialUnit, ComponentMaterial:
		return true
	}
	return false
}

// ParentRef is the tagged reference to a composition's owner.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

// Composition is one typed edge of the composition graph: parent needs
// Quantity of component. IsGeneric marks deferred packaging: the edge
// references a placeholder product and the concrete lots are chosen later
// through CompositionAssignments. Uniqueness of (parent, component) and the
// no-self-reference rule are enforced by the graph service before insert;
// the composite unique index backs the duplicate check at the storage level.
type Composition struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ParentKind    ParentKind      `gorm:"not null;uniqueIndex:idx_comp_edge,priority:1;index:idx_comp_parent"`
	ParentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_comp_edge,priority:2;index:idx_comp_parent"`
	ComponentKind ComponentKind   `gorm:"not null;uniqueIndex:idx_comp_edge,priority:3;index:idx_comp_component"`
	ComponentID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_comp_edge,priority:4;index:idx_comp_component"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	SortOrder     int             `gorm:"not null;default:0"`
	IsGeneric     bool            `gorm:"not null;default:false"`
	Notes         string

	CreatedAt time.Time
	UpdatedAt time.Time

	Assignments []CompositionAssignment `gorm:"foreignKey:CompositionID;constraint:OnDelete:CASCADE"`
}

// Parent returns the edge's owner as a tagged reference.
func (c *Composition) Parent() ParentRef {
	return ParentRef{Kind: c.ParentKind, ID: c.ParentID}
}

// CompositionAssignment binds a generic composition to a concrete lot.
// Across all assignments of one composition, quantities must sum exactly to
// the composition's required quantity — partial sets are rejected outright,
// so a persisted set is always complete. Lots are referenced restrictively:
// deleting a lot with live assignments is a storage-level error.
type CompositionAssignment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompositionID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	LotID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuantityAssigned decimal.Decimal `gorm:"type:decimal(12,3);not null"`

	CreatedAt time.Time

	Lot *Lot `gorm:"foreignKey:LotID;constraint:OnDelete:RESTRICT"`
}
