package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssemblyRun records one assembly event: Quantity finished goods built from
// consumed finished units, packaging lots and materials, with the component
// cost frozen at assembly time.
type AssemblyRun struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AssemblyID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity           int             `gorm:"not null"`
	TotalComponentCost decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	PerUnitCost        decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Shortfall          bool            `gorm:"not null;default:false"`

	CreatedAt time.Time

	Assembly *Assembly         `gorm:"foreignKey:AssemblyID"`
	Items    []AssemblyRunItem `gorm:"foreignKey:AssemblyRunID;constraint:OnDelete:CASCADE"`
}

// AssemblyRunItem is one consumption line of a run. LotID is set for lot
// consumptions (packaging and materials); finished-unit lines carry only the
// component reference and the stored unit cost at run time.
type AssemblyRunItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AssemblyRunID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ComponentKind ComponentKind   `gorm:"not null"`
	ComponentID   uuid.UUID       `gorm:"type:uuid;not null"`
	LotID         *uuid.UUID      `gorm:"type:uuid"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Unit          string          `gorm:"not null;default:'unit'"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Cost          decimal.Decimal `gorm:"type:decimal(12,4);not null"`

	CreatedAt time.Time
}
