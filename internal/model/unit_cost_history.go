package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitCostHistory registers each change of a finished unit's stored cost.
// Records are immutable — never deleted or modified.
type UnitCostHistory struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FinishedUnitID uuid.UUID       `gorm:"type:uuid;not null;index"`
	CostBefore     decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	CostAfter      decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	BatchID        *uuid.UUID      `gorm:"type:uuid;index"`

	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (UnitCostHistory) TableName() string { return "unit_cost_history" }
