package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockEntityKind names what a stock movement touched.
type StockEntityKind string

const (
	StockEntityLot          StockEntityKind = "lot"
	StockEntityFinishedUnit StockEntityKind = "finished_unit"
)

// StockMovement registers every quantity change on a lot or finished unit.
// Written inside the same transaction as the mutation it records; rows are
// append-only and never updated.
type StockMovement struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EntityKind     StockEntityKind `gorm:"not null;index:idx_movements_entity,priority:1"`
	EntityID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_movements_entity,priority:2"`
	Delta          decimal.Decimal `gorm:"type:decimal(12,3);not null"` // positive = intake, negative = consumption
	QuantityBefore decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Reason         string          `gorm:"not null"` // "purchase" | "batch" | "assembly_run" | "consumption"
	ReferenceID    *uuid.UUID      `gorm:"type:uuid"`

	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (StockMovement) TableName() string { return "stock_movements" }
