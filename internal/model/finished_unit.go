package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinishedUnit is an atomic produced item (a loaf, a jar of curd). UnitCost
// is the inventory-weighted moving average across batches; InventoryCount is
// decremented when assemblies consume units.
type FinishedUnit struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string          `gorm:"uniqueIndex;not null"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	InventoryCount int             `gorm:"not null;default:0"`
	Active         bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
