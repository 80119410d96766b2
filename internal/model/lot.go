package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is a dated, costed quantity of a purchased product — the FIFO unit of
// inventory. QuantityRemaining only ever decreases, via guarded decrements
// inside the consuming transaction. Lots are never deleted: a zero-quantity
// lot stays behind as the audit record of its purchase.
type Lot struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_lots_product_date,priority:1"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	PurchaseDate      time.Time       `gorm:"not null;index:idx_lots_product_date,priority:2"`
	SupplierID        *uuid.UUID      `gorm:"type:uuid;index"`

	CreatedAt time.Time

	Product  *Product  `gorm:"foreignKey:ProductID"`
	Supplier *Supplier `gorm:"foreignKey:SupplierID"`
}
