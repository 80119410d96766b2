package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a pool of interchangeable wrapping stock (ribbon, twine,
// tissue). Products tagged with a material contribute their lots to the
// pool; all tagged products are stocked in the material's base unit so that
// quantities and weighted costs aggregate without conversion.
type Material struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name     string    `gorm:"uniqueIndex;not null"`
	BaseUnit string    `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaterialUnit is a named, fixed-size cut of a material: "bow" = 0.5 m of
// ribbon. QuantityPerUnit is expressed in the material's base unit.
type MaterialUnit struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MaterialID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name            string          `gorm:"not null"`
	QuantityPerUnit decimal.Decimal `gorm:"type:decimal(12,3);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Material *Material `gorm:"foreignKey:MaterialID"`
}
