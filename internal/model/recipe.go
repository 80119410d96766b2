package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recipe describes how one batch of a finished unit is produced:
// YieldQuantity units out of the listed ingredient quantities.
type Recipe struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"uniqueIndex;not null"`
	FinishedUnitID uuid.UUID `gorm:"type:uuid;not null;index"`
	YieldQuantity  int       `gorm:"not null"`
	Notes          string

	CreatedAt time.Time
	UpdatedAt time.Time

	FinishedUnit *FinishedUnit      `gorm:"foreignKey:FinishedUnitID"`
	Ingredients  []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// RecipeIngredient is one line of a recipe: a quantity of a product family
// in the recipe's own unit (converted at consumption time).
type RecipeIngredient struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RecipeID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Family    string          `gorm:"not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Unit      string          `gorm:"not null"`
	SortOrder int             `gorm:"not null;default:0"`
}

// Batch records one production run. Immutable once written — the cost
// snapshot must survive later ingredient price changes.
type Batch struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RecipeID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchCount       int             `gorm:"not null"`
	QuantityProduced int             `gorm:"not null"`
	IngredientCost   decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	PerUnitCost      decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Shortfall        bool            `gorm:"not null;default:false"`
	ProducedAt       time.Time       `gorm:"not null"`
	Notes            string

	CreatedAt time.Time

	Recipe *Recipe `gorm:"foreignKey:RecipeID"`
}

// TableName overrides GORM's default pluralization (batchs → batches).
func (Batch) TableName() string { return "batches" }
