package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductKind classifies what a purchasable product is for.
type ProductKind string

const (
	ProductIngredient ProductKind = "ingredient"
	ProductPackaging  ProductKind = "packaging"
)

// Product represents a purchasable item. Family is the consumption scope:
// FIFO consumption requests name a family, not a single product, so two
// suppliers' flour deplete from one queue. IsGeneric marks placeholder
// packaging rows ("any medium box") that never own lots themselves — generic
// compositions reference them and are resolved to concrete lots later.
type Product struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string      `gorm:"index;not null"`
	Family     string      `gorm:"index;not null"`
	Kind       ProductKind `gorm:"not null;default:'ingredient'"`
	Unit       string      `gorm:"not null;default:'unit'"`
	MaterialID *uuid.UUID  `gorm:"type:uuid;index"`
	IsGeneric  bool        `gorm:"not null;default:false"`
	Active     bool        `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Material *Material `gorm:"foreignKey:MaterialID"`
}
