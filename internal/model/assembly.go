package model

import (
	"time"

	"github.com/google/uuid"
)

// Assembly is a finished good built from finished units, sub-assemblies,
// packaging and materials. Its total cost and availability are derived by
// the hierarchy engine (and cached), never stored as columns.
type Assembly struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description string
	Active      bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default pluralization (assemblys → assemblies).
func (Assembly) TableName() string { return "assemblies" }

// GiftPackage is the other kind of composition parent: a distribution
// grouping of assemblies and loose units. Packages never appear as
// components, so edges under a package cannot form cycles.
type GiftPackage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description string
	Active      bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
