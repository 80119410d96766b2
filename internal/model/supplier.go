package model

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is the source of purchased lots. Kept minimal: lots reference a
// supplier for provenance, nothing more.
type Supplier struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name    string    `gorm:"uniqueIndex;not null"`
	Contact string
	Active  bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
