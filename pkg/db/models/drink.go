package models

import (
	"time"

	"github.com/google/uuid"
)

// Drink is a catalog entry. PriceCents is nullable: an unpriced drink exists
// in the menu but cannot be put on a tab.
type Drink struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title      string    `gorm:"column:title;type:text;not null"`
	PriceCents *int64    `gorm:"column:price_cents"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
