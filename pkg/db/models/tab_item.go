package models

import (
	"time"

	"github.com/google/uuid"
)

// TabItem is one merged line on a tab. UnitPriceCents is captured from the
// catalog at first add and never refreshed; repeat adds of the same drink
// only bump Qty. Position preserves first-add order for display.
type TabItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TabID          uuid.UUID `gorm:"column:tab_id;type:uuid;not null;uniqueIndex:uq_tab_items_tab_drink,priority:1"`
	DrinkID        uuid.UUID `gorm:"column:drink_id;type:uuid;not null;uniqueIndex:uq_tab_items_tab_drink,priority:2"`
	Title          string    `gorm:"column:title;type:text;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	Position       int       `gorm:"column:position;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
