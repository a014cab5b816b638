package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rjanssen/bartab-backend/pkg/enums"
)

// Tab is the running ledger for a member or guest. SessionRef and
// SessionAmountCents together form the settlement snapshot recorded when a
// checkout session is created; re-running checkout overwrites both.
type Tab struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status             enums.TabStatus `gorm:"column:status;type:tab_status;not null;default:'open'"`
	OwnerID            *uuid.UUID      `gorm:"column:owner_id;type:uuid"`
	GuestName          *string         `gorm:"column:guest_name;type:text"`
	GuestEmail         *string         `gorm:"column:guest_email;type:text"`
	TableLabel         *string         `gorm:"column:table_label;type:text"`
	SessionRef         *string         `gorm:"column:session_ref;type:text"`
	SessionAmountCents *int64          `gorm:"column:session_amount_cents"`
	PaidAmountCents    *int64          `gorm:"column:paid_amount_cents"`
	PaidAt             *time.Time      `gorm:"column:paid_at"`
	Items              []TabItem       `gorm:"foreignKey:TabID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOpen reports whether the tab can still be mutated.
func (t *Tab) IsOpen() bool {
	return t != nil && t.Status == enums.TabStatusOpen
}
