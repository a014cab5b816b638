package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationFailure is a durable operator follow-up record written when a
// gateway callback cannot be applied to a tab, most notably when the paid
// amount disagrees with the recorded settlement snapshot.
type ReconciliationFailure struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TabID         *uuid.UUID `gorm:"column:tab_id;type:uuid"`
	PaymentRef    string     `gorm:"column:payment_ref;type:text;not null"`
	ExpectedCents *int64     `gorm:"column:expected_cents"`
	ObservedCents *int64     `gorm:"column:observed_cents"`
	Reason        string     `gorm:"column:reason;type:text;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
