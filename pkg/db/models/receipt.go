package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rjanssen/bartab-backend/pkg/enums"
)

// Receipt records that a settlement notification was issued for a tab.
// The (tab_id, kind) unique index is the exactly-once guarantee; inserting
// the row claims the send.
type Receipt struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TabID      uuid.UUID         `gorm:"column:tab_id;type:uuid;not null;uniqueIndex:uq_receipts_tab_kind,priority:1"`
	Kind       enums.ReceiptKind `gorm:"column:kind;type:receipt_kind;not null;uniqueIndex:uq_receipts_tab_kind,priority:2"`
	Recipients pq.StringArray    `gorm:"column:recipients;type:text[]"`
	SentAt     *time.Time        `gorm:"column:sent_at"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
