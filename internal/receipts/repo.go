package receipts

import (
	"context"

	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
)

// ReceiptRepository persists receipt claim rows.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *models.Receipt) error
	Save(ctx context.Context, receipt *models.Receipt) error
}

// Repository is the GORM-backed ReceiptRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a receipt repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a receipt row. The (tab_id, kind) unique index makes the
// insert the exactly-once claim for the send.
func (r *Repository) Create(ctx context.Context, receipt *models.Receipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

// Save persists the provided receipt.
func (r *Repository) Save(ctx context.Context, receipt *models.Receipt) error {
	return r.db.WithContext(ctx).Save(receipt).Error
}
