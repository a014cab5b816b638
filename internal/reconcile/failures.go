package reconcile

import (
	"context"

	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
)

// FailureRecorder persists reconciliation follow-up records.
type FailureRecorder interface {
	Create(ctx context.Context, failure *models.ReconciliationFailure) error
}

// FailureRepository is the GORM-backed FailureRecorder.
type FailureRepository struct {
	db *gorm.DB
}

// NewFailureRepository constructs a failure repository bound to the provided DB.
func NewFailureRepository(db *gorm.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Create inserts a reconciliation failure record.
func (r *FailureRepository) Create(ctx context.Context, failure *models.ReconciliationFailure) error {
	return r.db.WithContext(ctx).Create(failure).Error
}
