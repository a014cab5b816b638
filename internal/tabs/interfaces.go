package tabs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
)

// TabRepository exposes persistence operations for tabs and their items.
// ForUpdate variants take a row lock so the caller's read-modify-write is
// serialized per tab.
type TabRepository interface {
	WithTx(tx *gorm.DB) TabRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Tab, error)
	FindOpenByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error)
	FindBySessionRef(ctx context.Context, sessionRef string) (*models.Tab, error)
	Create(ctx context.Context, tab *models.Tab) error
	Save(ctx context.Context, tab *models.Tab) error
	CreateItem(ctx context.Context, item *models.TabItem) error
	SaveItem(ctx context.Context, item *models.TabItem) error
}
