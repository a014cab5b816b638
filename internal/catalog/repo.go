package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
)

// Repository exposes persistence operations for the drink catalog.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a drink by its identifier.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Drink, error) {
	var drink models.Drink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&drink).Error; err != nil {
		return nil, err
	}
	return &drink, nil
}

// ListActive returns the drinks currently offered, ordered by title.
func (r *Repository) ListActive(ctx context.Context) ([]models.Drink, error) {
	var rows []models.Drink
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("title ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
