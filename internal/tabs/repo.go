package tabs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
)

// Repository is the GORM-backed TabRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tab repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) TabRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a tab with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error) {
	var tab models.Tab
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&tab).Error
	if err != nil {
		return nil, err
	}
	return &tab, nil
}

// FindByIDForUpdate loads a tab with its items, holding a row lock on the tab.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Tab, error) {
	var tab models.Tab
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&tab).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, &tab); err != nil {
		return nil, err
	}
	return &tab, nil
}

// FindOpenByOwner loads the owner's single Open tab.
func (r *Repository) FindOpenByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error) {
	var tab models.Tab
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("owner_id = ? AND status = ?", ownerID, enums.TabStatusOpen).
		First(&tab).Error
	if err != nil {
		return nil, err
	}
	return &tab, nil
}

// FindBySessionRef resolves a tab by the recorded settlement snapshot ref.
func (r *Repository) FindBySessionRef(ctx context.Context, sessionRef string) (*models.Tab, error) {
	var tab models.Tab
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("session_ref = ?", sessionRef).
		First(&tab).Error
	if err != nil {
		return nil, err
	}
	return &tab, nil
}

// Create inserts a new tab.
func (r *Repository) Create(ctx context.Context, tab *models.Tab) error {
	if tab.Status == "" {
		tab.Status = enums.TabStatusOpen
	}
	return r.db.WithContext(ctx).Create(tab).Error
}

// Save persists the provided tab.
func (r *Repository) Save(ctx context.Context, tab *models.Tab) error {
	return r.db.WithContext(ctx).Omit("Items").Save(tab).Error
}

// CreateItem inserts a new tab item.
func (r *Repository) CreateItem(ctx context.Context, item *models.TabItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// SaveItem persists the provided tab item.
func (r *Repository) SaveItem(ctx context.Context, item *models.TabItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *Repository) loadItems(ctx context.Context, tab *models.Tab) error {
	var items []models.TabItem
	if err := r.db.WithContext(ctx).
		Where("tab_id = ?", tab.ID).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return err
	}
	tab.Items = items
	return nil
}
