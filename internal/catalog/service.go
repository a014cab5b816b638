package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
)

type drinkFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Drink, error)
	ListActive(ctx context.Context) ([]models.Drink, error)
}

// Service exposes catalog lookups for tab operations.
type Service interface {
	// GetDrink returns a drink that is allowed on a tab: it must exist, be
	// active, and carry a usable price.
	GetDrink(ctx context.Context, id uuid.UUID) (*models.Drink, error)
	ListDrinks(ctx context.Context) ([]models.Drink, error)
}

type service struct {
	repo drinkFinder
}

// NewService builds a catalog service backed by the provided repository.
func NewService(repo drinkFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetDrink(ctx context.Context, id uuid.UUID) (*models.Drink, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drink id is required")
	}

	drink, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drink not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load drink")
	}

	if !drink.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drink is not available")
	}
	if drink.PriceCents == nil || *drink.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drink has no usable price")
	}

	return drink, nil
}

func (s *service) ListDrinks(ctx context.Context) ([]models.Drink, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drinks")
	}
	return rows, nil
}
