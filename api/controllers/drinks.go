package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/rjanssen/bartab-backend/api/responses"
	"github.com/rjanssen/bartab-backend/internal/catalog"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

// ListDrinks returns the orderable menu.
func ListDrinks(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		drinks, err := svc.ListDrinks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]drinkResponse, 0, len(drinks))
		for _, drink := range drinks {
			out = append(out, newDrinkResponse(drink))
		}
		responses.WriteSuccess(w, out)
	}
}

type drinkResponse struct {
	DrinkID    uuid.UUID `json:"drink_id"`
	Title      string    `json:"title"`
	PriceCents *int64    `json:"price_cents,omitempty"`
}

func newDrinkResponse(drink models.Drink) drinkResponse {
	return drinkResponse{
		DrinkID:    drink.ID,
		Title:      drink.Title,
		PriceCents: drink.PriceCents,
	}
}
