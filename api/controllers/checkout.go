package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rjanssen/bartab-backend/api/responses"
	"github.com/rjanssen/bartab-backend/internal/payments"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

// CreateCheckout opens a hosted payment session for a tab and returns the
// gateway URL the guest's browser should follow.
func CreateCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tabID, err := uuid.Parse(chi.URLParam(r, "tabId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid tab id"))
			return
		}

		result, err := svc.CreateCheckout(r.Context(), tabID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			TabID:       result.TabID,
			SessionRef:  result.SessionRef,
			AmountCents: result.AmountCents,
			CheckoutURL: result.CheckoutURL,
		})
	}
}

type checkoutResponse struct {
	TabID       uuid.UUID `json:"tab_id"`
	SessionRef  string    `json:"session_ref"`
	AmountCents int64     `json:"amount_cents"`
	CheckoutURL string    `json:"checkout_url"`
}
