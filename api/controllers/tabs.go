package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rjanssen/bartab-backend/api/middleware"
	"github.com/rjanssen/bartab-backend/api/responses"
	"github.com/rjanssen/bartab-backend/api/validators"
	tabsvc "github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

// StartGuestTab opens a tab for a walk-in guest with an initial round.
func StartGuestTab(svc tabsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tab service unavailable"))
			return
		}

		var payload guestTabRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]tabsvc.AddItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, tabsvc.AddItemInput{DrinkID: item.DrinkID, Qty: item.Qty})
		}

		tab, err := svc.StartGuestTab(r.Context(), tabsvc.GuestTabInput{
			Name:       payload.Name,
			TableLabel: payload.TableLabel,
			Email:      payload.Email,
			Items:      items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTabResponse(tab))
	}
}

// AddItem puts a drink on the caller's open tab, opening one when needed.
func AddItem(svc tabsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tab service unavailable"))
			return
		}

		ownerID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddItem(r.Context(), ownerID, tabsvc.AddItemInput{
			DrinkID: payload.DrinkID,
			Qty:     payload.Qty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, addItemResponse{
			Tab:    newTabResponse(result.Tab),
			Merged: result.Merged,
		})
	}
}

// OpenTab returns the caller's current open tab.
func OpenTab(svc tabsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tab service unavailable"))
			return
		}

		ownerID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tab, err := svc.GetOpenTab(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTabResponse(tab))
	}
}

// receiptDispatcher sends the settlement receipt after a close commits.
type receiptDispatcher interface {
	Dispatch(ctx context.Context, tabID uuid.UUID, kind enums.ReceiptKind) (bool, error)
}

// CloseTab settles a tab at its current total without going through the
// payment gateway, then dispatches the settlement receipt. A failed send
// never fails the close; the transition has already committed.
func CloseTab(svc tabsvc.Service, receiptSvc receiptDispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tab service unavailable"))
			return
		}

		actorID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tabID, err := uuid.Parse(chi.URLParam(r, "tabId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid tab id"))
			return
		}

		settlement, err := svc.CloseManually(r.Context(), tabID, actorID, middleware.AdminFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receiptSent := false
		if settlement.ReceiptDue && receiptSvc != nil {
			sent, err := receiptSvc.Dispatch(r.Context(), settlement.TabID, enums.ReceiptKindSettlement)
			if err != nil && logg != nil {
				logg.Error(logg.WithTabID(r.Context(), settlement.TabID.String()), "close.receipt_failed", err)
			}
			receiptSent = sent
		}

		responses.WriteSuccess(w, settlementResponse{
			TabID:       settlement.TabID,
			AmountCents: settlement.AmountCents,
			AlreadyPaid: settlement.AlreadyPaid,
			ReceiptSent: receiptSent,
		})
	}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

type guestTabRequest struct {
	Name       string           `json:"name" validate:"required,min=1,max=120"`
	TableLabel string           `json:"table_label,omitempty" validate:"omitempty,max=32"`
	Email      *string          `json:"email,omitempty" validate:"omitempty,email"`
	Items      []tabItemRequest `json:"items" validate:"required,min=1,dive"`
}

type tabItemRequest struct {
	DrinkID uuid.UUID `json:"drink_id" validate:"required,uuid4"`
	Qty     int       `json:"qty,omitempty" validate:"omitempty,min=1,max=50"`
}

type addItemRequest struct {
	DrinkID uuid.UUID `json:"drink_id" validate:"required,uuid4"`
	Qty     int       `json:"qty,omitempty" validate:"omitempty,min=1,max=50"`
}

type addItemResponse struct {
	Tab    tabResponse `json:"tab"`
	Merged bool        `json:"merged"`
}

type settlementResponse struct {
	TabID       uuid.UUID `json:"tab_id"`
	AmountCents int64     `json:"amount_cents"`
	AlreadyPaid bool      `json:"already_paid,omitempty"`
	ReceiptSent bool      `json:"receipt_sent"`
}

type tabResponse struct {
	TabID           uuid.UUID         `json:"tab_id"`
	Status          string            `json:"status"`
	OwnerID         *uuid.UUID        `json:"owner_id,omitempty"`
	GuestName       *string           `json:"guest_name,omitempty"`
	TableLabel      *string           `json:"table_label,omitempty"`
	Items           []tabItemResponse `json:"items"`
	TotalCents      int64             `json:"total_cents"`
	PaidAmountCents *int64            `json:"paid_amount_cents,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
}

type tabItemResponse struct {
	ItemID         uuid.UUID `json:"item_id"`
	DrinkID        uuid.UUID `json:"drink_id"`
	Title          string    `json:"title"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
}

func newTabResponse(tab *models.Tab) tabResponse {
	if tab == nil {
		return tabResponse{}
	}
	items := make([]tabItemResponse, 0, len(tab.Items))
	for _, item := range tab.Items {
		items = append(items, tabItemResponse{
			ItemID:         item.ID,
			DrinkID:        item.DrinkID,
			Title:          item.Title,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.UnitPriceCents * int64(item.Qty),
		})
	}
	return tabResponse{
		TabID:           tab.ID,
		Status:          tab.Status.String(),
		OwnerID:         tab.OwnerID,
		GuestName:       tab.GuestName,
		TableLabel:      tab.TableLabel,
		Items:           items,
		TotalCents:      tabsvc.Total(tab.Items),
		PaidAmountCents: tab.PaidAmountCents,
		PaidAt:          tab.PaidAt,
	}
}
