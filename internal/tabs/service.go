package tabs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/money"
)

const openTabConstraint = "uq_tabs_owner_open"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type drinkLoader interface {
	GetDrink(ctx context.Context, id uuid.UUID) (*models.Drink, error)
}

// Service owns the tab ledger: item merging, totals, and the Open→Paid state
// machine. All mutations run under a per-tab row lock.
type Service interface {
	GetOrCreateOpenTab(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error)
	GetOpenTab(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error)
	GetTab(ctx context.Context, tabID uuid.UUID) (*models.Tab, error)
	AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (*AddItemResult, error)
	StartGuestTab(ctx context.Context, input GuestTabInput) (*models.Tab, error)
	MarkPaid(ctx context.Context, tabID uuid.UUID, amountCents int64, paymentRef string) (*Settlement, error)
	CloseManually(ctx context.Context, tabID, actorID uuid.UUID, actorAdmin bool) (*Settlement, error)
}

type service struct {
	repo   TabRepository
	tx     txRunner
	drinks drinkLoader
}

// NewService builds a tab service backed by the provided stack.
func NewService(repo TabRepository, tx txRunner, drinks drinkLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tab repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if drinks == nil {
		return nil, fmt.Errorf("drink loader required")
	}
	return &service{repo: repo, tx: tx, drinks: drinks}, nil
}

// Total sums the tab's merged lines. Pure; negative intermediate values are
// clamped to zero.
func Total(items []models.TabItem) int64 {
	var sum int64
	for _, item := range items {
		sum += money.LineTotal(item.UnitPriceCents, item.Qty)
	}
	return money.Clamp(sum)
}

// GetOrCreateOpenTab resolves the owner's single Open tab, creating one when
// none exists. The partial unique index on (owner_id, status=open) makes the
// create race safe: the loser re-reads the winner's row.
func (s *service) GetOrCreateOpenTab(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	tab, err := s.repo.FindOpenByOwner(ctx, ownerID)
	if err == nil {
		return tab, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open tab")
	}

	owner := ownerID
	created := &models.Tab{Status: enums.TabStatusOpen, OwnerID: &owner}
	if createErr := s.repo.Create(ctx, created); createErr != nil {
		if db.IsUniqueViolation(createErr, openTabConstraint) {
			existing, findErr := s.repo.FindOpenByOwner(ctx, ownerID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "re-read open tab")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create tab")
	}
	return created, nil
}

// GetOpenTab returns the owner's Open tab, or not-found.
func (s *service) GetOpenTab(ctx context.Context, ownerID uuid.UUID) (*models.Tab, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	tab, err := s.repo.FindOpenByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open tab")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open tab")
	}
	return tab, nil
}

// GetTab loads a tab by id.
func (s *service) GetTab(ctx context.Context, tabID uuid.UUID) (*models.Tab, error) {
	if tabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tab id is required")
	}
	tab, err := s.repo.FindByID(ctx, tabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tab")
	}
	return tab, nil
}

// AddItem puts a drink on the caller's Open tab, creating the tab when
// needed. Repeat adds of the same drink merge into the existing line: the
// quantity grows and the originally captured price stays untouched.
func (s *service) AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (*AddItemResult, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}

	drink, err := s.drinks.GetDrink(ctx, input.DrinkID)
	if err != nil {
		return nil, err
	}
	qty := clampQty(input.Qty)

	tab, err := s.GetOrCreateOpenTab(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := &AddItemResult{}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		locked, err := txRepo.FindByIDForUpdate(ctx, tab.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tab")
		}
		if !locked.IsOpen() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tab is no longer open")
		}

		merged, err := mergeLine(ctx, txRepo, locked, drink, qty)
		if err != nil {
			return err
		}
		result.Merged = merged

		refreshed, err := txRepo.FindByID(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload tab")
		}
		result.Tab = refreshed
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// StartGuestTab opens an ownerless tab for a walk-in guest. Every requested
// drink is validated before anything is persisted; one bad line rejects the
// whole request.
func (s *service) StartGuestTab(ctx context.Context, input GuestTabInput) (*models.Tab, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest name is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	type line struct {
		drink *models.Drink
		qty   int
	}
	var order []uuid.UUID
	lines := map[uuid.UUID]*line{}
	for _, item := range input.Items {
		if existing, ok := lines[item.DrinkID]; ok {
			existing.qty += clampQty(item.Qty)
			continue
		}
		drink, err := s.drinks.GetDrink(ctx, item.DrinkID)
		if err != nil {
			return nil, err
		}
		lines[item.DrinkID] = &line{drink: drink, qty: clampQty(item.Qty)}
		order = append(order, item.DrinkID)
	}

	tab := &models.Tab{
		Status:    enums.TabStatusOpen,
		GuestName: &name,
	}
	if label := strings.TrimSpace(input.TableLabel); label != "" {
		tab.TableLabel = &label
	}
	if input.Email != nil {
		if email := strings.TrimSpace(*input.Email); email != "" {
			tab.GuestEmail = &email
		}
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, tab); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guest tab")
		}
		for pos, drinkID := range order {
			l := lines[drinkID]
			item := &models.TabItem{
				TabID:          tab.ID,
				DrinkID:        l.drink.ID,
				Title:          l.drink.Title,
				UnitPriceCents: *l.drink.PriceCents,
				Qty:            l.qty,
				Position:       pos,
			}
			if err := txRepo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tab item")
			}
		}
		refreshed, err := txRepo.FindByID(ctx, tab.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload guest tab")
		}
		tab = refreshed
		return nil
	}); err != nil {
		return nil, err
	}

	return tab, nil
}

// MarkPaid transitions a tab to Paid for the given settled amount. Paid is
// terminal: repeating the transition with an amount that matches within the
// one-cent tolerance is a no-op; repeating it with a different amount is a
// state conflict.
func (s *service) MarkPaid(ctx context.Context, tabID uuid.UUID, amountCents int64, paymentRef string) (*Settlement, error) {
	if tabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tab id is required")
	}
	if amountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settled amount cannot be negative")
	}

	settlement := &Settlement{TabID: tabID, AmountCents: amountCents}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		tab, err := txRepo.FindByIDForUpdate(ctx, tabID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tab")
		}

		if tab.Status == enums.TabStatusPaid {
			if tab.PaidAmountCents != nil && money.WithinEpsilon(*tab.PaidAmountCents, amountCents) {
				settlement.AlreadyPaid = true
				settlement.AmountCents = *tab.PaidAmountCents
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tab already settled for a different amount")
		}

		now := time.Now().UTC()
		amount := amountCents
		tab.Status = enums.TabStatusPaid
		tab.PaidAmountCents = &amount
		tab.PaidAt = &now
		if ref := strings.TrimSpace(paymentRef); ref != "" {
			tab.SessionRef = &ref
		}
		if err := txRepo.Save(ctx, tab); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist settlement")
		}
		settlement.ReceiptDue = true
		return nil
	}); err != nil {
		return nil, err
	}

	return settlement, nil
}

// CloseManually settles a tab at its current total without a payment session
// (cash at the bar). The actor must own the tab or be an admin; an ownerless
// guest tab adopts the closer as its owner.
func (s *service) CloseManually(ctx context.Context, tabID, actorID uuid.UUID, actorAdmin bool) (*Settlement, error) {
	if tabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tab id is required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}

	settlement := &Settlement{TabID: tabID}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		tab, err := txRepo.FindByIDForUpdate(ctx, tabID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tab")
		}

		if err := authorizeClose(tab, actorID, actorAdmin); err != nil {
			return err
		}
		if tab.Status == enums.TabStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tab is already settled")
		}

		if tab.OwnerID == nil {
			actor := actorID
			tab.OwnerID = &actor
		}

		now := time.Now().UTC()
		total := Total(tab.Items)
		tab.Status = enums.TabStatusPaid
		tab.PaidAmountCents = &total
		tab.PaidAt = &now
		if err := txRepo.Save(ctx, tab); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist close")
		}

		settlement.AmountCents = total
		settlement.ReceiptDue = true
		return nil
	}); err != nil {
		return nil, err
	}

	return settlement, nil
}

// authorizeClose enforces the close policy: the owner or an admin may close
// an owned tab; anyone signed in may close an ownerless guest tab.
func authorizeClose(tab *models.Tab, actorID uuid.UUID, actorAdmin bool) error {
	if actorAdmin {
		return nil
	}
	if tab.OwnerID == nil {
		return nil
	}
	if *tab.OwnerID == actorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the tab owner or an admin can close this tab")
}

func mergeLine(ctx context.Context, repo TabRepository, tab *models.Tab, drink *models.Drink, qty int) (bool, error) {
	for i := range tab.Items {
		if tab.Items[i].DrinkID == drink.ID {
			tab.Items[i].Qty += qty
			if err := repo.SaveItem(ctx, &tab.Items[i]); err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge tab item")
			}
			return true, nil
		}
	}

	item := &models.TabItem{
		TabID:          tab.ID,
		DrinkID:        drink.ID,
		Title:          drink.Title,
		UnitPriceCents: *drink.PriceCents,
		Qty:            qty,
		Position:       len(tab.Items),
	}
	if err := repo.CreateItem(ctx, item); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tab item")
	}
	return false, nil
}

func clampQty(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}
