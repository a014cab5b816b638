// Package payments opens hosted checkout sessions for open tabs and records
// the settlement snapshot the reconciler later verifies against.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/config"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/mollie"
	"github.com/rjanssen/bartab-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, params mollie.CreatePaymentParams) (*mollie.Payment, error)
}

// CheckoutResult is a freshly opened checkout session.
type CheckoutResult struct {
	TabID       uuid.UUID
	SessionRef  string
	AmountCents int64
	CheckoutURL string
}

// Service opens checkout sessions against the payment gateway.
type Service interface {
	CreateCheckout(ctx context.Context, tabID uuid.UUID) (*CheckoutResult, error)
}

type service struct {
	repo     tabs.TabRepository
	tx       txRunner
	gateway  paymentGateway
	checkout config.CheckoutConfig
	logger   *logger.Logger
}

// NewService builds a checkout service backed by the provided stack.
func NewService(repo tabs.TabRepository, tx txRunner, gateway paymentGateway, checkout config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tab repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, gateway: gateway, checkout: checkout, logger: logg}, nil
}

// CreateCheckout opens a gateway payment for the tab's current total and
// records the settlement snapshot (session ref + amount) on the tab. The
// gateway call happens outside the row lock; a second transaction re-checks
// the tab before recording. Re-running checkout replaces the snapshot, so the
// latest session wins.
func (s *service) CreateCheckout(ctx context.Context, tabID uuid.UUID) (*CheckoutResult, error) {
	if tabID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tab id is required")
	}
	ctx = s.logger.WithTabID(ctx, tabID.String())

	var total int64
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tab, err := s.lockOpenTab(ctx, tx, tabID)
		if err != nil {
			return err
		}
		total = tabs.Total(tab.Items)
		if total < money.EpsilonCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "tab total must be at least one cent")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	payment, err := s.gateway.CreatePayment(ctx, mollie.CreatePaymentParams{
		Amount: mollie.Amount{
			Currency: money.Currency,
			Value:    money.FormatDecimal(total),
		},
		Description: fmt.Sprintf("Bar tab #%s", shortRef(tabID)),
		RedirectURL: s.checkout.ReturnURL(tabID.String()),
		WebhookURL:  s.checkout.WebhookURL(),
		Metadata:    map[string]string{"tabId": tabID.String()},
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		TabID:       tabID,
		SessionRef:  payment.ID,
		AmountCents: total,
		CheckoutURL: payment.CheckoutURL(),
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tab, err := s.lockOpenTab(ctx, tx, tabID)
		if err != nil {
			return err
		}
		ref := payment.ID
		amount := total
		tab.SessionRef = &ref
		tab.SessionAmountCents = &amount
		if err := s.repo.WithTx(tx).Save(ctx, tab); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record checkout session")
		}
		return nil
	}); err != nil {
		// The gateway session exists but was never recorded; the reconciler
		// can still resolve it through the metadata tab ref.
		s.logger.Error(s.logger.WithPaymentRef(ctx, payment.ID), "checkout.session_not_recorded", err)
		return nil, err
	}

	ctx = s.logger.WithPaymentRef(ctx, payment.ID)
	ctx = s.logger.WithField(ctx, "amount_cents", total)
	s.logger.Info(ctx, "checkout.session_created")
	return result, nil
}

func (s *service) lockOpenTab(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) (*models.Tab, error) {
	tab, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, tabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock tab")
	}
	if !tab.IsOpen() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "tab is not open")
	}
	return tab, nil
}

func shortRef(id uuid.UUID) string {
	return strings.Split(id.String(), "-")[0]
}
