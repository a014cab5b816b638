// Package reconcile applies gateway payment callbacks to tabs. The webhook
// payload is treated as a hint only: every confirmation re-fetches the payment
// from the gateway and settles against that authoritative state.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/metrics"
	"github.com/rjanssen/bartab-backend/pkg/mollie"
	"github.com/rjanssen/bartab-backend/pkg/money"
)

const metadataTabKey = "tabId"

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentRef string) (*mollie.Payment, error)
}

type tabFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error)
	FindBySessionRef(ctx context.Context, sessionRef string) (*models.Tab, error)
}

type tabSettler interface {
	MarkPaid(ctx context.Context, tabID uuid.UUID, amountCents int64, paymentRef string) (*tabs.Settlement, error)
}

type receiptDispatcher interface {
	Dispatch(ctx context.Context, tabID uuid.UUID, kind enums.ReceiptKind) (bool, error)
}

// Service confirms gateway payments against the tab ledger.
type Service interface {
	// Confirm re-fetches the payment and, when the gateway reports it paid,
	// settles the matching tab. A nil return means the callback is fully
	// handled and must be acknowledged; an error means the confirmation
	// should be retried.
	Confirm(ctx context.Context, paymentRef string) error
}

// ServiceParams collects the reconciler's dependencies.
type ServiceParams struct {
	Gateway  paymentFetcher
	Tabs     tabFinder
	Settler  tabSettler
	Receipts receiptDispatcher
	Failures FailureRecorder
	Metrics  *metrics.ReconciliationMetrics
	Logger   *logger.Logger
}

type service struct {
	gateway  paymentFetcher
	tabs     tabFinder
	settler  tabSettler
	receipts receiptDispatcher
	failures FailureRecorder
	metrics  *metrics.ReconciliationMetrics
	logger   *logger.Logger
}

// NewService builds the reconciler and validates its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tabs == nil {
		return nil, fmt.Errorf("tab finder required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("tab settler required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipt dispatcher required")
	}
	if params.Failures == nil {
		return nil, fmt.Errorf("failure recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		gateway:  params.Gateway,
		tabs:     params.Tabs,
		settler:  params.Settler,
		receipts: params.Receipts,
		failures: params.Failures,
		metrics:  params.Metrics,
		logger:   params.Logger,
	}, nil
}

func (s *service) Confirm(ctx context.Context, paymentRef string) error {
	ctx = s.logger.WithPaymentRef(ctx, paymentRef)

	payment, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		s.metrics.IncWebhook(metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment")
	}

	status := enums.PaymentStatus(payment.Status)
	if status != enums.PaymentStatusPaid {
		if status.IsTerminalFailure() {
			s.logger.Info(s.logger.WithField(ctx, "payment_status", payment.Status), "reconcile.payment_not_settled")
		}
		s.metrics.IncWebhook(metrics.OutcomeIgnored)
		return nil
	}

	observed, err := money.ParseDecimal(payment.Amount.Value)
	if err != nil {
		s.metrics.IncWebhook(metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse settled amount")
	}

	tab, err := s.resolveTab(ctx, payment)
	if err != nil {
		s.metrics.IncWebhook(metrics.OutcomeError)
		return err
	}
	if tab == nil {
		// No tab claims this payment. Acknowledge so the gateway stops
		// retrying; the log line is the operator's trail.
		s.logger.Warn(ctx, "reconcile.unknown_session")
		s.metrics.IncWebhook(metrics.OutcomeIgnored)
		return nil
	}
	ctx = s.logger.WithTabID(ctx, tab.ID.String())

	expected := s.expectedCents(tab)
	if tab.IsOpen() && !money.WithinEpsilon(expected, observed) {
		return s.recordMismatch(ctx, tab, payment.ID, expected, observed)
	}

	settlement, err := s.settler.MarkPaid(ctx, tab.ID, observed, payment.ID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			return s.recordMismatch(ctx, tab, payment.ID, s.paidCents(tab), observed)
		}
		s.metrics.IncWebhook(metrics.OutcomeError)
		return err
	}

	if settlement.AlreadyPaid {
		s.logger.Info(ctx, "reconcile.replayed")
		s.metrics.IncWebhook(metrics.OutcomeReplayed)
		return nil
	}

	s.logger.Info(s.logger.WithField(ctx, "amount_cents", observed), "reconcile.settled")
	s.metrics.IncWebhook(metrics.OutcomeSettled)

	if settlement.ReceiptDue {
		sent, err := s.receipts.Dispatch(ctx, tab.ID, enums.ReceiptKindSettlement)
		if err != nil {
			// The tab is settled; a failed receipt never bounces the webhook.
			s.logger.Error(ctx, "reconcile.receipt_failed", err)
		} else if sent {
			s.metrics.IncReceipt()
		}
	}
	return nil
}

// resolveTab prefers the tab ref carried in the payment metadata, falling
// back to the session ref recorded at checkout. A nil tab with nil error
// means nothing claims the payment.
func (s *service) resolveTab(ctx context.Context, payment *mollie.Payment) (*models.Tab, error) {
	if raw, ok := payment.Metadata[metadataTabKey]; ok && raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			tab, err := s.tabs.FindByID(ctx, id)
			if err == nil {
				return tab, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tab by metadata ref")
			}
		}
	}

	tab, err := s.tabs.FindBySessionRef(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tab by session ref")
	}
	return tab, nil
}

// expectedCents is the amount the gateway should have settled: the snapshot
// recorded at checkout when present, the live total otherwise.
func (s *service) expectedCents(tab *models.Tab) int64 {
	if tab.SessionAmountCents != nil {
		return *tab.SessionAmountCents
	}
	return tabs.Total(tab.Items)
}

func (s *service) paidCents(tab *models.Tab) int64 {
	if tab.PaidAmountCents != nil {
		return *tab.PaidAmountCents
	}
	return 0
}

func (s *service) recordMismatch(ctx context.Context, tab *models.Tab, paymentRef string, expected, observed int64) error {
	tabID := tab.ID
	exp := expected
	obs := observed
	failure := &models.ReconciliationFailure{
		TabID:         &tabID,
		PaymentRef:    paymentRef,
		ExpectedCents: &exp,
		ObservedCents: &obs,
		Reason:        "settled amount does not match the recorded session amount",
	}
	if err := s.failures.Create(ctx, failure); err != nil {
		s.metrics.IncWebhook(metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reconciliation failure")
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"expected_cents": expected,
		"observed_cents": observed,
	})
	s.logger.Warn(ctx, "reconcile.amount_mismatch")
	s.metrics.IncWebhook(metrics.OutcomeMismatch)
	return nil
}
