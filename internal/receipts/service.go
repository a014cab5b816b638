// Package receipts issues settlement notifications. The receipt row's
// (tab_id, kind) unique index is the exactly-once claim; email delivery on
// top of it is best effort and never blocks a settlement.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/db"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/mailer"
	"github.com/rjanssen/bartab-backend/pkg/money"
)

const receiptConstraint = "uq_receipts_tab_kind"

type tabFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DedupeKey(scope, id string) string
}

// Service dispatches settlement receipts.
type Service interface {
	// Dispatch claims and sends the receipt of the given kind for a tab.
	// It reports true when this call performed the send; false when the
	// receipt was already claimed or no recipient is known.
	Dispatch(ctx context.Context, tabID uuid.UUID, kind enums.ReceiptKind) (bool, error)
}

// ServiceParams collects the dispatcher's dependencies.
type ServiceParams struct {
	Tabs      tabFinder
	Users     userFinder
	Receipts  ReceiptRepository
	Sender    mailer.Sender
	Dedupe    dedupeStore
	DedupeTTL time.Duration
	SiteName  string
	Logger    *logger.Logger
}

type service struct {
	tabs      tabFinder
	users     userFinder
	receipts  ReceiptRepository
	sender    mailer.Sender
	dedupe    dedupeStore
	dedupeTTL time.Duration
	siteName  string
	logger    *logger.Logger
}

// NewService builds the receipt dispatcher and validates its dependencies.
// Dedupe is optional; without it the unique index alone guards the send.
func NewService(params ServiceParams) (Service, error) {
	if params.Tabs == nil {
		return nil, fmt.Errorf("tab finder required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user finder required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	siteName := strings.TrimSpace(params.SiteName)
	if siteName == "" {
		siteName = "Bar Tab"
	}
	return &service{
		tabs:      params.Tabs,
		users:     params.Users,
		receipts:  params.Receipts,
		sender:    params.Sender,
		dedupe:    params.Dedupe,
		dedupeTTL: params.DedupeTTL,
		siteName:  siteName,
		logger:    params.Logger,
	}, nil
}

func (s *service) Dispatch(ctx context.Context, tabID uuid.UUID, kind enums.ReceiptKind) (bool, error) {
	if tabID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "tab id is required")
	}
	if !kind.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown receipt kind")
	}
	ctx = s.logger.WithTabID(ctx, tabID.String())

	tab, err := s.tabs.FindByID(ctx, tabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "tab not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tab")
	}

	recipients := s.resolveRecipients(ctx, tab)

	receipt := &models.Receipt{
		TabID:      tab.ID,
		Kind:       kind,
		Recipients: recipients,
	}
	if err := s.receipts.Create(ctx, receipt); err != nil {
		if db.IsUniqueViolation(err, receiptConstraint) || db.IsUniqueViolation(err, "") {
			s.logger.Info(ctx, "receipt.already_claimed")
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim receipt")
	}

	if len(recipients) == 0 {
		s.logger.Info(ctx, "receipt.no_recipient")
		return false, nil
	}

	if s.dedupe != nil {
		key := s.dedupe.DedupeKey("receipt", tab.ID.String()+":"+kind.String())
		if set, err := s.dedupe.SetNX(ctx, key, "1", s.dedupeTTL); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "dedupe_error", err.Error()), "receipt.dedupe_unavailable")
		} else if !set {
			s.logger.Info(ctx, "receipt.suppressed_duplicate")
			return false, nil
		}
	}

	subject := fmt.Sprintf("Your receipt from %s", s.siteName)
	body := renderReceipt(s.siteName, tab)

	var sendErr error
	for _, to := range recipients {
		if err := s.sender.Send(ctx, to, subject, body); err != nil {
			sendErr = multierr.Append(sendErr, err)
		}
	}
	if sendErr != nil {
		// The claim row stays without sent_at so the gap is visible to
		// operators. The settlement itself is already durable.
		s.logger.Error(ctx, "receipt.send_failed", sendErr)
		return false, nil
	}

	now := time.Now().UTC()
	receipt.SentAt = &now
	if err := s.receipts.Save(ctx, receipt); err != nil {
		s.logger.Error(ctx, "receipt.sent_at_not_recorded", err)
	}

	s.logger.Info(ctx, "receipt.sent")
	return true, nil
}

func (s *service) resolveRecipients(ctx context.Context, tab *models.Tab) []string {
	var recipients []string
	if tab.OwnerID != nil {
		owner, err := s.users.FindByID(ctx, *tab.OwnerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn(s.logger.WithField(ctx, "lookup_error", err.Error()), "receipt.owner_lookup_failed")
			}
		} else if owner.Email != "" {
			recipients = append(recipients, owner.Email)
		}
	}
	if tab.GuestEmail != nil && *tab.GuestEmail != "" {
		guest := *tab.GuestEmail
		duplicate := false
		for _, existing := range recipients {
			if strings.EqualFold(existing, guest) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			recipients = append(recipients, guest)
		}
	}
	return recipients
}

func renderReceipt(siteName string, tab *models.Tab) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(siteName))
	b.WriteString("<table><thead><tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead><tbody>")
	for _, item := range tab.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>€%s</td><td>€%s</td></tr>",
			html.EscapeString(item.Title),
			item.Qty,
			money.FormatDecimal(item.UnitPriceCents),
			money.FormatDecimal(money.LineTotal(item.UnitPriceCents, item.Qty)),
		)
	}
	b.WriteString("</tbody></table>")

	total := tabs.Total(tab.Items)
	if tab.PaidAmountCents != nil {
		total = *tab.PaidAmountCents
	}
	fmt.Fprintf(&b, "<p><strong>Total paid: €%s</strong></p>", money.FormatDecimal(total))
	return b.String()
}
