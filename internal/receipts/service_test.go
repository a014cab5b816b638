package receipts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

type stubTabFinder struct {
	tabs map[uuid.UUID]*models.Tab
}

func (s *stubTabFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error) {
	if tab, ok := s.tabs[id]; ok {
		return tab, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubUserFinder struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubReceiptRepo struct {
	created   []*models.Receipt
	saved     []*models.Receipt
	createErr error
}

func (s *stubReceiptRepo) Create(ctx context.Context, receipt *models.Receipt) error {
	if s.createErr != nil {
		return s.createErr
	}
	receipt.ID = uuid.New()
	s.created = append(s.created, receipt)
	return nil
}

func (s *stubReceiptRepo) Save(ctx context.Context, receipt *models.Receipt) error {
	s.saved = append(s.saved, receipt)
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type stubSender struct {
	sent []sentMail
	err  error
}

func (s *stubSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type stubDedupe struct {
	set bool
	err error
}

func (s *stubDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.set, nil
}

func (s *stubDedupe) DedupeKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type fixture struct {
	tabs   *stubTabFinder
	users  *stubUserFinder
	repo   *stubReceiptRepo
	sender *stubSender
	svc    Service
}

func newFixture(t *testing.T, dedupe dedupeStore) *fixture {
	t.Helper()

	f := &fixture{
		tabs:   &stubTabFinder{tabs: map[uuid.UUID]*models.Tab{}},
		users:  &stubUserFinder{users: map[uuid.UUID]*models.User{}},
		repo:   &stubReceiptRepo{},
		sender: &stubSender{},
	}
	svc, err := NewService(ServiceParams{
		Tabs:      f.tabs,
		Users:     f.users,
		Receipts:  f.repo,
		Sender:    f.sender,
		Dedupe:    dedupe,
		DedupeTTL: time.Second,
		SiteName:  "Clubhouse Bar",
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.svc = svc
	return f
}

func settledTab(guestEmail *string, owner *uuid.UUID) *models.Tab {
	paid := int64(850)
	return &models.Tab{
		ID:              uuid.New(),
		Status:          enums.TabStatusPaid,
		OwnerID:         owner,
		GuestEmail:      guestEmail,
		PaidAmountCents: &paid,
		Items: []models.TabItem{
			{ID: uuid.New(), Title: "Beer", UnitPriceCents: 300, Qty: 2},
			{ID: uuid.New(), Title: "Cola", UnitPriceCents: 250, Qty: 1},
		},
	}
}

func strPtr(v string) *string { return &v }

func TestDispatchSendsToGuest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	tab := settledTab(strPtr("guest@example.test"), nil)
	f.tabs.tabs[tab.ID] = tab

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sent {
		t.Fatal("expected the receipt to be sent")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].to != "guest@example.test" {
		t.Fatalf("unexpected sends: %+v", f.sender.sent)
	}
	if !strings.Contains(f.sender.sent[0].subject, "Clubhouse Bar") {
		t.Fatalf("unexpected subject: %s", f.sender.sent[0].subject)
	}
	if !strings.Contains(f.sender.sent[0].body, "8.50") {
		t.Fatal("expected the paid total in the body")
	}
	if len(f.repo.saved) != 1 || f.repo.saved[0].SentAt == nil {
		t.Fatal("expected sent_at to be recorded")
	}
}

func TestDispatchResolvesOwnerEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	owner := uuid.New()
	f.users.users[owner] = &models.User{ID: owner, Email: "member@example.test"}
	tab := settledTab(nil, &owner)
	f.tabs.tabs[tab.ID] = tab

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sent || len(f.sender.sent) != 1 || f.sender.sent[0].to != "member@example.test" {
		t.Fatalf("unexpected sends: %+v", f.sender.sent)
	}
}

func TestDispatchAlreadyClaimed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	tab := settledTab(strPtr("guest@example.test"), nil)
	f.tabs.tabs[tab.ID] = tab
	f.repo.createErr = fmt.Errorf(`duplicate key value violates unique constraint "uq_receipts_tab_kind"`)

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent {
		t.Fatal("a claimed receipt must not be sent again")
	}
	if len(f.sender.sent) != 0 {
		t.Fatal("no email expected for a claimed receipt")
	}
}

func TestDispatchNoRecipient(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	tab := settledTab(nil, nil)
	f.tabs.tabs[tab.ID] = tab

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent {
		t.Fatal("nothing to send without a recipient")
	}
	if len(f.repo.created) != 1 {
		t.Fatal("the claim row must still be written")
	}
}

func TestDispatchSendFailureKeepsClaim(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	tab := settledTab(strPtr("guest@example.test"), nil)
	f.tabs.tabs[tab.ID] = tab
	f.sender.err = fmt.Errorf("smtp down")

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("send failures are swallowed, got %v", err)
	}
	if sent {
		t.Fatal("a failed send must not report success")
	}
	if len(f.repo.saved) != 0 {
		t.Fatal("sent_at must stay empty after a failed send")
	}
}

func TestDispatchDedupeSuppresses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDedupe{set: false})
	tab := settledTab(strPtr("guest@example.test"), nil)
	f.tabs.tabs[tab.ID] = tab

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent || len(f.sender.sent) != 0 {
		t.Fatal("the dedupe window must suppress the duplicate send")
	}
}

func TestDispatchDedupeOutageStillSends(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubDedupe{err: fmt.Errorf("redis down")})
	tab := settledTab(strPtr("guest@example.test"), nil)
	f.tabs.tabs[tab.ID] = tab

	sent, err := f.svc.Dispatch(context.Background(), tab.ID, enums.ReceiptKindSettlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sent {
		t.Fatal("a dedupe outage must not block the send")
	}
}

func TestDispatchUnknownTab(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	_, err := f.svc.Dispatch(context.Background(), uuid.New(), enums.ReceiptKindSettlement)
	if err == nil {
		t.Fatal("expected error for unknown tab")
	}
}
