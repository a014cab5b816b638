package reconcile

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/db/models"
	"github.com/rjanssen/bartab-backend/pkg/enums"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/rjanssen/bartab-backend/pkg/mollie"
)

type stubGateway struct {
	payment *mollie.Payment
	err     error
}

func (s *stubGateway) GetPayment(ctx context.Context, paymentRef string) (*mollie.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payment, nil
}

type stubTabFinder struct {
	byID  map[uuid.UUID]*models.Tab
	byRef map[string]*models.Tab
}

func (s *stubTabFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Tab, error) {
	if tab, ok := s.byID[id]; ok {
		return tab, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubTabFinder) FindBySessionRef(ctx context.Context, ref string) (*models.Tab, error) {
	if tab, ok := s.byRef[ref]; ok {
		return tab, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type settleCall struct {
	tabID       uuid.UUID
	amountCents int64
	paymentRef  string
}

type stubSettler struct {
	calls      []settleCall
	settlement *tabs.Settlement
	err        error
}

func (s *stubSettler) MarkPaid(ctx context.Context, tabID uuid.UUID, amountCents int64, paymentRef string) (*tabs.Settlement, error) {
	s.calls = append(s.calls, settleCall{tabID: tabID, amountCents: amountCents, paymentRef: paymentRef})
	if s.err != nil {
		return nil, s.err
	}
	if s.settlement != nil {
		return s.settlement, nil
	}
	return &tabs.Settlement{TabID: tabID, AmountCents: amountCents, ReceiptDue: true}, nil
}

type stubReceipts struct {
	calls []uuid.UUID
	err   error
}

func (s *stubReceipts) Dispatch(ctx context.Context, tabID uuid.UUID, kind enums.ReceiptKind) (bool, error) {
	s.calls = append(s.calls, tabID)
	if s.err != nil {
		return false, s.err
	}
	return true, nil
}

type stubFailures struct {
	records []*models.ReconciliationFailure
}

func (s *stubFailures) Create(ctx context.Context, failure *models.ReconciliationFailure) error {
	s.records = append(s.records, failure)
	return nil
}

type reconcilerFixture struct {
	gateway  *stubGateway
	finder   *stubTabFinder
	settler  *stubSettler
	receipts *stubReceipts
	failures *stubFailures
	svc      Service
}

func newFixture(t *testing.T, gateway *stubGateway, finder *stubTabFinder) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		gateway:  gateway,
		finder:   finder,
		settler:  &stubSettler{},
		receipts: &stubReceipts{},
		failures: &stubFailures{},
	}
	svc, err := NewService(ServiceParams{
		Gateway:  f.gateway,
		Tabs:     f.finder,
		Settler:  f.settler,
		Receipts: f.receipts,
		Failures: f.failures,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.svc = svc
	return f
}

func paidPayment(ref, value string, tabID *uuid.UUID) *mollie.Payment {
	payment := &mollie.Payment{
		ID:     ref,
		Status: "paid",
		Amount: mollie.Amount{Currency: "EUR", Value: value},
	}
	if tabID != nil {
		payment.Metadata = map[string]string{"tabId": tabID.String()}
	}
	return payment
}

func snapshotTab(amountCents int64, ref string) *models.Tab {
	amount := amountCents
	sessionRef := ref
	return &models.Tab{
		ID:                 uuid.New(),
		Status:             enums.TabStatusOpen,
		SessionRef:         &sessionRef,
		SessionAmountCents: &amount,
	}
}

func TestConfirmSettlesAndDispatchesReceipt(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_1")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_1", "8.50", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)

	if err := f.svc.Confirm(context.Background(), "tr_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.settler.calls) != 1 {
		t.Fatalf("expected one settlement, got %d", len(f.settler.calls))
	}
	call := f.settler.calls[0]
	if call.tabID != tab.ID || call.amountCents != 850 || call.paymentRef != "tr_1" {
		t.Fatalf("unexpected settlement call: %+v", call)
	}
	if len(f.receipts.calls) != 1 {
		t.Fatalf("expected one receipt dispatch, got %d", len(f.receipts.calls))
	}
}

func TestConfirmResolvesBySessionRef(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_2")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_2", "8.50", nil)},
		&stubTabFinder{byRef: map[string]*models.Tab{"tr_2": tab}},
	)

	if err := f.svc.Confirm(context.Background(), "tr_2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.settler.calls) != 1 || f.settler.calls[0].tabID != tab.ID {
		t.Fatalf("expected settlement via session ref, got %+v", f.settler.calls)
	}
}

func TestConfirmUnknownSessionAcks(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_3", "8.50", nil)},
		&stubTabFinder{},
	)

	if err := f.svc.Confirm(context.Background(), "tr_3"); err != nil {
		t.Fatalf("expected ack for unknown session, got %v", err)
	}
	if len(f.settler.calls) != 0 {
		t.Fatal("nothing should be settled for an unknown session")
	}
}

func TestConfirmIgnoresUnsettledStatus(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_4")
	payment := paidPayment("tr_4", "8.50", &tab.ID)
	payment.Status = "expired"
	f := newFixture(t,
		&stubGateway{payment: payment},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)

	if err := f.svc.Confirm(context.Background(), "tr_4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.settler.calls) != 0 {
		t.Fatal("unsettled payments must not touch the tab")
	}
}

func TestConfirmAmountMismatchKeepsTabOpen(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_5")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_5", "4.00", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)

	if err := f.svc.Confirm(context.Background(), "tr_5"); err != nil {
		t.Fatalf("mismatch must still ack, got %v", err)
	}
	if len(f.settler.calls) != 0 {
		t.Fatal("a mismatched amount must not settle the tab")
	}
	if len(f.failures.records) != 1 {
		t.Fatalf("expected one failure record, got %d", len(f.failures.records))
	}
	record := f.failures.records[0]
	if record.ExpectedCents == nil || *record.ExpectedCents != 850 {
		t.Fatalf("unexpected expected amount: %v", record.ExpectedCents)
	}
	if record.ObservedCents == nil || *record.ObservedCents != 400 {
		t.Fatalf("unexpected observed amount: %v", record.ObservedCents)
	}
}

func TestConfirmOneCentDriftSettles(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_6")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_6", "8.51", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)

	if err := f.svc.Confirm(context.Background(), "tr_6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.settler.calls) != 1 {
		t.Fatal("a one-cent drift is within tolerance and must settle")
	}
	if len(f.failures.records) != 0 {
		t.Fatal("no failure record expected within tolerance")
	}
}

func TestConfirmReplayedSettlementSkipsReceipt(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_7")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_7", "8.50", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)
	f.settler.settlement = &tabs.Settlement{TabID: tab.ID, AmountCents: 850, AlreadyPaid: true}

	if err := f.svc.Confirm(context.Background(), "tr_7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.receipts.calls) != 0 {
		t.Fatal("a replayed settlement must not dispatch another receipt")
	}
}

func TestConfirmGatewayFailureIsRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubGateway{err: fmt.Errorf("gateway down")}, &stubTabFinder{})

	err := f.svc.Confirm(context.Background(), "tr_8")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfirmReceiptFailureStillAcks(t *testing.T) {
	t.Parallel()

	tab := snapshotTab(850, "tr_9")
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_9", "8.50", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)
	f.receipts.err = fmt.Errorf("smtp down")

	if err := f.svc.Confirm(context.Background(), "tr_9"); err != nil {
		t.Fatalf("a failed receipt must not bounce the webhook, got %v", err)
	}
}

func TestConfirmSettledConflictRecordsFailure(t *testing.T) {
	t.Parallel()

	paid := int64(850)
	ref := "tr_10"
	tab := &models.Tab{ID: uuid.New(), Status: enums.TabStatusPaid, SessionRef: &ref, PaidAmountCents: &paid}
	f := newFixture(t,
		&stubGateway{payment: paidPayment("tr_10", "4.00", &tab.ID)},
		&stubTabFinder{byID: map[uuid.UUID]*models.Tab{tab.ID: tab}},
	)
	f.settler.err = pkgerrors.New(pkgerrors.CodeStateConflict, "tab already settled for a different amount")

	if err := f.svc.Confirm(context.Background(), "tr_10"); err != nil {
		t.Fatalf("conflicting replay must still ack, got %v", err)
	}
	if len(f.failures.records) != 1 {
		t.Fatalf("expected one failure record, got %d", len(f.failures.records))
	}
}
