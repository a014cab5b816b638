package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rjanssen/bartab-backend/pkg/logger"
)

type stubReconciler struct {
	refs []string
	err  error
}

func (s *stubReconciler) Confirm(ctx context.Context, paymentRef string) error {
	s.refs = append(s.refs, paymentRef)
	return s.err
}

type stubGuard struct {
	replayed bool
	deleted  []string
}

func (s *stubGuard) CheckAndMark(ctx context.Context, paymentRef string) (bool, error) {
	return s.replayed, nil
}

func (s *stubGuard) Delete(ctx context.Context, paymentRef string) error {
	s.deleted = append(s.deleted, paymentRef)
	return nil
}

func postWebhook(t *testing.T, handler http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mollie", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestMollieWebhookConfirms(t *testing.T) {
	t.Parallel()

	svc := &stubReconciler{}
	rec := postWebhook(t, MollieWebhook(svc, &stubGuard{}, testLogger()), url.Values{"id": {"tr_123"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
	if len(svc.refs) != 1 || svc.refs[0] != "tr_123" {
		t.Fatalf("unexpected confirmations: %v", svc.refs)
	}
}

func TestMollieWebhookAcksOnConfirmError(t *testing.T) {
	t.Parallel()

	svc := &stubReconciler{err: fmt.Errorf("gateway down")}
	guard := &stubGuard{}
	rec := postWebhook(t, MollieWebhook(svc, guard, testLogger()), url.Values{"id": {"tr_456"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("a failed confirm must still ack, got %d", rec.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "tr_456" {
		t.Fatalf("expected the guard mark to be released, got %v", guard.deleted)
	}
}

func TestMollieWebhookAcksMissingRef(t *testing.T) {
	t.Parallel()

	svc := &stubReconciler{}
	rec := postWebhook(t, MollieWebhook(svc, &stubGuard{}, testLogger()), url.Values{})

	if rec.Code != http.StatusOK {
		t.Fatalf("a malformed callback must still ack, got %d", rec.Code)
	}
	if len(svc.refs) != 0 {
		t.Fatal("nothing should be confirmed without a payment ref")
	}
}

func TestMollieWebhookSuppressesReplay(t *testing.T) {
	t.Parallel()

	svc := &stubReconciler{}
	rec := postWebhook(t, MollieWebhook(svc, &stubGuard{replayed: true}, testLogger()), url.Values{"id": {"tr_789"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.refs) != 0 {
		t.Fatal("a replayed callback inside the window must not hit the reconciler")
	}
}
