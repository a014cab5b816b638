package webhooks

import (
	"context"
	"net/http"
	"strings"

	"github.com/rjanssen/bartab-backend/pkg/logger"
)

type ReconcileService interface {
	Confirm(ctx context.Context, paymentRef string) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, paymentRef string) (bool, error)
	Delete(ctx context.Context, paymentRef string) error
}

// MollieWebhook handles gateway payment callbacks. The gateway only sends a
// payment id; the reconciler re-fetches everything else. The handler always
// answers 200: any other status makes the gateway retry, and retries are
// pointless for malformed or unknown callbacks.
func MollieWebhook(svc ReconcileService, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ack := func() {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}

		if svc == nil {
			logError(ctx, logg, "webhook.service_unavailable", nil)
			ack()
			return
		}

		if err := r.ParseForm(); err != nil {
			logError(ctx, logg, "webhook.malformed_payload", err)
			ack()
			return
		}
		paymentRef := strings.TrimSpace(r.PostFormValue("id"))
		if paymentRef == "" {
			logError(ctx, logg, "webhook.missing_payment_ref", nil)
			ack()
			return
		}
		if logg != nil {
			ctx = logg.WithPaymentRef(ctx, paymentRef)
		}

		if guard != nil {
			replayed, err := guard.CheckAndMark(ctx, paymentRef)
			if err != nil {
				// The guard is an optimization; confirm anyway.
				logError(ctx, logg, "webhook.guard_unavailable", err)
			} else if replayed {
				if logg != nil {
					logg.Info(ctx, "webhook.replay_suppressed")
				}
				ack()
				return
			}
		}

		if err := svc.Confirm(ctx, paymentRef); err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, paymentRef)
			}
			logError(ctx, logg, "webhook.confirm_failed", err)
			ack()
			return
		}

		if logg != nil {
			logg.Info(ctx, "webhook.processed")
		}
		ack()
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
