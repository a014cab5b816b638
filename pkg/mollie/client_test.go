package mollie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rjanssen/bartab-backend/pkg/config"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.MollieConfig{
		APIKey:  "test_abc",
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.MollieConfig{}, logger.New(logger.Options{ServiceName: "test"}))
	require.Error(t, err)
}

func TestCreatePayment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/payments", r.URL.Path)
		require.Equal(t, "Bearer test_abc", r.Header.Get("Authorization"))

		var params CreatePaymentParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "8.50", params.Amount.Value)
		assert.Equal(t, "EUR", params.Amount.Currency)
		assert.NotEmpty(t, params.Metadata["tabId"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Payment{
			ID:     "tr_12345",
			Status: "open",
			Amount: params.Amount,
			Links: PaymentLinks{
				Checkout: &Link{Href: "https://checkout.example/tr_12345"},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	payment, err := client.CreatePayment(context.Background(), CreatePaymentParams{
		Amount:      Amount{Currency: "EUR", Value: "8.50"},
		Description: "Bar tab #abc",
		RedirectURL: "https://bar.example/pay/return?tabId=abc",
		Metadata:    map[string]string{"tabId": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_12345", payment.ID)
	assert.Equal(t, "https://checkout.example/tr_12345", payment.CheckoutURL())
}

func TestGetPaymentNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 404, "title": "Not Found", "detail": "No payment exists with token tr_missing."})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetPayment(context.Background(), "tr_missing")
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetPaymentServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetPayment(context.Background(), "tr_12345")
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.True(t, pkgerrors.MetadataFor(typed.Code()).Retryable)
}

func TestGetPaymentRequiresRef(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "https://api.mollie.test")
	_, err := client.GetPayment(context.Background(), "  ")
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
