// Package mollie wraps the Mollie payments REST API with centralized auth,
// logging, and error mapping.
package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rjanssen/bartab-backend/pkg/config"
	pkgerrors "github.com/rjanssen/bartab-backend/pkg/errors"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

const paymentsPath = "/v2/payments"

var (
	errAPIKeyRequired = errors.New("mollie api key is required")
	errLoggerRequired = errors.New("mollie logger is required")
)

// Client exposes the payment operations the service needs.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *logger.Logger
}

// NewClient initializes the Mollie wrapper and validates the credentials.
func NewClient(cfg config.MollieConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mollie.com"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     apiKey,
		baseURL:    baseURL,
		logger:     logg,
	}, nil
}

// CreatePayment opens a hosted checkout session for the given amount.
func (c *Client) CreatePayment(ctx context.Context, params CreatePaymentParams) (*Payment, error) {
	c.log(ctx, "request", "create_payment", map[string]any{
		"amount":      params.Amount.Value,
		"currency":    params.Amount.Currency,
		"description": params.Description,
	})

	payment, err := c.do(ctx, http.MethodPost, paymentsPath, params)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return payment, nil
}

// GetPayment fetches the authoritative state of a payment by its reference.
func (c *Client) GetPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	c.log(ctx, "request", "get_payment", map[string]any{"payment_ref": ref})

	payment, err := c.do(ctx, http.MethodGet, paymentsPath+"/"+ref, nil)
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Payment, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment gateway")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapAPIError(resp.StatusCode, payload)
	}

	var payment Payment
	if err := json.Unmarshal(payload, &payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return &payment, nil
}

func mapAPIError(status int, payload []byte) error {
	var parsed apiError
	detail := ""
	if err := json.Unmarshal(payload, &parsed); err == nil {
		detail = strings.TrimSpace(strings.Join([]string{parsed.Title, parsed.Detail}, ": "))
	}
	if detail == "" || detail == ":" {
		detail = fmt.Sprintf("gateway returned status %d", status)
	}

	switch status {
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").WithDetails(map[string]any{"gateway": detail})
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway rejected credentials").WithDetails(map[string]any{"gateway": detail})
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway rejected request").WithDetails(map[string]any{"gateway": detail})
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway request failed").WithDetails(map[string]any{"gateway": detail, "status": status})
	}
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"mollie_phase": phase, "mollie_operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	ctx = c.logger.WithFields(ctx, merged)
	c.logger.Info(ctx, fmt.Sprintf("mollie.%s", operation))
}
