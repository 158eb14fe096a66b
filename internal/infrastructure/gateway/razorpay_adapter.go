package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/infrastructure/config"
)

const (
	razorpayOrdersPath   = "/orders"
	razorpayPaymentsPath = "/payments"
)

// RazorpayAdapter implements the PaymentGateway port against the Razorpay
// REST API. Requests authenticate with HTTP basic auth (key id / key secret);
// webhooks are verified with an HMAC-SHA256 signature over the raw body.
type RazorpayAdapter struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	httpClient    *http.Client
}

// NewRazorpayAdapter creates a new Razorpay adapter
func NewRazorpayAdapter(cfg *config.GatewayConfig) (*RazorpayAdapter, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fees.ErrGatewayNotConfigured
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RazorpayAdapter{
		baseURL:       cfg.BaseURL,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GatewayType returns the gateway type
func (a *RazorpayAdapter) GatewayType() fees.PaymentGatewayType {
	return fees.PaymentGatewayTypeRazorpay
}

// CreateOrder opens a payment order in the gateway
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, req *fees.CreateOrderRequest) (*fees.CreateOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = string(valueobject.DefaultCurrency)
	}

	body := razorpayOrderRequest{
		Amount:   toPaise(req.Amount),
		Currency: currency,
		Receipt:  req.ReceiptNumber,
		Notes:    req.Notes,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to marshal order request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, razorpayOrdersPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var order razorpayOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", fees.ErrGatewayInvalidResponse, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order id missing", fees.ErrGatewayInvalidResponse)
	}

	return &fees.CreateOrderResponse{
		GatewayOrderID: order.ID,
		Status:         mapRazorpayStatus(order.Status),
		Amount:         fromPaise(order.Amount),
		Currency:       order.Currency,
		RawResponse:    string(respBody),
	}, nil
}

// ListPayments fetches the gateway's payment list for a window.
// The gateway paginates at 100 items; pages are walked until exhausted.
func (a *RazorpayAdapter) ListPayments(ctx context.Context, req *fees.ListPaymentsRequest) ([]fees.GatewayPayment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	const pageSize = 100
	var payments []fees.GatewayPayment

	for skip := 0; ; skip += pageSize {
		query := url.Values{}
		query.Set("from", strconv.FormatInt(req.From.Unix(), 10))
		query.Set("to", strconv.FormatInt(req.To.Unix(), 10))
		query.Set("count", strconv.Itoa(pageSize))
		query.Set("skip", strconv.Itoa(skip))

		respBody, err := a.doRequest(ctx, http.MethodGet, razorpayPaymentsPath+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page razorpayPaymentList
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("%w: %v", fees.ErrGatewayInvalidResponse, err)
		}

		for _, item := range page.Items {
			payments = append(payments, item.toDomain())
		}

		if len(page.Items) < pageSize {
			return payments, nil
		}
	}
}

// VerifyWebhook verifies the webhook signature and parses the payload.
// The signature is hex(HMAC-SHA256(body, webhookSecret)).
func (a *RazorpayAdapter) VerifyWebhook(payload []byte, signature string) (*fees.WebhookEvent, error) {
	if a.webhookSecret == "" {
		return nil, fees.ErrGatewayNotConfigured
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fees.ErrGatewayBadSignature
	}

	var body razorpayWebhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", fees.ErrGatewayInvalidResponse, err)
	}

	payment := body.Payload.Payment.Entity
	if payment.ID == "" {
		return nil, fmt.Errorf("%w: payment entity missing", fees.ErrGatewayInvalidResponse)
	}

	return &fees.WebhookEvent{
		EventType:        body.Event,
		GatewayOrderID:   payment.OrderID,
		GatewayPaymentID: payment.ID,
		Status:           mapRazorpayStatus(payment.Status),
		Amount:           fromPaise(payment.Amount),
		Currency:         payment.Currency,
		Method:           payment.Method,
		ErrorReason:      payment.ErrorDescription,
		PaidAt:           time.Unix(payment.CreatedAt, 0),
		RawPayload:       string(payload),
	}, nil
}

// doRequest performs an authenticated API call and returns the response body
func (a *RazorpayAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to build request: %w", err)
	}
	req.SetBasicAuth(a.keyID, a.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fees.ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fees.ErrGatewayRequestFailed, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fees.ErrGatewayOrderNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr razorpayErrorBody
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("%w: %s (%s)", fees.ErrGatewayRequestFailed,
				apiErr.Error.Description, apiErr.Error.Code)
		}
		return nil, fmt.Errorf("%w: HTTP %d", fees.ErrGatewayRequestFailed, resp.StatusCode)
	}

	return respBody, nil
}

// Ensure RazorpayAdapter implements PaymentGateway
var _ fees.PaymentGateway = (*RazorpayAdapter)(nil)
