package fees

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payment Gateway Errors
// ---------------------------------------------------------------------------

var (
	ErrGatewayInvalidSchoolID = errors.New("gateway: invalid school ID")
	ErrGatewayInvalidRecordID = errors.New("gateway: invalid fee record ID")
	ErrGatewayInvalidReceipt  = errors.New("gateway: invalid receipt reference")
	ErrGatewayInvalidAmount   = errors.New("gateway: invalid payment amount")
	ErrGatewayInvalidWindow   = errors.New("gateway: invalid query window")

	ErrGatewayNotConfigured   = errors.New("gateway: not configured")
	ErrGatewayRequestFailed   = errors.New("gateway: request failed")
	ErrGatewayInvalidResponse = errors.New("gateway: invalid response")
	ErrGatewayOrderNotFound   = errors.New("gateway: order not found")
	ErrGatewayBadSignature    = errors.New("gateway: invalid webhook signature")
)

// PaymentGatewayType identifies the external payment gateway
type PaymentGatewayType string

const (
	// PaymentGatewayTypeRazorpay represents the Razorpay gateway
	PaymentGatewayTypeRazorpay PaymentGatewayType = "RAZORPAY"
)

// IsValid returns true if the gateway type is valid
func (t PaymentGatewayType) IsValid() bool {
	return t == PaymentGatewayTypeRazorpay
}

// String returns the string representation of PaymentGatewayType
func (t PaymentGatewayType) String() string {
	return string(t)
}

// GatewayPaymentStatus represents the status of a payment as the gateway reports it
type GatewayPaymentStatus string

const (
	// GatewayPaymentStatusCreated indicates the order exists but no payment attempt yet
	GatewayPaymentStatusCreated GatewayPaymentStatus = "CREATED"
	// GatewayPaymentStatusAuthorized indicates the payment is authorized but not settled
	GatewayPaymentStatusAuthorized GatewayPaymentStatus = "AUTHORIZED"
	// GatewayPaymentStatusCaptured indicates the payment succeeded
	GatewayPaymentStatusCaptured GatewayPaymentStatus = "CAPTURED"
	// GatewayPaymentStatusFailed indicates the payment failed
	GatewayPaymentStatusFailed GatewayPaymentStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s GatewayPaymentStatus) IsValid() bool {
	switch s {
	case GatewayPaymentStatusCreated, GatewayPaymentStatusAuthorized,
		GatewayPaymentStatusCaptured, GatewayPaymentStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of GatewayPaymentStatus
func (s GatewayPaymentStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a terminal state
func (s GatewayPaymentStatus) IsFinal() bool {
	return s == GatewayPaymentStatusCaptured || s == GatewayPaymentStatusFailed
}

// IsSuccess returns true if the payment was captured
func (s GatewayPaymentStatus) IsSuccess() bool {
	return s == GatewayPaymentStatusCaptured
}

// ---------------------------------------------------------------------------
// Gateway Request/Response DTOs
// ---------------------------------------------------------------------------

// CreateOrderRequest represents a request to open a payment order
type CreateOrderRequest struct {
	// SchoolID is the school collecting the payment
	SchoolID uuid.UUID
	// ReceiptNumber is our internal receipt number, passed to the gateway
	// as the merchant reference
	ReceiptNumber string
	// Amount is the payment amount
	Amount decimal.Decimal
	// Currency is the payment currency (default INR)
	Currency string
	// Notes is additional key-value data to associate with the order
	Notes map[string]string
}

// Validate validates the create order request
func (r *CreateOrderRequest) Validate() error {
	if r.SchoolID == uuid.Nil {
		return ErrGatewayInvalidSchoolID
	}
	if r.ReceiptNumber == "" {
		return ErrGatewayInvalidReceipt
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrGatewayInvalidAmount
	}
	return nil
}

// CreateOrderResponse represents the gateway's response to order creation
type CreateOrderResponse struct {
	// GatewayOrderID is the order ID assigned by the gateway
	GatewayOrderID string
	// Status is the initial order status
	Status GatewayPaymentStatus
	// Amount echoes the order amount
	Amount decimal.Decimal
	// Currency echoes the order currency
	Currency string
	// RawResponse is the original gateway response (JSON)
	RawResponse string
}

// GatewayPayment is one payment as reported by the gateway's ledger
type GatewayPayment struct {
	// GatewayPaymentID is the gateway's own payment identifier
	GatewayPaymentID string
	// GatewayOrderID is the order the payment belongs to
	GatewayOrderID string
	// Status is the payment status at the gateway
	Status GatewayPaymentStatus
	// Amount is the amount the gateway recorded
	Amount decimal.Decimal
	// Currency is the payment currency
	Currency string
	// Method is the payment method the payer used (upi, card, netbanking...)
	Method string
	// ErrorReason carries the gateway's failure description, if any
	ErrorReason string
	// CreatedAt is when the payment was attempted at the gateway
	CreatedAt time.Time
}

// ListPaymentsRequest represents a request for the gateway's payment list
type ListPaymentsRequest struct {
	// SchoolID scopes the query to one school's gateway account
	SchoolID uuid.UUID
	// From and To bound the query window
	From time.Time
	To   time.Time
}

// Validate validates the list payments request
func (r *ListPaymentsRequest) Validate() error {
	if r.SchoolID == uuid.Nil {
		return ErrGatewayInvalidSchoolID
	}
	if r.From.IsZero() || r.To.IsZero() || r.To.Before(r.From) {
		return ErrGatewayInvalidWindow
	}
	return nil
}

// WebhookEvent is a verified payment notification from the gateway
type WebhookEvent struct {
	// EventType is the gateway's event name (payment.captured, payment.failed)
	EventType string
	// GatewayOrderID is the order the event refers to
	GatewayOrderID string
	// GatewayPaymentID is the gateway's payment identifier; idempotency is
	// keyed on this, not the order id, because one order can see several
	// payment attempts
	GatewayPaymentID string
	// Status is the payment status the event carries
	Status GatewayPaymentStatus
	// Amount is the paid amount the gateway reports
	Amount decimal.Decimal
	// Currency is the payment currency
	Currency string
	// Method is the payment method the payer used
	Method string
	// ErrorReason carries the failure description for failed payments
	ErrorReason string
	// PaidAt is when the gateway recorded the payment
	PaidAt time.Time
	// RawPayload is the original webhook body
	RawPayload string
}

// ---------------------------------------------------------------------------
// PaymentGateway Port Interface
// ---------------------------------------------------------------------------

// PaymentGateway defines the port interface for the external payment
// gateway. It is defined in the domain layer; the concrete HTTP adapter
// lives in the infrastructure layer.
type PaymentGateway interface {
	// GatewayType returns the type of this payment gateway
	GatewayType() PaymentGatewayType

	// CreateOrder opens a payment order in the gateway
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)

	// ListPayments fetches the gateway's authoritative payment list for a window
	ListPayments(ctx context.Context, req *ListPaymentsRequest) ([]GatewayPayment, error)

	// VerifyWebhook verifies the webhook signature and parses the payload.
	// Returns ErrGatewayBadSignature when the signature does not match.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
