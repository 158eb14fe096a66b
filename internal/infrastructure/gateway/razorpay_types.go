package gateway

import (
	"time"

	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/shopspring/decimal"
)

// razorpayOrderRequest is the order creation request body.
// Amounts are in the currency's smallest unit (paise for INR).
type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// razorpayOrder is the gateway's order entity
type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// razorpayPayment is the gateway's payment entity
type razorpayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

// razorpayPaymentList is the payment collection envelope
type razorpayPaymentList struct {
	Count int               `json:"count"`
	Items []razorpayPayment `json:"items"`
}

// razorpayWebhookBody is the webhook event envelope
type razorpayWebhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// razorpayErrorBody is the error response envelope
type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// mapRazorpayStatus maps the gateway's payment status strings to domain statuses
func mapRazorpayStatus(status string) fees.GatewayPaymentStatus {
	switch status {
	case "created":
		return fees.GatewayPaymentStatusCreated
	case "authorized":
		return fees.GatewayPaymentStatusAuthorized
	case "captured":
		return fees.GatewayPaymentStatusCaptured
	case "failed":
		return fees.GatewayPaymentStatusFailed
	default:
		return fees.GatewayPaymentStatusCreated
	}
}

// toPaise converts a rupee amount to paise, the gateway's wire unit
func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// fromPaise converts a paise amount back to rupees
func fromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
}

// toDomainPayment converts a gateway payment entity to the domain view
func (p razorpayPayment) toDomain() fees.GatewayPayment {
	return fees.GatewayPayment{
		GatewayPaymentID: p.ID,
		GatewayOrderID:   p.OrderID,
		Status:           mapRazorpayStatus(p.Status),
		Amount:           fromPaise(p.Amount),
		Currency:         p.Currency,
		Method:           p.Method,
		ErrorReason:      p.ErrorDescription,
		CreatedAt:        time.Unix(p.CreatedAt, 0),
	}
}
