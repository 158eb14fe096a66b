package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/shopspring/decimal"
)

// FeeTemplateResponse is the API view of a fee template
type FeeTemplateResponse struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Items       fees.FeeTemplateItems `json:"items"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	Active      bool                  `json:"active"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func toTemplateResponse(t *fees.FeeTemplate) FeeTemplateResponse {
	return FeeTemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Items:       t.Items,
		TotalAmount: t.TotalAmount,
		Active:      t.Active,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTemplateResponses(templates []*fees.FeeTemplate) []FeeTemplateResponse {
	out := make([]FeeTemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	return out
}

// FeeRecordResponse is the API view of a fee record
type FeeRecordResponse struct {
	ID             uuid.UUID             `json:"id"`
	RecordNumber   string                `json:"record_number"`
	StudentID      uuid.UUID             `json:"student_id"`
	ClassID        *uuid.UUID            `json:"class_id,omitempty"`
	TemplateID     uuid.UUID             `json:"template_id"`
	TemplateName   string                `json:"template_name"`
	Items          fees.FeeTemplateItems `json:"items"`
	Amount         decimal.Decimal       `json:"amount"`
	Discount       decimal.Decimal       `json:"discount"`
	LateFine       decimal.Decimal       `json:"late_fine"`
	AmountPaid     decimal.Decimal       `json:"amount_paid"`
	BalanceDue     decimal.Decimal       `json:"balance_due"`
	Status         fees.FeeRecordStatus  `json:"status"`
	DueDate        time.Time             `json:"due_date"`
	LastFinePeriod string                `json:"last_fine_period,omitempty"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func toRecordResponse(r *fees.FeeRecord) FeeRecordResponse {
	return FeeRecordResponse{
		ID:             r.ID,
		RecordNumber:   r.RecordNumber,
		StudentID:      r.StudentID,
		ClassID:        r.ClassID,
		TemplateID:     r.TemplateID,
		TemplateName:   r.TemplateName,
		Items:          r.ItemsSnapshot,
		Amount:         r.Amount,
		Discount:       r.Discount,
		LateFine:       r.LateFine,
		AmountPaid:     r.AmountPaid,
		BalanceDue:     r.BalanceDue,
		Status:         r.Status,
		DueDate:        r.DueDate,
		LastFinePeriod: r.LastFinePeriod,
		PaidAt:         r.PaidAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toRecordResponses(records []*fees.FeeRecord) []FeeRecordResponse {
	out := make([]FeeRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordResponse(r))
	}
	return out
}

// TransactionResponse is the API view of a payment transaction
type TransactionResponse struct {
	ID               uuid.UUID              `json:"id"`
	ReceiptNumber    string                 `json:"receipt_number"`
	FeeRecordID      uuid.UUID              `json:"fee_record_id"`
	StudentID        uuid.UUID              `json:"student_id"`
	Amount           decimal.Decimal        `json:"amount"`
	Details          fees.PaymentDetails    `json:"details"`
	Status           fees.TransactionStatus `json:"status"`
	GatewayOrderID   string                 `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string                 `json:"gateway_payment_id,omitempty"`
	CollectedBy      *uuid.UUID             `json:"collected_by,omitempty"`
	PaidAt           *time.Time             `json:"paid_at,omitempty"`
	FailureReason    string                 `json:"failure_reason,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func toTransactionResponse(t *fees.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID,
		ReceiptNumber:    t.ReceiptNumber,
		FeeRecordID:      t.FeeRecordID,
		StudentID:        t.StudentID,
		Amount:           t.Amount,
		Details:          t.Details,
		Status:           t.Status,
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		CollectedBy:      t.CollectedBy,
		PaidAt:           t.PaidAt,
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
	}
}

func toTransactionResponses(txs []*fees.PaymentTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

// PaymentDetailsInput carries payment mode details on collection requests
type PaymentDetailsInput struct {
	Mode         string `json:"mode" binding:"required"`
	ReferenceID  string `json:"reference_id" binding:"omitempty,max=100"`
	ChequeNumber string `json:"cheque_number" binding:"omitempty,max=50"`
	BankName     string `json:"bank_name" binding:"omitempty,max=100"`
	WalletName   string `json:"wallet_name" binding:"omitempty,max=100"`
	Note         string `json:"note" binding:"omitempty,max=500"`
}

func (i PaymentDetailsInput) toDomain() fees.PaymentDetails {
	return fees.PaymentDetails{
		Mode:         fees.PaymentMode(i.Mode),
		ReferenceID:  i.ReferenceID,
		ChequeNumber: i.ChequeNumber,
		BankName:     i.BankName,
		WalletName:   i.WalletName,
		Note:         i.Note,
	}
}
