package fees

import (
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventFeeTemplateCreated       = "fees.template.created"
	EventFeeRecordAssigned        = "fees.record.assigned"
	EventFeeRecordPaymentApplied  = "fees.record.payment_applied"
	EventFeeRecordPaid            = "fees.record.paid"
	EventLateFineApplied          = "fees.record.late_fine_applied"
	EventTransactionConfirmed     = "fees.transaction.confirmed"
	EventTransactionFailed        = "fees.transaction.failed"
)

// FeeTemplateCreatedEvent is raised when a fee template is created
type FeeTemplateCreatedEvent struct {
	shared.BaseDomainEvent
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewFeeTemplateCreatedEvent creates a new FeeTemplateCreatedEvent
func NewFeeTemplateCreatedEvent(t *FeeTemplate) *FeeTemplateCreatedEvent {
	return &FeeTemplateCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFeeTemplateCreated, "FeeTemplate", t.ID, t.SchoolID),
		Name:            t.Name,
		TotalAmount:     t.TotalAmount,
	}
}

// FeeRecordAssignedEvent is raised when a fee record is assigned to a student
type FeeRecordAssignedEvent struct {
	shared.BaseDomainEvent
	RecordNumber string          `json:"record_number"`
	StudentID    string          `json:"student_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// NewFeeRecordAssignedEvent creates a new FeeRecordAssignedEvent
func NewFeeRecordAssignedEvent(r *FeeRecord) *FeeRecordAssignedEvent {
	return &FeeRecordAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFeeRecordAssigned, "FeeRecord", r.ID, r.SchoolID),
		RecordNumber:    r.RecordNumber,
		StudentID:       r.StudentID.String(),
		Amount:          r.Amount,
	}
}

// FeeRecordPaymentAppliedEvent is raised when a partial payment lands on a record
type FeeRecordPaymentAppliedEvent struct {
	shared.BaseDomainEvent
	RecordNumber string          `json:"record_number"`
	Payment      decimal.Decimal `json:"payment"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
}

// NewFeeRecordPaymentAppliedEvent creates a new FeeRecordPaymentAppliedEvent
func NewFeeRecordPaymentAppliedEvent(r *FeeRecord, payment valueobject.Money) *FeeRecordPaymentAppliedEvent {
	return &FeeRecordPaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFeeRecordPaymentApplied, "FeeRecord", r.ID, r.SchoolID),
		RecordNumber:    r.RecordNumber,
		Payment:         payment.Amount(),
		BalanceDue:      r.BalanceDue,
	}
}

// FeeRecordPaidEvent is raised when a record is fully collected
type FeeRecordPaidEvent struct {
	shared.BaseDomainEvent
	RecordNumber string          `json:"record_number"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
}

// NewFeeRecordPaidEvent creates a new FeeRecordPaidEvent
func NewFeeRecordPaidEvent(r *FeeRecord) *FeeRecordPaidEvent {
	return &FeeRecordPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventFeeRecordPaid, "FeeRecord", r.ID, r.SchoolID),
		RecordNumber:    r.RecordNumber,
		AmountPaid:      r.AmountPaid,
	}
}

// LateFineAppliedEvent is raised when the late-fee sweep fines a record
type LateFineAppliedEvent struct {
	shared.BaseDomainEvent
	RecordNumber string          `json:"record_number"`
	Fine         decimal.Decimal `json:"fine"`
	Period       string          `json:"period"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
}

// NewLateFineAppliedEvent creates a new LateFineAppliedEvent
func NewLateFineAppliedEvent(r *FeeRecord, fine valueobject.Money, period string) *LateFineAppliedEvent {
	return &LateFineAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventLateFineApplied, "FeeRecord", r.ID, r.SchoolID),
		RecordNumber:    r.RecordNumber,
		Fine:            fine.Amount(),
		Period:          period,
		BalanceDue:      r.BalanceDue,
	}
}

// TransactionConfirmedEvent is raised when a transaction reaches SUCCESS
type TransactionConfirmedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber    string          `json:"receipt_number"`
	Amount           decimal.Decimal `json:"amount"`
	Mode             string          `json:"mode"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
}

// NewTransactionConfirmedEvent creates a new TransactionConfirmedEvent
func NewTransactionConfirmedEvent(t *PaymentTransaction) *TransactionConfirmedEvent {
	return &TransactionConfirmedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTransactionConfirmed, "PaymentTransaction", t.ID, t.SchoolID),
		ReceiptNumber:    t.ReceiptNumber,
		Amount:           t.Amount,
		Mode:             t.Details.Mode.String(),
		GatewayPaymentID: t.GatewayPaymentID,
	}
}

// TransactionFailedEvent is raised when a gateway transaction fails
type TransactionFailedEvent struct {
	shared.BaseDomainEvent
	ReceiptNumber string `json:"receipt_number"`
	Reason        string `json:"reason"`
}

// NewTransactionFailedEvent creates a new TransactionFailedEvent
func NewTransactionFailedEvent(t *PaymentTransaction) *TransactionFailedEvent {
	return &TransactionFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionFailed, "PaymentTransaction", t.ID, t.SchoolID),
		ReceiptNumber:   t.ReceiptNumber,
		Reason:          t.FailureReason,
	}
}
