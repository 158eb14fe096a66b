package fees

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING" // Gateway order opened, awaiting confirmation
	TransactionStatusSuccess TransactionStatus = "SUCCESS" // Payment confirmed and applied to the ledger
	TransactionStatusFailed  TransactionStatus = "FAILED"  // Payment failed, no ledger effect
)

// IsValid checks if the status is a valid TransactionStatus
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the transaction can no longer change state
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// ReceiptSnapshot captures the fee record's financial state at collection
// time. A receipt rendered from this snapshot never changes, even when the
// template or record is later edited.
type ReceiptSnapshot struct {
	RecordNumber string           `json:"record_number"`
	TemplateName string           `json:"template_name"`
	Items        FeeTemplateItems `json:"items"`
	Amount       decimal.Decimal  `json:"amount"`
	Discount     decimal.Decimal  `json:"discount"`
	LateFine     decimal.Decimal  `json:"late_fine"`
	NetPayable   decimal.Decimal  `json:"net_payable"`
	AmountPaid   decimal.Decimal  `json:"amount_paid"`   // This payment
	TotalPaid    decimal.Decimal  `json:"total_paid"`    // Cumulative, including this payment
	BalanceAfter decimal.Decimal  `json:"balance_after"` // Outstanding after this payment
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (r ReceiptSnapshot) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (r *ReceiptSnapshot) Scan(value interface{}) error {
	if value == nil {
		*r = ReceiptSnapshot{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ReceiptSnapshot: unsupported type")
	}

	if len(bytes) == 0 {
		*r = ReceiptSnapshot{}
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// SnapshotAfterPayment builds a receipt snapshot from a fee record that has
// just had a payment applied.
func SnapshotAfterPayment(record *FeeRecord, payment valueobject.Money) ReceiptSnapshot {
	items := make(FeeTemplateItems, len(record.ItemsSnapshot))
	copy(items, record.ItemsSnapshot)

	return ReceiptSnapshot{
		RecordNumber: record.RecordNumber,
		TemplateName: record.TemplateName,
		Items:        items,
		Amount:       record.Amount,
		Discount:     record.Discount,
		LateFine:     record.LateFine,
		NetPayable:   record.NetDemand(),
		AmountPaid:   payment.Amount(),
		TotalPaid:    record.AmountPaid,
		BalanceAfter: record.BalanceDue,
	}
}

// PaymentTransaction represents one payment attempt against a fee record.
// Transactions are append-only: corrections happen by creating a new
// transaction, never by editing history. Only SUCCESS transactions
// contribute to the fee record's collected amount.
type PaymentTransaction struct {
	shared.SchoolAggregateRoot
	ReceiptNumber string          `json:"receipt_number"`
	FeeRecordID   uuid.UUID       `json:"fee_record_id"`
	StudentID     uuid.UUID       `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	Details       PaymentDetails  `json:"details"`
	Status        TransactionStatus `json:"status"`
	// GatewayOrderID and GatewayPaymentID bind a gateway transaction to the
	// external order and to the gateway's own payment record.
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	CollectedBy      *uuid.UUID      `json:"collected_by"`
	PaidAt           *time.Time      `json:"paid_at"`
	FailureReason    string          `json:"failure_reason"`
	Receipt          ReceiptSnapshot `json:"receipt"`
}

// NewManualTransaction records a payment a clerk collected in person.
// Manual transactions are born in SUCCESS state; the caller applies the
// payment to the fee record within the same database transaction.
func NewManualTransaction(
	schoolID uuid.UUID,
	receiptNumber string,
	record *FeeRecord,
	amount valueobject.Money,
	details PaymentDetails,
	collectedBy uuid.UUID,
) (*PaymentTransaction, error) {
	if receiptNumber == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT_NUMBER", "Receipt number cannot be empty")
	}
	if record == nil {
		return nil, shared.NewDomainError("INVALID_RECORD", "Fee record cannot be nil")
	}
	if record.SchoolID != schoolID {
		return nil, shared.NewDomainError("NOT_FOUND", "Fee record does not belong to this school")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if details.Mode == PaymentModeGateway {
		return nil, shared.NewDomainError("INVALID_PAYMENT_MODE", "Gateway payments cannot be recorded manually")
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if collectedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_COLLECTOR", "Collector ID cannot be empty")
	}

	now := time.Now()
	tx := &PaymentTransaction{
		SchoolAggregateRoot: shared.NewSchoolAggregateRootWithCreator(schoolID, collectedBy),
		ReceiptNumber:       receiptNumber,
		FeeRecordID:         record.ID,
		StudentID:           record.StudentID,
		Amount:              amount.Amount(),
		Details:             details,
		Status:              TransactionStatusSuccess,
		CollectedBy:         &collectedBy,
		PaidAt:              &now,
	}

	tx.AddDomainEvent(NewTransactionConfirmedEvent(tx))

	return tx, nil
}

// NewGatewayTransaction opens a pending transaction bound to a gateway
// order. No ledger mutation happens until the gateway confirms.
func NewGatewayTransaction(
	schoolID uuid.UUID,
	receiptNumber string,
	record *FeeRecord,
	amount valueobject.Money,
	gatewayOrderID string,
) (*PaymentTransaction, error) {
	if receiptNumber == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT_NUMBER", "Receipt number cannot be empty")
	}
	if record == nil {
		return nil, shared.NewDomainError("INVALID_RECORD", "Fee record cannot be nil")
	}
	if record.SchoolID != schoolID {
		return nil, shared.NewDomainError("NOT_FOUND", "Fee record does not belong to this school")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if gatewayOrderID == "" {
		return nil, shared.NewDomainError("INVALID_GATEWAY_ORDER", "Gateway order ID cannot be empty")
	}

	return &PaymentTransaction{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		ReceiptNumber:       receiptNumber,
		FeeRecordID:         record.ID,
		StudentID:           record.StudentID,
		Amount:              amount.Amount(),
		Details:             NewGatewayDetails(""),
		Status:              TransactionStatusPending,
		GatewayOrderID:      gatewayOrderID,
	}, nil
}

// Confirm transitions a gateway transaction to SUCCESS, recording the
// gateway's payment id. SUCCESS is never re-entered. A FAILED transaction
// may still be confirmed: the gateway's record is authoritative, and a
// later captured attempt supersedes a failure recorded from an earlier
// webhook.
func (t *PaymentTransaction) Confirm(gatewayPaymentID string, paidAt time.Time) error {
	if t.Status == TransactionStatusSuccess {
		return shared.NewDomainError("INVALID_STATE", "Transaction is already confirmed")
	}
	if gatewayPaymentID == "" {
		return shared.NewDomainError("INVALID_GATEWAY_PAYMENT", "Gateway payment ID cannot be empty")
	}

	t.Status = TransactionStatusSuccess
	t.GatewayPaymentID = gatewayPaymentID
	t.Details.ReferenceID = gatewayPaymentID
	t.PaidAt = &paidAt
	t.FailureReason = ""
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTransactionConfirmedEvent(t))

	return nil
}

// Fail transitions a pending gateway transaction to FAILED.
// Failed transactions never touch the ledger.
func (t *PaymentTransaction) Fail(reason string) error {
	if t.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail transaction in %s status", t.Status))
	}

	t.Status = TransactionStatusFailed
	t.FailureReason = reason
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTransactionFailedEvent(t))

	return nil
}

// AttachReceipt stores the receipt snapshot taken after the payment was
// applied to the fee record.
func (t *PaymentTransaction) AttachReceipt(snapshot ReceiptSnapshot) {
	t.Receipt = snapshot
	t.UpdatedAt = time.Now()
}

// IsPending returns true if the transaction awaits gateway confirmation
func (t *PaymentTransaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}

// IsSuccess returns true if the payment was confirmed
func (t *PaymentTransaction) IsSuccess() bool {
	return t.Status == TransactionStatusSuccess
}

// GetAmountMoney returns the transaction amount as Money
func (t *PaymentTransaction) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(t.Amount)
}
