package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Receipt is the immutable, receipt-ready view of a confirmed payment.
// It is built entirely from the snapshot persisted at collection time, so
// later edits to the template or record never change an issued receipt.
type Receipt struct {
	ReceiptNumber string                `json:"receipt_number"`
	TransactionID uuid.UUID             `json:"transaction_id"`
	RecordNumber  string                `json:"record_number"`
	StudentID     uuid.UUID             `json:"student_id"`
	TemplateName  string                `json:"template_name"`
	Items         fees.FeeTemplateItems `json:"items"`
	Amount        decimal.Decimal       `json:"amount"`
	Discount      decimal.Decimal       `json:"discount"`
	LateFine      decimal.Decimal       `json:"late_fine"`
	NetPayable    decimal.Decimal       `json:"net_payable"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	TotalPaid     decimal.Decimal       `json:"total_paid"`
	BalanceAfter  decimal.Decimal       `json:"balance_after"`
	Mode          string                `json:"mode"`
	Details       fees.PaymentDetails   `json:"details"`
	CollectedBy   *uuid.UUID            `json:"collected_by"`
	PaidAt        *time.Time            `json:"paid_at"`
}

// ReceiptService renders receipts for confirmed transactions
type ReceiptService struct {
	txRepo fees.TransactionRepository
	logger *zap.Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(txRepo fees.TransactionRepository, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{txRepo: txRepo, logger: logger}
}

// GetReceipt returns the receipt for a confirmed transaction.
// Pending and failed transactions have no receipt.
func (s *ReceiptService) GetReceipt(ctx context.Context, schoolID, transactionID uuid.UUID) (*Receipt, error) {
	tx, err := s.txRepo.FindByID(ctx, schoolID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	if tx == nil {
		return nil, shared.ErrNotFound
	}
	if !tx.IsSuccess() {
		return nil, shared.NewDomainError("NO_RECEIPT",
			fmt.Sprintf("No receipt for a transaction in %s status", tx.Status))
	}

	return &Receipt{
		ReceiptNumber: tx.ReceiptNumber,
		TransactionID: tx.ID,
		RecordNumber:  tx.Receipt.RecordNumber,
		StudentID:     tx.StudentID,
		TemplateName:  tx.Receipt.TemplateName,
		Items:         tx.Receipt.Items,
		Amount:        tx.Receipt.Amount,
		Discount:      tx.Receipt.Discount,
		LateFine:      tx.Receipt.LateFine,
		NetPayable:    tx.Receipt.NetPayable,
		AmountPaid:    tx.Receipt.AmountPaid,
		TotalPaid:     tx.Receipt.TotalPaid,
		BalanceAfter:  tx.Receipt.BalanceAfter,
		Mode:          tx.Details.Mode.String(),
		Details:       tx.Details,
		CollectedBy:   tx.CollectedBy,
		PaidAt:        tx.PaidAt,
	}, nil
}

// GetTransaction returns one transaction by id
func (s *ReceiptService) GetTransaction(ctx context.Context, schoolID, transactionID uuid.UUID) (*fees.PaymentTransaction, error) {
	tx, err := s.txRepo.FindByID(ctx, schoolID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	if tx == nil {
		return nil, shared.ErrNotFound
	}
	return tx, nil
}

// ListTransactions returns the school's transactions matching the filter
func (s *ReceiptService) ListTransactions(ctx context.Context, schoolID uuid.UUID, filter fees.TransactionFilter) (shared.Paginated[*fees.PaymentTransaction], error) {
	txs, total, err := s.txRepo.FindAll(ctx, schoolID, filter)
	if err != nil {
		return shared.Paginated[*fees.PaymentTransaction]{}, fmt.Errorf("failed to list transactions: %w", err)
	}
	return shared.NewPaginated(txs, total, filter.Page, filter.PageSize), nil
}
