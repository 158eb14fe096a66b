package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a payment transaction by ID for a school
func (r *GormTransactionRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND id = ?", schoolID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByGatewayOrderID finds the transaction bound to a gateway order.
// Order ids are issued by the gateway and globally unique, so this lookup is
// not school-scoped; callers verify the school on the result.
func (r *GormTransactionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*fees.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByGatewayPaymentID finds the transaction confirmed by a gateway payment
func (r *GormTransactionRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*fees.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFeeRecord returns all transactions against one fee record, newest first
func (r *GormTransactionRepository) FindByFeeRecord(ctx context.Context, schoolID, feeRecordID uuid.UUID) ([]*fees.PaymentTransaction, error) {
	var txModels []models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND fee_record_id = ?", schoolID, feeRecordID).
		Order("created_at DESC").
		Find(&txModels).Error; err != nil {
		return nil, err
	}
	return toDomainTransactions(txModels), nil
}

// FindAll finds all transactions for a school with filtering
func (r *GormTransactionRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter fees.TransactionFilter) ([]*fees.PaymentTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentTransactionModel{}).
		Where("school_id = ?", schoolID)
	query = r.applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txModels []models.PaymentTransactionModel
	if err := applyPagination(query, filter.Page, filter.PageSize, orderClause(filter.Filter)).
		Find(&txModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainTransactions(txModels), total, nil
}

// FindStalePending returns gateway transactions still pending after the cutoff
func (r *GormTransactionRepository) FindStalePending(ctx context.Context, schoolID uuid.UUID, olderThan time.Time, limit int) ([]*fees.PaymentTransaction, error) {
	var txModels []models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND status = ? AND gateway_order_id != '' AND created_at < ?",
			schoolID, fees.TransactionStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&txModels).Error; err != nil {
		return nil, err
	}
	return toDomainTransactions(txModels), nil
}

// Save creates or updates a payment transaction. A duplicate receipt
// number means a concurrent writer claimed it between generation and
// insert; the unique index keeps numbering intact, and the error surfaces
// as a conflict so the caller's retry regenerates the number.
func (r *GormTransactionRepository) Save(ctx context.Context, tx *fees.PaymentTransaction) error {
	model := models.PaymentTransactionModelFromDomain(tx)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// SaveWithLock persists the transaction only if its version column still
// matches the expected version
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, tx *fees.PaymentTransaction, expectedVersion int) error {
	model := models.PaymentTransactionModelFromDomain(tx)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", tx.ID, expectedVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GenerateReceiptNumber generates the next receipt number for the school.
// Format: RC-YYYYMMDD-NNNNN
func (r *GormTransactionRepository) GenerateReceiptNumber(ctx context.Context, schoolID uuid.UUID) (string, error) {
	prefix := fmt.Sprintf("RC-%s-", time.Now().Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentTransactionModel{}).
		Select("receipt_number").
		Where("school_id = ? AND receipt_number LIKE ?", schoolID, prefix+"%").
		Order("receipt_number DESC").
		Limit(1).
		Pluck("receipt_number", &maxNumber).Error; err != nil {
		return "", err
	}

	return prefix + nextSequence(maxNumber), nil
}

// applyFilter applies transaction filter options to the query
func (r *GormTransactionRepository) applyFilter(query *gorm.DB, filter fees.TransactionFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("receipt_number ILIKE ? OR gateway_order_id ILIKE ?",
			"%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.FeeRecordID != nil {
		query = query.Where("fee_record_id = ?", *filter.FeeRecordID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Mode != nil {
		query = query.Where("details->>'mode' = ?", filter.Mode.String())
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

func toDomainTransactions(txModels []models.PaymentTransactionModel) []*fees.PaymentTransaction {
	txs := make([]*fees.PaymentTransaction, len(txModels))
	for i := range txModels {
		txs[i] = txModels[i].ToDomain()
	}
	return txs
}

// Ensure GormTransactionRepository implements TransactionRepository
var _ fees.TransactionRepository = (*GormTransactionRepository)(nil)
