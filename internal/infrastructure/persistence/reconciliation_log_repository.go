package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReconciliationLogRepository implements ReconciliationLogRepository
// using GORM. The log is append-only; entries are never updated or deleted.
type GormReconciliationLogRepository struct {
	db *gorm.DB
}

// NewGormReconciliationLogRepository creates a new GormReconciliationLogRepository
func NewGormReconciliationLogRepository(db *gorm.DB) *GormReconciliationLogRepository {
	return &GormReconciliationLogRepository{db: db}
}

// Append inserts a new reconciliation audit entry
func (r *GormReconciliationLogRepository) Append(ctx context.Context, entry *fees.ReconciliationLog) error {
	model := models.ReconciliationLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByTransaction returns all entries touching one transaction, newest first
func (r *GormReconciliationLogRepository) FindByTransaction(ctx context.Context, schoolID, transactionID uuid.UUID) ([]*fees.ReconciliationLog, error) {
	var logModels []models.ReconciliationLogModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND transaction_id = ?", schoolID, transactionID).
		Order("run_at DESC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return toDomainLogs(logModels), nil
}

// FindRecent returns the school's reconciliation entries, newest first
func (r *GormReconciliationLogRepository) FindRecent(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*fees.ReconciliationLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReconciliationLogModel{}).
		Where("school_id = ?", schoolID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logModels []models.ReconciliationLogModel
	if err := applyPagination(query, filter.Page, filter.PageSize, "run_at DESC").
		Find(&logModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainLogs(logModels), total, nil
}

func toDomainLogs(logModels []models.ReconciliationLogModel) []*fees.ReconciliationLog {
	logs := make([]*fees.ReconciliationLog, len(logModels))
	for i := range logModels {
		logs[i] = logModels[i].ToDomain()
	}
	return logs
}

// Ensure GormReconciliationLogRepository implements ReconciliationLogRepository
var _ fees.ReconciliationLogRepository = (*GormReconciliationLogRepository)(nil)
