package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFeeRecordRepository implements FeeRecordRepository using GORM
type GormFeeRecordRepository struct {
	db *gorm.DB
}

// NewGormFeeRecordRepository creates a new GormFeeRecordRepository
func NewGormFeeRecordRepository(db *gorm.DB) *GormFeeRecordRepository {
	return &GormFeeRecordRepository{db: db}
}

// FindByID finds a fee record by ID for a school
func (r *GormFeeRecordRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeRecord, error) {
	var model models.FeeRecordModel
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

// FindAll finds all fee records for a school with filtering
func (r *GormFeeRecordRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter fees.FeeRecordFilter) ([]*fees.FeeRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FeeRecordModel{}).
		Where("school_id = ?", schoolID)
	query = r.applyFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recordModels []models.FeeRecordModel
	if err := applyPagination(query, filter.Page, filter.PageSize, orderClause(filter.Filter)).
		Find(&recordModels).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*fees.FeeRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records, total, nil
}

// FindDueForFine returns records overdue as of the given time, with an
// outstanding balance, whose late fine has not been applied for the given
// period. Results are ordered by due date so re-runs walk the same frontier.
func (r *GormFeeRecordRepository) FindDueForFine(ctx context.Context, schoolID uuid.UUID, asOf time.Time, period string, limit int) ([]*fees.FeeRecord, error) {
	var recordModels []models.FeeRecordModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND due_date < ? AND balance_due > ? AND last_fine_period != ? AND status != ?",
			schoolID, asOf, valueobject.PaymentTolerance, period, fees.FeeRecordStatusPaid).
		Order("due_date ASC").
		Limit(limit).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]*fees.FeeRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records, nil
}

// CountByTemplate reports how many records reference a template
func (r *GormFeeRecordRepository) CountByTemplate(ctx context.Context, schoolID, templateID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FeeRecordModel{}).
		Where("school_id = ? AND template_id = ?", schoolID, templateID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a fee record
func (r *GormFeeRecordRepository) Save(ctx context.Context, record *fees.FeeRecord) error {
	model := models.FeeRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock persists the record only if its version column still matches
// the expected version. Zero rows affected means another writer got there
// first.
func (r *GormFeeRecordRepository) SaveWithLock(ctx context.Context, record *fees.FeeRecord, expectedVersion int) error {
	model := models.FeeRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
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

// GenerateRecordNumber generates the next record number for the school.
// Format: FR-YYYYMMDD-NNNNN
func (r *GormFeeRecordRepository) GenerateRecordNumber(ctx context.Context, schoolID uuid.UUID) (string, error) {
	prefix := fmt.Sprintf("FR-%s-", time.Now().Format("20060102"))

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.FeeRecordModel{}).
		Select("record_number").
		Where("school_id = ? AND record_number LIKE ?", schoolID, prefix+"%").
		Order("record_number DESC").
		Limit(1).
		Pluck("record_number", &maxNumber).Error; err != nil {
		return "", err
	}

	return prefix + nextSequence(maxNumber), nil
}

// nextSequence extracts the numeric suffix of the highest document number
// seen today and formats its successor.
func nextSequence(maxNumber string) string {
	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			fmt.Sscanf(parts[2], "%d", &nextNum)
		}
	}
	nextNum++
	return fmt.Sprintf("%05d", nextNum)
}

// applyFilter applies fee record filter options to the query
func (r *GormFeeRecordRepository) applyFilter(query *gorm.DB, filter fees.FeeRecordFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("record_number ILIKE ? OR template_name ILIKE ?",
			"%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.OverdueOnly {
		query = query.Where("due_date < ? AND balance_due > ?", time.Now(), valueobject.PaymentTolerance)
	}
	return query
}

// Ensure GormFeeRecordRepository implements FeeRecordRepository
var _ fees.FeeRecordRepository = (*GormFeeRecordRepository)(nil)
