package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFeeTemplateRepository implements FeeTemplateRepository using GORM
type GormFeeTemplateRepository struct {
	db *gorm.DB
}

// NewGormFeeTemplateRepository creates a new GormFeeTemplateRepository
func NewGormFeeTemplateRepository(db *gorm.DB) *GormFeeTemplateRepository {
	return &GormFeeTemplateRepository{db: db}
}

// FindByID finds a fee template by ID for a school
func (r *GormFeeTemplateRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeTemplate, error) {
	var model models.FeeTemplateModel
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

// FindAll finds all fee templates for a school with filtering
func (r *GormFeeTemplateRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*fees.FeeTemplate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FeeTemplateModel{}).
		Where("school_id = ?", schoolID)

	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var templateModels []models.FeeTemplateModel
	if err := applyPagination(query, filter.Page, filter.PageSize, orderClause(filter)).
		Find(&templateModels).Error; err != nil {
		return nil, 0, err
	}

	templates := make([]*fees.FeeTemplate, len(templateModels))
	for i := range templateModels {
		templates[i] = templateModels[i].ToDomain()
	}
	return templates, total, nil
}

// Save creates or updates a fee template
func (r *GormFeeTemplateRepository) Save(ctx context.Context, template *fees.FeeTemplate) error {
	model := models.FeeTemplateModelFromDomain(template)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a fee template
func (r *GormFeeTemplateRepository) Delete(ctx context.Context, schoolID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.FeeTemplateModel{}, "school_id = ? AND id = ?", schoolID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// orderClause builds a safe ORDER BY clause from the filter
func orderClause(filter shared.Filter) string {
	column := "created_at"
	switch filter.OrderBy {
	case "name", "created_at", "updated_at", "due_date", "balance_due", "amount", "status":
		column = filter.OrderBy
	}
	dir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		dir = "ASC"
	}
	return column + " " + dir
}

// applyPagination applies paging and ordering to a query
func applyPagination(query *gorm.DB, page, pageSize int, order string) *gorm.DB {
	query = query.Order(order)
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	return query
}

// Ensure GormFeeTemplateRepository implements FeeTemplateRepository
var _ fees.FeeTemplateRepository = (*GormFeeTemplateRepository)(nil)
