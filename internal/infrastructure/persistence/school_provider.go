package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSchoolProvider enumerates schools for background jobs. A school is
// active for scheduling purposes when it has at least one fee record.
type GormSchoolProvider struct {
	db *gorm.DB
}

// NewGormSchoolProvider creates a new school provider
func NewGormSchoolProvider(db *gorm.DB) *GormSchoolProvider {
	return &GormSchoolProvider{db: db}
}

// GetActiveSchoolIDs returns the distinct school IDs present in the fee ledger
func (p *GormSchoolProvider) GetActiveSchoolIDs(ctx context.Context) ([]uuid.UUID, error) {
	var schoolIDs []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("fee_records").
		Distinct("school_id").
		Pluck("school_id", &schoolIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active schools: %w", err)
	}
	return schoolIDs, nil
}
