package persistence

import (
	"context"

	appfees "github.com/schoolerp/backend/internal/application/fees"
	"gorm.io/gorm"
)

// GormTransactionScope implements the application TransactionScope using
// GORM transactions. Every repository handed to the callback is bound to the
// same database transaction, so the unit commits or rolls back as a whole.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos appfees.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := appfees.Repositories{
			Templates:          NewGormFeeTemplateRepository(tx),
			Records:            NewGormFeeRecordRepository(tx),
			Transactions:       NewGormTransactionRepository(tx),
			ReconciliationLogs: NewGormReconciliationLogRepository(tx),
		}
		return fn(ctx, repos)
	})
}

// Ensure GormTransactionScope implements TransactionScope
var _ appfees.TransactionScope = (*GormTransactionScope)(nil)
