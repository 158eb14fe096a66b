package fees

import (
	"context"

	"github.com/schoolerp/backend/internal/domain/fees"
)

// Repositories bundles the fee repositories participating in one atomic unit
type Repositories struct {
	Templates          fees.FeeTemplateRepository
	Records            fees.FeeRecordRepository
	Transactions       fees.TransactionRepository
	ReconciliationLogs fees.ReconciliationLogRepository
}

// TransactionScope executes a function within a database transaction.
// Every repository call inside fn sees the same transaction; the unit
// commits when fn returns nil and rolls back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// NoOpTransactionScope runs the function against the supplied repositories
// without transactional semantics. Used in tests.
type NoOpTransactionScope struct {
	Repos Repositories
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return fn(ctx, s.Repos)
}
