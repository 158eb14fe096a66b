package fees

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
)

// FeeRecordFilter narrows fee record queries
type FeeRecordFilter struct {
	shared.Filter
	StudentID  *uuid.UUID
	ClassID    *uuid.UUID
	TemplateID *uuid.UUID
	Status     *FeeRecordStatus
	// OverdueOnly limits results to records with an outstanding balance past
	// their due date
	OverdueOnly bool
}

// TransactionFilter narrows transaction queries
type TransactionFilter struct {
	shared.Filter
	StudentID   *uuid.UUID
	FeeRecordID *uuid.UUID
	Status      *TransactionStatus
	Mode        *PaymentMode
	From        *time.Time
	To          *time.Time
}

// FeeTemplateRepository persists fee templates
type FeeTemplateRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*FeeTemplate, error)
	FindAll(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*FeeTemplate, int64, error)
	Save(ctx context.Context, template *FeeTemplate) error
	Delete(ctx context.Context, schoolID, id uuid.UUID) error
}

// FeeRecordRepository persists fee records.
// All mutating callers go through SaveWithLock so concurrent writers to the
// same record cannot both commit against a stale balance.
type FeeRecordRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*FeeRecord, error)
	FindAll(ctx context.Context, schoolID uuid.UUID, filter FeeRecordFilter) ([]*FeeRecord, int64, error)
	// FindDueForFine returns records overdue as of the given time, with an
	// outstanding balance, whose late fine has not been applied for the
	// given period.
	FindDueForFine(ctx context.Context, schoolID uuid.UUID, asOf time.Time, period string, limit int) ([]*FeeRecord, error)
	// CountByTemplate reports how many records reference a template; used to
	// freeze templates once assigned.
	CountByTemplate(ctx context.Context, schoolID, templateID uuid.UUID) (int64, error)
	Save(ctx context.Context, record *FeeRecord) error
	// SaveWithLock persists the record only if its version column still
	// matches; returns a CONCURRENCY_CONFLICT domain error otherwise.
	SaveWithLock(ctx context.Context, record *FeeRecord, expectedVersion int) error
	// GenerateRecordNumber produces the next record number for the school
	GenerateRecordNumber(ctx context.Context, schoolID uuid.UUID) (string, error)
}

// TransactionRepository persists payment transactions
type TransactionRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*PaymentTransaction, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*PaymentTransaction, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*PaymentTransaction, error)
	FindByFeeRecord(ctx context.Context, schoolID, feeRecordID uuid.UUID) ([]*PaymentTransaction, error)
	FindAll(ctx context.Context, schoolID uuid.UUID, filter TransactionFilter) ([]*PaymentTransaction, int64, error)
	// FindStalePending returns gateway transactions still pending after the
	// given cutoff; these are the reconciliation run's candidates.
	FindStalePending(ctx context.Context, schoolID uuid.UUID, olderThan time.Time, limit int) ([]*PaymentTransaction, error)
	Save(ctx context.Context, tx *PaymentTransaction) error
	SaveWithLock(ctx context.Context, tx *PaymentTransaction, expectedVersion int) error
	// GenerateReceiptNumber produces the next receipt number for the school
	GenerateReceiptNumber(ctx context.Context, schoolID uuid.UUID) (string, error)
}

// ReconciliationLogRepository persists the append-only reconciliation audit trail
type ReconciliationLogRepository interface {
	Append(ctx context.Context, entry *ReconciliationLog) error
	FindByTransaction(ctx context.Context, schoolID, transactionID uuid.UUID) ([]*ReconciliationLog, error)
	FindRecent(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*ReconciliationLog, int64, error)
}

// StudentRef is the directory's view of a student, enough to validate an
// assignment and label a receipt.
type StudentRef struct {
	ID      uuid.UUID
	ClassID *uuid.UUID
	Name    string
}

// StudentDirectory is the boundary to the student/class directory owned by
// the rest of the SaaS. The ledger only validates references through it.
type StudentDirectory interface {
	// Lookup returns the student for the school, or a NOT_FOUND domain
	// error when the student does not exist or belongs to another school.
	Lookup(ctx context.Context, schoolID, studentID uuid.UUID) (*StudentRef, error)
}
