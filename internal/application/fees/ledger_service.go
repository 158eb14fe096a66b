package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService creates and queries fee records (demands)
type LedgerService struct {
	templateRepo fees.FeeTemplateRepository
	recordRepo   fees.FeeRecordRepository
	directory    fees.StudentDirectory
	scope        TransactionScope
	publisher    shared.EventPublisher
	logger       *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	templateRepo fees.FeeTemplateRepository,
	recordRepo fees.FeeRecordRepository,
	directory fees.StudentDirectory,
	scope TransactionScope,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		templateRepo: templateRepo,
		recordRepo:   recordRepo,
		directory:    directory,
		scope:        scope,
		publisher:    publisher,
		logger:       logger,
	}
}

// AssignRequest carries the input for a fee assignment
type AssignRequest struct {
	SchoolID   uuid.UUID
	StudentID  uuid.UUID
	TemplateID uuid.UUID
	DueDate    time.Time
	Discount   decimal.Decimal
	CreatedBy  uuid.UUID
}

// CollectInput is the optional immediate payment on assign-and-collect
type CollectInput struct {
	Amount  valueobject.Money
	Details fees.PaymentDetails
}

// AssignAndCollectRequest carries the input for the atomic
// assign-plus-first-payment flow
type AssignAndCollectRequest struct {
	AssignRequest
	Payment *CollectInput
}

// AssignAndCollectResult is the outcome of an assign or assign-and-collect
type AssignAndCollectResult struct {
	Record      *fees.FeeRecord
	Transaction *fees.PaymentTransaction
}

// Assign creates a fee record for a student from a template
func (s *LedgerService) Assign(ctx context.Context, req AssignRequest) (*fees.FeeRecord, error) {
	result, err := s.AssignAndCollect(ctx, AssignAndCollectRequest{AssignRequest: req})
	if err != nil {
		return nil, err
	}
	return result.Record, nil
}

// AssignAndCollect creates a fee record and, when a payment is supplied,
// records the first transaction in the same database transaction. Both
// writes commit or both roll back.
func (s *LedgerService) AssignAndCollect(ctx context.Context, req AssignAndCollectRequest) (*AssignAndCollectResult, error) {
	student, err := s.directory.Lookup(ctx, req.SchoolID, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve student: %w", err)
	}

	template, err := s.templateRepo.FindByID(ctx, req.SchoolID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	if template == nil {
		return nil, shared.ErrNotFound
	}

	var result AssignAndCollectResult
	err = s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
		recordNumber, err := repos.Records.GenerateRecordNumber(ctx, req.SchoolID)
		if err != nil {
			return fmt.Errorf("failed to generate record number: %w", err)
		}

		record, err := fees.NewFeeRecord(req.SchoolID, recordNumber, student.ID, student.ClassID,
			template, req.DueDate, req.Discount)
		if err != nil {
			return err
		}
		if req.CreatedBy != uuid.Nil {
			record.SetCreatedBy(req.CreatedBy)
		}

		if req.Payment != nil {
			receiptNumber, err := repos.Transactions.GenerateReceiptNumber(ctx, req.SchoolID)
			if err != nil {
				return fmt.Errorf("failed to generate receipt number: %w", err)
			}

			tx, err := fees.NewManualTransaction(req.SchoolID, receiptNumber, record,
				req.Payment.Amount, req.Payment.Details, req.CreatedBy)
			if err != nil {
				return err
			}

			if err := record.ApplyPayment(req.Payment.Amount); err != nil {
				return err
			}
			tx.AttachReceipt(fees.SnapshotAfterPayment(record, req.Payment.Amount))

			if err := repos.Transactions.Save(ctx, tx); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}
			result.Transaction = tx
		}

		if err := repos.Records.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save fee record: %w", err)
		}
		result.Record = record

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, result.Record.GetDomainEvents())
	result.Record.ClearDomainEvents()
	if result.Transaction != nil {
		s.publishEvents(ctx, result.Transaction.GetDomainEvents())
		result.Transaction.ClearDomainEvents()
	}

	s.logger.Info("Fee record assigned",
		zap.String("record_number", result.Record.RecordNumber),
		zap.String("school_id", req.SchoolID.String()),
		zap.String("student_id", student.ID.String()),
		zap.String("amount", result.Record.Amount.String()),
		zap.Bool("collected", result.Transaction != nil))

	return &result, nil
}

// GetRecord returns one fee record by id
func (s *LedgerService) GetRecord(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeRecord, error) {
	record, err := s.recordRepo.FindByID(ctx, schoolID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find fee record: %w", err)
	}
	if record == nil {
		return nil, shared.ErrNotFound
	}
	return record, nil
}

// ListRecords returns the school's fee records matching the filter
func (s *LedgerService) ListRecords(ctx context.Context, schoolID uuid.UUID, filter fees.FeeRecordFilter) (shared.Paginated[*fees.FeeRecord], error) {
	records, total, err := s.recordRepo.FindAll(ctx, schoolID, filter)
	if err != nil {
		return shared.Paginated[*fees.FeeRecord]{}, fmt.Errorf("failed to list fee records: %w", err)
	}
	return shared.NewPaginated(records, total, filter.Page, filter.PageSize), nil
}

func (s *LedgerService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}
