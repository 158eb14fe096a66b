package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// sweepBatchSize bounds how many records one sweep iteration loads
const sweepBatchSize = 200

// LateFeeService applies the school's late-fine policy to overdue records.
// The sweep is idempotent: each record tracks the period it was last fined
// for, so re-running within the same period changes nothing.
type LateFeeService struct {
	recordRepo fees.FeeRecordRepository
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewLateFeeService creates a new LateFeeService
func NewLateFeeService(recordRepo fees.FeeRecordRepository, publisher shared.EventPublisher, logger *zap.Logger) *LateFeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LateFeeService{
		recordRepo: recordRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

// SweepRequest carries the input for one late-fee sweep run
type SweepRequest struct {
	SchoolID uuid.UUID
	Policy   fees.LateFinePolicy
	// AsOf is the run time; zero means now
	AsOf time.Time
}

// SweepResult summarizes one sweep run
type SweepResult struct {
	Period   string
	Examined int
	Fined    int
	Skipped  int
}

// RunSweep fines every overdue record that has not yet been fined for the
// run's period. Records that lose an optimistic-lock race are skipped;
// the next run picks them up.
func (s *LateFeeService) RunSweep(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	if req.SchoolID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCHOOL", "School ID cannot be empty")
	}
	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	period := fees.FinePeriod(asOf)

	result := &SweepResult{Period: period}

	for {
		batch, err := s.recordRepo.FindDueForFine(ctx, req.SchoolID, asOf, period, sweepBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load overdue records: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, record := range batch {
			result.Examined++
			if err := s.fineRecord(ctx, record, req.Policy, period); err != nil {
				result.Skipped++
				s.logger.Warn("Skipped overdue record in sweep",
					zap.String("record_number", record.RecordNumber),
					zap.Error(err))
				continue
			}
			result.Fined++
		}

		if len(batch) < sweepBatchSize {
			break
		}
	}

	s.logger.Info("Late-fee sweep completed",
		zap.String("school_id", req.SchoolID.String()),
		zap.String("period", period),
		zap.Int("examined", result.Examined),
		zap.Int("fined", result.Fined),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

func (s *LateFeeService) fineRecord(ctx context.Context, record *fees.FeeRecord, policy fees.LateFinePolicy, period string) error {
	fine := policy.FineFor(record)
	version := record.GetVersion()

	if err := record.ApplyLateFine(fine, period); err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "FINE_ALREADY_APPLIED" {
			// Raced with a concurrent run that fined the record first
			return nil
		}
		return err
	}

	if err := s.recordRepo.SaveWithLock(ctx, record, version); err != nil {
		return err
	}

	s.publishEvents(ctx, record.GetDomainEvents())
	record.ClearDomainEvents()

	return nil
}

func (s *LateFeeService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
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
