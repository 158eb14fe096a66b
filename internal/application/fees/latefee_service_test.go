package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func buildOverdueRecord(t *testing.T, schoolID uuid.UUID) *fees.FeeRecord {
	t.Helper()
	tmpl, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", fees.FeeTemplateItems{
		{Name: "Tuition", Amount: decimal.NewFromInt(5000)},
	})
	require.NoError(t, err)
	record, err := fees.NewFeeRecord(schoolID, "FR-20250601-00001", uuid.New(), nil, tmpl,
		time.Now().AddDate(0, 0, -10), decimal.Zero)
	require.NoError(t, err)
	return record
}

func TestRunSweep(t *testing.T) {
	schoolID := uuid.New()
	flatPolicy := fees.LateFinePolicy{Type: fees.LateFinePolicyFlat, Amount: decimal.NewFromInt(100)}

	t.Run("fines each overdue record once", func(t *testing.T) {
		recordRepo := &MockFeeRecordRepository{}
		service := NewLateFeeService(recordRepo, nil, nil)

		first := buildOverdueRecord(t, schoolID)
		second := buildOverdueRecord(t, schoolID)
		period := fees.FinePeriod(time.Now())

		recordRepo.On("FindDueForFine", mock.Anything, schoolID, mock.Anything, period, sweepBatchSize).
			Return([]*fees.FeeRecord{first, second}, nil).Once()
		recordRepo.On("SaveWithLock", mock.Anything, first, 1).Return(nil)
		recordRepo.On("SaveWithLock", mock.Anything, second, 1).Return(nil)

		result, err := service.RunSweep(context.Background(), SweepRequest{
			SchoolID: schoolID,
			Policy:   flatPolicy,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, result.Examined)
		assert.Equal(t, 2, result.Fined)
		assert.Equal(t, "100", first.LateFine.String())
		assert.Equal(t, "5100", first.BalanceDue.String())
		assert.Equal(t, period, first.LastFinePeriod)
		assert.Equal(t, fees.FeeRecordStatusLate, first.Status)
	})

	t.Run("rerun in the same period changes nothing", func(t *testing.T) {
		recordRepo := &MockFeeRecordRepository{}
		service := NewLateFeeService(recordRepo, nil, nil)

		// The repository query excludes already-fined records, so the
		// second run sees an empty batch.
		recordRepo.On("FindDueForFine", mock.Anything, schoolID, mock.Anything, mock.Anything, sweepBatchSize).
			Return([]*fees.FeeRecord{}, nil)

		result, err := service.RunSweep(context.Background(), SweepRequest{
			SchoolID: schoolID,
			Policy:   flatPolicy,
		})

		require.NoError(t, err)
		assert.Equal(t, 0, result.Fined)
		recordRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("percent policy fines a share of the balance", func(t *testing.T) {
		recordRepo := &MockFeeRecordRepository{}
		service := NewLateFeeService(recordRepo, nil, nil)

		record := buildOverdueRecord(t, schoolID)
		recordRepo.On("FindDueForFine", mock.Anything, schoolID, mock.Anything, mock.Anything, sweepBatchSize).
			Return([]*fees.FeeRecord{record}, nil).Once()
		recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(nil)

		_, err := service.RunSweep(context.Background(), SweepRequest{
			SchoolID: schoolID,
			Policy:   fees.LateFinePolicy{Type: fees.LateFinePolicyPercent, Percent: decimal.NewFromInt(2)},
		})

		require.NoError(t, err)
		assert.Equal(t, "100", record.LateFine.String()) // 2% of 5000
	})

	t.Run("lock conflict skips the record for the next run", func(t *testing.T) {
		recordRepo := &MockFeeRecordRepository{}
		service := NewLateFeeService(recordRepo, nil, nil)

		record := buildOverdueRecord(t, schoolID)
		recordRepo.On("FindDueForFine", mock.Anything, schoolID, mock.Anything, mock.Anything, sweepBatchSize).
			Return([]*fees.FeeRecord{record}, nil).Once()
		recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(shared.ErrConcurrencyConflict)

		result, err := service.RunSweep(context.Background(), SweepRequest{
			SchoolID: schoolID,
			Policy:   flatPolicy,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, result.Fined)
	})

	t.Run("invalid policy is rejected", func(t *testing.T) {
		service := NewLateFeeService(&MockFeeRecordRepository{}, nil, nil)

		_, err := service.RunSweep(context.Background(), SweepRequest{
			SchoolID: schoolID,
			Policy:   fees.LateFinePolicy{Type: fees.LateFinePolicyFlat, Amount: decimal.Zero},
		})

		assert.Error(t, err)
	})
}
