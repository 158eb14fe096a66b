package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerFixture struct {
	templateRepo *MockFeeTemplateRepository
	recordRepo   *MockFeeRecordRepository
	txRepo       *MockTransactionRepository
	directory    *MockStudentDirectory
	service      *LedgerService
}

func newLedgerFixture() *ledgerFixture {
	templateRepo := &MockFeeTemplateRepository{}
	recordRepo := &MockFeeRecordRepository{}
	txRepo := &MockTransactionRepository{}
	directory := &MockStudentDirectory{}

	service := NewLedgerService(templateRepo, recordRepo, directory,
		&NoOpTransactionScope{Repos: Repositories{
			Templates:    templateRepo,
			Records:      recordRepo,
			Transactions: txRepo,
		}}, nil, nil)

	return &ledgerFixture{
		templateRepo: templateRepo,
		recordRepo:   recordRepo,
		txRepo:       txRepo,
		directory:    directory,
		service:      service,
	}
}

func buildTemplate(t *testing.T, schoolID uuid.UUID) *fees.FeeTemplate {
	t.Helper()
	tmpl, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", fees.FeeTemplateItems{
		{Name: "Tuition", Amount: decimal.NewFromInt(5000)},
		{Name: "Transport", Amount: decimal.NewFromInt(500)},
	})
	require.NoError(t, err)
	return tmpl
}

func TestAssign(t *testing.T) {
	schoolID := uuid.New()
	studentID := uuid.New()
	clerk := uuid.New()
	dueDate := time.Now().AddDate(0, 1, 0)

	t.Run("assigns a demand from the template snapshot", func(t *testing.T) {
		f := newLedgerFixture()
		tmpl := buildTemplate(t, schoolID)
		classID := uuid.New()

		f.directory.On("Lookup", mock.Anything, schoolID, studentID).
			Return(&fees.StudentRef{ID: studentID, ClassID: &classID, Name: "A. Student"}, nil)
		f.templateRepo.On("FindByID", mock.Anything, schoolID, tmpl.ID).Return(tmpl, nil)
		f.recordRepo.On("GenerateRecordNumber", mock.Anything, schoolID).Return("FR-20250601-00001", nil)
		f.recordRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		record, err := f.service.Assign(context.Background(), AssignRequest{
			SchoolID:   schoolID,
			StudentID:  studentID,
			TemplateID: tmpl.ID,
			DueDate:    dueDate,
			Discount:   decimal.Zero,
			CreatedBy:  clerk,
		})

		require.NoError(t, err)
		assert.Equal(t, "FR-20250601-00001", record.RecordNumber)
		assert.Equal(t, "5500", record.Amount.String())
		assert.Equal(t, fees.FeeRecordStatusPending, record.Status)
		assert.Equal(t, &classID, record.ClassID)
	})

	t.Run("unknown student is rejected", func(t *testing.T) {
		f := newLedgerFixture()
		f.directory.On("Lookup", mock.Anything, schoolID, studentID).Return(nil, shared.ErrNotFound)

		_, err := f.service.Assign(context.Background(), AssignRequest{
			SchoolID:   schoolID,
			StudentID:  studentID,
			TemplateID: uuid.New(),
			DueDate:    dueDate,
		})

		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.recordRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unknown template is rejected", func(t *testing.T) {
		f := newLedgerFixture()
		templateID := uuid.New()
		f.directory.On("Lookup", mock.Anything, schoolID, studentID).
			Return(&fees.StudentRef{ID: studentID}, nil)
		f.templateRepo.On("FindByID", mock.Anything, schoolID, templateID).Return(nil, nil)

		_, err := f.service.Assign(context.Background(), AssignRequest{
			SchoolID:   schoolID,
			StudentID:  studentID,
			TemplateID: templateID,
			DueDate:    dueDate,
		})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestAssignAndCollect(t *testing.T) {
	schoolID := uuid.New()
	studentID := uuid.New()
	clerk := uuid.New()
	dueDate := time.Now().AddDate(0, 1, 0)

	setup := func(f *ledgerFixture, tmpl *fees.FeeTemplate) {
		f.directory.On("Lookup", mock.Anything, schoolID, studentID).
			Return(&fees.StudentRef{ID: studentID, Name: "A. Student"}, nil)
		f.templateRepo.On("FindByID", mock.Anything, schoolID, tmpl.ID).Return(tmpl, nil)
		f.recordRepo.On("GenerateRecordNumber", mock.Anything, schoolID).Return("FR-20250601-00002", nil)
	}

	t.Run("creates record and first payment together", func(t *testing.T) {
		f := newLedgerFixture()
		tmpl := buildTemplate(t, schoolID)
		setup(f, tmpl)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00001", nil)
		f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.recordRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.AssignAndCollect(context.Background(), AssignAndCollectRequest{
			AssignRequest: AssignRequest{
				SchoolID:   schoolID,
				StudentID:  studentID,
				TemplateID: tmpl.ID,
				DueDate:    dueDate,
				CreatedBy:  clerk,
			},
			Payment: &CollectInput{
				Amount:  valueobject.NewMoneyINRFromFloat(3000),
				Details: fees.NewCashDetails(),
			},
		})

		require.NoError(t, err)
		require.NotNil(t, result.Transaction)
		assert.Equal(t, fees.TransactionStatusSuccess, result.Transaction.Status)
		assert.Equal(t, "3000", result.Record.AmountPaid.String())
		assert.Equal(t, fees.FeeRecordStatusPartial, result.Record.Status)
		assert.Equal(t, result.Record.ID, result.Transaction.FeeRecordID)
	})

	t.Run("payment beyond template total aborts both writes", func(t *testing.T) {
		f := newLedgerFixture()
		tmpl := buildTemplate(t, schoolID)
		setup(f, tmpl)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00002", nil)

		_, err := f.service.AssignAndCollect(context.Background(), AssignAndCollectRequest{
			AssignRequest: AssignRequest{
				SchoolID:   schoolID,
				StudentID:  studentID,
				TemplateID: tmpl.ID,
				DueDate:    dueDate,
				CreatedBy:  clerk,
			},
			Payment: &CollectInput{
				Amount:  valueobject.NewMoneyINRFromFloat(6000),
				Details: fees.NewCashDetails(),
			},
		})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "BALANCE_EXCEEDED", domainErr.Code)
		f.recordRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		f.txRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("full immediate payment marks the record paid", func(t *testing.T) {
		f := newLedgerFixture()
		tmpl := buildTemplate(t, schoolID)
		setup(f, tmpl)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00003", nil)
		f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.recordRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.AssignAndCollect(context.Background(), AssignAndCollectRequest{
			AssignRequest: AssignRequest{
				SchoolID:   schoolID,
				StudentID:  studentID,
				TemplateID: tmpl.ID,
				DueDate:    dueDate,
				CreatedBy:  clerk,
			},
			Payment: &CollectInput{
				Amount:  valueobject.NewMoneyINRFromFloat(5500),
				Details: fees.NewReferenceDetails(fees.PaymentModeUPI, "UPI123"),
			},
		})

		require.NoError(t, err)
		assert.Equal(t, fees.FeeRecordStatusPaid, result.Record.Status)
		assert.True(t, result.Record.BalanceDue.IsZero())
	})
}
