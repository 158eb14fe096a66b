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

type collectionFixture struct {
	recordRepo *MockFeeRecordRepository
	txRepo     *MockTransactionRepository
	gateway    *MockPaymentGateway
	store      *memoryIdempotencyStore
	service    *CollectionService
}

func newCollectionFixture() *collectionFixture {
	recordRepo := &MockFeeRecordRepository{}
	txRepo := &MockTransactionRepository{}
	gateway := &MockPaymentGateway{}
	store := newMemoryIdempotencyStore()

	service := NewCollectionService(CollectionServiceConfig{
		RecordRepo:      recordRepo,
		TransactionRepo: txRepo,
		Gateway:         gateway,
		Scope: &NoOpTransactionScope{Repos: Repositories{
			Records:      recordRepo,
			Transactions: txRepo,
		}},
		IdempotencyStore: store,
		Idempotency:      shared.DefaultIdempotencyConfig(),
	})

	return &collectionFixture{
		recordRepo: recordRepo,
		txRepo:     txRepo,
		gateway:    gateway,
		store:      store,
		service:    service,
	}
}

func buildRecord(t *testing.T, schoolID uuid.UUID) *fees.FeeRecord {
	t.Helper()
	tmpl, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", fees.FeeTemplateItems{
		{Name: "Tuition", Amount: decimal.NewFromInt(5000)},
		{Name: "Transport", Amount: decimal.NewFromInt(500)},
	})
	require.NoError(t, err)
	record, err := fees.NewFeeRecord(schoolID, "FR-20250601-00001", uuid.New(), nil, tmpl,
		time.Now().AddDate(0, 1, 0), decimal.Zero)
	require.NoError(t, err)
	return record
}

func TestCollectManual(t *testing.T) {
	schoolID := uuid.New()
	clerk := uuid.New()

	t.Run("collects and updates the ledger atomically", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)

		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00001", nil)
		f.recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(nil)
		f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		tx, err := f.service.CollectManual(context.Background(), CollectManualRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(3000),
			Details:     fees.NewCashDetails(),
			CollectedBy: clerk,
		})

		require.NoError(t, err)
		assert.Equal(t, fees.TransactionStatusSuccess, tx.Status)
		assert.Equal(t, "RC-20250601-00001", tx.ReceiptNumber)
		assert.Equal(t, "3000", record.AmountPaid.String())
		assert.Equal(t, "2500", record.BalanceDue.String())
		assert.Equal(t, fees.FeeRecordStatusPartial, record.Status)
		assert.Equal(t, "2500", tx.Receipt.BalanceAfter.String())
		f.recordRepo.AssertExpectations(t)
		f.txRepo.AssertExpectations(t)
	})

	t.Run("rejects overpayment without touching the ledger", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)

		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00002", nil)

		_, err := f.service.CollectManual(context.Background(), CollectManualRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(6000),
			Details:     fees.NewCashDetails(),
			CollectedBy: clerk,
		})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "BALANCE_EXCEEDED", domainErr.Code)
		assert.True(t, record.AmountPaid.IsZero())
		f.recordRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
		f.txRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects missing mode fields", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)

		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00003", nil)

		_, err := f.service.CollectManual(context.Background(), CollectManualRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(100),
			Details:     fees.PaymentDetails{Mode: fees.PaymentModeCheque},
			CollectedBy: clerk,
		})

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "MISSING_PAYMENT_FIELD", domainErr.Code)
	})

	t.Run("retries after an optimistic lock conflict", func(t *testing.T) {
		f := newCollectionFixture()
		first := buildRecord(t, schoolID)
		second := buildRecord(t, schoolID)
		second.ID = first.ID

		f.recordRepo.On("FindByID", mock.Anything, schoolID, first.ID).Return(first, nil).Once()
		f.recordRepo.On("FindByID", mock.Anything, schoolID, first.ID).Return(second, nil).Once()
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00004", nil)
		f.recordRepo.On("SaveWithLock", mock.Anything, first, 1).Return(shared.ErrConcurrencyConflict).Once()
		f.recordRepo.On("SaveWithLock", mock.Anything, second, 1).Return(nil).Once()
		f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		tx, err := f.service.CollectManual(context.Background(), CollectManualRequest{
			SchoolID:    schoolID,
			FeeRecordID: first.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(1000),
			Details:     fees.NewCashDetails(),
			CollectedBy: clerk,
		})

		require.NoError(t, err)
		assert.Equal(t, fees.TransactionStatusSuccess, tx.Status)
		assert.Equal(t, "1000", second.AmountPaid.String())
		f.recordRepo.AssertExpectations(t)
	})

	t.Run("record not found", func(t *testing.T) {
		f := newCollectionFixture()
		missing := uuid.New()
		f.recordRepo.On("FindByID", mock.Anything, schoolID, missing).Return(nil, nil)

		_, err := f.service.CollectManual(context.Background(), CollectManualRequest{
			SchoolID:    schoolID,
			FeeRecordID: missing,
			Amount:      valueobject.NewMoneyINRFromFloat(100),
			Details:     fees.NewCashDetails(),
			CollectedBy: clerk,
		})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestCreateOrder(t *testing.T) {
	schoolID := uuid.New()

	t.Run("opens order and records pending transaction", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)

		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00005", nil)
		f.gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(&fees.CreateOrderResponse{
			GatewayOrderID: "order_ABC",
			Status:         fees.GatewayPaymentStatusCreated,
		}, nil)
		f.txRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.CreateOrder(context.Background(), CreateOrderRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(1000),
		})

		require.NoError(t, err)
		assert.Equal(t, "order_ABC", result.GatewayOrderID)
		assert.Equal(t, fees.TransactionStatusPending, result.Transaction.Status)
		// Ledger untouched until the gateway confirms
		assert.True(t, record.AmountPaid.IsZero())
	})

	t.Run("rejects order beyond outstanding balance", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)

		_, err := f.service.CreateOrder(context.Background(), CreateOrderRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(9999),
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "BALANCE_EXCEEDED", domainErr.Code)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("surfaces gateway failure without saving", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)

		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.txRepo.On("GenerateReceiptNumber", mock.Anything, schoolID).Return("RC-20250601-00006", nil)
		f.gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, fees.ErrGatewayRequestFailed)

		_, err := f.service.CreateOrder(context.Background(), CreateOrderRequest{
			SchoolID:    schoolID,
			FeeRecordID: record.ID,
			Amount:      valueobject.NewMoneyINRFromFloat(1000),
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "GATEWAY_ERROR", domainErr.Code)
		f.txRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestProcessWebhook(t *testing.T) {
	schoolID := uuid.New()
	payload := []byte(`{"event":"payment.captured"}`)
	signature := "sig"

	capturedEvent := func(tx *fees.PaymentTransaction) *fees.WebhookEvent {
		return &fees.WebhookEvent{
			EventType:        "payment.captured",
			GatewayOrderID:   tx.GatewayOrderID,
			GatewayPaymentID: "pay_123",
			Status:           fees.GatewayPaymentStatusCaptured,
			Amount:           tx.Amount,
			Currency:         "INR",
			PaidAt:           time.Now(),
		}
	}

	newPendingTx := func(t *testing.T, record *fees.FeeRecord) *fees.PaymentTransaction {
		t.Helper()
		tx, err := fees.NewGatewayTransaction(schoolID, "RC-20250601-00007", record,
			valueobject.NewMoneyINRFromFloat(1000), "order_XYZ")
		require.NoError(t, err)
		return tx
	}

	t.Run("captured payment confirms transaction and applies ledger", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		tx := newPendingTx(t, record)

		f.gateway.On("VerifyWebhook", payload, signature).Return(capturedEvent(tx), nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_XYZ").Return(tx, nil)
		f.txRepo.On("FindByID", mock.Anything, schoolID, tx.ID).Return(tx, nil)
		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(nil)
		f.txRepo.On("SaveWithLock", mock.Anything, tx, 1).Return(nil)

		result, err := f.service.ProcessWebhook(context.Background(), payload, signature)

		require.NoError(t, err)
		assert.False(t, result.AlreadyProcessed)
		assert.Equal(t, fees.TransactionStatusSuccess, result.Transaction.Status)
		assert.Equal(t, "pay_123", result.Transaction.GatewayPaymentID)
		assert.Equal(t, "1000", record.AmountPaid.String())
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		tx := newPendingTx(t, record)

		f.gateway.On("VerifyWebhook", payload, signature).Return(capturedEvent(tx), nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_XYZ").Return(tx, nil).Once()
		f.txRepo.On("FindByID", mock.Anything, schoolID, tx.ID).Return(tx, nil).Once()
		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil).Once()
		f.recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(nil).Once()
		f.txRepo.On("SaveWithLock", mock.Anything, tx, 1).Return(nil).Once()

		_, err := f.service.ProcessWebhook(context.Background(), payload, signature)
		require.NoError(t, err)
		paidAfterFirst := record.AmountPaid

		result, err := f.service.ProcessWebhook(context.Background(), payload, signature)
		require.NoError(t, err)
		assert.True(t, result.AlreadyProcessed)
		assert.True(t, record.AmountPaid.Equal(paidAfterFirst))
		f.txRepo.AssertExpectations(t)
	})

	t.Run("already confirmed transaction is left alone", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		tx := newPendingTx(t, record)
		require.NoError(t, tx.Confirm("pay_OLD", time.Now()))

		event := capturedEvent(tx)
		event.GatewayPaymentID = "pay_NEW"
		f.gateway.On("VerifyWebhook", payload, signature).Return(event, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_XYZ").Return(tx, nil)

		result, err := f.service.ProcessWebhook(context.Background(), payload, signature)

		require.NoError(t, err)
		assert.Equal(t, "pay_OLD", result.Transaction.GatewayPaymentID)
		f.recordRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed payment marks transaction failed without ledger effect", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		tx := newPendingTx(t, record)

		event := capturedEvent(tx)
		event.EventType = "payment.failed"
		event.Status = fees.GatewayPaymentStatusFailed
		event.ErrorReason = "card declined"

		f.gateway.On("VerifyWebhook", payload, signature).Return(event, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_XYZ").Return(tx, nil)
		f.txRepo.On("SaveWithLock", mock.Anything, tx, 1).Return(nil)

		result, err := f.service.ProcessWebhook(context.Background(), payload, signature)

		require.NoError(t, err)
		assert.Equal(t, fees.TransactionStatusFailed, result.Transaction.Status)
		assert.Equal(t, "card declined", result.Transaction.FailureReason)
		assert.True(t, record.AmountPaid.IsZero())
		f.recordRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		f := newCollectionFixture()
		f.gateway.On("VerifyWebhook", payload, "bad").Return(nil, fees.ErrGatewayBadSignature)

		_, err := f.service.ProcessWebhook(context.Background(), payload, "bad")

		assert.ErrorIs(t, err, ErrWebhookVerificationFailed)
	})

	t.Run("amount mismatch releases idempotency claim", func(t *testing.T) {
		f := newCollectionFixture()
		record := buildRecord(t, schoolID)
		tx := newPendingTx(t, record)

		event := capturedEvent(tx)
		event.Amount = decimal.NewFromInt(999)

		f.gateway.On("VerifyWebhook", payload, signature).Return(event, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_XYZ").Return(tx, nil)

		_, err := f.service.ProcessWebhook(context.Background(), payload, signature)

		require.Error(t, err)
		processed, _ := f.store.IsProcessed(context.Background(), "payment:RAZORPAY:pay_123")
		assert.False(t, processed, "failed delivery must stay retryable")
	})
}
