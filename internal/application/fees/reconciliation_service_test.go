package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reconciliationFixture struct {
	*collectionFixture
	logRepo *MockReconciliationLogRepository
	service *ReconciliationService
}

func newReconciliationFixture() *reconciliationFixture {
	cf := newCollectionFixture()
	logRepo := &MockReconciliationLogRepository{}
	service := NewReconciliationService(cf.txRepo, logRepo, cf.gateway, cf.service, nil)
	return &reconciliationFixture{
		collectionFixture: cf,
		logRepo:           logRepo,
		service:           service,
	}
}

func TestReconcile(t *testing.T) {
	schoolID := uuid.New()
	window := ReconcileRequest{
		SchoolID: schoolID,
		From:     time.Now().Add(-24 * time.Hour),
		To:       time.Now(),
	}

	newStuckTx := func(t *testing.T, record *fees.FeeRecord, orderID string) *fees.PaymentTransaction {
		t.Helper()
		tx, err := fees.NewGatewayTransaction(schoolID, "RC-20250601-00010", record,
			valueobject.NewMoneyINRFromFloat(1000), orderID)
		require.NoError(t, err)
		return tx
	}

	t.Run("confirms a stuck pending transaction", func(t *testing.T) {
		f := newReconciliationFixture()
		record := buildRecord(t, schoolID)
		tx := newStuckTx(t, record, "order_1")

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   "order_1",
			Status:           fees.GatewayPaymentStatusCaptured,
			Amount:           tx.Amount,
			CreatedAt:        time.Now(),
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_1").Return(tx, nil)
		f.txRepo.On("FindByID", mock.Anything, schoolID, tx.ID).Return(tx, nil)
		f.recordRepo.On("FindByID", mock.Anything, schoolID, record.ID).Return(record, nil)
		f.recordRepo.On("SaveWithLock", mock.Anything, record, 1).Return(nil)
		f.txRepo.On("SaveWithLock", mock.Anything, tx, 1).Return(nil)
		f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Confirmed)
		assert.Equal(t, fees.TransactionStatusSuccess, tx.Status)
		assert.Equal(t, "1000", record.AmountPaid.String())
		f.logRepo.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(entry *fees.ReconciliationLog) bool {
			return entry.Action == fees.ReconciliationActionConfirmed
		}))
	})

	t.Run("rerun is side-effect free", func(t *testing.T) {
		f := newReconciliationFixture()
		record := buildRecord(t, schoolID)
		tx := newStuckTx(t, record, "order_1")
		require.NoError(t, record.ApplyPayment(tx.GetAmountMoney()))
		require.NoError(t, tx.Confirm("pay_1", time.Now()))

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_1",
			GatewayOrderID:   "order_1",
			Status:           fees.GatewayPaymentStatusCaptured,
			Amount:           tx.Amount,
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_1").Return(tx, nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, result.Confirmed)
		assert.Equal(t, "1000", record.AmountPaid.String())
		f.logRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("unknown order is an anomaly", func(t *testing.T) {
		f := newReconciliationFixture()

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_9",
			GatewayOrderID:   "order_unknown",
			Status:           fees.GatewayPaymentStatusCaptured,
			Amount:           decimal.NewFromInt(500),
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_unknown").Return(nil, nil)
		f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Anomalies)
		f.logRepo.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(entry *fees.ReconciliationLog) bool {
			return entry.Action == fees.ReconciliationActionAnomaly && entry.TransactionID == nil
		}))
	})

	t.Run("amount mismatch is an anomaly, ledger untouched", func(t *testing.T) {
		f := newReconciliationFixture()
		record := buildRecord(t, schoolID)
		tx := newStuckTx(t, record, "order_2")

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_2",
			GatewayOrderID:   "order_2",
			Status:           fees.GatewayPaymentStatusCaptured,
			Amount:           decimal.NewFromInt(750),
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_2").Return(tx, nil)
		f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Anomalies)
		assert.Equal(t, fees.TransactionStatusPending, tx.Status)
		assert.True(t, record.AmountPaid.IsZero())
	})

	t.Run("gateway failure marks pending transaction failed", func(t *testing.T) {
		f := newReconciliationFixture()
		record := buildRecord(t, schoolID)
		tx := newStuckTx(t, record, "order_3")

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_3",
			GatewayOrderID:   "order_3",
			Status:           fees.GatewayPaymentStatusFailed,
			Amount:           tx.Amount,
			ErrorReason:      "upi timeout",
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_3").Return(tx, nil)
		f.txRepo.On("SaveWithLock", mock.Anything, tx, 1).Return(nil)
		f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, fees.TransactionStatusFailed, tx.Status)
		assert.True(t, record.AmountPaid.IsZero())
	})

	t.Run("confirmed locally but failed at gateway is never auto-reversed", func(t *testing.T) {
		f := newReconciliationFixture()
		record := buildRecord(t, schoolID)
		tx := newStuckTx(t, record, "order_4")
		require.NoError(t, record.ApplyPayment(tx.GetAmountMoney()))
		require.NoError(t, tx.Confirm("pay_4", time.Now()))

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_4",
			GatewayOrderID:   "order_4",
			Status:           fees.GatewayPaymentStatusFailed,
			Amount:           tx.Amount,
		}}, nil)
		f.txRepo.On("FindByGatewayOrderID", mock.Anything, "order_4").Return(tx, nil)
		f.logRepo.On("Append", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Anomalies)
		assert.Equal(t, fees.TransactionStatusSuccess, tx.Status)
		assert.Equal(t, "1000", record.AmountPaid.String())
	})

	t.Run("non-final gateway status is skipped", func(t *testing.T) {
		f := newReconciliationFixture()

		f.gateway.On("ListPayments", mock.Anything, mock.Anything).Return([]fees.GatewayPayment{{
			GatewayPaymentID: "pay_5",
			GatewayOrderID:   "order_5",
			Status:           fees.GatewayPaymentStatusAuthorized,
		}}, nil)

		result, err := f.service.Reconcile(context.Background(), window)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		f.txRepo.AssertNotCalled(t, "FindByGatewayOrderID", mock.Anything, mock.Anything)
	})
}
