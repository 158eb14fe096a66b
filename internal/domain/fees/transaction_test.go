package fees

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManualTransaction(t *testing.T) {
	schoolID := uuid.New()
	record := newTestRecord(t, schoolID, time.Now().AddDate(0, 1, 0))
	clerk := uuid.New()

	t.Run("born in success state", func(t *testing.T) {
		tx, err := NewManualTransaction(schoolID, "RC-20250601-00001", record,
			valueobject.NewMoneyINRFromFloat(3000), NewCashDetails(), clerk)
		require.NoError(t, err)

		assert.Equal(t, TransactionStatusSuccess, tx.Status)
		assert.Equal(t, record.ID, tx.FeeRecordID)
		assert.Equal(t, record.StudentID, tx.StudentID)
		assert.NotNil(t, tx.PaidAt)
		assert.Equal(t, &clerk, tx.CollectedBy)
	})

	t.Run("rejects incomplete mode details", func(t *testing.T) {
		_, err := NewManualTransaction(schoolID, "RC-20250601-00002", record,
			valueobject.NewMoneyINRFromFloat(3000), PaymentDetails{Mode: PaymentModeUPI}, clerk)
		assert.Error(t, err)
	})

	t.Run("rejects gateway mode", func(t *testing.T) {
		_, err := NewManualTransaction(schoolID, "RC-20250601-00003", record,
			valueobject.NewMoneyINRFromFloat(3000), NewGatewayDetails("pay_x"), clerk)
		assert.Error(t, err)
	})

	t.Run("rejects cross-school record", func(t *testing.T) {
		_, err := NewManualTransaction(uuid.New(), "RC-20250601-00004", record,
			valueobject.NewMoneyINRFromFloat(3000), NewCashDetails(), clerk)
		assert.Error(t, err)
	})
}

func TestGatewayTransactionStateMachine(t *testing.T) {
	schoolID := uuid.New()
	record := newTestRecord(t, schoolID, time.Now().AddDate(0, 1, 0))

	newPending := func(t *testing.T) *PaymentTransaction {
		t.Helper()
		tx, err := NewGatewayTransaction(schoolID, "RC-20250601-00005", record,
			valueobject.NewMoneyINRFromFloat(1000), "order_ABC123")
		require.NoError(t, err)
		return tx
	}

	t.Run("born pending with order binding", func(t *testing.T) {
		tx := newPending(t)
		assert.Equal(t, TransactionStatusPending, tx.Status)
		assert.Equal(t, "order_ABC123", tx.GatewayOrderID)
		assert.Nil(t, tx.PaidAt)
	})

	t.Run("pending to success", func(t *testing.T) {
		tx := newPending(t)
		paidAt := time.Now()
		require.NoError(t, tx.Confirm("pay_XYZ789", paidAt))

		assert.Equal(t, TransactionStatusSuccess, tx.Status)
		assert.Equal(t, "pay_XYZ789", tx.GatewayPaymentID)
		assert.Equal(t, "pay_XYZ789", tx.Details.ReferenceID)
		require.NotNil(t, tx.PaidAt)
	})

	t.Run("pending to failed", func(t *testing.T) {
		tx := newPending(t)
		require.NoError(t, tx.Fail("card declined"))

		assert.Equal(t, TransactionStatusFailed, tx.Status)
		assert.Equal(t, "card declined", tx.FailureReason)
	})

	t.Run("success is terminal", func(t *testing.T) {
		confirmed := newPending(t)
		require.NoError(t, confirmed.Confirm("pay_1", time.Now()))
		assert.Error(t, confirmed.Confirm("pay_2", time.Now()))
		assert.Error(t, confirmed.Fail("late failure"))
		assert.Equal(t, "pay_1", confirmed.GatewayPaymentID)
	})

	t.Run("failed can be repaired from the gateway record", func(t *testing.T) {
		failed := newPending(t)
		require.NoError(t, failed.Fail("declined"))
		require.NoError(t, failed.Confirm("pay_3", time.Now()))
		assert.Equal(t, TransactionStatusSuccess, failed.Status)
		assert.Empty(t, failed.FailureReason)
		assert.Error(t, failed.Fail("again"))
	})

	t.Run("confirm requires gateway payment id", func(t *testing.T) {
		tx := newPending(t)
		assert.Error(t, tx.Confirm("", time.Now()))
		assert.Equal(t, TransactionStatusPending, tx.Status)
	})
}

func TestReceiptSnapshot(t *testing.T) {
	schoolID := uuid.New()
	record := newTestRecord(t, schoolID, time.Now().AddDate(0, 1, 0))

	payment := valueobject.NewMoneyINRFromFloat(3000)
	require.NoError(t, record.ApplyPayment(payment))

	snapshot := SnapshotAfterPayment(record, payment)

	assert.Equal(t, record.RecordNumber, snapshot.RecordNumber)
	assert.Len(t, snapshot.Items, 2)
	assert.Equal(t, "5500", snapshot.Amount.String())
	assert.Equal(t, "5500", snapshot.NetPayable.String())
	assert.Equal(t, "3000", snapshot.AmountPaid.String())
	assert.Equal(t, "3000", snapshot.TotalPaid.String())
	assert.Equal(t, "2500", snapshot.BalanceAfter.String())

	// Snapshot is a copy, not a live reference
	record.ItemsSnapshot[0].Name = "Changed"
	assert.Equal(t, "Tuition", snapshot.Items[0].Name)
}
