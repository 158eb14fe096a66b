package fees

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockFeeTemplateRepository is a mock implementation of fees.FeeTemplateRepository
type MockFeeTemplateRepository struct {
	mock.Mock
}

func (m *MockFeeTemplateRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeTemplate, error) {
	args := m.Called(ctx, schoolID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FeeTemplate), args.Error(1)
}

func (m *MockFeeTemplateRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*fees.FeeTemplate, int64, error) {
	args := m.Called(ctx, schoolID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*fees.FeeTemplate), args.Get(1).(int64), args.Error(2)
}

func (m *MockFeeTemplateRepository) Save(ctx context.Context, template *fees.FeeTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockFeeTemplateRepository) Delete(ctx context.Context, schoolID, id uuid.UUID) error {
	args := m.Called(ctx, schoolID, id)
	return args.Error(0)
}

// MockFeeRecordRepository is a mock implementation of fees.FeeRecordRepository
type MockFeeRecordRepository struct {
	mock.Mock
}

func (m *MockFeeRecordRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeRecord, error) {
	args := m.Called(ctx, schoolID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FeeRecord), args.Error(1)
}

func (m *MockFeeRecordRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter fees.FeeRecordFilter) ([]*fees.FeeRecord, int64, error) {
	args := m.Called(ctx, schoolID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*fees.FeeRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockFeeRecordRepository) FindDueForFine(ctx context.Context, schoolID uuid.UUID, asOf time.Time, period string, limit int) ([]*fees.FeeRecord, error) {
	args := m.Called(ctx, schoolID, asOf, period, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fees.FeeRecord), args.Error(1)
}

func (m *MockFeeRecordRepository) CountByTemplate(ctx context.Context, schoolID, templateID uuid.UUID) (int64, error) {
	args := m.Called(ctx, schoolID, templateID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeeRecordRepository) Save(ctx context.Context, record *fees.FeeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFeeRecordRepository) SaveWithLock(ctx context.Context, record *fees.FeeRecord, expectedVersion int) error {
	args := m.Called(ctx, record, expectedVersion)
	return args.Error(0)
}

func (m *MockFeeRecordRepository) GenerateRecordNumber(ctx context.Context, schoolID uuid.UUID) (string, error) {
	args := m.Called(ctx, schoolID)
	return args.String(0), args.Error(1)
}

// MockTransactionRepository is a mock implementation of fees.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*fees.PaymentTransaction, error) {
	args := m.Called(ctx, schoolID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*fees.PaymentTransaction, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*fees.PaymentTransaction, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByFeeRecord(ctx context.Context, schoolID, feeRecordID uuid.UUID) ([]*fees.PaymentTransaction, error) {
	args := m.Called(ctx, schoolID, feeRecordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fees.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) FindAll(ctx context.Context, schoolID uuid.UUID, filter fees.TransactionFilter) ([]*fees.PaymentTransaction, int64, error) {
	args := m.Called(ctx, schoolID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*fees.PaymentTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) FindStalePending(ctx context.Context, schoolID uuid.UUID, olderThan time.Time, limit int) ([]*fees.PaymentTransaction, error) {
	args := m.Called(ctx, schoolID, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fees.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *fees.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) SaveWithLock(ctx context.Context, tx *fees.PaymentTransaction, expectedVersion int) error {
	args := m.Called(ctx, tx, expectedVersion)
	return args.Error(0)
}

func (m *MockTransactionRepository) GenerateReceiptNumber(ctx context.Context, schoolID uuid.UUID) (string, error) {
	args := m.Called(ctx, schoolID)
	return args.String(0), args.Error(1)
}

// MockReconciliationLogRepository is a mock implementation of fees.ReconciliationLogRepository
type MockReconciliationLogRepository struct {
	mock.Mock
}

func (m *MockReconciliationLogRepository) Append(ctx context.Context, entry *fees.ReconciliationLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockReconciliationLogRepository) FindByTransaction(ctx context.Context, schoolID, transactionID uuid.UUID) ([]*fees.ReconciliationLog, error) {
	args := m.Called(ctx, schoolID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*fees.ReconciliationLog), args.Error(1)
}

func (m *MockReconciliationLogRepository) FindRecent(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) ([]*fees.ReconciliationLog, int64, error) {
	args := m.Called(ctx, schoolID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*fees.ReconciliationLog), args.Get(1).(int64), args.Error(2)
}

// MockPaymentGateway is a mock implementation of fees.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) GatewayType() fees.PaymentGatewayType {
	return fees.PaymentGatewayTypeRazorpay
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req *fees.CreateOrderRequest) (*fees.CreateOrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.CreateOrderResponse), args.Error(1)
}

func (m *MockPaymentGateway) ListPayments(ctx context.Context, req *fees.ListPaymentsRequest) ([]fees.GatewayPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fees.GatewayPayment), args.Error(1)
}

func (m *MockPaymentGateway) VerifyWebhook(payload []byte, signature string) (*fees.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.WebhookEvent), args.Error(1)
}

// MockStudentDirectory is a mock implementation of fees.StudentDirectory
type MockStudentDirectory struct {
	mock.Mock
}

func (m *MockStudentDirectory) Lookup(ctx context.Context, schoolID, studentID uuid.UUID) (*fees.StudentRef, error) {
	args := m.Called(ctx, schoolID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.StudentRef), args.Error(1)
}

// memoryIdempotencyStore is a map-backed store for tests
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{seen: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *memoryIdempotencyStore) Close() error { return nil }
