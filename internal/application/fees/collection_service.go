package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrWebhookVerificationFailed is returned when the webhook signature does not verify
	ErrWebhookVerificationFailed = errors.New("webhook: signature verification failed")
	// ErrWebhookOrderNotFound is returned when the webhook references an unknown order
	ErrWebhookOrderNotFound = errors.New("webhook: no transaction for gateway order")
)

// maxConflictRetries bounds the reload-and-retry loop on optimistic lock conflicts
const maxConflictRetries = 3

// CollectionService records payments against fee records through the
// manual path and the gateway path.
type CollectionService struct {
	recordRepo  fees.FeeRecordRepository
	txRepo      fees.TransactionRepository
	gateway     fees.PaymentGateway
	scope       TransactionScope
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// CollectionServiceConfig holds the collaborators for CollectionService
type CollectionServiceConfig struct {
	RecordRepo       fees.FeeRecordRepository
	TransactionRepo  fees.TransactionRepository
	Gateway          fees.PaymentGateway
	Scope            TransactionScope
	IdempotencyStore shared.IdempotencyStore
	Idempotency      shared.IdempotencyConfig
	EventPublisher   shared.EventPublisher
	Logger           *zap.Logger
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(config CollectionServiceConfig) *CollectionService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idemConfig := config.Idempotency
	if idemConfig.TTL == 0 {
		idemConfig = shared.DefaultIdempotencyConfig()
	}
	return &CollectionService{
		recordRepo:  config.RecordRepo,
		txRepo:      config.TransactionRepo,
		gateway:     config.Gateway,
		scope:       config.Scope,
		idempotency: config.IdempotencyStore,
		idemConfig:  idemConfig,
		publisher:   config.EventPublisher,
		logger:      logger,
	}
}

// CollectManualRequest carries the input for a clerk-recorded payment
type CollectManualRequest struct {
	SchoolID    uuid.UUID
	FeeRecordID uuid.UUID
	Amount      valueobject.Money
	Details     fees.PaymentDetails
	CollectedBy uuid.UUID
}

// CollectManual records a payment collected in person. The transaction is
// created in SUCCESS state and the fee record's balance is updated in the
// same database transaction, guarded by the record's optimistic lock.
func (s *CollectionService) CollectManual(ctx context.Context, req CollectManualRequest) (*fees.PaymentTransaction, error) {
	var result *fees.PaymentTransaction

	err := s.withConflictRetry(func() error {
		record, err := s.loadRecord(ctx, req.SchoolID, req.FeeRecordID)
		if err != nil {
			return err
		}
		expectedVersion := record.GetVersion()

		return s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
			receiptNumber, err := repos.Transactions.GenerateReceiptNumber(ctx, req.SchoolID)
			if err != nil {
				return fmt.Errorf("failed to generate receipt number: %w", err)
			}

			tx, err := fees.NewManualTransaction(req.SchoolID, receiptNumber, record,
				req.Amount, req.Details, req.CollectedBy)
			if err != nil {
				return err
			}

			if err := record.ApplyPayment(req.Amount); err != nil {
				return err
			}
			tx.AttachReceipt(fees.SnapshotAfterPayment(record, req.Amount))

			if err := repos.Records.SaveWithLock(ctx, record, expectedVersion); err != nil {
				return err
			}
			if err := repos.Transactions.Save(ctx, tx); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			result = tx
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, result.GetDomainEvents())
	result.ClearDomainEvents()

	s.logger.Info("Manual payment collected",
		zap.String("receipt_number", result.ReceiptNumber),
		zap.String("school_id", req.SchoolID.String()),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("mode", req.Details.Mode.String()))

	return result, nil
}

// CreateOrderRequest carries the input for opening a gateway order
type CreateOrderRequest struct {
	SchoolID    uuid.UUID
	FeeRecordID uuid.UUID
	Amount      valueobject.Money
}

// CreateOrderResult is the outcome of opening a gateway order
type CreateOrderResult struct {
	Transaction    *fees.PaymentTransaction
	GatewayOrderID string
}

// CreateOrder opens an order with the payment gateway and records a
// PENDING transaction bound to it. The ledger is not touched until the
// gateway confirms the payment.
func (s *CollectionService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	record, err := s.loadRecord(ctx, req.SchoolID, req.FeeRecordID)
	if err != nil {
		return nil, err
	}

	if req.Amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if req.Amount.Amount().GreaterThan(record.BalanceDue.Add(valueobject.PaymentTolerance)) {
		return nil, shared.NewDomainError("BALANCE_EXCEEDED",
			fmt.Sprintf("Order amount %s exceeds outstanding balance %s", req.Amount.StringFixed(2), record.BalanceDue.StringFixed(2)))
	}

	receiptNumber, err := s.txRepo.GenerateReceiptNumber(ctx, req.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt number: %w", err)
	}

	orderResp, err := s.gateway.CreateOrder(ctx, &fees.CreateOrderRequest{
		SchoolID:      req.SchoolID,
		ReceiptNumber: receiptNumber,
		Amount:        req.Amount.Amount(),
		Currency:      string(req.Amount.Currency()),
		Notes: map[string]string{
			"fee_record": record.RecordNumber,
			"student_id": record.StudentID.String(),
		},
	})
	if err != nil {
		s.logger.Error("Gateway order creation failed",
			zap.String("record_number", record.RecordNumber),
			zap.Error(err))
		return nil, shared.NewDomainError("GATEWAY_ERROR", "Failed to create payment order with gateway")
	}

	tx, err := fees.NewGatewayTransaction(req.SchoolID, receiptNumber, record, req.Amount, orderResp.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	if err := s.txRepo.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.logger.Info("Gateway order created",
		zap.String("receipt_number", receiptNumber),
		zap.String("gateway_order_id", orderResp.GatewayOrderID),
		zap.String("amount", req.Amount.StringFixed(2)))

	return &CreateOrderResult{Transaction: tx, GatewayOrderID: orderResp.GatewayOrderID}, nil
}

// WebhookResult is the outcome of processing one webhook delivery
type WebhookResult struct {
	AlreadyProcessed bool
	Transaction      *fees.PaymentTransaction
}

// ProcessWebhook verifies and applies one gateway webhook delivery.
// Deliveries are at-least-once: the handler is idempotent, keyed by the
// gateway's payment id, and a redelivery of a processed event is a no-op.
func (s *CollectionService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("Webhook verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrWebhookVerificationFailed, err)
	}

	s.logger.Info("Webhook received",
		zap.String("event_type", event.EventType),
		zap.String("gateway_order_id", event.GatewayOrderID),
		zap.String("gateway_payment_id", event.GatewayPaymentID),
		zap.String("status", event.Status.String()))

	if !event.Status.IsFinal() {
		return &WebhookResult{}, nil
	}

	idempotencyKey := s.paymentKey(event.GatewayPaymentID)
	if s.idemConfig.Enabled && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, idempotencyKey, s.idemConfig.TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !fresh {
			s.logger.Info("Webhook already processed",
				zap.String("idempotency_key", idempotencyKey))
			return &WebhookResult{AlreadyProcessed: true}, nil
		}
	}

	tx, err := s.applyGatewayOutcome(ctx, event.GatewayOrderID, event.GatewayPaymentID,
		event.Status, event.Amount, event.ErrorReason, event.PaidAt)
	if err != nil {
		// Release the idempotency claim so the gateway's retry can succeed
		if s.idemConfig.Enabled && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKey); relErr != nil {
				s.logger.Warn("Failed to release idempotency key",
					zap.String("idempotency_key", idempotencyKey),
					zap.Error(relErr))
			}
		}
		return nil, err
	}

	return &WebhookResult{Transaction: tx}, nil
}

// applyGatewayOutcome transitions the transaction bound to the gateway
// order into the terminal state the gateway reports, applying the payment
// to the ledger on success. Re-applying an outcome a transaction already
// reached is a no-op; it is shared by the webhook handler and the
// reconciliation run.
func (s *CollectionService) applyGatewayOutcome(
	ctx context.Context,
	gatewayOrderID string,
	gatewayPaymentID string,
	status fees.GatewayPaymentStatus,
	amount decimal.Decimal,
	failureReason string,
	paidAt time.Time,
) (*fees.PaymentTransaction, error) {
	tx, err := s.txRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	if tx == nil {
		s.logger.Warn("No transaction for gateway order",
			zap.String("gateway_order_id", gatewayOrderID))
		return nil, ErrWebhookOrderNotFound
	}

	// Terminal-state check: a redelivery or a concurrent delivery that won
	// the race leaves nothing to do.
	if tx.Status == fees.TransactionStatusSuccess {
		s.logger.Info("Transaction already confirmed",
			zap.String("receipt_number", tx.ReceiptNumber),
			zap.String("gateway_payment_id", tx.GatewayPaymentID))
		return tx, nil
	}

	if !status.IsSuccess() {
		if tx.Status == fees.TransactionStatusFailed {
			return tx, nil
		}
		return s.failTransaction(ctx, tx, failureReason)
	}

	// The gateway's captured amount is authoritative; a mismatch with the
	// pending transaction must not be auto-applied.
	if !amount.Equal(tx.Amount) {
		return nil, shared.NewDomainError("GATEWAY_AMOUNT_MISMATCH",
			fmt.Sprintf("Gateway captured %s but transaction expects %s", amount.String(), tx.Amount.String()))
	}

	return s.confirmTransaction(ctx, tx, gatewayPaymentID, paidAt)
}

// confirmTransaction moves a transaction to SUCCESS and applies the
// payment to the fee record inside one database transaction.
func (s *CollectionService) confirmTransaction(
	ctx context.Context,
	tx *fees.PaymentTransaction,
	gatewayPaymentID string,
	paidAt time.Time,
) (*fees.PaymentTransaction, error) {
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	err := s.withConflictRetry(func() error {
		// Reload both aggregates each attempt so a lost race is observed
		// rather than replayed against stale in-memory state.
		current, err := s.txRepo.FindByID(ctx, tx.SchoolID, tx.ID)
		if err != nil {
			return fmt.Errorf("failed to reload transaction: %w", err)
		}
		if current == nil {
			return shared.ErrNotFound
		}
		if current.Status == fees.TransactionStatusSuccess {
			tx = current
			return nil
		}

		record, err := s.loadRecord(ctx, current.SchoolID, current.FeeRecordID)
		if err != nil {
			return err
		}
		recordVersion := record.GetVersion()
		txVersion := current.GetVersion()

		if err := s.scope.Execute(ctx, func(ctx context.Context, repos Repositories) error {
			if err := record.ApplyPayment(current.GetAmountMoney()); err != nil {
				return err
			}
			if err := current.Confirm(gatewayPaymentID, paidAt); err != nil {
				return err
			}
			current.AttachReceipt(fees.SnapshotAfterPayment(record, current.GetAmountMoney()))

			if err := repos.Records.SaveWithLock(ctx, record, recordVersion); err != nil {
				return err
			}
			return repos.Transactions.SaveWithLock(ctx, current, txVersion)
		}); err != nil {
			return err
		}

		tx = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, tx.GetDomainEvents())
	tx.ClearDomainEvents()

	s.logger.Info("Gateway payment confirmed",
		zap.String("receipt_number", tx.ReceiptNumber),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("amount", tx.Amount.String()))

	return tx, nil
}

// failTransaction moves a pending transaction to FAILED. No ledger effect.
func (s *CollectionService) failTransaction(ctx context.Context, tx *fees.PaymentTransaction, reason string) (*fees.PaymentTransaction, error) {
	version := tx.GetVersion()
	if err := tx.Fail(reason); err != nil {
		return nil, err
	}
	if err := s.txRepo.SaveWithLock(ctx, tx, version); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, tx.GetDomainEvents())
	tx.ClearDomainEvents()

	s.logger.Info("Gateway payment failed",
		zap.String("receipt_number", tx.ReceiptNumber),
		zap.String("reason", reason))

	return tx, nil
}

func (s *CollectionService) loadRecord(ctx context.Context, schoolID, recordID uuid.UUID) (*fees.FeeRecord, error) {
	record, err := s.recordRepo.FindByID(ctx, schoolID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find fee record: %w", err)
	}
	if record == nil {
		return nil, shared.ErrNotFound
	}
	return record, nil
}

// withConflictRetry re-runs fn after optimistic lock conflicts, reloading
// state each attempt, up to maxConflictRetries times.
func (s *CollectionService) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var domainErr *shared.DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != shared.ErrConcurrencyConflict.Code {
			return err
		}
		s.logger.Warn("Optimistic lock conflict, retrying",
			zap.Int("attempt", attempt+1))
	}
	return err
}

func (s *CollectionService) paymentKey(gatewayPaymentID string) string {
	return fmt.Sprintf("payment:%s:%s", s.gateway.GatewayType(), gatewayPaymentID)
}

func (s *CollectionService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
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
