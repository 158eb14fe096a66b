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

// ReconciliationService cross-checks the gateway's payment ledger against
// local transactions and repairs stuck states. It is the batch analogue of
// a missed webhook delivery and shares its idempotency guarantees: every
// applied transition goes through the same terminal-state checks, so
// re-running a window is side-effect free.
type ReconciliationService struct {
	txRepo      fees.TransactionRepository
	logRepo     fees.ReconciliationLogRepository
	gateway     fees.PaymentGateway
	collections *CollectionService
	logger      *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txRepo fees.TransactionRepository,
	logRepo fees.ReconciliationLogRepository,
	gateway fees.PaymentGateway,
	collections *CollectionService,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		txRepo:      txRepo,
		logRepo:     logRepo,
		gateway:     gateway,
		collections: collections,
		logger:      logger,
	}
}

// ReconcileRequest carries the input for one reconciliation run
type ReconcileRequest struct {
	SchoolID uuid.UUID
	From     time.Time
	To       time.Time
}

// ReconcileResult summarizes one reconciliation run
type ReconcileResult struct {
	PaymentsSeen int
	Confirmed    int
	Failed       int
	Skipped      int
	Anomalies    int
}

// Reconcile pulls the gateway's payment list for the window and aligns
// local transaction state with it. Anomalies are logged for manual review
// and never mutate the ledger.
func (s *ReconciliationService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if req.SchoolID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCHOOL", "School ID cannot be empty")
	}

	payments, err := s.gateway.ListPayments(ctx, &fees.ListPaymentsRequest{
		SchoolID: req.SchoolID,
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		s.logger.Error("Gateway payment list failed",
			zap.String("school_id", req.SchoolID.String()),
			zap.Error(err))
		return nil, shared.NewDomainError("GATEWAY_ERROR", "Failed to fetch payment list from gateway")
	}

	result := &ReconcileResult{PaymentsSeen: len(payments)}

	for i := range payments {
		s.reconcilePayment(ctx, req.SchoolID, &payments[i], result)
	}

	s.logger.Info("Reconciliation run completed",
		zap.String("school_id", req.SchoolID.String()),
		zap.Time("from", req.From),
		zap.Time("to", req.To),
		zap.Int("payments_seen", result.PaymentsSeen),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("anomalies", result.Anomalies))

	return result, nil
}

// reconcilePayment aligns one gateway payment with local state. Errors are
// absorbed into the audit trail so one bad payment cannot abort the run.
func (s *ReconciliationService) reconcilePayment(ctx context.Context, schoolID uuid.UUID, payment *fees.GatewayPayment, result *ReconcileResult) {
	if !payment.Status.IsFinal() {
		result.Skipped++
		return
	}

	tx, err := s.txRepo.FindByGatewayOrderID(ctx, payment.GatewayOrderID)
	if err != nil {
		s.logger.Error("Failed to look up transaction for reconciliation",
			zap.String("gateway_order_id", payment.GatewayOrderID),
			zap.Error(err))
		result.Anomalies++
		return
	}

	if tx == nil {
		s.appendLog(ctx, fees.NewReconciliationLog(schoolID, nil,
			payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), "",
			fees.ReconciliationActionAnomaly,
			"Gateway payment matches no local transaction"))
		result.Anomalies++
		return
	}
	if tx.SchoolID != schoolID {
		// Order belongs to another tenant's account; never cross the boundary
		result.Skipped++
		return
	}

	localBefore := tx.Status

	// Local and gateway already agree
	if (tx.Status == fees.TransactionStatusSuccess && payment.Status.IsSuccess()) ||
		(tx.Status == fees.TransactionStatusFailed && !payment.Status.IsSuccess()) {
		result.Skipped++
		return
	}

	if payment.Status.IsSuccess() && !payment.Amount.Equal(tx.Amount) {
		s.appendLog(ctx, fees.NewReconciliationLog(schoolID, &tx.ID,
			payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), localBefore.String(),
			fees.ReconciliationActionAnomaly,
			fmt.Sprintf("Gateway captured %s but transaction expects %s", payment.Amount.String(), tx.Amount.String())))
		result.Anomalies++
		return
	}

	// Gateway disagrees with a local SUCCESS: money was applied against a
	// payment the gateway says failed. Never auto-reverse; flag it.
	if tx.Status == fees.TransactionStatusSuccess {
		s.appendLog(ctx, fees.NewReconciliationLog(schoolID, &tx.ID,
			payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), localBefore.String(),
			fees.ReconciliationActionAnomaly,
			"Local transaction is confirmed but gateway reports failure"))
		result.Anomalies++
		return
	}

	_, err = s.collections.applyGatewayOutcome(ctx, payment.GatewayOrderID, payment.GatewayPaymentID,
		payment.Status, payment.Amount, payment.ErrorReason, payment.CreatedAt)
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			s.appendLog(ctx, fees.NewReconciliationLog(schoolID, &tx.ID,
				payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), localBefore.String(),
				fees.ReconciliationActionAnomaly, domainErr.Message))
			result.Anomalies++
			return
		}
		s.logger.Error("Reconciliation transition failed",
			zap.String("gateway_order_id", payment.GatewayOrderID),
			zap.Error(err))
		result.Anomalies++
		return
	}

	if payment.Status.IsSuccess() {
		s.appendLog(ctx, fees.NewReconciliationLog(schoolID, &tx.ID,
			payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), localBefore.String(),
			fees.ReconciliationActionConfirmed,
			"Confirmed from gateway record"))
		result.Confirmed++
	} else {
		s.appendLog(ctx, fees.NewReconciliationLog(schoolID, &tx.ID,
			payment.GatewayOrderID, payment.GatewayPaymentID, payment.Status.String(), localBefore.String(),
			fees.ReconciliationActionFailed,
			payment.ErrorReason))
		result.Failed++
	}
}

// ListLogs returns the school's recent reconciliation log entries
func (s *ReconciliationService) ListLogs(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) (shared.Paginated[*fees.ReconciliationLog], error) {
	entries, total, err := s.logRepo.FindRecent(ctx, schoolID, filter)
	if err != nil {
		return shared.Paginated[*fees.ReconciliationLog]{}, fmt.Errorf("failed to list reconciliation logs: %w", err)
	}
	return shared.NewPaginated(entries, total, filter.Page, filter.PageSize), nil
}

func (s *ReconciliationService) appendLog(ctx context.Context, entry *fees.ReconciliationLog) {
	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append reconciliation log",
			zap.String("gateway_order_id", entry.GatewayOrderID),
			zap.String("action", entry.Action.String()),
			zap.Error(err))
	}
}
