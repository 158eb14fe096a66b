package event

import (
	"context"

	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// FeeAuditHandler writes every fee domain event to the structured log,
// forming a lightweight audit trail alongside the database state.
type FeeAuditHandler struct {
	logger *zap.Logger
}

// NewFeeAuditHandler creates a new audit handler
func NewFeeAuditHandler(logger *zap.Logger) *FeeAuditHandler {
	return &FeeAuditHandler{logger: logger}
}

// Handle logs the event
func (h *FeeAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.logger.Info("Fee domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("school_id", event.SchoolID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes lists the fee events the audit trail covers
func (h *FeeAuditHandler) EventTypes() []string {
	return []string{
		fees.EventFeeTemplateCreated,
		fees.EventFeeRecordAssigned,
		fees.EventFeeRecordPaymentApplied,
		fees.EventFeeRecordPaid,
		fees.EventLateFineApplied,
		fees.EventTransactionConfirmed,
		fees.EventTransactionFailed,
	}
}

// Ensure FeeAuditHandler implements EventHandler
var _ shared.EventHandler = (*FeeAuditHandler)(nil)
