package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
)

// ReconciliationAction describes what the reconciliation run did with one
// gateway payment.
type ReconciliationAction string

const (
	// ReconciliationActionConfirmed means a stuck local transaction was
	// transitioned to SUCCESS from the gateway's record.
	ReconciliationActionConfirmed ReconciliationAction = "CONFIRMED"
	// ReconciliationActionFailed means a pending local transaction was
	// marked FAILED from the gateway's record.
	ReconciliationActionFailed ReconciliationAction = "FAILED"
	// ReconciliationActionSkipped means local and gateway state already agreed.
	ReconciliationActionSkipped ReconciliationAction = "SKIPPED"
	// ReconciliationActionAnomaly means the states disagree in a way that
	// cannot be auto-resolved and needs manual review.
	ReconciliationActionAnomaly ReconciliationAction = "ANOMALY"
)

// IsValid checks if the action is a valid ReconciliationAction
func (a ReconciliationAction) IsValid() bool {
	switch a {
	case ReconciliationActionConfirmed, ReconciliationActionFailed,
		ReconciliationActionSkipped, ReconciliationActionAnomaly:
		return true
	}
	return false
}

// String returns the string representation of ReconciliationAction
func (a ReconciliationAction) String() string {
	return string(a)
}

// ReconciliationLog is an append-only audit row produced while aligning
// local transaction state with the gateway's record. Past entries are
// never mutated.
type ReconciliationLog struct {
	shared.BaseEntity
	SchoolID          uuid.UUID            `json:"school_id"`
	TransactionID     *uuid.UUID           `json:"transaction_id"` // Nil when the gateway payment matched no local transaction
	GatewayOrderID    string               `json:"gateway_order_id"`
	GatewayPaymentID  string               `json:"gateway_payment_id"`
	GatewayStatus     string               `json:"gateway_status"`
	LocalStatusBefore string               `json:"local_status_before"`
	Action            ReconciliationAction `json:"action"`
	Detail            string               `json:"detail"`
	RunAt             time.Time            `json:"run_at"`
}

// NewReconciliationLog creates a new reconciliation audit entry
func NewReconciliationLog(
	schoolID uuid.UUID,
	transactionID *uuid.UUID,
	gatewayOrderID string,
	gatewayPaymentID string,
	gatewayStatus string,
	localStatusBefore string,
	action ReconciliationAction,
	detail string,
) *ReconciliationLog {
	return &ReconciliationLog{
		BaseEntity:        shared.NewBaseEntity(),
		SchoolID:          schoolID,
		TransactionID:     transactionID,
		GatewayOrderID:    gatewayOrderID,
		GatewayPaymentID:  gatewayPaymentID,
		GatewayStatus:     gatewayStatus,
		LocalStatusBefore: localStatusBefore,
		Action:            action,
		Detail:            detail,
		RunAt:             time.Now(),
	}
}
