package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
)

// AdminHandler handles operational endpoints for the late-fee sweep and
// gateway reconciliation. These run on a schedule in the background; the
// endpoints exist so staff can trigger or inspect a run on demand.
type AdminHandler struct {
	BaseHandler
	lateFees       *appfees.LateFeeService
	reconciliation *appfees.ReconciliationService
	policy         fees.LateFinePolicy
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	lateFees *appfees.LateFeeService,
	reconciliation *appfees.ReconciliationService,
	policy fees.LateFinePolicy,
) *AdminHandler {
	return &AdminHandler{
		lateFees:       lateFees,
		reconciliation: reconciliation,
		policy:         policy,
	}
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/admin")
	{
		group.POST("/late-fees/run", h.RunLateFeeSweep)
		group.POST("/reconciliation/run", h.RunReconciliation)
		group.GET("/reconciliation/logs", h.ListReconciliationLogs)
	}
}

// SweepResponse summarizes one late-fee sweep run
type SweepResponse struct {
	Period   string `json:"period"`
	Examined int    `json:"examined"`
	Fined    int    `json:"fined"`
	Skipped  int    `json:"skipped"`
}

// RunLateFeeSweep fines every overdue record not yet fined this period
func (h *AdminHandler) RunLateFeeSweep(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	result, err := h.lateFees.RunSweep(c.Request.Context(), appfees.SweepRequest{
		SchoolID: schoolID,
		Policy:   h.policy,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, SweepResponse{
		Period:   result.Period,
		Examined: result.Examined,
		Fined:    result.Fined,
		Skipped:  result.Skipped,
	})
}

// RunReconciliationRequest is the request body for a manual reconciliation
// run. An omitted window defaults to the last 24 hours.
type RunReconciliationRequest struct {
	From *time.Time `json:"from" binding:"omitempty"`
	To   *time.Time `json:"to" binding:"omitempty"`
}

// ReconcileResponse summarizes one reconciliation run
type ReconcileResponse struct {
	PaymentsSeen int `json:"payments_seen"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Anomalies    int `json:"anomalies"`
}

// RunReconciliation pulls the gateway's payments for the window and aligns
// local transaction state with them
func (h *AdminHandler) RunReconciliation(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	// An empty body means the default window
	var req RunReconciliationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	to := time.Now()
	if req.To != nil {
		to = *req.To
	}
	from := to.Add(-24 * time.Hour)
	if req.From != nil {
		from = *req.From
	}
	if !from.Before(to) {
		h.BadRequest(c, "Window start must be before window end")
		return
	}

	result, err := h.reconciliation.Reconcile(c.Request.Context(), appfees.ReconcileRequest{
		SchoolID: schoolID,
		From:     from,
		To:       to,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ReconcileResponse{
		PaymentsSeen: result.PaymentsSeen,
		Confirmed:    result.Confirmed,
		Failed:       result.Failed,
		Skipped:      result.Skipped,
		Anomalies:    result.Anomalies,
	})
}

// ReconciliationLogResponse is the API view of one reconciliation log entry
type ReconciliationLogResponse struct {
	ID                uuid.UUID  `json:"id"`
	TransactionID     *uuid.UUID `json:"transaction_id,omitempty"`
	GatewayOrderID    string     `json:"gateway_order_id"`
	GatewayPaymentID  string     `json:"gateway_payment_id"`
	GatewayStatus     string     `json:"gateway_status"`
	LocalStatusBefore string     `json:"local_status_before,omitempty"`
	Action            string     `json:"action"`
	Detail            string     `json:"detail"`
	RunAt             time.Time  `json:"run_at"`
}

// ListReconciliationLogs returns the school's recent reconciliation audit
// entries, anomalies included
func (h *AdminHandler) ListReconciliationLogs(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	result, err := h.reconciliation.ListLogs(c.Request.Context(), schoolID, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entries := make([]ReconciliationLogResponse, 0, len(result.Items))
	for _, e := range result.Items {
		entries = append(entries, ReconciliationLogResponse{
			ID:                e.ID,
			TransactionID:     e.TransactionID,
			GatewayOrderID:    e.GatewayOrderID,
			GatewayPaymentID:  e.GatewayPaymentID,
			GatewayStatus:     e.GatewayStatus,
			LocalStatusBefore: e.LocalStatusBefore,
			Action:            e.Action.String(),
			Detail:            e.Detail,
			RunAt:             e.RunAt,
		})
	}

	h.SuccessWithMeta(c, entries, result.Total, result.Page, result.PageSize)
}
