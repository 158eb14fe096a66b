package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// FeeLedgerHandler handles fee assignment and fee record endpoints
type FeeLedgerHandler struct {
	BaseHandler
	ledger *appfees.LedgerService
}

// NewFeeLedgerHandler creates a new FeeLedgerHandler
func NewFeeLedgerHandler(ledger *appfees.LedgerService) *FeeLedgerHandler {
	return &FeeLedgerHandler{ledger: ledger}
}

// RegisterRoutes registers fee ledger routes
func (h *FeeLedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/fees")
	{
		group.POST("/assign", h.Assign)
		group.POST("/assign-and-collect", h.AssignAndCollect)
		group.GET("/records", h.ListRecords)
		group.GET("/records/:id", h.GetRecord)
	}
}

// AssignFeeRequest is the request body for assigning a fee to a student
type AssignFeeRequest struct {
	StudentID  string    `json:"student_id" binding:"required,uuid"`
	TemplateID string    `json:"template_id" binding:"required,uuid"`
	DueDate    time.Time `json:"due_date" binding:"required"`
	Discount   string    `json:"discount" binding:"omitempty,money"`
}

// AssignAndCollectFeeRequest is the request body for the atomic
// assign-plus-first-payment flow
type AssignAndCollectFeeRequest struct {
	AssignFeeRequest
	Payment *CollectPaymentInput `json:"payment" binding:"omitempty"`
}

// CollectPaymentInput is the immediate payment on assign-and-collect
type CollectPaymentInput struct {
	Amount  string              `json:"amount" binding:"required,money"`
	Details PaymentDetailsInput `json:"details" binding:"required"`
}

func (r AssignFeeRequest) toDomain(schoolID, userID uuid.UUID) (appfees.AssignRequest, error) {
	discount := decimal.Zero
	if r.Discount != "" {
		var err error
		discount, err = decimal.NewFromString(r.Discount)
		if err != nil {
			return appfees.AssignRequest{}, err
		}
	}

	return appfees.AssignRequest{
		SchoolID:   schoolID,
		StudentID:  uuid.MustParse(r.StudentID),
		TemplateID: uuid.MustParse(r.TemplateID),
		DueDate:    r.DueDate,
		Discount:   discount,
		CreatedBy:  userID,
	}, nil
}

// Assign creates a fee record for a student from a template
func (h *FeeLedgerHandler) Assign(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req AssignFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	userID, _ := getUserID(c)
	appReq, err := req.toDomain(schoolID, userID)
	if err != nil {
		h.BadRequest(c, "Invalid discount: "+err.Error())
		return
	}

	record, err := h.ledger.Assign(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toRecordResponse(record))
}

// AssignAndCollectResponse is the outcome of an assign-and-collect call
type AssignAndCollectResponse struct {
	Record      FeeRecordResponse    `json:"record"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// AssignAndCollect creates a fee record and records the first payment
// against it in one atomic operation
func (h *FeeLedgerHandler) AssignAndCollect(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req AssignAndCollectFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	userID, _ := getUserID(c)
	assignReq, err := req.AssignFeeRequest.toDomain(schoolID, userID)
	if err != nil {
		h.BadRequest(c, "Invalid discount: "+err.Error())
		return
	}

	appReq := appfees.AssignAndCollectRequest{AssignRequest: assignReq}
	if req.Payment != nil {
		amount, err := valueobject.NewMoneyINRFromString(req.Payment.Amount)
		if err != nil {
			h.BadRequest(c, "Invalid payment amount: "+err.Error())
			return
		}
		appReq.Payment = &appfees.CollectInput{
			Amount:  amount,
			Details: req.Payment.Details.toDomain(),
		}
	}

	result, err := h.ledger.AssignAndCollect(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := AssignAndCollectResponse{Record: toRecordResponse(result.Record)}
	if result.Transaction != nil {
		tx := toTransactionResponse(result.Transaction)
		resp.Transaction = &tx
	}

	h.Created(c, resp)
}

// ListFeeRecordsRequest is the query string for listing fee records
type ListFeeRecordsRequest struct {
	dto.ListRequest
	StudentID   string `form:"student_id" binding:"omitempty,uuid"`
	ClassID     string `form:"class_id" binding:"omitempty,uuid"`
	TemplateID  string `form:"template_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=PENDING PARTIAL PAID LATE"`
	OverdueOnly bool   `form:"overdue_only"`
}

// ListRecords returns the school's fee records matching the filter
func (h *FeeLedgerHandler) ListRecords(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req ListFeeRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := fees.FeeRecordFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
		OverdueOnly: req.OverdueOnly,
	}
	if req.StudentID != "" {
		id := uuid.MustParse(req.StudentID)
		filter.StudentID = &id
	}
	if req.ClassID != "" {
		id := uuid.MustParse(req.ClassID)
		filter.ClassID = &id
	}
	if req.TemplateID != "" {
		id := uuid.MustParse(req.TemplateID)
		filter.TemplateID = &id
	}
	if req.Status != "" {
		status := fees.FeeRecordStatus(req.Status)
		filter.Status = &status
	}

	result, err := h.ledger.ListRecords(c.Request.Context(), schoolID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toRecordResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// GetRecord returns one fee record
func (h *FeeLedgerHandler) GetRecord(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid record ID")
		return
	}
	recordID := uuid.MustParse(uri.ID)

	record, err := h.ledger.GetRecord(c.Request.Context(), schoolID, recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRecordResponse(record))
}
