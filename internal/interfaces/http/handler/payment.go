package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// razorpaySignatureHeader carries the webhook HMAC signature
const razorpaySignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds the webhook payload read
const maxWebhookBody = 1 << 20

// PaymentHandler handles payment collection, gateway, and receipt endpoints
type PaymentHandler struct {
	BaseHandler
	collections *appfees.CollectionService
	receipts    *appfees.ReceiptService
	logger      *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(collections *appfees.CollectionService, receipts *appfees.ReceiptService, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{collections: collections, receipts: receipts, logger: logger}
}

// RegisterRoutes registers payment routes. The webhook route is excluded
// from bearer auth by the JWT middleware's skip list; it authenticates via
// the gateway's HMAC signature instead.
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/collect", h.CollectManual)
		payments.POST("/orders", h.CreateOrder)
		payments.POST("/webhook", h.Webhook)
		payments.GET("/transactions", h.ListTransactions)
		payments.GET("/transactions/:id", h.GetTransaction)
	}
	rg.GET("/receipts/:id", h.GetReceipt)
}

// CollectManualRequest is the request body for a clerk-recorded payment
type CollectManualRequest struct {
	FeeRecordID string              `json:"fee_record_id" binding:"required,uuid"`
	Amount      string              `json:"amount" binding:"required,money"`
	Details     PaymentDetailsInput `json:"details" binding:"required"`
}

// CollectManual records a payment collected in person
func (h *PaymentHandler) CollectManual(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req CollectManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	amount, err := valueobject.NewMoneyINRFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount: "+err.Error())
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user context")
		return
	}

	tx, err := h.collections.CollectManual(c.Request.Context(), appfees.CollectManualRequest{
		SchoolID:    schoolID,
		FeeRecordID: uuid.MustParse(req.FeeRecordID),
		Amount:      amount,
		Details:     req.Details.toDomain(),
		CollectedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toTransactionResponse(tx))
}

// CreateOrderRequest is the request body for opening a gateway order
type CreateOrderRequest struct {
	FeeRecordID string `json:"fee_record_id" binding:"required,uuid"`
	Amount      string `json:"amount" binding:"required,money"`
}

// CreateOrderResponse is the outcome of opening a gateway order
type CreateOrderResponse struct {
	Transaction    TransactionResponse `json:"transaction"`
	GatewayOrderID string              `json:"gateway_order_id"`
}

// CreateOrder opens an order with the payment gateway and records a
// pending transaction bound to it
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	amount, err := valueobject.NewMoneyINRFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount: "+err.Error())
		return
	}

	result, err := h.collections.CreateOrder(c.Request.Context(), appfees.CreateOrderRequest{
		SchoolID:    schoolID,
		FeeRecordID: uuid.MustParse(req.FeeRecordID),
		Amount:      amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, CreateOrderResponse{
		Transaction:    toTransactionResponse(result.Transaction),
		GatewayOrderID: result.GatewayOrderID,
	})
}

// WebhookResponse acknowledges a webhook delivery
type WebhookResponse struct {
	Processed        bool `json:"processed"`
	AlreadyProcessed bool `json:"already_processed,omitempty"`
}

// Webhook receives and applies one gateway webhook delivery. The gateway
// redelivers on any non-2xx status, so only errors that a retry could fix
// return one.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.BadRequest(c, "Failed to read webhook payload")
		return
	}

	signature := c.GetHeader(razorpaySignatureHeader)
	if signature == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing webhook signature")
		return
	}

	result, err := h.collections.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, appfees.ErrWebhookVerificationFailed):
			h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Webhook signature verification failed")
		case errors.Is(err, appfees.ErrWebhookOrderNotFound):
			// The order may not be persisted yet; a retry can succeed
			h.NotFound(c, "No transaction for gateway order")
		default:
			h.logger.Error("Webhook processing failed", zap.Error(err))
			h.HandleError(c, err)
		}
		return
	}

	h.Success(c, WebhookResponse{
		Processed:        result.Transaction != nil,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}

// ListTransactionsRequest is the query string for listing transactions
type ListTransactionsRequest struct {
	dto.ListRequest
	StudentID   string `form:"student_id" binding:"omitempty,uuid"`
	FeeRecordID string `form:"fee_record_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=PENDING SUCCESS FAILED"`
	Mode        string `form:"mode"`
}

// ListTransactions returns the school's payment transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	filter := fees.TransactionFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
	}
	if req.StudentID != "" {
		id := uuid.MustParse(req.StudentID)
		filter.StudentID = &id
	}
	if req.FeeRecordID != "" {
		id := uuid.MustParse(req.FeeRecordID)
		filter.FeeRecordID = &id
	}
	if req.Status != "" {
		status := fees.TransactionStatus(req.Status)
		filter.Status = &status
	}
	if req.Mode != "" {
		mode := fees.PaymentMode(req.Mode)
		if !mode.IsValid() {
			h.BadRequest(c, "Invalid payment mode")
			return
		}
		filter.Mode = &mode
	}

	result, err := h.receipts.ListTransactions(c.Request.Context(), schoolID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toTransactionResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// GetTransaction returns one payment transaction
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}
	transactionID := uuid.MustParse(uri.ID)

	tx, err := h.receipts.GetTransaction(c.Request.Context(), schoolID, transactionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTransactionResponse(tx))
}

// GetReceipt returns the receipt for a confirmed transaction. The receipt
// is rendered entirely from the snapshot persisted at collection time.
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}
	transactionID := uuid.MustParse(uri.ID)

	receipt, err := h.receipts.GetReceipt(c.Request.Context(), schoolID, transactionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipt)
}
