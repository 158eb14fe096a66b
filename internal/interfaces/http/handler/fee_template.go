package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// FeeTemplateHandler handles fee template endpoints
type FeeTemplateHandler struct {
	BaseHandler
	templates *appfees.TemplateService
}

// NewFeeTemplateHandler creates a new FeeTemplateHandler
func NewFeeTemplateHandler(templates *appfees.TemplateService) *FeeTemplateHandler {
	return &FeeTemplateHandler{templates: templates}
}

// RegisterRoutes registers fee template routes
func (h *FeeTemplateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/fees/templates")
	{
		group.POST("", h.Create)
		group.GET("", h.List)
		group.GET("/:id", h.GetByID)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
	}
}

// FeeItemInput is one named line item in a template request
type FeeItemInput struct {
	Name   string `json:"name" binding:"required,min=1,max=100"`
	Amount string `json:"amount" binding:"required,money"`
}

// CreateFeeTemplateRequest is the request body for template creation
type CreateFeeTemplateRequest struct {
	Name  string         `json:"name" binding:"required,min=1,max=100"`
	Items []FeeItemInput `json:"items" binding:"required,min=1,dive"`
}

// UpdateFeeTemplateRequest is the request body for a template update
type UpdateFeeTemplateRequest struct {
	Name  string         `json:"name" binding:"required,min=1,max=100"`
	Items []FeeItemInput `json:"items" binding:"required,min=1,dive"`
}

func parseItems(inputs []FeeItemInput) (fees.FeeTemplateItems, error) {
	items := make(fees.FeeTemplateItems, 0, len(inputs))
	for _, in := range inputs {
		amount, err := decimal.NewFromString(in.Amount)
		if err != nil {
			return nil, err
		}
		items = append(items, fees.FeeTemplateItem{Name: in.Name, Amount: amount})
	}
	return items, nil
}

// Create creates a new fee template
func (h *FeeTemplateHandler) Create(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var req CreateFeeTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, err := parseItems(req.Items)
	if err != nil {
		h.BadRequest(c, "Invalid item amount: "+err.Error())
		return
	}

	userID, _ := getUserID(c)

	template, err := h.templates.CreateTemplate(c.Request.Context(), appfees.CreateTemplateRequest{
		SchoolID:  schoolID,
		Name:      req.Name,
		Items:     items,
		CreatedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toTemplateResponse(template))
}

// List returns the school's fee templates
func (h *FeeTemplateHandler) List(c *gin.Context) {
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

	result, err := h.templates.ListTemplates(c.Request.Context(), schoolID, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toTemplateResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// GetByID returns one fee template
func (h *FeeTemplateHandler) GetByID(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}
	templateID := uuid.MustParse(uri.ID)

	template, err := h.templates.GetTemplate(c.Request.Context(), schoolID, templateID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTemplateResponse(template))
}

// Update replaces a template's name and items
func (h *FeeTemplateHandler) Update(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}
	templateID := uuid.MustParse(uri.ID)

	var req UpdateFeeTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items, err := parseItems(req.Items)
	if err != nil {
		h.BadRequest(c, "Invalid item amount: "+err.Error())
		return
	}

	template, err := h.templates.UpdateTemplate(c.Request.Context(), appfees.UpdateTemplateRequest{
		SchoolID:   schoolID,
		TemplateID: templateID,
		Name:       req.Name,
		Items:      items,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTemplateResponse(template))
}

// Delete removes an unused fee template
func (h *FeeTemplateHandler) Delete(c *gin.Context) {
	schoolID, err := getSchoolID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid school context")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid template ID")
		return
	}
	templateID := uuid.MustParse(uri.ID)

	if err := h.templates.DeleteTemplate(c.Request.Context(), schoolID, templateID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
