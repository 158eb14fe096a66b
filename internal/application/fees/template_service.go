package fees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TemplateService manages the fee template catalog
type TemplateService struct {
	templateRepo fees.FeeTemplateRepository
	recordRepo   fees.FeeRecordRepository
	logger       *zap.Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templateRepo fees.FeeTemplateRepository,
	recordRepo fees.FeeRecordRepository,
	logger *zap.Logger,
) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templateRepo: templateRepo,
		recordRepo:   recordRepo,
		logger:       logger,
	}
}

// CreateTemplateRequest carries the input for template creation
type CreateTemplateRequest struct {
	SchoolID  uuid.UUID
	Name      string
	Items     fees.FeeTemplateItems
	CreatedBy uuid.UUID
}

// CreateTemplate creates a new fee template
func (s *TemplateService) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*fees.FeeTemplate, error) {
	template, err := fees.NewFeeTemplate(req.SchoolID, req.Name, req.Items)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != uuid.Nil {
		template.SetCreatedBy(req.CreatedBy)
	}

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Fee template created",
		zap.String("template_id", template.ID.String()),
		zap.String("school_id", req.SchoolID.String()),
		zap.String("name", template.Name),
		zap.String("total", template.TotalAmount.String()))

	return template, nil
}

// GetTemplate returns one template by id
func (s *TemplateService) GetTemplate(ctx context.Context, schoolID, id uuid.UUID) (*fees.FeeTemplate, error) {
	template, err := s.templateRepo.FindByID(ctx, schoolID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	if template == nil {
		return nil, shared.ErrNotFound
	}
	return template, nil
}

// ListTemplates returns the school's templates
func (s *TemplateService) ListTemplates(ctx context.Context, schoolID uuid.UUID, filter shared.Filter) (shared.Paginated[*fees.FeeTemplate], error) {
	templates, total, err := s.templateRepo.FindAll(ctx, schoolID, filter)
	if err != nil {
		return shared.Paginated[*fees.FeeTemplate]{}, fmt.Errorf("failed to list templates: %w", err)
	}
	return shared.NewPaginated(templates, total, filter.Page, filter.PageSize), nil
}

// UpdateTemplateRequest carries the input for a template update
type UpdateTemplateRequest struct {
	SchoolID   uuid.UUID
	TemplateID uuid.UUID
	Name       string
	Items      fees.FeeTemplateItems
}

// UpdateTemplate replaces a template's items. Templates referenced by any
// fee record are frozen and cannot be updated.
func (s *TemplateService) UpdateTemplate(ctx context.Context, req UpdateTemplateRequest) (*fees.FeeTemplate, error) {
	template, err := s.GetTemplate(ctx, req.SchoolID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	inUse, err := s.recordRepo.CountByTemplate(ctx, req.SchoolID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to count template usage: %w", err)
	}
	if inUse > 0 {
		return nil, shared.NewDomainError("TEMPLATE_IN_USE",
			fmt.Sprintf("Template is referenced by %d fee record(s) and cannot be modified", inUse))
	}

	if err := template.UpdateItems(req.Name, req.Items); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Fee template updated",
		zap.String("template_id", template.ID.String()),
		zap.String("total", template.TotalAmount.String()))

	return template, nil
}

// DeleteTemplate removes a template that no fee record references
func (s *TemplateService) DeleteTemplate(ctx context.Context, schoolID, id uuid.UUID) error {
	if _, err := s.GetTemplate(ctx, schoolID, id); err != nil {
		return err
	}

	inUse, err := s.recordRepo.CountByTemplate(ctx, schoolID, id)
	if err != nil {
		return fmt.Errorf("failed to count template usage: %w", err)
	}
	if inUse > 0 {
		return shared.NewDomainError("TEMPLATE_IN_USE",
			fmt.Sprintf("Template is referenced by %d fee record(s) and cannot be deleted", inUse))
	}

	if err := s.templateRepo.Delete(ctx, schoolID, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.logger.Info("Fee template deleted",
		zap.String("template_id", id.String()),
		zap.String("school_id", schoolID.String()))

	return nil
}
