package fees

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTemplateService(t *testing.T) {
	schoolID := uuid.New()

	items := fees.FeeTemplateItems{
		{Name: "Tuition", Amount: decimal.NewFromInt(5000)},
		{Name: "Transport", Amount: decimal.NewFromInt(500)},
	}

	t.Run("create", func(t *testing.T) {
		templateRepo := &MockFeeTemplateRepository{}
		service := NewTemplateService(templateRepo, &MockFeeRecordRepository{}, nil)

		templateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		template, err := service.CreateTemplate(context.Background(), CreateTemplateRequest{
			SchoolID: schoolID,
			Name:     "Term 1 Fees",
			Items:    items,
		})

		require.NoError(t, err)
		assert.Equal(t, "5500", template.TotalAmount.String())
		templateRepo.AssertExpectations(t)
	})

	t.Run("create rejects invalid items", func(t *testing.T) {
		service := NewTemplateService(&MockFeeTemplateRepository{}, &MockFeeRecordRepository{}, nil)

		_, err := service.CreateTemplate(context.Background(), CreateTemplateRequest{
			SchoolID: schoolID,
			Name:     "Bad",
			Items:    fees.FeeTemplateItems{{Name: "Tuition", Amount: decimal.Zero}},
		})

		assert.Error(t, err)
	})

	t.Run("update blocked while referenced", func(t *testing.T) {
		templateRepo := &MockFeeTemplateRepository{}
		recordRepo := &MockFeeRecordRepository{}
		service := NewTemplateService(templateRepo, recordRepo, nil)

		template, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", items)
		require.NoError(t, err)

		templateRepo.On("FindByID", mock.Anything, schoolID, template.ID).Return(template, nil)
		recordRepo.On("CountByTemplate", mock.Anything, schoolID, template.ID).Return(int64(3), nil)

		_, err = service.UpdateTemplate(context.Background(), UpdateTemplateRequest{
			SchoolID:   schoolID,
			TemplateID: template.ID,
			Name:       "Term 1 Fees v2",
			Items:      items,
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "TEMPLATE_IN_USE", domainErr.Code)
		templateRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("update succeeds when unreferenced", func(t *testing.T) {
		templateRepo := &MockFeeTemplateRepository{}
		recordRepo := &MockFeeRecordRepository{}
		service := NewTemplateService(templateRepo, recordRepo, nil)

		template, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", items)
		require.NoError(t, err)

		templateRepo.On("FindByID", mock.Anything, schoolID, template.ID).Return(template, nil)
		recordRepo.On("CountByTemplate", mock.Anything, schoolID, template.ID).Return(int64(0), nil)
		templateRepo.On("Save", mock.Anything, template).Return(nil)

		updated, err := service.UpdateTemplate(context.Background(), UpdateTemplateRequest{
			SchoolID:   schoolID,
			TemplateID: template.ID,
			Name:       "Term 1 Fees v2",
			Items: fees.FeeTemplateItems{
				{Name: "Tuition", Amount: decimal.NewFromInt(6000)},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "6000", updated.TotalAmount.String())
	})

	t.Run("delete blocked while referenced", func(t *testing.T) {
		templateRepo := &MockFeeTemplateRepository{}
		recordRepo := &MockFeeRecordRepository{}
		service := NewTemplateService(templateRepo, recordRepo, nil)

		template, err := fees.NewFeeTemplate(schoolID, "Term 1 Fees", items)
		require.NoError(t, err)

		templateRepo.On("FindByID", mock.Anything, schoolID, template.ID).Return(template, nil)
		recordRepo.On("CountByTemplate", mock.Anything, schoolID, template.ID).Return(int64(1), nil)

		err = service.DeleteTemplate(context.Background(), schoolID, template.ID)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "TEMPLATE_IN_USE", domainErr.Code)
		templateRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		templateRepo := &MockFeeTemplateRepository{}
		service := NewTemplateService(templateRepo, &MockFeeRecordRepository{}, nil)

		missing := uuid.New()
		templateRepo.On("FindByID", mock.Anything, schoolID, missing).Return(nil, nil)

		_, err := service.GetTemplate(context.Background(), schoolID, missing)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
