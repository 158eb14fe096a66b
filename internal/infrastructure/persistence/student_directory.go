package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStudentDirectory resolves student references against the platform's
// student table. The fee ledger never writes to it.
type GormStudentDirectory struct {
	db *gorm.DB
}

// NewGormStudentDirectory creates a new GormStudentDirectory
func NewGormStudentDirectory(db *gorm.DB) *GormStudentDirectory {
	return &GormStudentDirectory{db: db}
}

// Lookup returns the student for the school. Students of other schools are
// indistinguishable from missing students.
func (d *GormStudentDirectory) Lookup(ctx context.Context, schoolID, studentID uuid.UUID) (*fees.StudentRef, error) {
	var model models.StudentModel
	if err := d.db.WithContext(ctx).
		Where("school_id = ? AND id = ?", schoolID, studentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Student not found")
		}
		return nil, err
	}
	return &fees.StudentRef{
		ID:      model.ID,
		ClassID: model.ClassID,
		Name:    model.Name,
	}, nil
}

// Ensure GormStudentDirectory implements StudentDirectory
var _ fees.StudentDirectory = (*GormStudentDirectory)(nil)
