package fees

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeTemplateItem is a named line item within a fee template
// (e.g. Tuition, Transport, Library).
type FeeTemplateItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeTemplateItems is a slice of FeeTemplateItem that implements GORM Scanner/Valuer for JSONB storage
type FeeTemplateItems []FeeTemplateItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (i FeeTemplateItems) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	return json.Marshal(i)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (i *FeeTemplateItems) Scan(value interface{}) error {
	if value == nil {
		*i = FeeTemplateItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan FeeTemplateItems: unsupported type")
	}

	if len(bytes) == 0 {
		*i = FeeTemplateItems{}
		return nil
	}

	return json.Unmarshal(bytes, i)
}

// Total returns the sum of all item amounts
func (i FeeTemplateItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i {
		total = total.Add(item.Amount)
	}
	return total
}

// Validate checks that every item has a name and a positive amount
func (i FeeTemplateItems) Validate() error {
	if len(i) == 0 {
		return shared.NewDomainError("INVALID_TEMPLATE_ITEMS", "Template must contain at least one item")
	}
	for idx, item := range i {
		if item.Name == "" {
			return shared.NewDomainError("INVALID_TEMPLATE_ITEMS", fmt.Sprintf("Item %d has no name", idx+1))
		}
		if item.Amount.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_TEMPLATE_ITEMS", fmt.Sprintf("Item %q must have a positive amount", item.Name))
		}
	}
	return nil
}

// FeeTemplate represents a reusable fee composition defined by the school.
// Once any fee record has been assigned from it, the template is frozen:
// edits and deletion are rejected so historical demands keep their meaning.
type FeeTemplate struct {
	shared.SchoolAggregateRoot
	Name        string           `json:"name"`
	Items       FeeTemplateItems `json:"items"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Active      bool             `json:"active"`
}

// NewFeeTemplate creates a new fee template
func NewFeeTemplate(schoolID uuid.UUID, name string, items FeeTemplateItems) (*FeeTemplate, error) {
	if schoolID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCHOOL", "School ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_TEMPLATE_NAME", "Template name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_TEMPLATE_NAME", "Template name cannot exceed 100 characters")
	}
	if err := items.Validate(); err != nil {
		return nil, err
	}

	t := &FeeTemplate{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		Name:                name,
		Items:               items,
		TotalAmount:         items.Total(),
		Active:              true,
	}

	t.AddDomainEvent(NewFeeTemplateCreatedEvent(t))

	return t, nil
}

// UpdateItems replaces the template's line items and recomputes the total.
// Callers must first verify no fee record references the template.
func (t *FeeTemplate) UpdateItems(name string, items FeeTemplateItems) error {
	if name == "" {
		return shared.NewDomainError("INVALID_TEMPLATE_NAME", "Template name cannot be empty")
	}
	if err := items.Validate(); err != nil {
		return err
	}

	t.Name = name
	t.Items = items
	t.TotalAmount = items.Total()
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// Deactivate marks the template as inactive so it cannot be assigned
func (t *FeeTemplate) Deactivate() {
	t.Active = false
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// GetTotalAmountMoney returns the total as Money
func (t *FeeTemplate) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(t.TotalAmount)
}
