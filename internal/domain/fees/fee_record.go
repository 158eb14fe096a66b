package fees

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeRecordStatus represents the status of a fee record
type FeeRecordStatus string

const (
	FeeRecordStatusPending FeeRecordStatus = "PENDING" // Nothing collected, not yet overdue
	FeeRecordStatusPartial FeeRecordStatus = "PARTIAL" // Partially collected, not yet overdue
	FeeRecordStatusPaid    FeeRecordStatus = "PAID"    // Fully collected
	FeeRecordStatusLate    FeeRecordStatus = "LATE"    // Outstanding balance past the due date
)

// IsValid checks if the status is a valid FeeRecordStatus
func (s FeeRecordStatus) IsValid() bool {
	switch s {
	case FeeRecordStatusPending, FeeRecordStatusPartial, FeeRecordStatusPaid, FeeRecordStatusLate:
		return true
	}
	return false
}

// String returns the string representation of FeeRecordStatus
func (s FeeRecordStatus) String() string {
	return string(s)
}

// CanApplyPayment returns true if payments can be applied in this status
func (s FeeRecordStatus) CanApplyPayment() bool {
	return s != FeeRecordStatusPaid
}

// FeeRecord represents a financial obligation (demand) for one student,
// created from a fee template. It is the single shared mutable resource of
// the ledger: every payment, discount and late fine flows through it, and
// its balance invariant must hold under concurrent writers.
type FeeRecord struct {
	shared.SchoolAggregateRoot
	RecordNumber string     `json:"record_number"`
	StudentID    uuid.UUID  `json:"student_id"`
	ClassID      *uuid.UUID `json:"class_id"`
	TemplateID   uuid.UUID  `json:"template_id"`
	TemplateName string     `json:"template_name"`
	// ItemsSnapshot copies the template's line items at assignment time so
	// receipts survive later template edits.
	ItemsSnapshot FeeTemplateItems `json:"items_snapshot"`
	Amount        decimal.Decimal  `json:"amount"` // Template total at assignment time
	Discount      decimal.Decimal  `json:"discount"`
	LateFine      decimal.Decimal  `json:"late_fine"`
	AmountPaid    decimal.Decimal  `json:"amount_paid"`
	BalanceDue    decimal.Decimal  `json:"balance_due"`
	Status        FeeRecordStatus  `json:"status"`
	DueDate       time.Time        `json:"due_date"`
	// LastFinePeriod records the YYYY-MM period the late fine was last
	// applied for, so re-running the sweep never doubles the fine.
	LastFinePeriod string     `json:"last_fine_period"`
	PaidAt         *time.Time `json:"paid_at"`
}

// NewFeeRecord assigns a fee template to a student, snapshotting the
// template's total and item breakdown as they stand today.
func NewFeeRecord(
	schoolID uuid.UUID,
	recordNumber string,
	studentID uuid.UUID,
	classID *uuid.UUID,
	template *FeeTemplate,
	dueDate time.Time,
	discount decimal.Decimal,
) (*FeeRecord, error) {
	if recordNumber == "" {
		return nil, shared.NewDomainError("INVALID_RECORD_NUMBER", "Record number cannot be empty")
	}
	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}
	if template == nil {
		return nil, shared.NewDomainError("INVALID_TEMPLATE", "Template cannot be nil")
	}
	if template.SchoolID != schoolID {
		return nil, shared.NewDomainError("NOT_FOUND", "Template does not belong to this school")
	}
	if !template.Active {
		return nil, shared.NewDomainError("TEMPLATE_INACTIVE", "Cannot assign an inactive template")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be empty")
	}
	if discount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot be negative")
	}
	if discount.GreaterThan(template.TotalAmount) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT", "Discount cannot exceed the template total")
	}

	snapshot := make(FeeTemplateItems, len(template.Items))
	copy(snapshot, template.Items)

	r := &FeeRecord{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		RecordNumber:        recordNumber,
		StudentID:           studentID,
		ClassID:             classID,
		TemplateID:          template.ID,
		TemplateName:        template.Name,
		ItemsSnapshot:       snapshot,
		Amount:              template.TotalAmount,
		Discount:            discount,
		LateFine:            decimal.Zero,
		AmountPaid:          decimal.Zero,
		DueDate:             dueDate,
	}
	r.recompute()

	r.AddDomainEvent(NewFeeRecordAssignedEvent(r))

	return r, nil
}

// NetDemand returns the amount owed before payments:
// amount minus discount plus late fine.
func (r *FeeRecord) NetDemand() decimal.Decimal {
	return r.Amount.Sub(r.Discount).Add(r.LateFine)
}

// ApplyPayment applies a confirmed payment to the record.
// Rejects amounts that would overpay the outstanding balance beyond the
// rounding tolerance. The caller persists the change with an optimistic
// lock so two concurrent payments cannot both pass this check.
func (r *FeeRecord) ApplyPayment(amount valueobject.Money) error {
	if !r.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot apply payment to a record in %s status", r.Status))
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if amount.Amount().GreaterThan(r.BalanceDue.Add(valueobject.PaymentTolerance)) {
		return shared.NewDomainError("BALANCE_EXCEEDED",
			fmt.Sprintf("Payment amount %s exceeds outstanding balance %s", amount.StringFixed(2), r.BalanceDue.StringFixed(2)))
	}

	r.AmountPaid = r.AmountPaid.Add(amount.Amount())
	r.recompute()

	if r.Status == FeeRecordStatusPaid {
		now := time.Now()
		r.PaidAt = &now
		r.AddDomainEvent(NewFeeRecordPaidEvent(r))
	} else {
		r.AddDomainEvent(NewFeeRecordPaymentAppliedEvent(r, amount))
	}

	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	return nil
}

// ApplyLateFine adds a late fine for the given overdue period.
// Applying the same period twice is rejected, which makes the late-fee
// sweep safe to re-run.
func (r *FeeRecord) ApplyLateFine(fine valueobject.Money, period string) error {
	if period == "" {
		return shared.NewDomainError("INVALID_FINE_PERIOD", "Fine period cannot be empty")
	}
	if fine.Amount().LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Fine amount must be positive")
	}
	if !r.IsOverdue() {
		return shared.NewDomainError("NOT_OVERDUE", "Cannot fine a record that is not overdue")
	}
	if r.LastFinePeriod == period {
		return shared.NewDomainError("FINE_ALREADY_APPLIED", fmt.Sprintf("Late fine already applied for period %s", period))
	}

	r.LateFine = r.LateFine.Add(fine.Amount())
	r.LastFinePeriod = period
	r.recompute()
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	r.AddDomainEvent(NewLateFineAppliedEvent(r, fine, period))

	return nil
}

// recompute rederives the balance and status from the record's amounts.
// balance = max(0, amount - discount + lateFine - amountPaid).
func (r *FeeRecord) recompute() {
	balance := r.NetDemand().Sub(r.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	r.BalanceDue = balance
	r.Status = r.deriveStatus()
}

// deriveStatus is a pure function of the balance, paid amount and due date
func (r *FeeRecord) deriveStatus() FeeRecordStatus {
	if r.BalanceDue.LessThanOrEqual(valueobject.PaymentTolerance) {
		return FeeRecordStatusPaid
	}
	if time.Now().After(r.DueDate) {
		return FeeRecordStatusLate
	}
	if r.AmountPaid.GreaterThan(decimal.Zero) {
		return FeeRecordStatusPartial
	}
	return FeeRecordStatusPending
}

// RefreshStatus rederives the status without changing any amounts.
// Used when a record crosses its due date between mutations.
func (r *FeeRecord) RefreshStatus() bool {
	previous := r.Status
	r.Status = r.deriveStatus()
	return r.Status != previous
}

// IsOverdue returns true if the record has an outstanding balance past its due date
func (r *FeeRecord) IsOverdue() bool {
	if r.BalanceDue.LessThanOrEqual(valueobject.PaymentTolerance) {
		return false
	}
	return time.Now().After(r.DueDate)
}

// DaysOverdue returns the number of days past due (0 if not overdue)
func (r *FeeRecord) DaysOverdue() int {
	if !r.IsOverdue() {
		return 0
	}
	return int(time.Since(r.DueDate).Hours() / 24)
}

// IsPaid returns true if the record is fully collected
func (r *FeeRecord) IsPaid() bool {
	return r.Status == FeeRecordStatusPaid
}

// GetAmountMoney returns the demand amount as Money
func (r *FeeRecord) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(r.Amount)
}

// GetBalanceDueMoney returns the outstanding balance as Money
func (r *FeeRecord) GetBalanceDueMoney() valueobject.Money {
	return valueobject.NewMoneyINR(r.BalanceDue)
}

// GetAmountPaidMoney returns the collected amount as Money
func (r *FeeRecord) GetAmountPaidMoney() valueobject.Money {
	return valueobject.NewMoneyINR(r.AmountPaid)
}

// GetLateFineMoney returns the accumulated late fine as Money
func (r *FeeRecord) GetLateFineMoney() valueobject.Money {
	return valueobject.NewMoneyINR(r.LateFine)
}
