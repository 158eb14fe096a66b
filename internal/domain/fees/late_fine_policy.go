package fees

import (
	"time"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LateFinePolicyType selects how the fine is computed
type LateFinePolicyType string

const (
	// LateFinePolicyFlat applies a fixed amount per overdue period
	LateFinePolicyFlat LateFinePolicyType = "FLAT"
	// LateFinePolicyPercent applies a percentage of the remaining balance
	LateFinePolicyPercent LateFinePolicyType = "PERCENT"
)

// IsValid checks if the policy type is valid
func (t LateFinePolicyType) IsValid() bool {
	return t == LateFinePolicyFlat || t == LateFinePolicyPercent
}

// LateFinePolicy is the school-level rule for fining overdue records.
// Configuration lives outside the ledger; the policy value arrives with
// each sweep run.
type LateFinePolicy struct {
	Type LateFinePolicyType
	// Amount is the flat fine for FLAT policies
	Amount decimal.Decimal
	// Percent is the percentage of the remaining balance for PERCENT policies
	Percent decimal.Decimal
}

// Validate checks the policy's fields against its type
func (p LateFinePolicy) Validate() error {
	if !p.Type.IsValid() {
		return shared.NewDomainError("INVALID_FINE_POLICY", "Fine policy type is not valid")
	}
	switch p.Type {
	case LateFinePolicyFlat:
		if p.Amount.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_FINE_POLICY", "Flat fine amount must be positive")
		}
	case LateFinePolicyPercent:
		if p.Percent.LessThanOrEqual(decimal.Zero) || p.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewDomainError("INVALID_FINE_POLICY", "Fine percentage must be between 0 and 100")
		}
	}
	return nil
}

// FineFor computes the fine for an overdue record under this policy.
// Percent fines are rounded to 2 decimal places.
func (p LateFinePolicy) FineFor(record *FeeRecord) valueobject.Money {
	switch p.Type {
	case LateFinePolicyPercent:
		return valueobject.NewMoneyINR(record.BalanceDue.Mul(p.Percent).Div(decimal.NewFromInt(100)).Round(2))
	default:
		return valueobject.NewMoneyINR(p.Amount)
	}
}

// FinePeriod formats the overdue period key for a sweep run time (YYYY-MM)
func FinePeriod(t time.Time) string {
	return t.Format("2006-01")
}
