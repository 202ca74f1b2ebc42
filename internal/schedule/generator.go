package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"inmo-payments/internal/domain"
)

// Params are the plan fields the generator needs. Rates are percentages
// (1.00 = 1% per month).
type Params struct {
	FinancedAmount   decimal.Decimal
	InstallmentCount int
	MonthlyRate      decimal.Decimal
	FrequencyDays    int
	FirstDueDate     time.Time
	AppliesInterest  bool
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Generate builds the full installment table for a plan. French-method
// amortization when interest applies with a positive rate, equal-principal
// split otherwise. The sum of capital over all rows equals FinancedAmount to
// the cent: the last row absorbs any rounding drift.
func Generate(p Params) ([]domain.Installment, error) {
	if p.FinancedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Invalid("financed_amount", "must be greater than zero")
	}
	if p.InstallmentCount < 1 {
		return nil, domain.Invalid("installment_count", "must be at least 1")
	}
	if p.FrequencyDays < 1 {
		return nil, domain.Invalid("frequency_days", "must be at least 1")
	}
	if p.MonthlyRate.IsNegative() {
		return nil, domain.Invalid("monthly_rate", "must not be negative")
	}

	if p.AppliesInterest && p.MonthlyRate.IsPositive() {
		return generateFrench(p), nil
	}
	return generateEqualPrincipal(p), nil
}

// generateFrench produces a fixed-installment schedule:
//
//	A = P·i·(1+i)^n / ((1+i)^n − 1), i = monthlyRate/100
//
// Interest per period is computed on the declining balance and rounded to two
// decimals for storage; the final period's capital is forced to the remaining
// balance so the plan closes at exactly zero.
func generateFrench(p Params) []domain.Installment {
	n := p.InstallmentCount
	i := p.MonthlyRate.Div(hundred)

	factor := one.Add(i).Pow(decimal.NewFromInt(int64(n)))
	fixed := p.FinancedAmount.Mul(i).Mul(factor).
		Div(factor.Sub(one)).
		Round(2)

	out := make([]domain.Installment, 0, n)
	remaining := p.FinancedAmount

	for k := 1; k <= n; k++ {
		interest := remaining.Mul(i).Round(2)
		capital := fixed.Sub(interest)
		if k == n {
			// Absorb cumulative rounding drift: close the balance exactly.
			capital = remaining
		}
		remaining = remaining.Sub(capital)

		out = append(out, newInstallment(p, k, capital, interest, remaining))
	}
	return out
}

// generateEqualPrincipal splits the financed amount into n equal zero-interest
// parts; the last part takes the division remainder.
func generateEqualPrincipal(p Params) []domain.Installment {
	n := p.InstallmentCount
	base := p.FinancedAmount.Div(decimal.NewFromInt(int64(n))).Round(2)

	out := make([]domain.Installment, 0, n)
	remaining := p.FinancedAmount

	for k := 1; k <= n; k++ {
		capital := base
		if k == n {
			capital = remaining
		}
		remaining = remaining.Sub(capital)

		out = append(out, newInstallment(p, k, capital, decimal.Zero, remaining))
	}
	return out
}

func newInstallment(p Params, seq int, capital, interest, remaining decimal.Decimal) domain.Installment {
	total := capital.Add(interest)
	return domain.Installment{
		SequenceNumber:          seq,
		Capital:                 capital,
		Interest:                interest,
		TotalDue:                total,
		PaidAmount:              decimal.Zero,
		PendingAmount:           total,
		AccruedLateFee:          decimal.Zero,
		DaysLate:                0,
		DueDate:                 p.FirstDueDate.AddDate(0, 0, (seq-1)*p.FrequencyDays),
		Status:                  domain.InstallmentPending,
		RemainingPrincipalAfter: remaining,
	}
}
