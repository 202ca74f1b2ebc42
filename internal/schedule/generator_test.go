package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmo-payments/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestGenerateFrench(t *testing.T) {
	// 120000 at 1% monthly over 12 installments.
	installments, err := Generate(Params{
		FinancedAmount:   d("120000"),
		InstallmentCount: 12,
		MonthlyRate:      d("1.00"),
		FrequencyDays:    30,
		FirstDueDate:     date(2026, 2, 1),
		AppliesInterest:  true,
	})
	require.NoError(t, err)
	require.Len(t, installments, 12)

	first := installments[0]
	assert.True(t, first.Interest.Equal(d("1200.00")), "interest = %s", first.Interest)
	assert.True(t, first.Capital.Equal(d("9461.85")), "capital = %s", first.Capital)
	assert.True(t, first.TotalDue.Equal(d("10661.85")), "total = %s", first.TotalDue)

	// Fixed installment for every row except the last, which absorbs drift.
	fixed := d("10661.85")
	for _, inst := range installments[:11] {
		assert.True(t, inst.TotalDue.Equal(fixed), "installment %d total = %s", inst.SequenceNumber, inst.TotalDue)
	}
	last := installments[11]
	assert.True(t, last.Capital.Equal(d("10556.35")), "last capital = %s", last.Capital)
	assert.True(t, last.TotalDue.Equal(d("10661.91")), "last total = %s", last.TotalDue)

	// Capital sums back to the financed amount exactly.
	sum := decimal.Zero
	for _, inst := range installments {
		sum = sum.Add(inst.Capital)
	}
	assert.True(t, sum.Equal(d("120000")), "capital sum = %s", sum)
	assert.True(t, last.RemainingPrincipalAfter.IsZero())
}

func TestGenerateFrenchRunningBalance(t *testing.T) {
	installments, err := Generate(Params{
		FinancedAmount:   d("50000"),
		InstallmentCount: 6,
		MonthlyRate:      d("1.50"),
		FrequencyDays:    30,
		FirstDueDate:     date(2026, 3, 15),
		AppliesInterest:  true,
	})
	require.NoError(t, err)

	remaining := d("50000")
	for _, inst := range installments {
		expectedInterest := remaining.Mul(d("0.015")).Round(2)
		assert.True(t, inst.Interest.Equal(expectedInterest),
			"installment %d interest = %s, want %s", inst.SequenceNumber, inst.Interest, expectedInterest)
		remaining = remaining.Sub(inst.Capital)
		assert.True(t, inst.RemainingPrincipalAfter.Equal(remaining))
	}
	assert.True(t, remaining.IsZero())
}

func TestGenerateEqualPrincipal(t *testing.T) {
	installments, err := Generate(Params{
		FinancedAmount:   d("100000"),
		InstallmentCount: 4,
		MonthlyRate:      decimal.Zero,
		FrequencyDays:    30,
		FirstDueDate:     date(2026, 2, 1),
		AppliesInterest:  false,
	})
	require.NoError(t, err)
	require.Len(t, installments, 4)

	for _, inst := range installments {
		assert.True(t, inst.Capital.Equal(d("25000.00")), "installment %d capital = %s", inst.SequenceNumber, inst.Capital)
		assert.True(t, inst.Interest.IsZero())
		assert.True(t, inst.TotalDue.Equal(d("25000.00")))
	}
}

func TestGenerateEqualPrincipalRemainder(t *testing.T) {
	// 1000/3 does not divide evenly; the last installment takes the difference.
	installments, err := Generate(Params{
		FinancedAmount:   d("1000"),
		InstallmentCount: 3,
		MonthlyRate:      decimal.Zero,
		FrequencyDays:    15,
		FirstDueDate:     date(2026, 2, 1),
		AppliesInterest:  false,
	})
	require.NoError(t, err)

	assert.True(t, installments[0].Capital.Equal(d("333.33")))
	assert.True(t, installments[1].Capital.Equal(d("333.33")))
	assert.True(t, installments[2].Capital.Equal(d("333.34")))

	sum := decimal.Zero
	for _, inst := range installments {
		sum = sum.Add(inst.Capital)
	}
	assert.True(t, sum.Equal(d("1000")))
}

func TestGenerateZeroRateWithInterestFlag(t *testing.T) {
	// AppliesInterest with a zero rate degrades to the equal-principal split.
	installments, err := Generate(Params{
		FinancedAmount:   d("9000"),
		InstallmentCount: 3,
		MonthlyRate:      decimal.Zero,
		FrequencyDays:    30,
		FirstDueDate:     date(2026, 2, 1),
		AppliesInterest:  true,
	})
	require.NoError(t, err)
	for _, inst := range installments {
		assert.True(t, inst.Interest.IsZero())
		assert.True(t, inst.Capital.Equal(d("3000.00")))
	}
}

func TestGenerateDueDates(t *testing.T) {
	installments, err := Generate(Params{
		FinancedAmount:   d("3000"),
		InstallmentCount: 3,
		MonthlyRate:      decimal.Zero,
		FrequencyDays:    15,
		FirstDueDate:     date(2026, 1, 20),
		AppliesInterest:  false,
	})
	require.NoError(t, err)

	assert.Equal(t, date(2026, 1, 20), installments[0].DueDate)
	assert.Equal(t, date(2026, 2, 4), installments[1].DueDate)
	assert.Equal(t, date(2026, 2, 19), installments[2].DueDate)
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.SequenceNumber)
		assert.Equal(t, domain.InstallmentPending, inst.Status)
		assert.True(t, inst.PendingAmount.Equal(inst.TotalDue))
		assert.True(t, inst.PaidAmount.IsZero())
	}
}

func TestGenerateValidation(t *testing.T) {
	base := Params{
		FinancedAmount:   d("1000"),
		InstallmentCount: 3,
		MonthlyRate:      decimal.Zero,
		FrequencyDays:    30,
		FirstDueDate:     date(2026, 2, 1),
	}

	p := base
	p.FinancedAmount = decimal.Zero
	_, err := Generate(p)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "financed_amount", ve.Field)

	p = base
	p.InstallmentCount = 0
	_, err = Generate(p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "installment_count", ve.Field)

	p = base
	p.FrequencyDays = 0
	_, err = Generate(p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "frequency_days", ve.Field)

	p = base
	p.MonthlyRate = d("-1")
	_, err = Generate(p)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "monthly_rate", ve.Field)
}
