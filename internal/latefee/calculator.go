package latefee

import (
	"time"

	"github.com/shopspring/decimal"

	"inmo-payments/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	thirty  = decimal.NewFromInt(30)
)

// DaysBetween counts whole calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	a = truncateDay(a)
	b = truncateDay(b)
	return int(b.Sub(a).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Sweep recomputes overdue state for every open installment of a plan as of
// today. The accrued fee is derived from the current pending amount each time,
// replacing the stored value rather than compounding across sweeps, so the
// sweep is idempotent for a fixed today. Returns the number of installments
// changed.
func Sweep(installments []domain.Installment, lateRateMonthly decimal.Decimal, graceDays int, today time.Time) int {
	dailyRate := lateRateMonthly.Div(hundred).Div(thirty)

	changed := 0
	for idx := range installments {
		inst := &installments[idx]
		if !inst.Status.Open() {
			continue
		}
		if !inst.DueDate.Before(truncateDay(today)) {
			continue
		}

		daysLate := DaysBetween(inst.DueDate, today) - graceDays
		if daysLate <= 0 {
			continue
		}

		fee := inst.PendingAmount.
			Mul(dailyRate).
			Mul(decimal.NewFromInt(int64(daysLate))).
			Round(2)

		status := inst.Status
		if status == domain.InstallmentPending {
			status = domain.InstallmentOverdue
		}

		if inst.DaysLate != daysLate || !inst.AccruedLateFee.Equal(fee) || inst.Status != status {
			changed++
		}
		inst.DaysLate = daysLate
		inst.AccruedLateFee = fee
		inst.Status = status
	}
	return changed
}
