package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "PENDING"
	InstallmentPartiallyPaid InstallmentStatus = "PARTIALLY_PAID"
	InstallmentPaid          InstallmentStatus = "PAID"
	InstallmentOverdue       InstallmentStatus = "OVERDUE"
)

var installmentStatusDescriptions = map[InstallmentStatus]string{
	InstallmentPending:       "Pendiente",
	InstallmentPartiallyPaid: "Pago parcial",
	InstallmentPaid:          "Pagada",
	InstallmentOverdue:       "Vencida",
}

func (s InstallmentStatus) Description() string {
	if d, ok := installmentStatusDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// Open reports whether the installment can still receive money.
func (s InstallmentStatus) Open() bool {
	return s == InstallmentPending || s == InstallmentPartiallyPaid || s == InstallmentOverdue
}

// Installment is one scheduled obligation (cuota) of a plan. The row count is
// fixed at plan creation; only the late-fee sweep and the payment allocator
// mutate it afterwards.
type Installment struct {
	ID     int64
	PlanID int64

	SequenceNumber int
	Capital        decimal.Decimal
	Interest       decimal.Decimal
	TotalDue       decimal.Decimal // Capital + Interest

	PaidAmount    decimal.Decimal
	PendingAmount decimal.Decimal // TotalDue - PaidAmount, never negative

	AccruedLateFee decimal.Decimal
	DaysLate       int

	DueDate  time.Time
	PaidDate *time.Time

	Status InstallmentStatus

	RemainingPrincipalAfter decimal.Decimal
}
