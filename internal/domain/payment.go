package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCheck    PaymentMethod = "CHECK"
	MethodCard     PaymentMethod = "CARD"
)

var paymentMethodDescriptions = map[PaymentMethod]string{
	MethodCash:     "Efectivo",
	MethodTransfer: "Transferencia",
	MethodCheck:    "Cheque",
	MethodCard:     "Tarjeta",
}

func (m PaymentMethod) Description() string {
	if d, ok := paymentMethodDescriptions[m]; ok {
		return d
	}
	return string(m)
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodDescriptions[m]
	return ok
}

// Payment is one applied payment. Written once per allocation call and never
// corrected afterwards.
type Payment struct {
	ID     int64
	PlanID int64

	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Reference   string

	AllocatedLateFee  decimal.Decimal
	AllocatedInterest decimal.Decimal
	AllocatedCapital  decimal.Decimal

	Allocations []PaymentAllocation

	CreatedAt time.Time
}

// PaymentAllocation records how much of a payment landed on one installment,
// split by bucket. One payment spanning several installments produces several
// rows.
type PaymentAllocation struct {
	ID            int64
	PaymentID     int64
	InstallmentID int64

	SequenceNumber int

	LateFee  decimal.Decimal
	Interest decimal.Decimal
	Capital  decimal.Decimal
}
