package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanTypeDirect   PlanType = "DIRECT"
	PlanTypeFinanced PlanType = "FINANCED"
)

// planTypeDescriptions keeps presentation text out of the variant itself.
var planTypeDescriptions = map[PlanType]string{
	PlanTypeDirect:   "Venta directa",
	PlanTypeFinanced: "Venta financiada",
}

func (t PlanType) Description() string {
	if d, ok := planTypeDescriptions[t]; ok {
		return d
	}
	return string(t)
}

// PaymentPlan is the financing agreement attached to a sale. One plan per
// sale; immutable after creation except for LateRateMonthly, GraceDays and
// Notes (administrative corrections).
type PaymentPlan struct {
	ID       int64
	TenantID string
	SaleID   int64

	PlanType      PlanType
	FrequencyDays int

	TotalAmount    decimal.Decimal
	DownPayment    decimal.Decimal
	FinancedAmount decimal.Decimal // TotalAmount - DownPayment

	AnnualRate      decimal.Decimal // percent, e.g. 12.00
	MonthlyRate     decimal.Decimal // AnnualRate / 12
	AppliesInterest bool

	InstallmentCount int
	LateRateMonthly  decimal.Decimal // percent per month on pending amount
	GraceDays        int

	StartDate    time.Time
	FirstDueDate time.Time
	LastDueDate  time.Time

	Notes *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

// Sale is the read-only collaborator the plan is created against.
type Sale struct {
	ID       int64
	TenantID string
	ClientID int64
	LotID    int64
	Price    decimal.Decimal
}

// Client carries the display fields statements need.
type Client struct {
	ID       int64
	FullName string
	Document *string
}

// Lot labels a statement with what was sold.
type Lot struct {
	ID          int64
	Code        string
	ProjectName string
}
