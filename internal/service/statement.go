package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/latefee"
)

// Statement is the derived, read-only view of a plan's payment progress.
type Statement struct {
	PlanID int64          `json:"plan_id"`
	Client *domain.Client `json:"client,omitempty"`
	Lot    *domain.Lot    `json:"lot,omitempty"`

	TotalScheduled decimal.Decimal `json:"total_scheduled"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalPending   decimal.Decimal `json:"total_pending"`
	PercentagePaid decimal.Decimal `json:"percentage_paid"`

	CapitalPaid  decimal.Decimal `json:"capital_paid"`
	InterestPaid decimal.Decimal `json:"interest_paid"`
	LateFeePaid  decimal.Decimal `json:"late_fee_paid"`

	StatusCounts map[domain.InstallmentStatus]int `json:"status_counts"`

	NextDue        *NextDue             `json:"next_due,omitempty"`
	Overdue        []domain.Installment `json:"overdue"`
	MaxDaysLate    int                  `json:"max_days_late"`
	InGoodStanding bool                 `json:"in_good_standing"`
}

// NextDue points at the earliest installment still in PENDING state.
// DaysUntilDue is negative when that due date has already passed but the
// installment has not flipped to OVERDUE yet, i.e. it sits inside the grace
// window or the nightly sweep has not reached it.
type NextDue struct {
	Installment  domain.Installment `json:"installment"`
	DaysUntilDue int                `json:"days_until_due"`
}

// BuildStatement derives the statement from a consistent snapshot of a plan's
// installments and payments. It never mutates its inputs.
func BuildStatement(planID int64, installments []domain.Installment, payments []domain.Payment, today time.Time) *Statement {
	st := &Statement{
		PlanID:         planID,
		TotalScheduled: decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalPending:   decimal.Zero,
		PercentagePaid: decimal.Zero,
		CapitalPaid:    decimal.Zero,
		InterestPaid:   decimal.Zero,
		LateFeePaid:    decimal.Zero,
		StatusCounts:   map[domain.InstallmentStatus]int{},
		Overdue:        []domain.Installment{},
	}

	for _, inst := range installments {
		st.TotalScheduled = st.TotalScheduled.Add(inst.TotalDue)
		st.TotalPaid = st.TotalPaid.Add(inst.PaidAmount)
		st.TotalPending = st.TotalPending.Add(inst.PendingAmount)
		st.StatusCounts[inst.Status]++

		if inst.Status == domain.InstallmentOverdue {
			st.Overdue = append(st.Overdue, inst)
		}
		if inst.DaysLate > st.MaxDaysLate {
			st.MaxDaysLate = inst.DaysLate
		}
		if inst.Status == domain.InstallmentPending && st.NextDue == nil {
			st.NextDue = &NextDue{
				Installment:  inst,
				DaysUntilDue: latefee.DaysBetween(today, inst.DueDate),
			}
		}
	}

	for _, p := range payments {
		st.CapitalPaid = st.CapitalPaid.Add(p.AllocatedCapital)
		st.InterestPaid = st.InterestPaid.Add(p.AllocatedInterest)
		st.LateFeePaid = st.LateFeePaid.Add(p.AllocatedLateFee)
	}

	if st.TotalScheduled.IsPositive() {
		st.PercentagePaid = st.TotalPaid.
			Div(st.TotalScheduled).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	st.InGoodStanding = st.StatusCounts[domain.InstallmentOverdue] == 0

	return st
}

// PlanReader and PaymentReader are the snapshot reads the aggregator needs.
type PlanReader interface {
	GetByID(ctx context.Context, tenantID string, planID int64, includeArchived bool) (*domain.PaymentPlan, error)
	ListInstallments(ctx context.Context, planID int64) ([]domain.Installment, error)
}

type PaymentReader interface {
	ListByPlan(ctx context.Context, planID int64) ([]domain.Payment, error)
}

type DisplayReader interface {
	GetByID(ctx context.Context, tenantID string, saleID int64) (*domain.Sale, error)
	GetClient(ctx context.Context, tenantID string, clientID int64) (*domain.Client, error)
	GetLot(ctx context.Context, tenantID string, lotID int64) (*domain.Lot, error)
}

type StatementCache interface {
	Get(ctx context.Context, tenantID string, planID int64) (string, error)
	Set(ctx context.Context, tenantID string, planID int64, payload string) error
}

type StatementService struct {
	plans    PlanReader
	payments PaymentReader
	sales    DisplayReader
	cache    StatementCache
	log      *logrus.Logger
}

func NewStatementService(plans PlanReader, payments PaymentReader, sales DisplayReader, cache StatementCache, log *logrus.Logger) *StatementService {
	return &StatementService{plans: plans, payments: payments, sales: sales, cache: cache, log: log}
}

// GetAccountStatement aggregates a plan's position. Results are cached
// briefly; the cache is invalidated whenever a payment lands on the plan.
func (s *StatementService) GetAccountStatement(ctx context.Context, tenantID string, planID int64) (*Statement, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, tenantID, planID); err == nil && raw != "" {
			var st Statement
			if err := json.Unmarshal([]byte(raw), &st); err == nil {
				return &st, nil
			}
		}
	}

	plan, err := s.plans.GetByID(ctx, tenantID, planID, false)
	if err != nil {
		return nil, err
	}
	installments, err := s.plans.ListInstallments(ctx, planID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	st := BuildStatement(planID, installments, payments, time.Now().UTC())

	if s.sales != nil {
		if sale, err := s.sales.GetByID(ctx, tenantID, plan.SaleID); err == nil {
			if client, err := s.sales.GetClient(ctx, tenantID, sale.ClientID); err == nil {
				st.Client = client
			}
			if lot, err := s.sales.GetLot(ctx, tenantID, sale.LotID); err == nil {
				st.Lot = lot
			}
		}
	}

	if s.cache != nil {
		if payload, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(ctx, tenantID, planID, string(payload)); err != nil {
				s.log.WithError(err).Debug("statement cache write failed")
			}
		}
	}
	return st, nil
}
