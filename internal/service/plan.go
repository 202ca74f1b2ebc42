package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/schedule"
)

var twelve = decimal.NewFromInt(12)

// PlanStore is the plan persistence the lifecycle service needs.
type PlanStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	GetByID(ctx context.Context, tenantID string, planID int64, includeArchived bool) (*domain.PaymentPlan, error)
	ExistsForSale(ctx context.Context, tenantID string, saleID int64) (bool, error)
	Create(ctx context.Context, tx *sql.Tx, plan *domain.PaymentPlan, installments []domain.Installment) error
	ListInstallments(ctx context.Context, planID int64) ([]domain.Installment, error)
	UpdateAdministrative(ctx context.Context, tenantID string, planID int64, lateRateMonthly, graceDays any, notes *string) error
	Archive(ctx context.Context, tenantID string, planID int64) error
}

// SaleReader resolves the sale a plan is created against.
type SaleReader interface {
	GetByID(ctx context.Context, tenantID string, saleID int64) (*domain.Sale, error)
}

// CreatePlanInput carries the plan parameters as received at the boundary.
// MontoTotal may be zero, in which case the sale price is used.
type CreatePlanInput struct {
	SaleID           int64
	PlanType         domain.PlanType
	FrequencyDays    int
	MontoTotal       decimal.Decimal
	Enganche         decimal.Decimal
	TasaInteresAnual decimal.Decimal
	AplicaInteres    bool
	NumeroPagos      int
	TasaMoraMensual  decimal.Decimal
	DiasGracia       int
	FechaInicio      time.Time
	FechaPrimerPago  time.Time
	Notes            *string
}

type PlanSummary struct {
	Plan         *domain.PaymentPlan
	Installments []domain.Installment
}

type PlanService struct {
	plans PlanStore
	sales SaleReader
	log   *logrus.Logger
}

func NewPlanService(plans PlanStore, sales SaleReader, log *logrus.Logger) *PlanService {
	return &PlanService{plans: plans, sales: sales, log: log}
}

// ValidateCreatePlan checks the input ranges before any storage access.
// Exported so the numbers-only rules can be exercised without a database.
func ValidateCreatePlan(in CreatePlanInput) error {
	if in.SaleID <= 0 {
		return domain.Invalid("sale_id", "is required")
	}
	if in.PlanType != domain.PlanTypeDirect && in.PlanType != domain.PlanTypeFinanced {
		return domain.Invalid("tipo_plan", "unknown plan type")
	}
	if in.MontoTotal.IsNegative() {
		return domain.Invalid("monto_total", "must not be negative")
	}
	if in.Enganche.IsNegative() {
		return domain.Invalid("enganche", "must not be negative")
	}
	if in.MontoTotal.IsPositive() && in.Enganche.GreaterThan(in.MontoTotal) {
		return domain.Invalid("enganche", "must not exceed monto_total")
	}
	if in.NumeroPagos < 1 {
		return domain.Invalid("numero_pagos", "must be at least 1")
	}
	if in.FrequencyDays < 1 {
		return domain.Invalid("frequency_days", "must be at least 1")
	}
	if in.AplicaInteres && !in.TasaInteresAnual.IsPositive() {
		return domain.Invalid("tasa_interes_anual", "interest applies but rate is zero")
	}
	if in.TasaInteresAnual.IsNegative() {
		return domain.Invalid("tasa_interes_anual", "must not be negative")
	}
	if in.TasaMoraMensual.IsNegative() {
		return domain.Invalid("tasa_mora_mensual", "must not be negative")
	}
	if in.DiasGracia < 0 {
		return domain.Invalid("dias_gracia", "must not be negative")
	}
	if in.FechaPrimerPago.IsZero() {
		return domain.Invalid("fecha_primer_pago", "is required")
	}
	return nil
}

// BuildPlan is the explicit factory computing every derived field up front;
// nothing is filled in later by persistence hooks.
func BuildPlan(tenantID string, sale *domain.Sale, in CreatePlanInput) (*domain.PaymentPlan, error) {
	total := in.MontoTotal
	if total.IsZero() {
		total = sale.Price
	}
	if in.Enganche.GreaterThan(total) {
		return nil, domain.Invalid("enganche", "must not exceed monto_total")
	}

	financed := total.Sub(in.Enganche)
	if !financed.IsPositive() {
		return nil, domain.Invalid("monto_total", "financed amount must be greater than zero")
	}

	monthlyRate := decimal.Zero
	if in.AplicaInteres {
		monthlyRate = in.TasaInteresAnual.Div(twelve)
	}

	return &domain.PaymentPlan{
		TenantID:         tenantID,
		SaleID:           sale.ID,
		PlanType:         in.PlanType,
		FrequencyDays:    in.FrequencyDays,
		TotalAmount:      total,
		DownPayment:      in.Enganche,
		FinancedAmount:   financed,
		AnnualRate:       in.TasaInteresAnual,
		MonthlyRate:      monthlyRate,
		AppliesInterest:  in.AplicaInteres,
		InstallmentCount: in.NumeroPagos,
		LateRateMonthly:  in.TasaMoraMensual,
		GraceDays:        in.DiasGracia,
		StartDate:        in.FechaInicio,
		FirstDueDate:     in.FechaPrimerPago,
		LastDueDate:      in.FechaPrimerPago.AddDate(0, 0, (in.NumeroPagos-1)*in.FrequencyDays),
		Notes:            in.Notes,
	}, nil
}

// CreatePlan validates, derives, generates the schedule and persists plan plus
// installments in a single transaction. One plan per sale.
func (s *PlanService) CreatePlan(ctx context.Context, tenantID string, in CreatePlanInput) (*PlanSummary, error) {
	if err := ValidateCreatePlan(in); err != nil {
		return nil, err
	}

	sale, err := s.sales.GetByID(ctx, tenantID, in.SaleID)
	if err != nil {
		return nil, err
	}

	exists, err := s.plans.ExistsForSale(ctx, tenantID, in.SaleID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Conflict("a payment plan already exists for this sale")
	}

	plan, err := BuildPlan(tenantID, sale, in)
	if err != nil {
		return nil, err
	}

	installments, err := schedule.Generate(schedule.Params{
		FinancedAmount:   plan.FinancedAmount,
		InstallmentCount: plan.InstallmentCount,
		MonthlyRate:      plan.MonthlyRate,
		FrequencyDays:    plan.FrequencyDays,
		FirstDueDate:     plan.FirstDueDate,
		AppliesInterest:  plan.AppliesInterest,
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.plans.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.plans.Create(ctx, tx, plan, installments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"plan_id":      plan.ID,
		"sale_id":      plan.SaleID,
		"installments": len(installments),
		"financed":     plan.FinancedAmount.StringFixed(2),
	}).Info("payment plan created")

	return &PlanSummary{Plan: plan, Installments: installments}, nil
}

// GetSchedule returns the ordered installment table.
func (s *PlanService) GetSchedule(ctx context.Context, tenantID string, planID int64) ([]domain.Installment, error) {
	if _, err := s.plans.GetByID(ctx, tenantID, planID, false); err != nil {
		return nil, err
	}
	return s.plans.ListInstallments(ctx, planID)
}

// AdminUpdateInput carries the only fields a plan admits after creation.
// Nil means "leave unchanged".
type AdminUpdateInput struct {
	TasaMoraMensual *decimal.Decimal
	DiasGracia      *int
	Notes           *string
}

func (s *PlanService) UpdateAdministrative(ctx context.Context, tenantID string, planID int64, in AdminUpdateInput) error {
	if in.TasaMoraMensual != nil && in.TasaMoraMensual.IsNegative() {
		return domain.Invalid("tasa_mora_mensual", "must not be negative")
	}
	if in.DiasGracia != nil && *in.DiasGracia < 0 {
		return domain.Invalid("dias_gracia", "must not be negative")
	}

	var lateRate, graceDays any
	if in.TasaMoraMensual != nil {
		lateRate = in.TasaMoraMensual.String()
	}
	if in.DiasGracia != nil {
		graceDays = *in.DiasGracia
	}
	if err := s.plans.UpdateAdministrative(ctx, tenantID, planID, lateRate, graceDays, in.Notes); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"tenant_id": tenantID, "plan_id": planID}).Info("plan administrative fields updated")
	return nil
}

// Archive retires a plan. Archived plans drop out of the nightly sweep and
// reject further reads unless the caller opts in.
func (s *PlanService) Archive(ctx context.Context, tenantID string, planID int64) error {
	if err := s.plans.Archive(ctx, tenantID, planID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"tenant_id": tenantID, "plan_id": planID}).Info("plan archived")
	return nil
}
