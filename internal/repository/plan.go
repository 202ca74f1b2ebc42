package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inmo-payments/internal/domain"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// BeginTx starts the transaction mutating operations run inside.
func (r *PlanRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

const planColumns = `id, tenant_id, sale_id, plan_type, frequency_days, total_amount, down_payment,
	financed_amount, annual_rate, monthly_rate, applies_interest, installment_count,
	late_rate_monthly, grace_days, start_date, first_due_date, last_due_date, notes,
	created_at, updated_at, archived_at`

func scanPlan(row interface{ Scan(...any) error }) (*domain.PaymentPlan, error) {
	var p domain.PaymentPlan
	err := row.Scan(
		&p.ID, &p.TenantID, &p.SaleID, &p.PlanType, &p.FrequencyDays, &p.TotalAmount, &p.DownPayment,
		&p.FinancedAmount, &p.AnnualRate, &p.MonthlyRate, &p.AppliesInterest, &p.InstallmentCount,
		&p.LateRateMonthly, &p.GraceDays, &p.StartDate, &p.FirstDueDate, &p.LastDueDate, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt, &p.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, tenantID string, planID int64, includeArchived bool) (*domain.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE tenant_id = $1 AND id = $2`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	p, err := scanPlan(r.db.QueryRowContext(ctx, query, tenantID, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("plan", planID)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %d: %w", planID, err)
	}
	return p, nil
}

// GetForUpdate loads the plan inside tx with a row lock, serializing
// concurrent allocations against the same plan.
func (r *PlanRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, tenantID string, planID int64) (*domain.PaymentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans
		WHERE tenant_id = $1 AND id = $2 AND archived_at IS NULL
		FOR UPDATE`
	p, err := scanPlan(tx.QueryRowContext(ctx, query, tenantID, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("plan", planID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock plan %d: %w", planID, err)
	}
	return p, nil
}

func (r *PlanRepository) ExistsForSale(ctx context.Context, tenantID string, saleID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payment_plans WHERE tenant_id = $1 AND sale_id = $2 AND archived_at IS NULL)`,
		tenantID, saleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check plan for sale %d: %w", saleID, err)
	}
	return exists, nil
}

// Create inserts the plan and its full installment batch inside tx.
func (r *PlanRepository) Create(ctx context.Context, tx *sql.Tx, plan *domain.PaymentPlan, installments []domain.Installment) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payment_plans (
			tenant_id, sale_id, plan_type, frequency_days, total_amount, down_payment,
			financed_amount, annual_rate, monthly_rate, applies_interest, installment_count,
			late_rate_monthly, grace_days, start_date, first_due_date, last_due_date, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
		RETURNING id, created_at, updated_at`,
		plan.TenantID, plan.SaleID, plan.PlanType, plan.FrequencyDays, plan.TotalAmount, plan.DownPayment,
		plan.FinancedAmount, plan.AnnualRate, plan.MonthlyRate, plan.AppliesInterest, plan.InstallmentCount,
		plan.LateRateMonthly, plan.GraceDays, plan.StartDate, plan.FirstDueDate, plan.LastDueDate, plan.Notes,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments (
			plan_id, sequence_number, capital, interest, total_due, paid_amount, pending_amount,
			accrued_late_fee, days_late, due_date, paid_date, status, remaining_principal_after
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id`)
	if err != nil {
		return fmt.Errorf("prepare installment insert: %w", err)
	}
	defer stmt.Close()

	for idx := range installments {
		inst := &installments[idx]
		inst.PlanID = plan.ID
		err := stmt.QueryRowContext(ctx,
			inst.PlanID, inst.SequenceNumber, inst.Capital, inst.Interest, inst.TotalDue,
			inst.PaidAmount, inst.PendingAmount, inst.AccruedLateFee, inst.DaysLate,
			inst.DueDate, inst.PaidDate, inst.Status, inst.RemainingPrincipalAfter,
		).Scan(&inst.ID)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.SequenceNumber, err)
		}
	}
	return nil
}

const installmentColumns = `id, plan_id, sequence_number, capital, interest, total_due, paid_amount,
	pending_amount, accrued_late_fee, days_late, due_date, paid_date, status, remaining_principal_after`

func scanInstallments(rows *sql.Rows) ([]domain.Installment, error) {
	var out []domain.Installment
	for rows.Next() {
		var inst domain.Installment
		if err := rows.Scan(
			&inst.ID, &inst.PlanID, &inst.SequenceNumber, &inst.Capital, &inst.Interest,
			&inst.TotalDue, &inst.PaidAmount, &inst.PendingAmount, &inst.AccruedLateFee,
			&inst.DaysLate, &inst.DueDate, &inst.PaidDate, &inst.Status, &inst.RemainingPrincipalAfter,
		); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ListInstallments returns the plan's schedule ordered by sequence.
func (r *PlanRepository) ListInstallments(ctx context.Context, planID int64) ([]domain.Installment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE plan_id = $1 ORDER BY sequence_number`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

// ListInstallmentsTx reads the schedule inside tx, after the plan row lock.
func (r *PlanRepository) ListInstallmentsTx(ctx context.Context, tx *sql.Tx, planID int64) ([]domain.Installment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE plan_id = $1 ORDER BY sequence_number`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()
	return scanInstallments(rows)
}

// UpdateInstallments writes back the mutable fields touched by the late-fee
// sweep and the allocator.
func (r *PlanRepository) UpdateInstallments(ctx context.Context, tx *sql.Tx, installments []domain.Installment) error {
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE installments SET
			paid_amount = $1, pending_amount = $2, accrued_late_fee = $3, days_late = $4,
			paid_date = $5, status = $6
		WHERE id = $7`)
	if err != nil {
		return fmt.Errorf("prepare installment update: %w", err)
	}
	defer stmt.Close()

	for idx := range installments {
		inst := &installments[idx]
		if _, err := stmt.ExecContext(ctx,
			inst.PaidAmount, inst.PendingAmount, inst.AccruedLateFee, inst.DaysLate,
			inst.PaidDate, inst.Status, inst.ID,
		); err != nil {
			return fmt.Errorf("update installment %d: %w", inst.ID, err)
		}
	}
	return nil
}

// ListActivePlanIDs feeds the bulk overdue sweep. Chunking happens per plan at
// the caller so each transaction locks a single plan's installment set.
func (r *PlanRepository) ListActivePlanIDs(ctx context.Context) ([]PlanRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id, id FROM payment_plans WHERE archived_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	defer rows.Close()

	var out []PlanRef
	for rows.Next() {
		var ref PlanRef
		if err := rows.Scan(&ref.TenantID, &ref.PlanID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

type PlanRef struct {
	TenantID string
	PlanID   int64
}

// UpdateAdministrative changes the only fields a plan admits after creation.
func (r *PlanRepository) UpdateAdministrative(ctx context.Context, tenantID string, planID int64, lateRateMonthly, graceDays any, notes *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payment_plans SET
			late_rate_monthly = COALESCE($1, late_rate_monthly),
			grace_days = COALESCE($2, grace_days),
			notes = COALESCE($3, notes),
			updated_at = now()
		WHERE tenant_id = $4 AND id = $5 AND archived_at IS NULL`,
		lateRateMonthly, graceDays, notes, tenantID, planID)
	if err != nil {
		return fmt.Errorf("update plan %d: %w", planID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("plan", planID)
	}
	return nil
}

// Archive marks the plan deleted without hiding it behind a query filter;
// readers opt in via includeArchived.
func (r *PlanRepository) Archive(ctx context.Context, tenantID string, planID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_plans SET archived_at = now(), updated_at = now()
		 WHERE tenant_id = $1 AND id = $2 AND archived_at IS NULL`,
		tenantID, planID)
	if err != nil {
		return fmt.Errorf("archive plan %d: %w", planID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("plan", planID)
	}
	return nil
}
