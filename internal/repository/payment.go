package repository

import (
	"context"
	"database/sql"
	"fmt"

	"inmo-payments/internal/domain"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert writes the payment and its per-installment allocation rows inside tx.
func (r *PaymentRepository) Insert(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payments (
			plan_id, amount, payment_date, method, reference,
			allocated_late_fee, allocated_interest, allocated_capital, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		RETURNING id, created_at`,
		p.PlanID, p.Amount, p.PaymentDate, p.Method, p.Reference,
		p.AllocatedLateFee, p.AllocatedInterest, p.AllocatedCapital,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	for idx := range p.Allocations {
		alloc := &p.Allocations[idx]
		alloc.PaymentID = p.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO payment_allocations (payment_id, installment_id, sequence_number, late_fee, interest, capital)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			alloc.PaymentID, alloc.InstallmentID, alloc.SequenceNumber,
			alloc.LateFee, alloc.Interest, alloc.Capital,
		).Scan(&alloc.ID)
		if err != nil {
			return fmt.Errorf("insert payment allocation: %w", err)
		}
	}
	return nil
}

// ListByPlan returns a plan's payments, oldest first, with allocations
// attached.
func (r *PaymentRepository) ListByPlan(ctx context.Context, planID int64) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plan_id, amount, payment_date, method, reference,
		       allocated_late_fee, allocated_interest, allocated_capital, created_at
		FROM payments WHERE plan_id = $1 ORDER BY payment_date, id`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	index := map[int64]int{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID, &p.PlanID, &p.Amount, &p.PaymentDate, &p.Method, &p.Reference,
			&p.AllocatedLateFee, &p.AllocatedInterest, &p.AllocatedCapital, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	allocRows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.payment_id, a.installment_id, a.sequence_number, a.late_fee, a.interest, a.capital
		FROM payment_allocations a
		JOIN payments p ON p.id = a.payment_id
		WHERE p.plan_id = $1
		ORDER BY a.payment_id, a.id`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("list payment allocations: %w", err)
	}
	defer allocRows.Close()

	for allocRows.Next() {
		var a domain.PaymentAllocation
		if err := allocRows.Scan(
			&a.ID, &a.PaymentID, &a.InstallmentID, &a.SequenceNumber,
			&a.LateFee, &a.Interest, &a.Capital,
		); err != nil {
			return nil, err
		}
		if i, ok := index[a.PaymentID]; ok {
			out[i].Allocations = append(out[i].Allocations, a)
		}
	}
	return out, allocRows.Err()
}
