package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"inmo-payments/internal/allocation"
	"inmo-payments/internal/domain"
	"inmo-payments/internal/latefee"
	"inmo-payments/internal/repository"
)

// PaymentNotifier pushes a "payment received" event to the connected user.
type PaymentNotifier interface {
	NotifyPaymentApplied(ctx context.Context, userID int64, planID int64, reference, amount string) error
}

// CacheInvalidator drops a plan's cached statement after a mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID string, planID int64) error
}

// PlanTxStore is the slice of plan persistence the allocator needs: the
// transaction handle plus the row-locked reads and writes inside it.
type PlanTxStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, tenantID string, planID int64) (*domain.PaymentPlan, error)
	ListInstallmentsTx(ctx context.Context, tx *sql.Tx, planID int64) ([]domain.Installment, error)
	UpdateInstallments(ctx context.Context, tx *sql.Tx, installments []domain.Installment) error
	ListActivePlanIDs(ctx context.Context) ([]repository.PlanRef, error)
}

// PaymentWriter persists the payment plus its allocation rows.
type PaymentWriter interface {
	Insert(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
}

type ApplyPaymentInput struct {
	PlanID              int64
	Amount              decimal.Decimal
	PaymentDate         time.Time
	Method              domain.PaymentMethod
	Reference           string
	TargetInstallmentID *int64
}

// PaymentReceipt is what a successful allocation returns: the persisted
// payment, the installments it touched and the plan's position afterwards.
type PaymentReceipt struct {
	Payment      *domain.Payment
	Touched      []domain.Installment
	TotalPending decimal.Decimal
}

type PaymentService struct {
	plans    PlanTxStore
	payments PaymentWriter
	cache    CacheInvalidator
	notifier PaymentNotifier
	log      *logrus.Logger
}

func NewPaymentService(
	plans PlanTxStore,
	payments PaymentWriter,
	cache CacheInvalidator,
	notifier PaymentNotifier,
	log *logrus.Logger,
) *PaymentService {
	return &PaymentService{plans: plans, payments: payments, cache: cache, notifier: notifier, log: log}
}

// ApplyPayment runs the whole allocation as one transaction: plan row lock,
// late-fee sweep as of the payment date, waterfall, installment updates and
// the payment insert. Any error rolls the entire operation back. A remainder
// the waterfall cannot place is rejected rather than silently dropped.
func (s *PaymentService) ApplyPayment(ctx context.Context, tenantID string, userID int64, in ApplyPaymentInput) (*PaymentReceipt, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.Invalid("amount", "must be greater than zero")
	}
	if !in.Method.Valid() {
		return nil, domain.Invalid("method", "unknown payment method")
	}
	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	tx, err := s.plans.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	plan, err := s.plans.GetForUpdate(ctx, tx, tenantID, in.PlanID)
	if err != nil {
		return nil, err
	}

	installments, err := s.plans.ListInstallmentsTx(ctx, tx, plan.ID)
	if err != nil {
		return nil, err
	}

	if in.TargetInstallmentID != nil {
		found := false
		for idx := range installments {
			if installments[idx].ID == *in.TargetInstallmentID {
				found = true
				break
			}
		}
		if !found {
			return nil, domain.NotFound("installment", *in.TargetInstallmentID)
		}
	}

	// The sweep always runs right before allocation, inside the same
	// transaction, so fees reflect the payment date.
	latefee.Sweep(installments, plan.LateRateMonthly, plan.GraceDays, paymentDate)

	ptrs := make([]*domain.Installment, 0, len(installments))
	for idx := range installments {
		if installments[idx].Status.Open() {
			ptrs = append(ptrs, &installments[idx])
		}
	}

	candidates := allocation.SelectCandidates(ptrs, in.TargetInstallmentID, paymentDate)
	if len(candidates) == 0 {
		return nil, domain.Conflict("no pending installments to pay")
	}

	res, err := allocation.Apply(candidates, in.Amount, paymentDate)
	if err != nil {
		return nil, err
	}
	if res.Remaining.IsPositive() {
		return nil, domain.Conflict("payment exceeds outstanding balance by " + res.Remaining.StringFixed(2))
	}

	if err := s.plans.UpdateInstallments(ctx, tx, installments); err != nil {
		return nil, err
	}

	reference := in.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	payment := &domain.Payment{
		PlanID:            plan.ID,
		Amount:            in.Amount,
		PaymentDate:       paymentDate,
		Method:            in.Method,
		Reference:         reference,
		AllocatedLateFee:  res.AllocatedLateFee,
		AllocatedInterest: res.AllocatedInterest,
		AllocatedCapital:  res.AllocatedCapital,
	}
	for _, line := range res.Lines {
		payment.Allocations = append(payment.Allocations, domain.PaymentAllocation{
			InstallmentID:  line.InstallmentID,
			SequenceNumber: line.SequenceNumber,
			LateFee:        line.LateFee,
			Interest:       line.Interest,
			Capital:        line.Capital,
		})
	}
	if err := s.payments.Insert(ctx, tx, payment); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID, plan.ID)
	}
	if s.notifier != nil {
		_ = s.notifier.NotifyPaymentApplied(ctx, userID, plan.ID, payment.Reference, in.Amount.StringFixed(2))
	}

	touched := map[int64]bool{}
	for _, line := range res.Lines {
		touched[line.InstallmentID] = true
	}
	receipt := &PaymentReceipt{Payment: payment, TotalPending: decimal.Zero}
	for _, inst := range installments {
		receipt.TotalPending = receipt.TotalPending.Add(inst.PendingAmount)
		if touched[inst.ID] {
			receipt.Touched = append(receipt.Touched, inst)
		}
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"plan_id":   plan.ID,
		"amount":    in.Amount.StringFixed(2),
		"late_fee":  res.AllocatedLateFee.StringFixed(2),
		"interest":  res.AllocatedInterest.StringFixed(2),
		"capital":   res.AllocatedCapital.StringFixed(2),
		"reference": payment.Reference,
	}).Info("payment applied")

	return receipt, nil
}

// SweepOverduePlans reconciles overdue state across all active plans, one
// transaction per plan so lock hold time stays bounded to a single plan's
// installment set. Run nightly by the scheduler.
func (s *PaymentService) SweepOverduePlans(ctx context.Context, today time.Time) {
	refs, err := s.plans.ListActivePlanIDs(ctx)
	if err != nil {
		s.log.WithError(err).Error("overdue sweep: listing plans failed")
		return
	}

	swept := 0
	for _, ref := range refs {
		if err := s.sweepOne(ctx, ref, today); err != nil {
			s.log.WithError(err).WithField("plan_id", ref.PlanID).Warn("overdue sweep: plan failed")
			continue
		}
		swept++
	}
	s.log.WithFields(logrus.Fields{"plans": swept, "total": len(refs)}).Info("overdue sweep finished")
}

func (s *PaymentService) sweepOne(ctx context.Context, ref repository.PlanRef, today time.Time) error {
	tx, err := s.plans.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	plan, err := s.plans.GetForUpdate(ctx, tx, ref.TenantID, ref.PlanID)
	if err != nil {
		return err
	}
	installments, err := s.plans.ListInstallmentsTx(ctx, tx, plan.ID)
	if err != nil {
		return err
	}

	if changed := latefee.Sweep(installments, plan.LateRateMonthly, plan.GraceDays, today); changed == 0 {
		return nil
	}
	if err := s.plans.UpdateInstallments(ctx, tx, installments); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, ref.TenantID, ref.PlanID)
	}
	return nil
}
