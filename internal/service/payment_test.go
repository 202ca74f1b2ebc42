package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/repository"
)

// memDriver gives tests real *sql.Tx handles without a database; the service
// only ever commits or rolls back, queries go through the fake stores.
type memDriver struct{}

func (memDriver) Open(string) (driver.Conn, error) { return &memConn{}, nil }

type memConn struct{}

func (*memConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (*memConn) Close() error                        { return nil }
func (*memConn) Begin() (driver.Tx, error)           { return memTx{}, nil }

type memTx struct{}

func (memTx) Commit() error   { return nil }
func (memTx) Rollback() error { return nil }

func init() { sql.Register("servicemem", memDriver{}) }

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("servicemem", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakePlanTxStore struct {
	db           *sql.DB
	plan         *domain.PaymentPlan
	installments []domain.Installment
	refs         []repository.PlanRef

	updated     []domain.Installment
	updateCalls int
}

func (f *fakePlanTxStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f *fakePlanTxStore) GetForUpdate(ctx context.Context, tx *sql.Tx, tenantID string, planID int64) (*domain.PaymentPlan, error) {
	if f.plan == nil || f.plan.ID != planID || f.plan.TenantID != tenantID {
		return nil, domain.NotFound("plan", planID)
	}
	return f.plan, nil
}

func (f *fakePlanTxStore) ListInstallmentsTx(ctx context.Context, tx *sql.Tx, planID int64) ([]domain.Installment, error) {
	out := make([]domain.Installment, len(f.installments))
	copy(out, f.installments)
	return out, nil
}

func (f *fakePlanTxStore) UpdateInstallments(ctx context.Context, tx *sql.Tx, installments []domain.Installment) error {
	f.updated = make([]domain.Installment, len(installments))
	copy(f.updated, installments)
	f.updateCalls++
	return nil
}

func (f *fakePlanTxStore) ListActivePlanIDs(ctx context.Context) ([]repository.PlanRef, error) {
	return f.refs, nil
}

type fakePaymentWriter struct {
	inserted *domain.Payment
}

func (f *fakePaymentWriter) Insert(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	p.ID = 31
	for i := range p.Allocations {
		p.Allocations[i].ID = int64(i + 1)
		p.Allocations[i].PaymentID = p.ID
	}
	f.inserted = p
	return nil
}

type recordingCache struct {
	invalidated []int64
}

func (c *recordingCache) Invalidate(ctx context.Context, tenantID string, planID int64) error {
	c.invalidated = append(c.invalidated, planID)
	return nil
}

type recordingNotifier struct {
	amounts []string
}

func (n *recordingNotifier) NotifyPaymentApplied(ctx context.Context, userID int64, planID int64, reference, amount string) error {
	n.amounts = append(n.amounts, amount)
	return nil
}

func paymentPlanFixture() *domain.PaymentPlan {
	return &domain.PaymentPlan{
		ID:              7,
		TenantID:        "t1",
		SaleID:          10,
		LateRateMonthly: d("2.00"),
		GraceDays:       0,
	}
}

func planInstallment(id int64, seq int, capital, interest string, dueDate time.Time, status domain.InstallmentStatus) domain.Installment {
	c, i := d(capital), d(interest)
	total := c.Add(i)
	inst := domain.Installment{
		ID:             id,
		PlanID:         7,
		SequenceNumber: seq,
		Capital:        c,
		Interest:       i,
		TotalDue:       total,
		PaidAmount:     d("0"),
		PendingAmount:  total,
		AccruedLateFee: d("0"),
		DueDate:        dueDate,
		Status:         status,
	}
	if status == domain.InstallmentPaid {
		inst.PaidAmount = total
		inst.PendingAmount = d("0")
	}
	return inst
}

func newPaymentServiceFixture(t *testing.T, installments []domain.Installment) (*PaymentService, *fakePlanTxStore, *fakePaymentWriter, *recordingCache, *recordingNotifier) {
	t.Helper()
	store := &fakePlanTxStore{
		db:           newTxDB(t),
		plan:         paymentPlanFixture(),
		installments: installments,
	}
	writer := &fakePaymentWriter{}
	cache := &recordingCache{}
	notifier := &recordingNotifier{}
	svc := NewPaymentService(store, writer, cache, notifier, logrus.New())
	return svc, store, writer, cache, notifier
}

func TestApplyPaymentValidation(t *testing.T) {
	svc, _, _, _, _ := newPaymentServiceFixture(t, nil)

	_, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("0"), Method: domain.MethodCash,
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amount", ve.Field)

	_, err = svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("100"), Method: "BARTER",
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "method", ve.Field)
}

func TestApplyPaymentPlanMissing(t *testing.T) {
	svc, _, _, _, _ := newPaymentServiceFixture(t, nil)

	_, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 99, Amount: d("100"), Method: domain.MethodCash,
	})
	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "plan", nfe.Entity)
}

func TestApplyPaymentTargetInstallmentMissing(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 2, 1), domain.InstallmentPending),
	}
	svc, _, writer, _, _ := newPaymentServiceFixture(t, installments)

	target := int64(42)
	_, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("100"), Method: domain.MethodCash,
		PaymentDate:         date(2026, 1, 15),
		TargetInstallmentID: &target,
	})
	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "installment", nfe.Entity)
	assert.Nil(t, writer.inserted)
}

func TestApplyPaymentNoPendingInstallments(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 1, 1), domain.InstallmentPaid),
	}
	svc, store, writer, cache, _ := newPaymentServiceFixture(t, installments)

	_, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("100"), Method: domain.MethodCash,
		PaymentDate: date(2026, 1, 15),
	})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "no pending installments")
	assert.Nil(t, writer.inserted)
	assert.Zero(t, store.updateCalls)
	assert.Empty(t, cache.invalidated)
}

func TestApplyPaymentExcessRejected(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 2, 1), domain.InstallmentPending),
	}
	svc, store, writer, cache, _ := newPaymentServiceFixture(t, installments)

	_, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("1500"), Method: domain.MethodTransfer,
		PaymentDate: date(2026, 1, 15),
	})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "exceeds outstanding balance by 500.00")

	// Whole operation rolled back: nothing written, nothing invalidated.
	assert.Nil(t, writer.inserted)
	assert.Zero(t, store.updateCalls)
	assert.Empty(t, cache.invalidated)
}

func TestApplyPaymentSweepsThenAllocates(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 1, 1), domain.InstallmentPending),
		planInstallment(2, 2, "900", "100", date(2026, 2, 1), domain.InstallmentPending),
	}
	svc, store, writer, cache, notifier := newPaymentServiceFixture(t, installments)

	// 25 days late at 2% monthly accrues 16.67 on the first installment;
	// 1016.67 covers fee, interest and capital exactly.
	receipt, err := svc.ApplyPayment(context.Background(), "t1", 1, ApplyPaymentInput{
		PlanID: 7, Amount: d("1016.67"), Method: domain.MethodCash,
		PaymentDate: date(2026, 1, 26),
	})
	require.NoError(t, err)

	p := receipt.Payment
	assert.True(t, p.AllocatedLateFee.Equal(d("16.67")), "late fee = %s", p.AllocatedLateFee)
	assert.True(t, p.AllocatedInterest.Equal(d("100")))
	assert.True(t, p.AllocatedCapital.Equal(d("900")))
	assert.NotEmpty(t, p.Reference, "reference defaults to a generated id")
	assert.Equal(t, int64(31), p.ID)

	require.Len(t, p.Allocations, 1)
	line := p.Allocations[0]
	assert.Equal(t, int64(1), line.InstallmentID)
	assert.True(t, line.LateFee.Equal(d("16.67")))
	assert.True(t, line.Interest.Equal(d("100")))
	assert.True(t, line.Capital.Equal(d("900")))
	assert.Equal(t, int64(31), line.PaymentID)

	require.Len(t, receipt.Touched, 1)
	paid := receipt.Touched[0]
	assert.Equal(t, domain.InstallmentPaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, date(2026, 1, 26), *paid.PaidDate)
	assert.True(t, paid.AccruedLateFee.IsZero())
	assert.True(t, receipt.TotalPending.Equal(d("1000")), "second installment untouched")

	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, []int64{7}, cache.invalidated)
	assert.Equal(t, []string{"1016.67"}, notifier.amounts)
	assert.Same(t, p, writer.inserted)
}

func TestSweepOverduePlans(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 1, 1), domain.InstallmentPending),
	}
	svc, store, _, cache, _ := newPaymentServiceFixture(t, installments)
	store.refs = []repository.PlanRef{{TenantID: "t1", PlanID: 7}}

	svc.SweepOverduePlans(context.Background(), date(2026, 1, 26))

	require.Equal(t, 1, store.updateCalls)
	require.Len(t, store.updated, 1)
	swept := store.updated[0]
	assert.Equal(t, domain.InstallmentOverdue, swept.Status)
	assert.Equal(t, 25, swept.DaysLate)
	assert.True(t, swept.AccruedLateFee.Equal(d("16.67")))
	assert.Equal(t, []int64{7}, cache.invalidated)
}

func TestSweepOverduePlansSkipsCleanPlans(t *testing.T) {
	installments := []domain.Installment{
		planInstallment(1, 1, "900", "100", date(2026, 3, 1), domain.InstallmentPending),
	}
	svc, store, _, cache, _ := newPaymentServiceFixture(t, installments)
	store.refs = []repository.PlanRef{{TenantID: "t1", PlanID: 7}}

	svc.SweepOverduePlans(context.Background(), date(2026, 1, 26))

	assert.Zero(t, store.updateCalls, "nothing due, nothing written")
	assert.Empty(t, cache.invalidated)
}
