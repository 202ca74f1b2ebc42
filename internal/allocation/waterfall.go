package allocation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"inmo-payments/internal/domain"
)

// Result is the outcome of distributing one payment across a plan's
// installments.
type Result struct {
	AllocatedLateFee  decimal.Decimal
	AllocatedInterest decimal.Decimal
	AllocatedCapital  decimal.Decimal

	// Remaining is whatever the waterfall could not place. The caller decides
	// whether that is an error; the allocator never discards it silently.
	Remaining decimal.Decimal

	// Lines has one entry per touched installment, in allocation order.
	Lines []Line
}

type Line struct {
	InstallmentID  int64
	SequenceNumber int
	LateFee        decimal.Decimal
	Interest       decimal.Decimal
	Capital        decimal.Decimal
}

// SelectCandidates picks the installments a payment may touch, in order.
// A target installment short-circuits selection. Otherwise overdue and
// partially paid installments due on or before the payment date come first
// (oldest due date first); if none qualify, pending installments are taken in
// sequence order.
func SelectCandidates(installments []*domain.Installment, targetID *int64, paymentDate time.Time) []*domain.Installment {
	if targetID != nil {
		for _, inst := range installments {
			if inst.ID == *targetID {
				return []*domain.Installment{inst}
			}
		}
		return nil
	}

	var due []*domain.Installment
	for _, inst := range installments {
		if (inst.Status == domain.InstallmentOverdue || inst.Status == domain.InstallmentPartiallyPaid) &&
			!inst.DueDate.After(paymentDate) {
			due = append(due, inst)
		}
	}
	if len(due) > 0 {
		sort.SliceStable(due, func(i, j int) bool { return due[i].DueDate.Before(due[j].DueDate) })
		return due
	}

	var pending []*domain.Installment
	for _, inst := range installments {
		if inst.Status == domain.InstallmentPending {
			pending = append(pending, inst)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SequenceNumber < pending[j].SequenceNumber
	})
	return pending
}

// Apply runs the waterfall over the candidates, mutating them in place:
// accrued late fee first, then outstanding interest, then capital. An
// installment whose pending amount reaches zero flips to PAID with the payment
// date stamped and days late reset; anything partially covered flips to
// PARTIALLY_PAID. A computed negative pending amount aborts with an
// InvariantViolation.
func Apply(candidates []*domain.Installment, amount decimal.Decimal, paymentDate time.Time) (*Result, error) {
	res := &Result{
		AllocatedLateFee:  decimal.Zero,
		AllocatedInterest: decimal.Zero,
		AllocatedCapital:  decimal.Zero,
	}

	remaining := amount
	for _, inst := range candidates {
		if !remaining.IsPositive() {
			break
		}

		line := Line{InstallmentID: inst.ID, SequenceNumber: inst.SequenceNumber}

		// 1. Late fee.
		feeTake := decimal.Min(remaining, inst.AccruedLateFee)
		if feeTake.IsPositive() {
			inst.AccruedLateFee = inst.AccruedLateFee.Sub(feeTake)
			remaining = remaining.Sub(feeTake)
			line.LateFee = feeTake
		}

		// 2. Outstanding interest. Paid amount covers interest before capital.
		unpaidInterest := inst.Interest.Sub(decimal.Min(inst.PaidAmount, inst.Interest))
		interestTake := decimal.Min(remaining, unpaidInterest)
		if interestTake.IsPositive() {
			remaining = remaining.Sub(interestTake)
			line.Interest = interestTake
		}

		// 3. Capital.
		capitalRoom := inst.PendingAmount.Sub(unpaidInterest)
		capitalTake := decimal.Min(remaining, capitalRoom)
		if capitalTake.IsPositive() {
			remaining = remaining.Sub(capitalTake)
			line.Capital = capitalTake
		}

		towardTotal := line.Interest.Add(line.Capital)
		if towardTotal.IsZero() && line.LateFee.IsZero() {
			continue
		}

		inst.PaidAmount = inst.PaidAmount.Add(towardTotal)
		inst.PendingAmount = inst.TotalDue.Sub(inst.PaidAmount)
		if inst.PendingAmount.IsNegative() {
			return nil, domain.Invariant("installment %d pending amount went negative: %s",
				inst.SequenceNumber, inst.PendingAmount)
		}

		if inst.PendingAmount.IsZero() {
			inst.Status = domain.InstallmentPaid
			pd := paymentDate
			inst.PaidDate = &pd
			inst.DaysLate = 0
		} else if inst.PaidAmount.IsPositive() {
			inst.Status = domain.InstallmentPartiallyPaid
		}

		res.AllocatedLateFee = res.AllocatedLateFee.Add(line.LateFee)
		res.AllocatedInterest = res.AllocatedInterest.Add(line.Interest)
		res.AllocatedCapital = res.AllocatedCapital.Add(line.Capital)
		res.Lines = append(res.Lines, line)
	}

	res.Remaining = remaining
	return res, nil
}
