package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type CycleResult int

const (
	CycleSkipped CycleResult = iota
	CycleCreated
)

func (r CycleResult) String() string {
	if r == CycleCreated {
		return "created"
	}
	return "skipped"
}

// NextDueDate advances due by one calendar month, keeping the day of month
// and clamping it to the last day of the target month (Jan 31 -> Feb 29/28).
func NextDueDate(due time.Time) time.Time {
	year, month, day := due.Date()
	target := time.Date(year, month+1, 1, due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location())
	if last := daysIn(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// CycleGenerator creates the next cycle of a recurring series. It runs on the
// repositories of the caller's transaction.
type CycleGenerator struct{}

func NewCycleGenerator() *CycleGenerator {
	return &CycleGenerator{}
}

// MaybeCreateNextCycle inserts the pending cycle that follows cycle, unless the
// debtor already has a cycle due in the target month or later. A concurrent
// insert that loses on the (tenant, debtor, due date) unique key is reported as
// skipped.
func (g *CycleGenerator) MaybeCreateNextCycle(
	ctx context.Context,
	cycles CycleStore,
	cycle *entity.BillingCycle,
	now time.Time,
) (CycleResult, *entity.BillingCycle, error) {
	if cycle == nil || !cycle.Recurring {
		return CycleSkipped, nil, nil
	}

	dueDate := NextDueDate(cycle.DueDate)
	exists, err := cycles.ExistsDueFrom(ctx, cycle.TenantID, cycle.DebtorID, monthStart(dueDate))
	if err != nil {
		return CycleSkipped, nil, err
	}
	if exists {
		return CycleSkipped, nil, nil
	}

	next := &entity.BillingCycle{
		TenantID:       cycle.TenantID,
		DebtorID:       cycle.DebtorID,
		SubscriptionID: cycle.SubscriptionID,
		Sequence:       cycle.Sequence + 1,
		Amount:         cycle.Amount,
		DueDate:        dueDate,
		Recurring:      true,
		Status:         entity.CycleStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := cycles.Create(ctx, next); err != nil {
		if errors.Is(err, repository.ErrCycleAlreadyExists) {
			return CycleSkipped, nil, nil
		}
		return CycleSkipped, nil, err
	}

	return CycleCreated, next, nil
}
