package service

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
)

// Transition reports what Reconcile changed. Flags are only set when a value
// actually differs, so applying the same event twice yields an empty
// transition the second time (GenerateNext aside, which is guarded by the
// cycle generator's existence check).
type Transition struct {
	ChargeChanged bool
	CycleChanged  bool
	GenerateNext  bool
}

// Reconcile applies a normalized payment event to a charge and its owning
// cycle in place.
//
//	Received/Confirmed  charge -> reported status (default RECEIVED), cycle -> paid
//	Overdue             charge -> OVERDUE unless already settled
//	Deleted             charge -> CANCELED, cycle -> pending
//	Refunded            charge -> REFUNDED, cycle -> pending
//	Updated             charge -> reported status, amount/due date synced while pending
//	Created             charge -> reported status
//	Unrecognized        nothing
func Reconcile(charge *entity.Charge, cycle *entity.BillingCycle, event *provider.PaymentEvent, now time.Time) Transition {
	var t Transition
	if charge == nil || cycle == nil || event == nil {
		return t
	}

	switch event.Kind {
	case provider.EventKindReceived:
		t.ChargeChanged = setString(&charge.Status, statusOr(event.Status, entity.ChargeStatusReceived))

		paid := charge.Amount
		if event.Amount != nil {
			paid = *event.Amount
		}
		t.ChargeChanged = setDecimalPtr(&charge.AmountPaid, &paid) || t.ChargeChanged

		if event.BillingType != "" {
			t.ChargeChanged = setStringPtr(&charge.BillingType, &event.BillingType) || t.ChargeChanged
		}

		t.CycleChanged = setString(&cycle.Status, entity.CycleStatusPaid)
		switch {
		case event.PaidAt != nil:
			t.CycleChanged = setTimePtr(&cycle.PaidAt, event.PaidAt) || t.CycleChanged
		case cycle.PaidAt == nil:
			paidAt := now
			cycle.PaidAt = &paidAt
			t.CycleChanged = true
		}
		if charge.BillingType != nil {
			t.CycleChanged = setStringPtr(&cycle.PaymentMethod, charge.BillingType) || t.CycleChanged
		}

		t.GenerateNext = cycle.Recurring

	case provider.EventKindOverdue:
		if charge.Settled() {
			return t
		}
		t.ChargeChanged = setString(&charge.Status, entity.ChargeStatusOverdue)

	case provider.EventKindDeleted:
		t.ChargeChanged = setString(&charge.Status, entity.ChargeStatusCanceled)
		t.CycleChanged = revertCycle(cycle)

	case provider.EventKindRefunded:
		t.ChargeChanged = setString(&charge.Status, entity.ChargeStatusRefunded)
		t.CycleChanged = revertCycle(cycle)

	case provider.EventKindUpdated:
		if event.Status != "" {
			t.ChargeChanged = setString(&charge.Status, event.Status)
		}
		if cycle.Status != entity.CycleStatusPending {
			return t
		}
		if event.Amount != nil {
			t.ChargeChanged = setDecimal(&charge.Amount, *event.Amount) || t.ChargeChanged
			t.CycleChanged = setDecimal(&cycle.Amount, *event.Amount)
		}
		if event.DueDate != nil {
			t.ChargeChanged = setTime(&charge.DueDate, *event.DueDate) || t.ChargeChanged
			t.CycleChanged = setTime(&cycle.DueDate, *event.DueDate) || t.CycleChanged
		}

	case provider.EventKindCreated:
		if event.Status != "" {
			t.ChargeChanged = setString(&charge.Status, event.Status)
		}
	}

	return t
}

func revertCycle(cycle *entity.BillingCycle) bool {
	changed := setString(&cycle.Status, entity.CycleStatusPending)
	if cycle.PaidAt != nil {
		cycle.PaidAt = nil
		changed = true
	}
	return changed
}

func statusOr(status, fallback string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return fallback
	}
	return status
}

func setString(dst *string, v string) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func setStringPtr(dst **string, v *string) bool {
	if *dst != nil && v != nil && **dst == *v {
		return false
	}
	if *dst == nil && v == nil {
		return false
	}
	if v == nil {
		*dst = nil
		return true
	}
	s := *v
	*dst = &s
	return true
}

func setDecimal(dst *decimal.Decimal, v decimal.Decimal) bool {
	if dst.Equal(v) {
		return false
	}
	*dst = v
	return true
}

func setDecimalPtr(dst **decimal.Decimal, v *decimal.Decimal) bool {
	if *dst != nil && (*dst).Equal(*v) {
		return false
	}
	d := *v
	*dst = &d
	return true
}

func setTime(dst *time.Time, v time.Time) bool {
	if dst.Equal(v) {
		return false
	}
	*dst = v
	return true
}

func setTimePtr(dst **time.Time, v *time.Time) bool {
	if *dst != nil && (*dst).Equal(*v) {
		return false
	}
	t := *v
	*dst = &t
	return true
}
