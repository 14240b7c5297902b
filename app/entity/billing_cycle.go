package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CycleStatusPending = "pending"
	CycleStatusPaid    = "paid"
)

type BillingCycle struct {
	ID uint64

	TenantID       string
	DebtorID       string
	SubscriptionID *uint64

	Sequence  int32
	Amount    decimal.Decimal
	DueDate   time.Time
	Recurring bool

	Status        string
	PaidAt        *time.Time
	PaymentMethod *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
