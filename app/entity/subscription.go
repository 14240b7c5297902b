package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionStatusPending    = "pending"
	SubscriptionStatusAuthorized = "authorized"
	SubscriptionStatusPaused     = "paused"
	SubscriptionStatusCancelled  = "cancelled"
)

// Subscription is a recurring mandate held at the subscription gateway.
// ExternalReference is set to the owning tenant id when the mandate is
// created; gateway notifications are attributed to a tenant through it.
type Subscription struct {
	ID uint64

	TenantID string
	Plan     string

	Provider          string
	ExternalID        *string
	ExternalReference string

	Status      string
	Amount      decimal.Decimal
	CheckoutURL *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
