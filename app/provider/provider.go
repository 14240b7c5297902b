package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrSecretNotSet      = errors.New("webhook secret is not configured")
	ErrMalformedPayload  = errors.New("malformed webhook payload")
	ErrTenantKeyNotFound = errors.New("gateway credential not configured for tenant")
	ErrResourceNotFound  = errors.New("gateway resource not found")
)

// EventKind is the provider-agnostic meaning of a payment notification.
type EventKind int

const (
	EventKindUnrecognized EventKind = iota
	EventKindCreated
	EventKindReceived
	EventKindOverdue
	EventKindDeleted
	EventKindRefunded
	EventKindUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventKindCreated:
		return "created"
	case EventKindReceived:
		return "received"
	case EventKindOverdue:
		return "overdue"
	case EventKindDeleted:
		return "deleted"
	case EventKindRefunded:
		return "refunded"
	case EventKindUpdated:
		return "updated"
	default:
		return "unrecognized"
	}
}

// PaymentEvent is a normalized charge notification.
type PaymentEvent struct {
	Kind        EventKind
	ExternalID  string
	Status      string
	Amount      *decimal.Decimal
	PaidAt      *time.Time
	DueDate     *time.Time
	BillingType string
}

// SubscriptionEvent is a normalized recurring-mandate notification.
type SubscriptionEvent struct {
	ExternalID        string
	ExternalReference string
	Status            string
}

// Event is the result of normalizing one delivery. Exactly one of Payment and
// Subscription is set, unless Unaddressable explains why neither could be.
type Event struct {
	Provider   string
	EventType  string
	ResourceID string

	Payment      *PaymentEvent
	Subscription *SubscriptionEvent

	// NeedsLookup is set when the delivery only carried a resource id and the
	// gateway has to be queried for the resource state.
	NeedsLookup bool

	Unaddressable string
}

// Delivery is the raw inbound notification with its transport metadata.
type Delivery struct {
	Payload   []byte
	Signature string
	RequestID string
	DataID    string
}

type Gateway interface {
	Code() string
	VerifySignature(delivery *Delivery) error
	Normalize(payload []byte) (*Event, error)
	Enrich(ctx context.Context, event *Event) error
}
