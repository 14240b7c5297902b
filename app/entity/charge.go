package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderAsaas       = "asaas"
	ProviderMercadoPago = "mercadopago"
)

const (
	ChargeStatusPending   = "PENDING"
	ChargeStatusReceived  = "RECEIVED"
	ChargeStatusConfirmed = "CONFIRMED"
	ChargeStatusApproved  = "APPROVED"
	ChargeStatusOverdue   = "OVERDUE"
	ChargeStatusCanceled  = "CANCELED"
	ChargeStatusRefunded  = "REFUNDED"
)

// Charge is one attempt to collect a billing cycle through a gateway.
type Charge struct {
	ID uint64

	TenantID       string
	BillingCycleID uint64
	DebtorID       string

	Provider   string
	ExternalID string

	Status     string
	DueDate    time.Time
	Amount     decimal.Decimal
	AmountPaid *decimal.Decimal

	BillingType *string
	InvoiceURL  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settled reports whether the gateway already confirmed money for the charge.
func (c *Charge) Settled() bool {
	switch c.Status {
	case ChargeStatusReceived, ChargeStatusConfirmed, ChargeStatusApproved:
		return true
	default:
		return false
	}
}
