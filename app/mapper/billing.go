package mapper

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

const dateLayout = "2006-01-02"

func BillingCycleToProto(item *entity.BillingCycle) *types.BillingCycle {
	if item == nil {
		return nil
	}

	return &types.BillingCycle{
		Id:             item.ID,
		TenantId:       item.TenantID,
		DebtorId:       item.DebtorID,
		SubscriptionId: derefUint64(item.SubscriptionID),
		Sequence:       item.Sequence,
		Amount:         item.Amount.StringFixed(2),
		DueDate:        item.DueDate.Format(dateLayout),
		Recurring:      item.Recurring,
		Status:         item.Status,
		PaidAt:         formatTime(item.PaidAt),
		PaymentMethod:  derefString(item.PaymentMethod),
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ChargeToProto(item *entity.Charge) *types.Charge {
	if item == nil {
		return nil
	}

	return &types.Charge{
		Id:             item.ID,
		TenantId:       item.TenantID,
		BillingCycleId: item.BillingCycleID,
		DebtorId:       item.DebtorID,
		Provider:       item.Provider,
		ExternalId:     item.ExternalID,
		Status:         item.Status,
		DueDate:        item.DueDate.Format(dateLayout),
		Amount:         item.Amount.StringFixed(2),
		AmountPaid:     formatDecimal(item.AmountPaid),
		BillingType:    derefString(item.BillingType),
		InvoiceUrl:     derefString(item.InvoiceURL),
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func SubscriptionToProto(item *entity.Subscription) *types.Subscription {
	if item == nil {
		return nil
	}

	return &types.Subscription{
		Id:                item.ID,
		TenantId:          item.TenantID,
		Plan:              item.Plan,
		Provider:          item.Provider,
		ExternalId:        derefString(item.ExternalID),
		ExternalReference: item.ExternalReference,
		Status:            item.Status,
		Amount:            item.Amount.StringFixed(2),
		CheckoutUrl:       derefString(item.CheckoutURL),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefUint64(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

func formatDecimal(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

// rawPayload keeps stored payloads as embedded JSON when they parse and falls
// back to a JSON string for bodies that were logged but never parsed.
func rawPayload(payload string) json.RawMessage {
	if payload == "" {
		return nil
	}
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	quoted, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return quoted
}
