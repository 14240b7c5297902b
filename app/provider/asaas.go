package provider

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type AsaasConfig struct {
	BaseURL       string
	WebhookToken  string
	TenantAPIKeys map[string]string
	HTTPTimeout   time.Duration
}

// AsaasGateway handles the bank slip / PIX gateway. Webhooks carry the full
// payment object, so no lookup is ever needed.
type AsaasGateway struct {
	cfg    AsaasConfig
	client *http.Client
}

func NewAsaasGateway(cfg AsaasConfig) *AsaasGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.asaas.com"
	}

	return &AsaasGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *AsaasGateway) Code() string {
	return entity.ProviderAsaas
}

// VerifySignature compares the asaas-access-token header with the token
// configured for the webhook.
func (g *AsaasGateway) VerifySignature(delivery *Delivery) error {
	expected := strings.TrimSpace(g.cfg.WebhookToken)
	if expected == "" {
		return ErrSecretNotSet
	}
	if delivery == nil || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(delivery.Signature)), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (g *AsaasGateway) Normalize(payload []byte) (*Event, error) {
	parsed, err := ParseAsaasEvent(payload)
	if err != nil {
		return nil, err
	}
	return parsed.Normalize(), nil
}

func (g *AsaasGateway) Enrich(context.Context, *Event) error {
	return nil
}

var asaasEventKinds = map[string]EventKind{
	"PAYMENT_CREATED":          EventKindCreated,
	"PAYMENT_RECEIVED":         EventKindReceived,
	"PAYMENT_CONFIRMED":        EventKindReceived,
	"PAYMENT_RECEIVED_IN_CASH": EventKindReceived,
	"PAYMENT_OVERDUE":          EventKindOverdue,
	"PAYMENT_DELETED":          EventKindDeleted,
	"PAYMENT_REFUNDED":         EventKindRefunded,
	"PAYMENT_UPDATED":          EventKindUpdated,
}

// AsaasEvent is a parsed Asaas webhook body. The payment is either nested
// under "payment", sent as a bare id in "payment", or is the body itself.
type AsaasEvent struct {
	ID        string
	Event     string
	PaymentID string
	Payment   *AsaasPayment
}

type AsaasPayment struct {
	ID                string              `json:"id"`
	Object            string              `json:"object"`
	Status            string              `json:"status"`
	Value             decimal.NullDecimal `json:"value"`
	BillingType       string              `json:"billingType"`
	DueDate           string              `json:"dueDate"`
	PaymentDate       string              `json:"paymentDate"`
	ClientPaymentDate string              `json:"clientPaymentDate"`
	ConfirmedDate     string              `json:"confirmedDate"`
	InvoiceURL        string              `json:"invoiceUrl"`
	ExternalReference string              `json:"externalReference"`
}

func ParseAsaasEvent(payload []byte) (*AsaasEvent, error) {
	var raw struct {
		ID      string          `json:"id"`
		Event   string          `json:"event"`
		Object  string          `json:"object"`
		Payment json.RawMessage `json:"payment"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	event := &AsaasEvent{
		ID:    strings.TrimSpace(raw.ID),
		Event: strings.ToUpper(strings.TrimSpace(raw.Event)),
	}

	nested := bytes.TrimSpace(raw.Payment)
	switch {
	case len(nested) == 0 || bytes.Equal(nested, []byte("null")):
		if strings.EqualFold(strings.TrimSpace(raw.Object), "payment") {
			var payment AsaasPayment
			if err := json.Unmarshal(payload, &payment); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
			}
			event.Payment = &payment
		}
	case nested[0] == '{':
		var payment AsaasPayment
		if err := json.Unmarshal(nested, &payment); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		event.Payment = &payment
	default:
		event.PaymentID = parseStringish(json.RawMessage(nested))
	}

	return event, nil
}

// Normalize maps the Asaas event onto the shared event model. It never fails:
// unknown event names become EventKindUnrecognized and a missing payment id
// makes the event unaddressable.
func (e *AsaasEvent) Normalize() *Event {
	result := &Event{
		Provider:  entity.ProviderAsaas,
		EventType: e.Event,
	}

	externalID := strings.TrimSpace(e.PaymentID)
	if e.Payment != nil && strings.TrimSpace(e.Payment.ID) != "" {
		externalID = strings.TrimSpace(e.Payment.ID)
	}
	result.ResourceID = externalID
	if externalID == "" {
		result.Unaddressable = "payment id missing"
		return result
	}

	kind, ok := asaasEventKinds[e.Event]
	if !ok {
		kind = EventKindUnrecognized
	}

	paymentEvent := &PaymentEvent{
		Kind:       kind,
		ExternalID: externalID,
	}
	if p := e.Payment; p != nil {
		paymentEvent.Status = strings.ToUpper(strings.TrimSpace(p.Status))
		if p.Value.Valid {
			value := p.Value.Decimal
			paymentEvent.Amount = &value
		}
		paymentEvent.PaidAt = parseAsaasDate(firstNonEmpty(p.ClientPaymentDate, p.PaymentDate, p.ConfirmedDate))
		paymentEvent.DueDate = parseAsaasDate(p.DueDate)
		paymentEvent.BillingType = strings.ToUpper(strings.TrimSpace(p.BillingType))
	}
	result.Payment = paymentEvent

	return result
}

type CreateChargeInput struct {
	TenantID          string
	CustomerID        string
	Amount            decimal.Decimal
	DueDate           time.Time
	BillingType       string
	Description       string
	ExternalReference string
}

type CreateChargeOutput struct {
	ExternalID string
	Status     string
	InvoiceURL *string
}

// CreateCharge issues a charge on the tenant's Asaas account.
func (g *AsaasGateway) CreateCharge(ctx context.Context, input *CreateChargeInput) (*CreateChargeOutput, error) {
	apiKey := strings.TrimSpace(g.cfg.TenantAPIKeys[input.TenantID])
	if apiKey == "" {
		return nil, ErrTenantKeyNotFound
	}

	billingType := strings.ToUpper(strings.TrimSpace(input.BillingType))
	if billingType == "" {
		billingType = "UNDEFINED"
	}

	body := map[string]interface{}{
		"customer":          input.CustomerID,
		"billingType":       billingType,
		"value":             input.Amount.InexactFloat64(),
		"dueDate":           input.DueDate.Format("2006-01-02"),
		"description":       input.Description,
		"externalReference": input.ExternalReference,
	}

	respBody, err := doJSON(ctx, g.client, http.MethodPost, joinURL(g.cfg.BaseURL, "/v3/payments"), map[string]string{
		"access_token": apiKey,
	}, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		InvoiceURL string `json:"invoiceUrl"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("asaas payment id missing")
	}

	result := &CreateChargeOutput{
		ExternalID: strings.TrimSpace(payload.ID),
		Status:     strings.ToUpper(strings.TrimSpace(payload.Status)),
	}
	if result.Status == "" {
		result.Status = entity.ChargeStatusPending
	}
	if s := strings.TrimSpace(payload.InvoiceURL); s != "" {
		result.InvoiceURL = &s
	}

	return result, nil
}

func parseAsaasDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
