package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type MercadoPagoConfig struct {
	BaseURL                   string
	AccessToken               string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

// MercadoPagoGateway handles card payments and preapproval subscriptions.
// Its notifications usually carry only a resource id; Enrich fetches the
// resource with the platform access token.
type MercadoPagoGateway struct {
	cfg    MercadoPagoConfig
	client *http.Client
	now    func() time.Time
}

func NewMercadoPagoGateway(cfg MercadoPagoConfig) *MercadoPagoGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}

	return &MercadoPagoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (g *MercadoPagoGateway) Code() string {
	return entity.ProviderMercadoPago
}

// VerifySignature checks the x-signature header ("ts=<unix>,v1=<hex>") against
// an HMAC-SHA256 of the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (g *MercadoPagoGateway) VerifySignature(delivery *Delivery) error {
	secret := strings.TrimSpace(g.cfg.WebhookSecret)
	if secret == "" {
		return ErrSecretNotSet
	}
	if delivery == nil {
		return ErrInvalidSignature
	}

	dataID := strings.TrimSpace(delivery.DataID)
	if dataID == "" {
		if parsed, err := ParseMercadoPagoEvent(delivery.Payload); err == nil {
			dataID = parsed.DataID
		}
	}

	if !verifyMercadoPagoSignature(delivery.Signature, dataID, delivery.RequestID, secret, g.cfg.SignatureToleranceSeconds, g.now()) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *MercadoPagoGateway) Normalize(payload []byte) (*Event, error) {
	parsed, err := ParseMercadoPagoEvent(payload)
	if err != nil {
		return nil, err
	}
	return parsed.Normalize(), nil
}

// Enrich resolves the resource state for id-only notifications.
func (g *MercadoPagoGateway) Enrich(ctx context.Context, event *Event) error {
	if event == nil || !event.NeedsLookup {
		return nil
	}
	if strings.TrimSpace(g.cfg.AccessToken) == "" {
		return errors.New("mercadopago access token is not configured")
	}

	switch {
	case event.Payment != nil:
		resource, err := g.fetchResource(ctx, "/v1/payments/"+url.PathEscape(event.Payment.ExternalID))
		if err != nil {
			return err
		}
		applyMercadoPagoPayment(event.Payment, resource, event.Payment.Kind == EventKindCreated)
	case event.Subscription != nil:
		resource, err := g.fetchResource(ctx, "/preapproval/"+url.PathEscape(event.Subscription.ExternalID))
		if err != nil {
			return err
		}
		applyMercadoPagoPreapproval(event.Subscription, resource)
	}

	event.NeedsLookup = false
	return nil
}

func (g *MercadoPagoGateway) fetchResource(ctx context.Context, path string) (*MercadoPagoResource, error) {
	body, err := doJSON(ctx, g.client, http.MethodGet, joinURL(g.cfg.BaseURL, path), g.authHeaders(), nil)
	if err != nil {
		// Mercado Pago answers 404 for unknown ids and 403 for resources owned
		// by another account.
		var statusErr *statusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
		}
		return nil, err
	}

	var resource MercadoPagoResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

func (g *MercadoPagoGateway) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + g.cfg.AccessToken}
}

type CreatePreapprovalInput struct {
	Reason            string
	PayerEmail        string
	BackURL           string
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
}

type CreatePreapprovalOutput struct {
	ExternalID string
	Status     string
	InitPoint  *string
}

// CreatePreapproval requests a monthly recurring mandate. ExternalReference is
// echoed back in every notification for the mandate.
func (g *MercadoPagoGateway) CreatePreapproval(ctx context.Context, input *CreatePreapprovalInput) (*CreatePreapprovalOutput, error) {
	if strings.TrimSpace(g.cfg.AccessToken) == "" {
		return nil, errors.New("mercadopago access token is not configured")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "BRL"
	}

	body := map[string]interface{}{
		"reason":             input.Reason,
		"external_reference": input.ExternalReference,
		"payer_email":        input.PayerEmail,
		"back_url":           input.BackURL,
		"status":             "pending",
		"auto_recurring": map[string]interface{}{
			"frequency":          1,
			"frequency_type":     "months",
			"transaction_amount": input.Amount.InexactFloat64(),
			"currency_id":        currency,
		},
	}

	headers := g.authHeaders()
	headers["X-Idempotency-Key"] = uuid.NewString()

	respBody, err := doJSON(ctx, g.client, http.MethodPost, joinURL(g.cfg.BaseURL, "/preapproval"), headers, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		InitPoint string `json:"init_point"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("mercadopago preapproval id missing")
	}

	result := &CreatePreapprovalOutput{
		ExternalID: strings.TrimSpace(payload.ID),
		Status:     strings.ToLower(strings.TrimSpace(payload.Status)),
	}
	if result.Status == "" {
		result.Status = entity.SubscriptionStatusPending
	}
	if s := strings.TrimSpace(payload.InitPoint); s != "" {
		result.InitPoint = &s
	}

	return result, nil
}

// MercadoPagoEvent is a parsed Mercado Pago notification, in either the
// webhook shape ({"type","action","data":{"id"}}) or the legacy IPN shape
// ({"topic","resource"} or {"topic","id"}).
type MercadoPagoEvent struct {
	Type     string
	Action   string
	DataID   string
	Resource *MercadoPagoResource
}

// MercadoPagoResource covers the fields used from both payments and preapprovals.
type MercadoPagoResource struct {
	ID                interface{}         `json:"id"`
	Status            string              `json:"status"`
	TransactionAmount decimal.NullDecimal `json:"transaction_amount"`
	DateApproved      string              `json:"date_approved"`
	DateOfExpiration  string              `json:"date_of_expiration"`
	PaymentTypeID     string              `json:"payment_type_id"`
	ExternalReference string              `json:"external_reference"`
}

func ParseMercadoPagoEvent(payload []byte) (*MercadoPagoEvent, error) {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Type     string          `json:"type"`
		Topic    string          `json:"topic"`
		Action   string          `json:"action"`
		Resource string          `json:"resource"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	event := &MercadoPagoEvent{
		Type:   strings.ToLower(strings.TrimSpace(raw.Type)),
		Action: strings.ToLower(strings.TrimSpace(raw.Action)),
	}
	if event.Type == "" {
		event.Type = strings.ToLower(strings.TrimSpace(raw.Topic))
	}

	data := bytes.TrimSpace(raw.Data)
	if len(data) > 0 && data[0] == '{' {
		var resource MercadoPagoResource
		if err := json.Unmarshal(data, &resource); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		event.DataID = parseStringish(resource.ID)
		if strings.TrimSpace(resource.Status) != "" {
			event.Resource = &resource
		}
	}

	if event.DataID == "" {
		event.DataID = lastPathSegment(raw.Resource)
	}
	if event.DataID == "" && strings.TrimSpace(raw.Type) == "" {
		// Legacy IPN bodies carry the resource id at the root.
		event.DataID = parseStringish(raw.ID)
	}

	return event, nil
}

// Normalize maps the notification onto the shared event model. Payment kinds
// are derived from the payment status; when only an id is known the event is
// flagged for lookup and provisionally treated as an update.
func (e *MercadoPagoEvent) Normalize() *Event {
	result := &Event{
		Provider:   entity.ProviderMercadoPago,
		EventType:  e.eventType(),
		ResourceID: e.DataID,
	}

	switch e.Type {
	case "payment":
		if e.DataID == "" {
			result.Unaddressable = "payment id missing"
			return result
		}
		created := e.Action == "payment.created"
		paymentEvent := &PaymentEvent{Kind: EventKindUpdated, ExternalID: e.DataID}
		if created {
			paymentEvent.Kind = EventKindCreated
		}
		if e.Resource != nil {
			applyMercadoPagoPayment(paymentEvent, e.Resource, created)
		} else {
			result.NeedsLookup = true
		}
		result.Payment = paymentEvent
	case "subscription_preapproval", "preapproval":
		if e.DataID == "" {
			result.Unaddressable = "subscription id missing"
			return result
		}
		subscriptionEvent := &SubscriptionEvent{ExternalID: e.DataID}
		if e.Resource != nil {
			applyMercadoPagoPreapproval(subscriptionEvent, e.Resource)
		} else {
			result.NeedsLookup = true
		}
		result.Subscription = subscriptionEvent
	default:
		result.Unaddressable = "unrecognized notification type"
	}

	return result
}

func (e *MercadoPagoEvent) eventType() string {
	if e.Action != "" {
		return e.Action
	}
	return e.Type
}

var mercadoPagoPaymentKinds = map[string]EventKind{
	"approved":     EventKindReceived,
	"authorized":   EventKindReceived,
	"refunded":     EventKindRefunded,
	"charged_back": EventKindRefunded,
	"cancelled":    EventKindDeleted,
	"pending":      EventKindUpdated,
	"in_process":   EventKindUpdated,
	"in_mediation": EventKindUpdated,
	"rejected":     EventKindUpdated,
}

func applyMercadoPagoPayment(event *PaymentEvent, resource *MercadoPagoResource, created bool) {
	status := strings.ToLower(strings.TrimSpace(resource.Status))
	kind, ok := mercadoPagoPaymentKinds[status]
	switch {
	case !ok:
		kind = EventKindUnrecognized
	case kind == EventKindUpdated && created:
		kind = EventKindCreated
	}

	event.Kind = kind
	event.Status = strings.ToUpper(status)
	if resource.TransactionAmount.Valid {
		amount := resource.TransactionAmount.Decimal
		event.Amount = &amount
	}
	event.PaidAt = parseMercadoPagoTime(resource.DateApproved)
	event.DueDate = parseMercadoPagoTime(resource.DateOfExpiration)
	event.BillingType = strings.ToUpper(strings.TrimSpace(resource.PaymentTypeID))
}

func applyMercadoPagoPreapproval(event *SubscriptionEvent, resource *MercadoPagoResource) {
	event.Status = strings.ToLower(strings.TrimSpace(resource.Status))
	event.ExternalReference = strings.TrimSpace(resource.ExternalReference)
}

func verifyMercadoPagoSignature(header, dataID, requestID, secret string, toleranceSeconds int64, now time.Time) bool {
	header = strings.TrimSpace(header)
	if header == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = append(v1, strings.TrimSpace(value))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if tsUnix > 1e12 {
		tsUnix /= 1000
	}
	nowUnix := now.Unix()
	if nowUnix-tsUnix > toleranceSeconds || tsUnix-nowUnix > toleranceSeconds {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(mercadoPagoManifest(dataID, requestID, ts)))
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}

func mercadoPagoManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID = strings.TrimSpace(dataID); dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func parseMercadoPagoTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func lastPathSegment(raw string) string {
	raw = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if raw == "" {
		return ""
	}
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}
