package types

import "encoding/json"

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type HandleWebhookRequest struct {
	RequestId string `json:"request_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Signature string `json:"signature,omitempty"`
	DataId    string `json:"data_id,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
}

func (x *HandleWebhookRequest) GetRequestId() string {
	if x != nil {
		return x.RequestId
	}
	return ""
}

func (x *HandleWebhookRequest) GetProvider() string {
	if x != nil {
		return x.Provider
	}
	return ""
}

func (x *HandleWebhookRequest) GetSignature() string {
	if x != nil {
		return x.Signature
	}
	return ""
}

func (x *HandleWebhookRequest) GetDataId() string {
	if x != nil {
		return x.DataId
	}
	return ""
}

func (x *HandleWebhookRequest) GetPayload() []byte {
	if x != nil {
		return x.Payload
	}
	return nil
}

type HandleWebhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	EventId   uint64 `json:"event_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

type WebhookEvent struct {
	Id           uint64          `json:"id"`
	Provider     string          `json:"provider"`
	EventType    string          `json:"event_type"`
	ExternalId   string          `json:"external_id,omitempty"`
	RequestId    string          `json:"request_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ReceivedAt   string          `json:"received_at"`
	Processed    bool            `json:"processed"`
	Success      bool            `json:"success"`
	Outcome      string          `json:"outcome"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ProcessedAt  string          `json:"processed_at,omitempty"`
}

type WebhookEventResponse struct {
	WebhookEvent *WebhookEvent `json:"webhook_event"`
}

type GetWebhookEventRequest struct {
	Id uint64 `json:"id,omitempty"`
}

func (x *GetWebhookEventRequest) GetId() uint64 {
	if x != nil {
		return x.Id
	}
	return 0
}

type ReplayWebhookEventRequest struct {
	Id uint64 `json:"id,omitempty"`
}

func (x *ReplayWebhookEventRequest) GetId() uint64 {
	if x != nil {
		return x.Id
	}
	return 0
}

type ReplayWebhookEventResponse struct {
	EventId   uint64 `json:"event_id"`
	Outcome   string `json:"outcome"`
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

type ListWebhookEventsRequest struct {
	Provider     string `json:"provider,omitempty"`
	HasProcessed bool   `json:"has_processed,omitempty"`
	Processed    bool   `json:"processed,omitempty"`
	Limit        int32  `json:"limit,omitempty"`
	Offset       int32  `json:"offset,omitempty"`
}

func (x *ListWebhookEventsRequest) GetProvider() string {
	if x != nil {
		return x.Provider
	}
	return ""
}

func (x *ListWebhookEventsRequest) GetHasProcessed() bool {
	if x != nil {
		return x.HasProcessed
	}
	return false
}

func (x *ListWebhookEventsRequest) GetProcessed() bool {
	if x != nil {
		return x.Processed
	}
	return false
}

func (x *ListWebhookEventsRequest) GetLimit() int32 {
	if x != nil {
		return x.Limit
	}
	return 0
}

func (x *ListWebhookEventsRequest) GetOffset() int32 {
	if x != nil {
		return x.Offset
	}
	return 0
}

type ListWebhookEventsResponse struct {
	WebhookEvents []*WebhookEvent `json:"webhook_events"`
}

type BillingCycle struct {
	Id             uint64 `json:"id"`
	TenantId       string `json:"tenant_id"`
	DebtorId       string `json:"debtor_id"`
	SubscriptionId uint64 `json:"subscription_id,omitempty"`
	Sequence       int32  `json:"sequence"`
	Amount         string `json:"amount"`
	DueDate        string `json:"due_date"`
	Recurring      bool   `json:"recurring"`
	Status         string `json:"status"`
	PaidAt         string `json:"paid_at,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type Charge struct {
	Id             uint64 `json:"id"`
	TenantId       string `json:"tenant_id"`
	BillingCycleId uint64 `json:"billing_cycle_id"`
	DebtorId       string `json:"debtor_id"`
	Provider       string `json:"provider"`
	ExternalId     string `json:"external_id"`
	Status         string `json:"status"`
	DueDate        string `json:"due_date"`
	Amount         string `json:"amount"`
	AmountPaid     string `json:"amount_paid,omitempty"`
	BillingType    string `json:"billing_type,omitempty"`
	InvoiceUrl     string `json:"invoice_url,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type GetBillingCycleRequest struct {
	Id uint64 `json:"id,omitempty"`
}

func (x *GetBillingCycleRequest) GetId() uint64 {
	if x != nil {
		return x.Id
	}
	return 0
}

type BillingCycleResponse struct {
	BillingCycle *BillingCycle `json:"billing_cycle"`
	Charge       *Charge       `json:"charge,omitempty"`
}

type IssueChargeRequest struct {
	CycleId     uint64 `json:"cycle_id,omitempty"`
	CustomerId  string `json:"customer_id,omitempty"`
	BillingType string `json:"billing_type,omitempty"`
	Description string `json:"description,omitempty"`
}

func (x *IssueChargeRequest) GetCycleId() uint64 {
	if x != nil {
		return x.CycleId
	}
	return 0
}

func (x *IssueChargeRequest) GetCustomerId() string {
	if x != nil {
		return x.CustomerId
	}
	return ""
}

func (x *IssueChargeRequest) GetBillingType() string {
	if x != nil {
		return x.BillingType
	}
	return ""
}

func (x *IssueChargeRequest) GetDescription() string {
	if x != nil {
		return x.Description
	}
	return ""
}

type ChargeResponse struct {
	Charge  *Charge `json:"charge"`
	Created bool    `json:"created"`
}

type CreateSubscriptionRequest struct {
	TenantId   string `json:"tenant_id,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	PayerEmail string `json:"payer_email,omitempty"`
	BackUrl    string `json:"back_url,omitempty"`
}

func (x *CreateSubscriptionRequest) GetTenantId() string {
	if x != nil {
		return x.TenantId
	}
	return ""
}

func (x *CreateSubscriptionRequest) GetPlan() string {
	if x != nil {
		return x.Plan
	}
	return ""
}

func (x *CreateSubscriptionRequest) GetAmount() string {
	if x != nil {
		return x.Amount
	}
	return ""
}

func (x *CreateSubscriptionRequest) GetCurrency() string {
	if x != nil {
		return x.Currency
	}
	return ""
}

func (x *CreateSubscriptionRequest) GetPayerEmail() string {
	if x != nil {
		return x.PayerEmail
	}
	return ""
}

func (x *CreateSubscriptionRequest) GetBackUrl() string {
	if x != nil {
		return x.BackUrl
	}
	return ""
}

type Subscription struct {
	Id                uint64 `json:"id"`
	TenantId          string `json:"tenant_id"`
	Plan              string `json:"plan"`
	Provider          string `json:"provider"`
	ExternalId        string `json:"external_id,omitempty"`
	ExternalReference string `json:"external_reference"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	CheckoutUrl       string `json:"checkout_url,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type SubscriptionResponse struct {
	Subscription *Subscription `json:"subscription"`
}
