package types

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewHandleWebhookRequestFromContextAsaas(t *testing.T) {
	e := echo.New()
	body := `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_1"}}`
	req := httptest.NewRequest("POST", "/webhooks/asaas", bytes.NewBufferString(body))
	req.Header.Set("asaas-access-token", " tok ")
	req.Header.Set("x-signature", "ignored")
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("ASAAS")

	parsed, err := NewHandleWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetProvider() != "asaas" {
		t.Fatalf("expected lower-cased provider, got %q", parsed.GetProvider())
	}
	if parsed.GetSignature() != "tok" {
		t.Fatalf("expected asaas token header, got %q", parsed.GetSignature())
	}
	if parsed.GetRequestId() != "req-1" {
		t.Fatalf("expected request id, got %q", parsed.GetRequestId())
	}
	if string(parsed.GetPayload()) != body {
		t.Fatalf("expected raw body to be kept, got %q", parsed.GetPayload())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestNewHandleWebhookRequestFromContextMercadoPago(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/webhooks/mercadopago?data.id=123&type=payment", bytes.NewBufferString(`{"type":"payment","data":{"id":"123"}}`))
	req.Header.Set("x-signature", "ts=1,v1=abc")
	req.Header.Set("x-request-id", "mp-req")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("mercadopago")

	parsed, err := NewHandleWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetSignature() != "ts=1,v1=abc" {
		t.Fatalf("unexpected signature %q", parsed.GetSignature())
	}
	if parsed.GetDataId() != "123" {
		t.Fatalf("expected data.id query param, got %q", parsed.GetDataId())
	}
	if parsed.GetRequestId() != "mp-req" {
		t.Fatalf("expected request id, got %q", parsed.GetRequestId())
	}
}

func TestNewHandleWebhookRequestFromContextQueryOnly(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/webhooks/mercadopago?topic=payment&id=555", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("mercadopago")

	parsed, err := NewHandleWebhookRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(parsed.GetPayload(), &body); err != nil {
		t.Fatalf("expected synthesized json payload, got %q: %v", parsed.GetPayload(), err)
	}
	if body["topic"] != "payment" || body["id"] != "555" {
		t.Fatalf("unexpected synthesized payload: %v", body)
	}
}

func TestHandleWebhookValidate(t *testing.T) {
	req := &HandleWebhookRequest{Payload: []byte(`{}`)}
	if err := req.Validate(); err == nil {
		t.Fatal("expected provider validation error")
	}

	req = &HandleWebhookRequest{Provider: "asaas"}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected empty payload to pass validation, got %v", err)
	}
}

func TestNewListWebhookEventsRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/webhook-events?provider=Asaas&processed=false&limit=20&offset=3", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewListWebhookEventsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetProvider() != "asaas" {
		t.Fatalf("unexpected provider parse: %+v", parsed)
	}
	if !parsed.GetHasProcessed() || parsed.GetProcessed() {
		t.Fatalf("unexpected processed parse: %+v", parsed)
	}
	if parsed.GetLimit() != 20 || parsed.GetOffset() != 3 {
		t.Fatalf("unexpected paging parse: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid list request, got %v", err)
	}
}

func TestListWebhookEventsValidate(t *testing.T) {
	req := &ListWebhookEventsRequest{}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if req.GetLimit() != 100 {
		t.Fatalf("expected default limit 100, got %d", req.GetLimit())
	}

	req = &ListWebhookEventsRequest{Limit: 501}
	if err := req.Validate(); err == nil {
		t.Fatal("expected limit validation error")
	}

	req = &ListWebhookEventsRequest{Limit: 10, Provider: "stripe"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected provider validation error")
	}
}

func TestNewListWebhookEventsRequestFromContextRejectsBadProcessed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/webhook-events?processed=maybe", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if _, err := NewListWebhookEventsRequestFromContext(ctx); err == nil {
		t.Fatal("expected processed parse error")
	}
}

func TestNewReplayWebhookEventRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/webhook-events/12/replay", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("12")

	parsed, err := NewReplayWebhookEventRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetId() != 12 {
		t.Fatalf("expected id 12, got %d", parsed.GetId())
	}

	ctx.SetParamValues("abc")
	if _, err := NewReplayWebhookEventRequestFromContext(ctx); err == nil {
		t.Fatal("expected id parse error")
	}
}
