package types

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	asaasTokenHeader           = "asaas-access-token"
	mercadoPagoSignatureHeader = "x-signature"
)

func NewHandleWebhookRequestFromContext(ctx echo.Context) (*HandleWebhookRequest, error) {
	provider := strings.TrimSpace(strings.ToLower(ctx.Param("provider")))
	headers := ctx.Request().Header

	var signature string
	switch provider {
	case "asaas":
		signature = headers.Get(asaasTokenHeader)
	case "mercadopago":
		signature = headers.Get(mercadoPagoSignatureHeader)
	}

	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	dataID := strings.TrimSpace(ctx.QueryParam("data.id"))
	if len(strings.TrimSpace(string(rawBody))) == 0 {
		rawBody = payloadFromQuery(ctx)
	}

	return &HandleWebhookRequest{
		RequestId: strings.TrimSpace(headers.Get(echo.HeaderXRequestID)),
		Provider:  provider,
		Signature: strings.TrimSpace(signature),
		DataId:    dataID,
		Payload:   rawBody,
	}, nil
}

// payloadFromQuery rebuilds a notification body for gateways that deliver the
// resource reference in the query string only (?topic=payment&id=123).
func payloadFromQuery(ctx echo.Context) []byte {
	eventType := strings.TrimSpace(ctx.QueryParam("type"))
	topic := strings.TrimSpace(ctx.QueryParam("topic"))
	id := strings.TrimSpace(ctx.QueryParam("id"))
	dataID := strings.TrimSpace(ctx.QueryParam("data.id"))
	if eventType == "" && topic == "" {
		return nil
	}

	body := map[string]interface{}{}
	if eventType != "" {
		body["type"] = eventType
	}
	if topic != "" {
		body["topic"] = topic
	}
	if dataID != "" {
		body["data"] = map[string]string{"id": dataID}
	}
	if id != "" {
		body["id"] = id
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return encoded
}

// Validate only checks routing. An empty payload still reaches the service so
// the delivery is logged before it is refused.
func (r *HandleWebhookRequest) Validate() error {
	if strings.TrimSpace(r.GetProvider()) == "" {
		return errors.New("provider is required")
	}
	return nil
}

func NewGetWebhookEventRequestFromContext(ctx echo.Context) (*GetWebhookEventRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetWebhookEventRequest{Id: id}, nil
}

func (r *GetWebhookEventRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid webhook event id")
	}
	return nil
}

func NewReplayWebhookEventRequestFromContext(ctx echo.Context) (*ReplayWebhookEventRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &ReplayWebhookEventRequest{Id: id}, nil
}

func (r *ReplayWebhookEventRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid webhook event id")
	}
	return nil
}

func NewListWebhookEventsRequestFromContext(ctx echo.Context) (*ListWebhookEventsRequest, error) {
	req := &ListWebhookEventsRequest{
		Provider: strings.TrimSpace(strings.ToLower(ctx.QueryParam("provider"))),
		Limit:    100,
		Offset:   0,
	}

	if processedRaw := strings.TrimSpace(ctx.QueryParam("processed")); processedRaw != "" {
		processed, err := strconv.ParseBool(processedRaw)
		if err != nil {
			return nil, err
		}
		req.HasProcessed = true
		req.Processed = processed
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListWebhookEventsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = 100
	}
	if r.GetLimit() <= 0 || r.GetLimit() > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	switch r.GetProvider() {
	case "", "asaas", "mercadopago":
	default:
		return errors.New("invalid provider")
	}
	return nil
}
