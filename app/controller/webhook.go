package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type WebhookController struct {
	webhookService *service.WebhookService
	logger         logrus.FieldLogger
}

func NewWebhookController(webhookService *service.WebhookService) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("webhooks-controller"),
	}
}

// HandleWebhook acknowledges a gateway delivery. Gateways only see success or
// failure; the outcome detail stays in the webhook event log.
func (c *WebhookController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewHandleWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	l := factory.LoggerWithContext(c.logger, ctx).WithField("provider", req.GetProvider())

	result, err := c.webhookService.HandleWebhook(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSignatureRejected):
			l.Warn("Webhook signature rejected")
			return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
		case errors.Is(err, service.ErrMalformedPayload):
			l.WithField("event_id", eventID(result)).Warn("Malformed webhook payload")
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrReconciliationFailed):
			l.WithError(err).WithField("event_id", eventID(result)).Error("Webhook reconciliation failed")
			return c.writeError(ctx, http.StatusInternalServerError, "webhook processing failed")
		default:
			l.WithError(err).Error("Handle webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	l.WithFields(logrus.Fields{
		"event_id": result.EventID,
		"outcome":  result.Outcome,
	}).Debug("Webhook handled")

	return ctx.JSON(http.StatusOK, &types.HandleWebhookResponse{
		Received:  true,
		Processed: result.Processed(),
		EventId:   result.EventID,
		Outcome:   result.Outcome,
	})
}

func (c *WebhookController) ListWebhookEvents(ctx echo.Context) error {
	req, err := types.NewListWebhookEventsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.webhookService.ListWebhookEvents(ctx.Request().Context(), req)
	if err != nil {
		c.logger.WithError(err).Error("List webhook events failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListWebhookEventsResponse{WebhookEvents: mapper.WebhookEventsToProto(items)})
}

func (c *WebhookController) GetWebhookEvent(ctx echo.Context) error {
	req, err := types.NewGetWebhookEventRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.webhookService.GetWebhookEvent(ctx.Request().Context(), req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrWebhookEventNotFound) {
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		}
		c.logger.WithError(err).Error("Get webhook event failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.WebhookEventResponse{WebhookEvent: mapper.WebhookEventToProto(item)})
}

func (c *WebhookController) ReplayWebhookEvent(ctx echo.Context) error {
	req, err := types.NewReplayWebhookEventRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.webhookService.ReplayWebhookEvent(ctx.Request().Context(), req.GetId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookEventNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrWebhookEventProcessed):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrProviderUnsupported), errors.Is(err, service.ErrMalformedPayload):
			return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("event_id", req.GetId()).Error("Replay webhook event failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.ReplayWebhookEventResponse{
		EventId:   result.EventID,
		Outcome:   result.Outcome,
		Processed: result.Processed(),
		Reason:    result.Reason,
	})
}

func (c *WebhookController) writeError(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, &types.ErrorResponse{Error: message})
}

func eventID(result *service.WebhookResult) uint64 {
	if result == nil {
		return 0
	}
	return result.EventID
}
