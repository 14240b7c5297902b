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

type BillingController struct {
	billingService *service.BillingService
	logger         logrus.FieldLogger
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BillingController) GetBillingCycle(ctx echo.Context) error {
	req, err := types.NewGetBillingCycleRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	cycle, charge, err := c.billingService.GetCycle(ctx.Request().Context(), req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrCycleNotFound) {
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		}
		c.logger.WithError(err).Error("Get billing cycle failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.BillingCycleResponse{
		BillingCycle: mapper.BillingCycleToProto(cycle),
		Charge:       mapper.ChargeToProto(charge),
	})
}

func (c *BillingController) IssueCharge(ctx echo.Context) error {
	req, err := types.NewIssueChargeRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	charge, created, err := c.billingService.IssueCharge(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCycleNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusConflict, "billing cycle is not pending")
		case errors.Is(err, service.ErrGatewayCredentialMissing):
			return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("cycle_id", req.GetCycleId()).Error("Issue charge failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}

	return ctx.JSON(code, &types.ChargeResponse{Charge: mapper.ChargeToProto(charge), Created: created})
}

func (c *BillingController) CreateSubscription(ctx echo.Context) error {
	req, err := types.NewCreateSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.billingService.CreateSubscription(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubscriptionAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.SubscriptionResponse{Subscription: mapper.SubscriptionToProto(item)})
}

func (c *BillingController) writeError(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, &types.ErrorResponse{Error: message})
}
