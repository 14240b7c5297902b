package types

import (
	"errors"
	"io"
	"net/mail"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func NewGetBillingCycleRequestFromContext(ctx echo.Context) (*GetBillingCycleRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetBillingCycleRequest{Id: id}, nil
}

func (r *GetBillingCycleRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid billing cycle id")
	}
	return nil
}

func NewIssueChargeRequestFromContext(ctx echo.Context) (*IssueChargeRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body IssueChargeRequest
	if err = ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.CycleId = id
	body.CustomerId = strings.TrimSpace(body.CustomerId)
	body.BillingType = strings.ToUpper(strings.TrimSpace(body.BillingType))
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *IssueChargeRequest) Validate() error {
	if r.GetCycleId() == 0 {
		return errors.New("invalid billing cycle id")
	}
	switch r.GetBillingType() {
	case "", "BOLETO", "PIX", "CREDIT_CARD", "UNDEFINED":
	default:
		return errors.New("billing_type must be boleto, pix, credit_card, or undefined")
	}
	if len(r.GetDescription()) > 500 {
		return errors.New("description must be at most 500 characters")
	}
	return nil
}

func NewCreateSubscriptionRequestFromContext(ctx echo.Context) (*CreateSubscriptionRequest, error) {
	var body CreateSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.TenantId = strings.TrimSpace(body.TenantId)
	body.Plan = strings.TrimSpace(body.Plan)
	body.Amount = strings.TrimSpace(body.Amount)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.PayerEmail = strings.TrimSpace(body.PayerEmail)
	body.BackUrl = strings.TrimSpace(body.BackUrl)

	return &body, nil
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.GetTenantId() == "" {
		return errors.New("tenant_id is required")
	}
	if r.GetPlan() == "" {
		return errors.New("plan is required")
	}
	amount, err := decimal.NewFromString(r.GetAmount())
	if err != nil || !amount.IsPositive() {
		return errors.New("amount must be a positive decimal")
	}
	if amount.Exponent() < -2 {
		return errors.New("amount must have at most 2 decimal places")
	}
	if r.GetCurrency() != "" && len(r.GetCurrency()) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if _, err := mail.ParseAddress(r.GetPayerEmail()); err != nil {
		return errors.New("payer_email is invalid")
	}
	return nil
}
