package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type issueChargeRequest interface {
	GetCycleId() uint64
	GetCustomerId() string
	GetBillingType() string
	GetDescription() string
}

type createSubscriptionRequest interface {
	GetTenantId() string
	GetPlan() string
	GetAmount() string
	GetCurrency() string
	GetPayerEmail() string
	GetBackUrl() string
}

type chargeIssuer interface {
	CreateCharge(ctx context.Context, input *provider.CreateChargeInput) (*provider.CreateChargeOutput, error)
}

type subscriptionIssuer interface {
	CreatePreapproval(ctx context.Context, input *provider.CreatePreapprovalInput) (*provider.CreatePreapprovalOutput, error)
}

// BillingService covers the outbound flows whose identifiers the webhook
// pipeline later correlates: charges issued at Asaas and mandates requested
// at Mercado Pago.
type BillingService struct {
	charges       ChargeStore
	cycles        CycleStore
	subscriptions SubscriptionStore
	chargeIssuer  chargeIssuer
	subIssuer     subscriptionIssuer
	now           func() time.Time
}

func NewBillingService(
	charges ChargeStore,
	cycles CycleStore,
	subscriptions SubscriptionStore,
	chargeIssuer chargeIssuer,
	subIssuer subscriptionIssuer,
) *BillingService {
	return &BillingService{
		charges:       charges,
		cycles:        cycles,
		subscriptions: subscriptions,
		chargeIssuer:  chargeIssuer,
		subIssuer:     subIssuer,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GetCycle returns a cycle and its most recent charge, which may be nil.
func (s *BillingService) GetCycle(ctx context.Context, id uint64) (*entity.BillingCycle, *entity.Charge, error) {
	cycle, err := s.cycles.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cycle == nil {
		return nil, nil, ErrCycleNotFound
	}

	charge, err := s.charges.FindLatestByCycleID(ctx, cycle.ID)
	if err != nil {
		return nil, nil, err
	}

	return cycle, charge, nil
}

// IssueCharge creates an Asaas charge for a pending cycle and mirrors it
// locally. An open charge already issued for the cycle is returned as is;
// the boolean reports whether a new charge was created.
func (s *BillingService) IssueCharge(ctx context.Context, req issueChargeRequest) (*entity.Charge, bool, error) {
	if req.GetCycleId() == 0 {
		return nil, false, ErrInvalidRequest
	}

	cycle, err := s.cycles.FindByID(ctx, req.GetCycleId())
	if err != nil {
		return nil, false, err
	}
	if cycle == nil {
		return nil, false, ErrCycleNotFound
	}
	if cycle.Status != entity.CycleStatusPending {
		return nil, false, ErrInvalidStatus
	}

	existing, err := s.charges.FindOpenByCycleID(ctx, cycle.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	customerID := strings.TrimSpace(req.GetCustomerId())
	if customerID == "" {
		customerID = cycle.DebtorID
	}
	description := strings.TrimSpace(req.GetDescription())
	if description == "" {
		description = fmt.Sprintf("Billing cycle #%d", cycle.Sequence)
	}

	out, err := s.chargeIssuer.CreateCharge(ctx, &provider.CreateChargeInput{
		TenantID:          cycle.TenantID,
		CustomerID:        customerID,
		Amount:            cycle.Amount,
		DueDate:           cycle.DueDate,
		BillingType:       req.GetBillingType(),
		Description:       description,
		ExternalReference: strconv.FormatUint(cycle.ID, 10),
	})
	if err != nil {
		if errors.Is(err, provider.ErrTenantKeyNotFound) {
			return nil, false, ErrGatewayCredentialMissing
		}
		return nil, false, err
	}

	now := s.now()
	charge := &entity.Charge{
		TenantID:       cycle.TenantID,
		BillingCycleID: cycle.ID,
		DebtorID:       cycle.DebtorID,
		Provider:       entity.ProviderAsaas,
		ExternalID:     out.ExternalID,
		Status:         out.Status,
		DueDate:        cycle.DueDate,
		Amount:         cycle.Amount,
		BillingType:    normalizeOptionalString(strings.ToUpper(req.GetBillingType())),
		InvoiceURL:     out.InvoiceURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.charges.Create(ctx, charge); err != nil {
		if errors.Is(err, repository.ErrChargeAlreadyExists) {
			existing, findErr := s.charges.FindOpenByCycleID(ctx, cycle.ID)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	return charge, true, nil
}

// CreateSubscription requests a Mercado Pago mandate stamped with the tenant id
// as external reference and stores it as pending until the gateway confirms.
func (s *BillingService) CreateSubscription(ctx context.Context, req createSubscriptionRequest) (*entity.Subscription, error) {
	tenantID := strings.TrimSpace(req.GetTenantId())
	plan := strings.TrimSpace(req.GetPlan())
	if tenantID == "" || plan == "" {
		return nil, ErrInvalidRequest
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.GetAmount()))
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidRequest
	}

	out, err := s.subIssuer.CreatePreapproval(ctx, &provider.CreatePreapprovalInput{
		Reason:            plan,
		PayerEmail:        strings.TrimSpace(req.GetPayerEmail()),
		BackURL:           strings.TrimSpace(req.GetBackUrl()),
		ExternalReference: tenantID,
		Amount:            amount,
		Currency:          req.GetCurrency(),
	})
	if err != nil {
		return nil, err
	}

	status, ok := subscriptionStatuses[out.Status]
	if !ok {
		status = entity.SubscriptionStatusPending
	}

	now := s.now()
	externalID := out.ExternalID
	sub := &entity.Subscription{
		TenantID:          tenantID,
		Plan:              plan,
		Provider:          entity.ProviderMercadoPago,
		ExternalID:        &externalID,
		ExternalReference: tenantID,
		Status:            status,
		Amount:            amount,
		CheckoutURL:       out.InitPoint,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrSubscriptionAlreadyExists) {
			return nil, ErrSubscriptionAlreadyExists
		}
		return nil, err
	}

	return sub, nil
}
