package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
)

type fakeChargeIssuer struct {
	calls int
	input *provider.CreateChargeInput
	err   error
}

func (f *fakeChargeIssuer) CreateCharge(_ context.Context, input *provider.CreateChargeInput) (*provider.CreateChargeOutput, error) {
	f.calls++
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	url := "https://asaas.test/i/pay_new"
	return &provider.CreateChargeOutput{ExternalID: "pay_new", Status: entity.ChargeStatusPending, InvoiceURL: &url}, nil
}

type fakeSubscriptionIssuer struct {
	input *provider.CreatePreapprovalInput
}

func (f *fakeSubscriptionIssuer) CreatePreapproval(_ context.Context, input *provider.CreatePreapprovalInput) (*provider.CreatePreapprovalOutput, error) {
	f.input = input
	checkout := "https://mp.test/checkout/pre_1"
	return &provider.CreatePreapprovalOutput{ExternalID: "pre_1", Status: "pending", InitPoint: &checkout}, nil
}

type issueRequest struct {
	cycleID     uint64
	customerID  string
	billingType string
}

func (r issueRequest) GetCycleId() uint64 { return r.cycleID }
func (r issueRequest) GetCustomerId() string { return r.customerID }
func (r issueRequest) GetBillingType() string { return r.billingType }
func (r issueRequest) GetDescription() string { return "" }

type subscriptionRequest struct {
	tenantID string
	plan     string
	amount   string
}

func (r subscriptionRequest) GetTenantId() string { return r.tenantID }
func (r subscriptionRequest) GetPlan() string { return r.plan }
func (r subscriptionRequest) GetAmount() string { return r.amount }
func (r subscriptionRequest) GetCurrency() string { return "" }
func (r subscriptionRequest) GetPayerEmail() string { return "payer@example.com" }
func (r subscriptionRequest) GetBackUrl() string { return "" }

func newBillingServiceForTest(db *memDB, charges *fakeChargeIssuer, subs *fakeSubscriptionIssuer) *BillingService {
	repos := db.repos()
	svc := NewBillingService(repos.Charges, repos.Cycles, repos.Subscriptions, charges, subs)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func pendingCycle(db *memDB) *entity.BillingCycle {
	cycle := &entity.BillingCycle{
		ID:       3,
		TenantID: "tenant-1",
		DebtorID: "cus_1",
		Sequence: 3,
		Amount:   decimal.RequireFromString("49.90"),
		DueDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:   entity.CycleStatusPending,
	}
	db.cycles[cycle.ID] = cycle
	return cycle
}

func TestIssueChargeCreatesAndMirrorsCharge(t *testing.T) {
	db := newMemDB()
	pendingCycle(db)
	issuer := &fakeChargeIssuer{}
	svc := newBillingServiceForTest(db, issuer, &fakeSubscriptionIssuer{})

	charge, created, err := svc.IssueCharge(context.Background(), issueRequest{cycleID: 3, billingType: "pix"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || charge.ExternalID != "pay_new" || charge.Provider != entity.ProviderAsaas || charge.BillingCycleID != 3 {
		t.Fatalf("unexpected charge: %+v", charge)
	}
	if charge.BillingType == nil || *charge.BillingType != "PIX" {
		t.Fatalf("unexpected billing type: %v", charge.BillingType)
	}
	if issuer.input.TenantID != "tenant-1" || issuer.input.CustomerID != "cus_1" || issuer.input.ExternalReference != "3" {
		t.Fatalf("unexpected gateway input: %+v", issuer.input)
	}

	again, created, err := svc.IssueCharge(context.Background(), issueRequest{cycleID: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || again.ID != charge.ID || issuer.calls != 1 {
		t.Fatalf("expected the open charge to be reused, got %+v (calls=%d)", again, issuer.calls)
	}
}

func TestIssueChargeRejectsPaidCycle(t *testing.T) {
	db := newMemDB()
	pendingCycle(db).Status = entity.CycleStatusPaid
	svc := newBillingServiceForTest(db, &fakeChargeIssuer{}, &fakeSubscriptionIssuer{})

	if _, _, err := svc.IssueCharge(context.Background(), issueRequest{cycleID: 3}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, _, err := svc.IssueCharge(context.Background(), issueRequest{cycleID: 99}); !errors.Is(err, ErrCycleNotFound) {
		t.Fatalf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestIssueChargeMissingTenantCredential(t *testing.T) {
	db := newMemDB()
	pendingCycle(db)
	svc := newBillingServiceForTest(db, &fakeChargeIssuer{err: provider.ErrTenantKeyNotFound}, &fakeSubscriptionIssuer{})

	if _, _, err := svc.IssueCharge(context.Background(), issueRequest{cycleID: 3}); !errors.Is(err, ErrGatewayCredentialMissing) {
		t.Fatalf("expected ErrGatewayCredentialMissing, got %v", err)
	}
	if len(db.charges) != 0 {
		t.Fatal("expected no charge to be stored")
	}
}

func TestGetCycleReturnsLatestCharge(t *testing.T) {
	db := newMemDB()
	pendingCycle(db)
	db.charges[1] = &entity.Charge{ID: 1, BillingCycleID: 3, ExternalID: "pay_old", Status: entity.ChargeStatusCanceled}
	db.charges[2] = &entity.Charge{ID: 2, BillingCycleID: 3, ExternalID: "pay_new", Status: entity.ChargeStatusPending}
	svc := newBillingServiceForTest(db, &fakeChargeIssuer{}, &fakeSubscriptionIssuer{})

	cycle, charge, err := svc.GetCycle(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cycle.ID != 3 || charge == nil || charge.ExternalID != "pay_new" {
		t.Fatalf("unexpected result: %+v %+v", cycle, charge)
	}

	if _, _, err := svc.GetCycle(context.Background(), 4); !errors.Is(err, ErrCycleNotFound) {
		t.Fatalf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestCreateSubscriptionStampsTenantReference(t *testing.T) {
	db := newMemDB()
	issuer := &fakeSubscriptionIssuer{}
	svc := newBillingServiceForTest(db, &fakeChargeIssuer{}, issuer)

	sub, err := svc.CreateSubscription(context.Background(), subscriptionRequest{tenantID: "tenant-1", plan: "pro", amount: "99.90"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer.input.ExternalReference != "tenant-1" || !issuer.input.Amount.Equal(decimal.RequireFromString("99.90")) {
		t.Fatalf("unexpected gateway input: %+v", issuer.input)
	}
	if sub.Status != entity.SubscriptionStatusPending || sub.ExternalReference != "tenant-1" || sub.ExternalID == nil || *sub.ExternalID != "pre_1" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.CheckoutURL == nil || len(db.subs) != 1 {
		t.Fatalf("expected subscription to be stored with checkout link, got %+v", sub)
	}

	if _, err := svc.CreateSubscription(context.Background(), subscriptionRequest{tenantID: "tenant-1", plan: "pro", amount: "0"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.CreateSubscription(context.Background(), subscriptionRequest{tenantID: "tenant-1", plan: "pro", amount: "99.90"}); !errors.Is(err, ErrSubscriptionAlreadyExists) {
		t.Fatalf("expected ErrSubscriptionAlreadyExists, got %v", err)
	}
}
