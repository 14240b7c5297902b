package controller

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/config"
)

const testAsaasToken = "asaas-token"

type controllerEventRepo struct {
	rows   []*entity.WebhookEvent
	listFn func(ctx context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error)
}

func (r *controllerEventRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
	event.ID = uint64(len(r.rows) + 1)
	stored := *event
	r.rows = append(r.rows, &stored)
	return nil
}

func (r *controllerEventRepo) MarkProcessed(_ context.Context, id uint64, success bool, outcome string, errorMessage *string, processedAt time.Time) error {
	row := r.find(id)
	if row == nil {
		return repository.ErrWebhookEventNotFound
	}
	if row.Processed {
		return repository.ErrWebhookEventAlreadyProcessed
	}
	row.Processed = true
	row.Success = success
	row.Outcome = outcome
	row.ErrorMessage = errorMessage
	row.ProcessedAt = &processedAt
	return nil
}

func (r *controllerEventRepo) FindByID(_ context.Context, id uint64) (*entity.WebhookEvent, error) {
	row := r.find(id)
	if row == nil {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *controllerEventRepo) List(ctx context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error) {
	if r.listFn != nil {
		return r.listFn(ctx, filter)
	}
	return r.rows, nil
}

func (r *controllerEventRepo) ListUnprocessed(context.Context, time.Time, int32) ([]*entity.WebhookEvent, error) {
	return []*entity.WebhookEvent{}, nil
}

func (r *controllerEventRepo) find(id uint64) *entity.WebhookEvent {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

type controllerChargeRepo struct {
	createFn              func(ctx context.Context, charge *entity.Charge) error
	updateFn              func(ctx context.Context, charge *entity.Charge) error
	findByExternalIDFn    func(ctx context.Context, provider, externalID string) (*entity.Charge, error)
	findOpenByCycleIDFn   func(ctx context.Context, cycleID uint64) (*entity.Charge, error)
	findLatestByCycleIDFn func(ctx context.Context, cycleID uint64) (*entity.Charge, error)
}

func (r *controllerChargeRepo) Create(ctx context.Context, charge *entity.Charge) error {
	if r.createFn != nil {
		return r.createFn(ctx, charge)
	}
	return nil
}

func (r *controllerChargeRepo) Update(ctx context.Context, charge *entity.Charge) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, charge)
	}
	return nil
}

func (r *controllerChargeRepo) FindByID(context.Context, uint64) (*entity.Charge, error) {
	return nil, nil
}

func (r *controllerChargeRepo) FindByProviderExternalIDForUpdate(ctx context.Context, provider, externalID string) (*entity.Charge, error) {
	if r.findByExternalIDFn != nil {
		return r.findByExternalIDFn(ctx, provider, externalID)
	}
	return nil, nil
}

func (r *controllerChargeRepo) FindOpenByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error) {
	if r.findOpenByCycleIDFn != nil {
		return r.findOpenByCycleIDFn(ctx, cycleID)
	}
	return nil, nil
}

func (r *controllerChargeRepo) FindLatestByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error) {
	if r.findLatestByCycleIDFn != nil {
		return r.findLatestByCycleIDFn(ctx, cycleID)
	}
	return nil, nil
}

type controllerCycleRepo struct {
	createFn        func(ctx context.Context, cycle *entity.BillingCycle) error
	updateFn        func(ctx context.Context, cycle *entity.BillingCycle) error
	findByIDFn      func(ctx context.Context, id uint64) (*entity.BillingCycle, error)
	existsDueFromFn func(ctx context.Context, tenantID, debtorID string, from time.Time) (bool, error)
}

func (r *controllerCycleRepo) Create(ctx context.Context, cycle *entity.BillingCycle) error {
	if r.createFn != nil {
		return r.createFn(ctx, cycle)
	}
	return nil
}

func (r *controllerCycleRepo) Update(ctx context.Context, cycle *entity.BillingCycle) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, cycle)
	}
	return nil
}

func (r *controllerCycleRepo) FindByID(ctx context.Context, id uint64) (*entity.BillingCycle, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (r *controllerCycleRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.BillingCycle, error) {
	return r.FindByID(ctx, id)
}

func (r *controllerCycleRepo) ExistsDueFrom(ctx context.Context, tenantID, debtorID string, from time.Time) (bool, error) {
	if r.existsDueFromFn != nil {
		return r.existsDueFromFn(ctx, tenantID, debtorID, from)
	}
	return false, nil
}

type controllerSubscriptionRepo struct {
	createFn func(ctx context.Context, sub *entity.Subscription) error
}

func (r *controllerSubscriptionRepo) Create(ctx context.Context, sub *entity.Subscription) error {
	if r.createFn != nil {
		return r.createFn(ctx, sub)
	}
	return nil
}

func (r *controllerSubscriptionRepo) Update(context.Context, *entity.Subscription) error {
	return nil
}

func (r *controllerSubscriptionRepo) FindByExternalReferenceForUpdate(context.Context, string, string, string) (*entity.Subscription, error) {
	return nil, nil
}

func (r *controllerSubscriptionRepo) FindByExternalIDForUpdate(context.Context, string, string) (*entity.Subscription, error) {
	return nil, nil
}

type controllerTransactor struct {
	repos service.Repositories
}

func (t *controllerTransactor) WithinTx(_ context.Context, fn func(repos service.Repositories) error) error {
	return fn(t.repos)
}

type controllerDeps struct {
	events  *controllerEventRepo
	charges *controllerChargeRepo
	cycles  *controllerCycleRepo
	subs    *controllerSubscriptionRepo
}

func newControllerDeps() *controllerDeps {
	return &controllerDeps{
		events:  &controllerEventRepo{},
		charges: &controllerChargeRepo{},
		cycles:  &controllerCycleRepo{},
		subs:    &controllerSubscriptionRepo{},
	}
}

func (d *controllerDeps) webhookController() *WebhookController {
	registry := provider.NewRegistry(
		provider.NewAsaasGateway(provider.AsaasConfig{WebhookToken: testAsaasToken}),
		provider.NewMercadoPagoGateway(provider.MercadoPagoConfig{}),
	)
	tx := &controllerTransactor{repos: service.Repositories{
		Charges:       d.charges,
		Cycles:        d.cycles,
		Subscriptions: d.subs,
	}}
	svc := service.NewWebhookService(d.events, tx, registry, service.NewCycleGenerator(), nil, config.WebhooksConfig{})
	return NewWebhookController(svc)
}

type controllerIssuer struct {
	chargeOut *provider.CreateChargeOutput
	chargeErr error
	subOut    *provider.CreatePreapprovalOutput
	subErr    error
	calls     int
}

func (i *controllerIssuer) CreateCharge(context.Context, *provider.CreateChargeInput) (*provider.CreateChargeOutput, error) {
	i.calls++
	return i.chargeOut, i.chargeErr
}

func (i *controllerIssuer) CreatePreapproval(context.Context, *provider.CreatePreapprovalInput) (*provider.CreatePreapprovalOutput, error) {
	i.calls++
	return i.subOut, i.subErr
}

func (d *controllerDeps) billingController(issuer *controllerIssuer) *BillingController {
	svc := service.NewBillingService(d.charges, d.cycles, d.subs, issuer, issuer)
	return NewBillingController(svc)
}
