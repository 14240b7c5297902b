package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

var errInjected = errors.New("injected failure")

// memDB is an in-memory stand-in for the billing tables. memTransactor gives
// it all-or-nothing semantics by restoring a snapshot when fn fails.
type memDB struct {
	charges map[uint64]*entity.Charge
	cycles  map[uint64]*entity.BillingCycle
	subs    map[uint64]*entity.Subscription
	nextID  uint64
	failOn  string
	txCount int
}

func newMemDB() *memDB {
	return &memDB{
		charges: map[uint64]*entity.Charge{},
		cycles:  map[uint64]*entity.BillingCycle{},
		subs:    map[uint64]*entity.Subscription{},
		nextID:  100,
	}
}

func (db *memDB) id() uint64 {
	id := db.nextID
	db.nextID++
	return id
}

func (db *memDB) snapshot() *memDB {
	cp := &memDB{
		charges: make(map[uint64]*entity.Charge, len(db.charges)),
		cycles:  make(map[uint64]*entity.BillingCycle, len(db.cycles)),
		subs:    make(map[uint64]*entity.Subscription, len(db.subs)),
		nextID:  db.nextID,
	}
	for k, v := range db.charges {
		item := *v
		cp.charges[k] = &item
	}
	for k, v := range db.cycles {
		item := *v
		cp.cycles[k] = &item
	}
	for k, v := range db.subs {
		item := *v
		cp.subs[k] = &item
	}
	return cp
}

func (db *memDB) restore(from *memDB) {
	db.charges = from.charges
	db.cycles = from.cycles
	db.subs = from.subs
	db.nextID = from.nextID
}

func (db *memDB) repos() Repositories {
	return Repositories{
		Charges:       &memCharges{db: db},
		Cycles:        &memCycles{db: db},
		Subscriptions: &memSubscriptions{db: db},
	}
}

func (db *memDB) cyclesOf(tenantID, debtorID string) []*entity.BillingCycle {
	items := make([]*entity.BillingCycle, 0)
	for _, c := range db.cycles {
		if c.TenantID == tenantID && c.DebtorID == debtorID {
			item := *c
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })
	return items
}

type memTransactor struct {
	db *memDB
}

func (t *memTransactor) WithinTx(_ context.Context, fn func(repos Repositories) error) error {
	t.db.txCount++
	snapshot := t.db.snapshot()
	if err := fn(t.db.repos()); err != nil {
		t.db.restore(snapshot)
		return err
	}
	return nil
}

type memCharges struct {
	db *memDB
}

func (r *memCharges) Create(_ context.Context, charge *entity.Charge) error {
	if r.db.failOn == "charge.create" {
		return errInjected
	}
	for _, item := range r.db.charges {
		if item.Provider == charge.Provider && item.ExternalID == charge.ExternalID {
			return repository.ErrChargeAlreadyExists
		}
	}
	charge.ID = r.db.id()
	item := *charge
	r.db.charges[charge.ID] = &item
	return nil
}

func (r *memCharges) Update(_ context.Context, charge *entity.Charge) error {
	if r.db.failOn == "charge.update" {
		return errInjected
	}
	if _, ok := r.db.charges[charge.ID]; !ok {
		return repository.ErrChargeNotFound
	}
	item := *charge
	r.db.charges[charge.ID] = &item
	return nil
}

func (r *memCharges) FindByID(_ context.Context, id uint64) (*entity.Charge, error) {
	item, ok := r.db.charges[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *memCharges) FindByProviderExternalIDForUpdate(_ context.Context, providerCode, externalID string) (*entity.Charge, error) {
	for _, item := range r.db.charges {
		if item.Provider == providerCode && item.ExternalID == externalID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCharges) FindOpenByCycleID(_ context.Context, cycleID uint64) (*entity.Charge, error) {
	var found *entity.Charge
	for _, item := range r.db.charges {
		if item.BillingCycleID != cycleID {
			continue
		}
		if item.Status != entity.ChargeStatusPending && item.Status != entity.ChargeStatusOverdue {
			continue
		}
		if found == nil || item.ID > found.ID {
			found = item
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *memCharges) FindLatestByCycleID(_ context.Context, cycleID uint64) (*entity.Charge, error) {
	var found *entity.Charge
	for _, item := range r.db.charges {
		if item.BillingCycleID == cycleID && (found == nil || item.ID > found.ID) {
			found = item
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

type memCycles struct {
	db *memDB
}

func (r *memCycles) Create(_ context.Context, cycle *entity.BillingCycle) error {
	if r.db.failOn == "cycle.create" {
		return errInjected
	}
	for _, item := range r.db.cycles {
		if item.TenantID == cycle.TenantID && item.DebtorID == cycle.DebtorID && item.DueDate.Equal(cycle.DueDate) {
			return repository.ErrCycleAlreadyExists
		}
	}
	cycle.ID = r.db.id()
	item := *cycle
	r.db.cycles[cycle.ID] = &item
	return nil
}

func (r *memCycles) Update(_ context.Context, cycle *entity.BillingCycle) error {
	if r.db.failOn == "cycle.update" {
		return errInjected
	}
	if _, ok := r.db.cycles[cycle.ID]; !ok {
		return repository.ErrCycleNotFound
	}
	item := *cycle
	r.db.cycles[cycle.ID] = &item
	return nil
}

func (r *memCycles) FindByID(_ context.Context, id uint64) (*entity.BillingCycle, error) {
	item, ok := r.db.cycles[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *memCycles) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.BillingCycle, error) {
	return r.FindByID(ctx, id)
}

func (r *memCycles) ExistsDueFrom(_ context.Context, tenantID, debtorID string, from time.Time) (bool, error) {
	for _, item := range r.db.cycles {
		if item.TenantID == tenantID && item.DebtorID == debtorID && !item.DueDate.Before(from) {
			return true, nil
		}
	}
	return false, nil
}

type memSubscriptions struct {
	db *memDB
}

func (r *memSubscriptions) Create(_ context.Context, sub *entity.Subscription) error {
	for _, item := range r.db.subs {
		if item.Provider == sub.Provider && item.ExternalID != nil && sub.ExternalID != nil && *item.ExternalID == *sub.ExternalID {
			return repository.ErrSubscriptionAlreadyExists
		}
	}
	sub.ID = r.db.id()
	item := *sub
	r.db.subs[sub.ID] = &item
	return nil
}

func (r *memSubscriptions) Update(_ context.Context, sub *entity.Subscription) error {
	if _, ok := r.db.subs[sub.ID]; !ok {
		return repository.ErrSubscriptionNotFound
	}
	item := *sub
	r.db.subs[sub.ID] = &item
	return nil
}

func (r *memSubscriptions) FindByExternalReferenceForUpdate(_ context.Context, providerCode, externalReference, externalID string) (*entity.Subscription, error) {
	var found *entity.Subscription
	for _, item := range r.db.subs {
		if item.Provider != providerCode || item.ExternalReference != externalReference {
			continue
		}
		if item.ExternalID != nil {
			if *item.ExternalID == externalID {
				found = item
				break
			}
			continue
		}
		if found == nil || item.ID > found.ID {
			found = item
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *memSubscriptions) FindByExternalIDForUpdate(_ context.Context, providerCode, externalID string) (*entity.Subscription, error) {
	for _, item := range r.db.subs {
		if item.Provider == providerCode && item.ExternalID != nil && *item.ExternalID == externalID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

type memEvents struct {
	rows   map[uint64]*entity.WebhookEvent
	nextID uint64
}

func newMemEvents() *memEvents {
	return &memEvents{rows: map[uint64]*entity.WebhookEvent{}, nextID: 1}
}

func (r *memEvents) Create(_ context.Context, event *entity.WebhookEvent) error {
	event.ID = r.nextID
	r.nextID++
	item := *event
	r.rows[event.ID] = &item
	return nil
}

func (r *memEvents) MarkProcessed(_ context.Context, id uint64, success bool, outcome string, errorMessage *string, processedAt time.Time) error {
	item, ok := r.rows[id]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	if item.Processed {
		return repository.ErrWebhookEventAlreadyProcessed
	}
	item.Processed = true
	item.Success = success
	item.Outcome = outcome
	item.ErrorMessage = errorMessage
	at := processedAt
	item.ProcessedAt = &at
	return nil
}

func (r *memEvents) FindByID(_ context.Context, id uint64) (*entity.WebhookEvent, error) {
	item, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *memEvents) List(_ context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error) {
	items := make([]*entity.WebhookEvent, 0)
	for _, item := range r.rows {
		if filter.Provider != "" && item.Provider != filter.Provider {
			continue
		}
		if filter.HasProcessed && item.Processed != filter.Processed {
			continue
		}
		cp := *item
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if filter.Limit > 0 && int(filter.Limit) < len(items) {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (r *memEvents) ListUnprocessed(_ context.Context, before time.Time, limit int32) ([]*entity.WebhookEvent, error) {
	items := make([]*entity.WebhookEvent, 0)
	for _, item := range r.rows {
		if !item.Processed && item.ReceivedAt.Before(before) {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type recordingMetrics struct {
	deliveries []string
	cycles     []string
}

func (m *recordingMetrics) ObserveDelivery(providerCode, outcome string, _ time.Duration) {
	m.deliveries = append(m.deliveries, providerCode+":"+outcome)
}

func (m *recordingMetrics) CycleGenerated(result string) {
	m.cycles = append(m.cycles, result)
}
