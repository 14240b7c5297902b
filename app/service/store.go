package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uint64, success bool, outcome string, errorMessage *string, processedAt time.Time) error
	FindByID(ctx context.Context, id uint64) (*entity.WebhookEvent, error)
	List(ctx context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error)
	ListUnprocessed(ctx context.Context, before time.Time, limit int32) ([]*entity.WebhookEvent, error)
}

type ChargeStore interface {
	Create(ctx context.Context, charge *entity.Charge) error
	Update(ctx context.Context, charge *entity.Charge) error
	FindByID(ctx context.Context, id uint64) (*entity.Charge, error)
	FindByProviderExternalIDForUpdate(ctx context.Context, provider, externalID string) (*entity.Charge, error)
	FindOpenByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error)
	FindLatestByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error)
}

type CycleStore interface {
	Create(ctx context.Context, cycle *entity.BillingCycle) error
	Update(ctx context.Context, cycle *entity.BillingCycle) error
	FindByID(ctx context.Context, id uint64) (*entity.BillingCycle, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*entity.BillingCycle, error)
	ExistsDueFrom(ctx context.Context, tenantID, debtorID string, from time.Time) (bool, error)
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *entity.Subscription) error
	Update(ctx context.Context, sub *entity.Subscription) error
	FindByExternalReferenceForUpdate(ctx context.Context, provider, externalReference, externalID string) (*entity.Subscription, error)
	FindByExternalIDForUpdate(ctx context.Context, provider, externalID string) (*entity.Subscription, error)
}

// Repositories are bound to one transaction.
type Repositories struct {
	Charges       ChargeStore
	Cycles        CycleStore
	Subscriptions SubscriptionStore
}

// Transactor runs fn as one unit of work: every write made through repos is
// committed when fn returns nil and discarded otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

type deliveryMetrics interface {
	ObserveDelivery(provider, outcome string, elapsed time.Duration)
	CycleGenerated(result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDelivery(string, string, time.Duration) {}

func (noopMetrics) CycleGenerated(string) {}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
