package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
)

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, tenant_id, plan, provider, external_id, external_reference,
			status, amount, checkout_url, created_at, updated_at`

func (r *SubscriptionRepository) Create(ctx context.Context, sub *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			tenant_id, plan, provider, external_id, external_reference,
			status, amount, checkout_url, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		sub.TenantID,
		sub.Plan,
		sub.Provider,
		nullableStringValue(sub.ExternalID),
		sub.ExternalReference,
		sub.Status,
		sub.Amount,
		nullableStringValue(sub.CheckoutURL),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, sub *entity.Subscription) error {
	query := `
		UPDATE subscriptions SET
			external_id = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(sub.ExternalID),
		sub.Status,
		sub.UpdatedAt,
		sub.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

// FindByExternalReferenceForUpdate locks the tenant's subscription at the
// provider that is bound to externalID or not bound yet. A bound row wins over
// an unbound one, then the most recent.
func (r *SubscriptionRepository) FindByExternalReferenceForUpdate(
	ctx context.Context,
	provider string,
	externalReference string,
	externalID string,
) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE provider = ? AND external_reference = ? AND (external_id = ? OR external_id IS NULL)
		ORDER BY (external_id IS NULL) ASC, id DESC
		LIMIT 1
		FOR UPDATE
	`
	return r.findOne(ctx, query, provider, externalReference, externalID)
}

func (r *SubscriptionRepository) FindByExternalIDForUpdate(ctx context.Context, provider, externalID string) (*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE provider = ? AND external_id = ?
		LIMIT 1
		FOR UPDATE
	`
	return r.findOne(ctx, query, provider, externalID)
}

func (r *SubscriptionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Subscription, error) {
	sub := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, args...), sub); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return sub, nil
}

func scanSubscription(scan rowScanner, sub *entity.Subscription) error {
	var externalID sql.NullString
	var checkoutURL sql.NullString

	err := scan.Scan(
		&sub.ID,
		&sub.TenantID,
		&sub.Plan,
		&sub.Provider,
		&externalID,
		&sub.ExternalReference,
		&sub.Status,
		&sub.Amount,
		&checkoutURL,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return err
	}

	sub.ExternalID = stringPtrFromNull(externalID)
	sub.CheckoutURL = stringPtrFromNull(checkoutURL)

	return nil
}
