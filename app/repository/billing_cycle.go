package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrCycleNotFound      = errors.New("billing cycle not found")
	ErrCycleAlreadyExists = errors.New("billing cycle already exists")
)

type BillingCycleRepository struct {
	db DBTX
}

func NewBillingCycleRepository(db DBTX) *BillingCycleRepository {
	return &BillingCycleRepository{db: db}
}

const billingCycleColumns = `id, tenant_id, debtor_id, subscription_id, sequence, amount, due_date, recurring,
			status, paid_at, payment_method, created_at, updated_at`

// Create inserts a cycle. The (tenant_id, debtor_id, due_date) unique key turns
// a concurrent duplicate insert into ErrCycleAlreadyExists.
func (r *BillingCycleRepository) Create(ctx context.Context, cycle *entity.BillingCycle) error {
	query := `
		INSERT INTO billing_cycles (
			tenant_id, debtor_id, subscription_id, sequence, amount, due_date, recurring,
			status, paid_at, payment_method, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		cycle.TenantID,
		cycle.DebtorID,
		nullableUint64Value(cycle.SubscriptionID),
		cycle.Sequence,
		cycle.Amount,
		cycle.DueDate,
		cycle.Recurring,
		cycle.Status,
		nullableTimeValue(cycle.PaidAt),
		nullableStringValue(cycle.PaymentMethod),
		cycle.CreatedAt,
		cycle.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCycleAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	cycle.ID = uint64(id)
	return nil
}

func (r *BillingCycleRepository) Update(ctx context.Context, cycle *entity.BillingCycle) error {
	query := `
		UPDATE billing_cycles SET
			amount = ?,
			due_date = ?,
			status = ?,
			paid_at = ?,
			payment_method = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		cycle.Amount,
		cycle.DueDate,
		cycle.Status,
		nullableTimeValue(cycle.PaidAt),
		nullableStringValue(cycle.PaymentMethod),
		cycle.UpdatedAt,
		cycle.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCycleNotFound
	}

	return nil
}

func (r *BillingCycleRepository) FindByID(ctx context.Context, id uint64) (*entity.BillingCycle, error) {
	query := `SELECT ` + billingCycleColumns + ` FROM billing_cycles WHERE id = ?`
	return r.findOne(ctx, query, id)
}

func (r *BillingCycleRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.BillingCycle, error) {
	query := `SELECT ` + billingCycleColumns + ` FROM billing_cycles WHERE id = ? FOR UPDATE`
	return r.findOne(ctx, query, id)
}

// ExistsDueFrom reports whether the debtor already has a cycle due on or after from.
func (r *BillingCycleRepository) ExistsDueFrom(ctx context.Context, tenantID, debtorID string, from time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM billing_cycles
			WHERE tenant_id = ? AND debtor_id = ? AND due_date >= ?
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tenantID, debtorID, from).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *BillingCycleRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.BillingCycle, error) {
	cycle := &entity.BillingCycle{}
	if err := scanBillingCycle(r.db.QueryRowContext(ctx, query, args...), cycle); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return cycle, nil
}

func scanBillingCycle(scan rowScanner, cycle *entity.BillingCycle) error {
	var subscriptionID sql.NullInt64
	var paidAt sql.NullTime
	var paymentMethod sql.NullString

	err := scan.Scan(
		&cycle.ID,
		&cycle.TenantID,
		&cycle.DebtorID,
		&subscriptionID,
		&cycle.Sequence,
		&cycle.Amount,
		&cycle.DueDate,
		&cycle.Recurring,
		&cycle.Status,
		&paidAt,
		&paymentMethod,
		&cycle.CreatedAt,
		&cycle.UpdatedAt,
	)
	if err != nil {
		return err
	}

	cycle.SubscriptionID = uint64PtrFromNull(subscriptionID)
	cycle.PaidAt = timePtrFromNull(paidAt)
	cycle.PaymentMethod = stringPtrFromNull(paymentMethod)

	return nil
}
