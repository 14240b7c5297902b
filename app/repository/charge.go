package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrChargeNotFound      = errors.New("charge not found")
	ErrChargeAlreadyExists = errors.New("charge already exists")
)

type ChargeRepository struct {
	db DBTX
}

func NewChargeRepository(db DBTX) *ChargeRepository {
	return &ChargeRepository{db: db}
}

const chargeColumns = `id, tenant_id, billing_cycle_id, debtor_id, provider, external_id,
			status, due_date, amount, amount_paid, billing_type, invoice_url,
			created_at, updated_at`

func (r *ChargeRepository) Create(ctx context.Context, charge *entity.Charge) error {
	query := `
		INSERT INTO charges (
			tenant_id, billing_cycle_id, debtor_id, provider, external_id,
			status, due_date, amount, amount_paid, billing_type, invoice_url,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		charge.TenantID,
		charge.BillingCycleID,
		charge.DebtorID,
		charge.Provider,
		charge.ExternalID,
		charge.Status,
		charge.DueDate,
		charge.Amount,
		nullableDecimalValue(charge.AmountPaid),
		nullableStringValue(charge.BillingType),
		nullableStringValue(charge.InvoiceURL),
		charge.CreatedAt,
		charge.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrChargeAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	charge.ID = uint64(id)
	return nil
}

func (r *ChargeRepository) Update(ctx context.Context, charge *entity.Charge) error {
	query := `
		UPDATE charges SET
			status = ?,
			due_date = ?,
			amount = ?,
			amount_paid = ?,
			billing_type = ?,
			invoice_url = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		charge.Status,
		charge.DueDate,
		charge.Amount,
		nullableDecimalValue(charge.AmountPaid),
		nullableStringValue(charge.BillingType),
		nullableStringValue(charge.InvoiceURL),
		charge.UpdatedAt,
		charge.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChargeNotFound
	}

	return nil
}

func (r *ChargeRepository) FindByID(ctx context.Context, id uint64) (*entity.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByProviderExternalIDForUpdate locks the charge row until the surrounding
// transaction ends, so concurrent deliveries for the same gateway payment are
// applied one after the other.
func (r *ChargeRepository) FindByProviderExternalIDForUpdate(ctx context.Context, provider, externalID string) (*entity.Charge, error) {
	query := `SELECT ` + chargeColumns + `
		FROM charges
		WHERE provider = ? AND external_id = ?
		LIMIT 1
		FOR UPDATE
	`
	return r.findOne(ctx, query, provider, externalID)
}

// FindOpenByCycleID returns the latest charge of the cycle that can still be
// paid, if any.
func (r *ChargeRepository) FindOpenByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error) {
	query := `SELECT ` + chargeColumns + `
		FROM charges
		WHERE billing_cycle_id = ?
		  AND status IN (?, ?)
		ORDER BY id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, cycleID, entity.ChargeStatusPending, entity.ChargeStatusOverdue)
}

// FindLatestByCycleID returns the most recent charge of the cycle regardless of status.
func (r *ChargeRepository) FindLatestByCycleID(ctx context.Context, cycleID uint64) (*entity.Charge, error) {
	query := `SELECT ` + chargeColumns + `
		FROM charges
		WHERE billing_cycle_id = ?
		ORDER BY id DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, cycleID)
}

func (r *ChargeRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Charge, error) {
	charge := &entity.Charge{}
	if err := scanCharge(r.db.QueryRowContext(ctx, query, args...), charge); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return charge, nil
}

func scanCharge(scan rowScanner, charge *entity.Charge) error {
	var amountPaid decimal.NullDecimal
	var billingType sql.NullString
	var invoiceURL sql.NullString

	err := scan.Scan(
		&charge.ID,
		&charge.TenantID,
		&charge.BillingCycleID,
		&charge.DebtorID,
		&charge.Provider,
		&charge.ExternalID,
		&charge.Status,
		&charge.DueDate,
		&charge.Amount,
		&amountPaid,
		&billingType,
		&invoiceURL,
		&charge.CreatedAt,
		&charge.UpdatedAt,
	)
	if err != nil {
		return err
	}

	charge.AmountPaid = decimalPtrFromNull(amountPaid)
	charge.BillingType = stringPtrFromNull(billingType)
	charge.InvoiceURL = stringPtrFromNull(invoiceURL)

	return nil
}
