package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrWebhookEventNotFound         = errors.New("webhook event not found")
	ErrWebhookEventAlreadyProcessed = errors.New("webhook event already processed")
)

type WebhookEventFilter struct {
	Provider     string
	HasProcessed bool
	Processed    bool
	Limit        int32
	Offset       int32
}

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

const webhookEventColumns = `id, provider, event_type, external_id, request_id, payload_json, received_at,
			processed, success, outcome, error_message, processed_at`

func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			provider, event_type, external_id, request_id, payload_json, received_at,
			processed, success, outcome, error_message, processed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.Provider,
		event.EventType,
		nullableStringValue(event.ExternalID),
		event.RequestID,
		event.PayloadJSON,
		event.ReceivedAt,
		event.Processed,
		event.Success,
		event.Outcome,
		nullableStringValue(event.ErrorMessage),
		nullableTimeValue(event.ProcessedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

// MarkProcessed completes the row identified by id. It only touches rows that
// are still open, so a row is completed at most once.
func (r *WebhookEventRepository) MarkProcessed(
	ctx context.Context,
	id uint64,
	success bool,
	outcome string,
	errorMessage *string,
	processedAt time.Time,
) error {
	query := `
		UPDATE webhook_events SET
			processed = 1,
			success = ?,
			outcome = ?,
			error_message = ?,
			processed_at = ?
		WHERE id = ? AND processed = 0
	`

	result, err := r.db.ExecContext(ctx, query, success, outcome, nullableStringValue(errorMessage), processedAt, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrWebhookEventNotFound
	}
	return ErrWebhookEventAlreadyProcessed
}

func (r *WebhookEventRepository) FindByID(ctx context.Context, id uint64) (*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = ?`

	event := &entity.WebhookEvent{}
	if err := scanWebhookEvent(r.db.QueryRowContext(ctx, query, id), event); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return event, nil
}

func (r *WebhookEventRepository) List(ctx context.Context, filter WebhookEventFilter) ([]*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.Provider) != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.HasProcessed {
		conditions = append(conditions, "processed = ?")
		args = append(args, filter.Processed)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryEvents(ctx, query, args...)
}

// ListUnprocessed returns open rows received before the cutoff, oldest first.
func (r *WebhookEventRepository) ListUnprocessed(ctx context.Context, before time.Time, limit int32) ([]*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE processed = 0
		  AND received_at <= ?
		ORDER BY received_at ASC
		LIMIT ?
	`

	return r.queryEvents(ctx, query, before, limit)
}

func (r *WebhookEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*entity.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.WebhookEvent, 0)
	for rows.Next() {
		item := &entity.WebhookEvent{}
		if err := scanWebhookEvent(rows, item); err != nil {
			return nil, err
		}
		events = append(events, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func scanWebhookEvent(scan rowScanner, event *entity.WebhookEvent) error {
	var externalID sql.NullString
	var errorMessage sql.NullString
	var processedAt sql.NullTime

	err := scan.Scan(
		&event.ID,
		&event.Provider,
		&event.EventType,
		&externalID,
		&event.RequestID,
		&event.PayloadJSON,
		&event.ReceivedAt,
		&event.Processed,
		&event.Success,
		&event.Outcome,
		&errorMessage,
		&processedAt,
	)
	if err != nil {
		return err
	}

	event.ExternalID = stringPtrFromNull(externalID)
	event.ErrorMessage = stringPtrFromNull(errorMessage)
	event.ProcessedAt = timePtrFromNull(processedAt)

	return nil
}
