package entity

import "time"

const (
	WebhookOutcomePending   = "pending"
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeRejected  = "rejected"
)

// WebhookEvent is one inbound gateway delivery. Rows are appended on receipt
// and completed exactly once; they are never deleted.
type WebhookEvent struct {
	ID uint64

	Provider   string
	EventType  string
	ExternalID *string
	RequestID  string

	PayloadJSON string

	ReceivedAt time.Time

	Processed    bool
	Success      bool
	Outcome      string
	ErrorMessage *string
	ProcessedAt  *time.Time
}
