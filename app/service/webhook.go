package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/provider"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
	maxErrorLength   = 1000
)

type handleWebhookRequest interface {
	GetProvider() string
	GetPayload() []byte
	GetSignature() string
	GetRequestId() string
	GetDataId() string
}

type listWebhookEventsRequest interface {
	GetProvider() string
	GetHasProcessed() bool
	GetProcessed() bool
	GetLimit() int32
	GetOffset() int32
}

// WebhookResult is what the transport needs to acknowledge a delivery.
type WebhookResult struct {
	EventID uint64
	Outcome string
	Reason  string
}

// Processed reports whether the delivery changed billing state.
func (r *WebhookResult) Processed() bool {
	return r != nil && r.Outcome == entity.WebhookOutcomeProcessed
}

type WebhookService struct {
	events    webhookEventRepository
	tx        Transactor
	gateways  *provider.Registry
	generator *CycleGenerator
	metrics   deliveryMetrics
	cfg       config.WebhooksConfig
	now       func() time.Time
}

func NewWebhookService(
	events webhookEventRepository,
	tx Transactor,
	gateways *provider.Registry,
	generator *CycleGenerator,
	metrics deliveryMetrics,
	cfg config.WebhooksConfig,
) *WebhookService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if generator == nil {
		generator = NewCycleGenerator()
	}

	return &WebhookService{
		events:    events,
		tx:        tx,
		gateways:  gateways,
		generator: generator,
		metrics:   metrics,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleWebhook verifies, logs and processes one gateway delivery.
//
// A delivery failing verification is logged as rejected and never processed.
// Every other delivery gets an open log row before any billing state is
// touched; the row id is the only key used to record the outcome.
func (s *WebhookService) HandleWebhook(ctx context.Context, req handleWebhookRequest) (*WebhookResult, error) {
	gateway, err := s.gateways.Get(req.GetProvider())
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	start := s.now()
	payload := req.GetPayload()
	event, parseErr := gateway.Normalize(payload)

	requestID := strings.TrimSpace(req.GetRequestId())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	row := &entity.WebhookEvent{
		Provider:    gateway.Code(),
		EventType:   "unknown",
		RequestID:   requestID,
		PayloadJSON: string(payload),
		ReceivedAt:  start,
		Outcome:     entity.WebhookOutcomePending,
	}
	if event != nil {
		if event.EventType != "" {
			row.EventType = truncate(event.EventType, 128)
		}
		row.ExternalID = normalizeOptionalString(event.ResourceID)
	}

	if verifyErr := s.verify(gateway, req); verifyErr != nil {
		reason := truncate(fmt.Sprintf("signature verification failed: %v", verifyErr), maxErrorLength)
		row.Processed = true
		row.Outcome = entity.WebhookOutcomeRejected
		row.ErrorMessage = &reason
		row.ProcessedAt = &start
		if err := s.events.Create(ctx, row); err != nil {
			return nil, err
		}
		s.metrics.ObserveDelivery(row.Provider, row.Outcome, s.now().Sub(start))
		return &WebhookResult{EventID: row.ID, Outcome: row.Outcome, Reason: reason}, ErrSignatureRejected
	}

	if err := s.events.Create(ctx, row); err != nil {
		return nil, err
	}

	if parseErr != nil {
		result, err := s.report(ctx, row, start, entity.WebhookOutcomeFailed, parseErr.Error())
		if err != nil {
			return result, err
		}
		return result, ErrMalformedPayload
	}

	return s.process(ctx, row, start, gateway, event)
}

func (s *WebhookService) verify(gateway provider.Gateway, req handleWebhookRequest) error {
	err := gateway.VerifySignature(&provider.Delivery{
		Payload:   req.GetPayload(),
		Signature: req.GetSignature(),
		RequestID: req.GetRequestId(),
		DataID:    req.GetDataId(),
	})
	if errors.Is(err, provider.ErrSecretNotSet) && s.cfg.AllowUnsigned {
		return nil
	}
	return err
}

// process runs an open log row through resolution and reconciliation and
// records the outcome on that row.
func (s *WebhookService) process(
	ctx context.Context,
	row *entity.WebhookEvent,
	start time.Time,
	gateway provider.Gateway,
	event *provider.Event,
) (*WebhookResult, error) {
	outcome, reason, err := s.apply(ctx, gateway, event)
	if err != nil {
		result, reportErr := s.report(ctx, row, start, entity.WebhookOutcomeFailed, err.Error())
		if reportErr != nil {
			return result, reportErr
		}
		return result, fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}

	return s.report(ctx, row, start, outcome, reason)
}

func (s *WebhookService) apply(ctx context.Context, gateway provider.Gateway, event *provider.Event) (string, string, error) {
	if event.Unaddressable != "" {
		return entity.WebhookOutcomeIgnored, "unaddressable event: " + event.Unaddressable, nil
	}

	if event.NeedsLookup {
		if err := gateway.Enrich(ctx, event); err != nil {
			if errors.Is(err, provider.ErrResourceNotFound) {
				return entity.WebhookOutcomeIgnored, fmt.Sprintf("%s resource %s not visible to this account", event.Provider, event.ResourceID), nil
			}
			return "", "", fmt.Errorf("resource lookup failed: %w", err)
		}
	}

	switch {
	case event.Payment != nil:
		return s.applyPaymentEvent(ctx, event.Provider, event.Payment)
	case event.Subscription != nil:
		return s.applySubscriptionEvent(ctx, event.Provider, event.Subscription)
	default:
		return entity.WebhookOutcomeIgnored, "event carries no payment or subscription", nil
	}
}

// applyPaymentEvent resolves the charge and applies the transition table in a
// single transaction. The charge row lock serializes concurrent deliveries for
// the same external id.
func (s *WebhookService) applyPaymentEvent(ctx context.Context, providerCode string, event *provider.PaymentEvent) (string, string, error) {
	if event.Kind == provider.EventKindUnrecognized {
		return entity.WebhookOutcomeIgnored, "unrecognized event kind", nil
	}

	found := false
	generated := CycleSkipped
	attempted := false

	err := s.tx.WithinTx(ctx, func(repos Repositories) error {
		now := s.now()

		charge, cycle, err := s.resolve(ctx, repos, providerCode, event.ExternalID)
		if err != nil || charge == nil {
			return err
		}
		found = true

		transition := Reconcile(charge, cycle, event, now)
		if transition.ChargeChanged {
			charge.UpdatedAt = now
			if err := repos.Charges.Update(ctx, charge); err != nil {
				return fmt.Errorf("update charge %d: %w", charge.ID, err)
			}
		}
		if transition.CycleChanged {
			cycle.UpdatedAt = now
			if err := repos.Cycles.Update(ctx, cycle); err != nil {
				return fmt.Errorf("update billing cycle %d: %w", cycle.ID, err)
			}
		}
		if transition.GenerateNext {
			attempted = true
			result, _, err := s.generator.MaybeCreateNextCycle(ctx, repos.Cycles, cycle, now)
			if err != nil {
				return fmt.Errorf("create next billing cycle after %d: %w", cycle.ID, err)
			}
			generated = result
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}

	if !found {
		return entity.WebhookOutcomeIgnored, fmt.Sprintf("no charge for %s payment %s", providerCode, event.ExternalID), nil
	}
	if attempted {
		s.metrics.CycleGenerated(generated.String())
	}

	return entity.WebhookOutcomeProcessed, "", nil
}

// resolve locks the charge addressed by the external id and its owning cycle.
// An unknown external id yields a nil charge and no error.
func (s *WebhookService) resolve(
	ctx context.Context,
	repos Repositories,
	providerCode string,
	externalID string,
) (*entity.Charge, *entity.BillingCycle, error) {
	charge, err := repos.Charges.FindByProviderExternalIDForUpdate(ctx, providerCode, externalID)
	if err != nil || charge == nil {
		return nil, nil, err
	}

	cycle, err := repos.Cycles.FindByIDForUpdate(ctx, charge.BillingCycleID)
	if err != nil {
		return nil, nil, err
	}
	if cycle == nil {
		return nil, nil, fmt.Errorf("charge %d references billing cycle %d: %w", charge.ID, charge.BillingCycleID, ErrCycleNotFound)
	}

	return charge, cycle, nil
}

var subscriptionStatuses = map[string]string{
	"pending":    entity.SubscriptionStatusPending,
	"authorized": entity.SubscriptionStatusAuthorized,
	"paused":     entity.SubscriptionStatusPaused,
	"cancelled":  entity.SubscriptionStatusCancelled,
	"canceled":   entity.SubscriptionStatusCancelled,
}

// applySubscriptionEvent attributes a mandate notification to a tenant through
// the external reference stamped on the mandate at creation.
func (s *WebhookService) applySubscriptionEvent(ctx context.Context, providerCode string, event *provider.SubscriptionEvent) (string, string, error) {
	status, ok := subscriptionStatuses[strings.ToLower(strings.TrimSpace(event.Status))]
	if !ok {
		return entity.WebhookOutcomeIgnored, fmt.Sprintf("unrecognized subscription status %q", event.Status), nil
	}

	found := false
	err := s.tx.WithinTx(ctx, func(repos Repositories) error {
		var sub *entity.Subscription
		var err error
		if event.ExternalReference != "" {
			sub, err = repos.Subscriptions.FindByExternalReferenceForUpdate(ctx, providerCode, event.ExternalReference, event.ExternalID)
			if err != nil {
				return err
			}
		}
		if sub == nil {
			sub, err = repos.Subscriptions.FindByExternalIDForUpdate(ctx, providerCode, event.ExternalID)
			if err != nil {
				return err
			}
		}
		if sub == nil || (sub.ExternalID != nil && *sub.ExternalID != event.ExternalID) {
			return nil
		}
		found = true

		changed := false
		if sub.ExternalID == nil {
			externalID := event.ExternalID
			sub.ExternalID = &externalID
			changed = true
		}
		if sub.Status != status {
			sub.Status = status
			changed = true
		}
		if !changed {
			return nil
		}

		sub.UpdatedAt = s.now()
		if err := repos.Subscriptions.Update(ctx, sub); err != nil {
			return fmt.Errorf("update subscription %d: %w", sub.ID, err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}

	if !found {
		return entity.WebhookOutcomeIgnored, fmt.Sprintf("no subscription for %s mandate %s", providerCode, event.ExternalID), nil
	}
	return entity.WebhookOutcomeProcessed, "", nil
}

// report completes the log row. It runs detached from the request context.
func (s *WebhookService) report(
	ctx context.Context,
	row *entity.WebhookEvent,
	start time.Time,
	outcome string,
	reason string,
) (*WebhookResult, error) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	success := outcome == entity.WebhookOutcomeProcessed || outcome == entity.WebhookOutcomeIgnored

	var message *string
	if reason = strings.TrimSpace(reason); reason != "" {
		reason = truncate(reason, maxErrorLength)
		message = &reason
	}

	result := &WebhookResult{EventID: row.ID, Outcome: outcome, Reason: reason}

	if err := s.events.MarkProcessed(ctx, row.ID, success, outcome, message, now); err != nil {
		if errors.Is(err, repository.ErrWebhookEventAlreadyProcessed) {
			return result, ErrWebhookEventProcessed
		}
		if errors.Is(err, repository.ErrWebhookEventNotFound) {
			return result, ErrWebhookEventNotFound
		}
		return result, fmt.Errorf("record webhook outcome: %w", err)
	}

	row.Processed = true
	row.Success = success
	row.Outcome = outcome
	row.ErrorMessage = message
	row.ProcessedAt = &now
	s.metrics.ObserveDelivery(row.Provider, outcome, now.Sub(start))

	return result, nil
}

// ReplayWebhookEvent re-runs an open log row through the pipeline. The row was
// verified when it was received, so the signature is not checked again.
func (s *WebhookService) ReplayWebhookEvent(ctx context.Context, id uint64) (*WebhookResult, error) {
	row, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrWebhookEventNotFound
	}
	if row.Processed {
		return nil, ErrWebhookEventProcessed
	}

	return s.replay(ctx, row)
}

func (s *WebhookService) replay(ctx context.Context, row *entity.WebhookEvent) (*WebhookResult, error) {
	gateway, err := s.gateways.Get(row.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	start := s.now()
	event, err := gateway.Normalize([]byte(row.PayloadJSON))
	if err != nil {
		result, reportErr := s.report(ctx, row, start, entity.WebhookOutcomeFailed, err.Error())
		if reportErr != nil {
			return result, reportErr
		}
		return result, ErrMalformedPayload
	}

	return s.process(ctx, row, start, gateway, event)
}

// RunReplayBatch replays open log rows older than the configured stale age.
// Rows completed concurrently by a live delivery are skipped.
func (s *WebhookService) RunReplayBatch(ctx context.Context) error {
	before := s.now().Add(-s.cfg.ReplayStaleAfter)
	rows, err := s.events.ListUnprocessed(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, row := range rows {
		if row == nil {
			continue
		}
		if _, err := s.replay(ctx, row); err != nil && !errors.Is(err, ErrWebhookEventProcessed) {
			firstErr = keepFirstErr(firstErr, fmt.Errorf("replay webhook event %d: %w", row.ID, err))
		}
	}

	return firstErr
}

func (s *WebhookService) GetWebhookEvent(ctx context.Context, id uint64) (*entity.WebhookEvent, error) {
	row, err := s.events.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrWebhookEventNotFound
	}
	return row, nil
}

func (s *WebhookService) ListWebhookEvents(ctx context.Context, req listWebhookEventsRequest) ([]*entity.WebhookEvent, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := req.GetOffset()
	if offset < 0 {
		offset = 0
	}

	return s.events.List(ctx, repository.WebhookEventFilter{
		Provider:     strings.ToLower(strings.TrimSpace(req.GetProvider())),
		HasProcessed: req.GetHasProcessed(),
		Processed:    req.GetProcessed(),
		Limit:        limit,
		Offset:       offset,
	})
}

func (s *WebhookService) batchSize() int32 {
	if s.cfg.ReplayBatchSize > 0 {
		return s.cfg.ReplayBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
