package service

import "errors"

var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrInvalidStatus             = errors.New("invalid status")
	ErrProviderUnsupported       = errors.New("provider is not supported")
	ErrSignatureRejected         = errors.New("webhook signature rejected")
	ErrMalformedPayload          = errors.New("malformed webhook payload")
	ErrReconciliationFailed      = errors.New("webhook reconciliation failed")
	ErrWebhookEventNotFound      = errors.New("webhook event not found")
	ErrWebhookEventProcessed     = errors.New("webhook event already processed")
	ErrCycleNotFound             = errors.New("billing cycle not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrGatewayCredentialMissing  = errors.New("gateway credential not configured")
)
