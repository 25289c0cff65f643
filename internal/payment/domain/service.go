package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrUnknownEventType = errors.New("unknown webhook event type")
	ErrUnknownCustomer  = errors.New("no account matches the webhook customer")
)

// ProcessResult reports what a webhook delivery did. Duplicate deliveries
// succeed without doing anything so the provider stops retrying.
type ProcessResult struct {
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
}

type Service interface {
	// ProcessWebhook verifies the raw body against the shared-secret HMAC
	// signature, then applies the event exactly once.
	ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*ProcessResult, error)
}
