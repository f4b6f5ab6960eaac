package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the normalised payment states reported by the PSP webhook.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// ErrInvalidWebhook is returned when a webhook payload is malformed.
var ErrInvalidWebhook = errors.New("payments: invalid webhook payload")

// WebhookEvent is the provider-neutral payment notification delivered to /webhooks/payments.
type WebhookEvent struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
	Status    Status `json:"status"`
	Amount    int64  `json:"amount,omitempty"`
}

// Succeeded reports whether the event confirms a captured payment.
func (e WebhookEvent) Succeeded() bool { return e.Status == StatusSucceeded }

// DecodeWebhook parses and normalises a webhook body.
func DecodeWebhook(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	event.OrderID = strings.TrimSpace(event.OrderID)
	event.Reference = strings.TrimSpace(event.Reference)
	event.Status = Status(strings.ToLower(strings.TrimSpace(string(event.Status))))
	if event.OrderID == "" {
		return WebhookEvent{}, fmt.Errorf("%w: orderId is required", ErrInvalidWebhook)
	}
	switch event.Status {
	case StatusPending, StatusSucceeded, StatusFailed, StatusRefunded:
	default:
		return WebhookEvent{}, fmt.Errorf("%w: unknown status %q", ErrInvalidWebhook, event.Status)
	}
	return event, nil
}
