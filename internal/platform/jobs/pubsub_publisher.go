package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/lumashop/api/internal/services"
)

// EventMessage is the JSON body published for every tracked analytics event.
type EventMessage struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	UserID     string            `json:"userId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	ProductID  string            `json:"productId,omitempty"`
	OrderID    string            `json:"orderId,omitempty"`
	Value      int64             `json:"value,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// PubSubEventPublisher fans analytics events out to a Pub/Sub topic for downstream consumers.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.AnalyticsPublisher = (*PubSubEventPublisher)(nil)

func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishAnalyticsEvent blocks until the topic acknowledges the message and returns the server id.
func (p *PubSubEventPublisher) PublishAnalyticsEvent(ctx context.Context, event services.AnalyticsEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(EventMessage{
		ID:         event.ID,
		Type:       string(event.Type),
		UserID:     event.UserID,
		SessionID:  event.SessionID,
		ProductID:  event.ProductID,
		OrderID:    event.OrderID,
		Value:      event.Value,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal analytics event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "type", string(event.Type))
	setAttr(attrs, "productId", event.ProductID)
	setAttr(attrs, "orderId", event.OrderID)
	if !event.OccurredAt.IsZero() {
		attrs["occurredAt"] = strconv.FormatInt(event.OccurredAt.Unix(), 10)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish analytics event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
