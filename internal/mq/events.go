package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scholaraid/apiserver/internal/metrics"
	"github.com/scholaraid/apiserver/types"
)

const (
	AttrEventType   = "event_type"
	AttrContentType = "content_type"
	// AttrOrderingKey groups messages that must be delivered in publish
	// order. Brokers without per-key ordering ignore it.
	AttrOrderingKey = "ordering_key"

	EventNotificationCreated = "notification.created"
)

// NotificationPublisher publishes notification events on one channel.
type NotificationPublisher struct {
	mq      *MQ
	channel string
}

func NewNotificationPublisher(m *MQ, channel string) *NotificationPublisher {
	return &NotificationPublisher{mq: m, channel: channel}
}

func (p *NotificationPublisher) PublishNotification(ctx context.Context, event types.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		AttrEventType:   EventNotificationCreated,
		AttrContentType: "application/json",
		AttrOrderingKey: event.UserID,
	})
	metrics.RecordPublish(err)
	return err
}

// DecodeNotificationEvent parses a message published by
// NotificationPublisher.
func DecodeNotificationEvent(msg Message) (types.NotificationEvent, error) {
	if t := msg.Attributes[AttrEventType]; t != "" && t != EventNotificationCreated {
		return types.NotificationEvent{}, fmt.Errorf("unexpected event type %q", t)
	}
	var event types.NotificationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.NotificationEvent{}, fmt.Errorf("decode notification event: %w", err)
	}
	if event.NotificationID == "" {
		return types.NotificationEvent{}, fmt.Errorf("notification event %s has no notification id", msg.ID)
	}
	return event, nil
}
