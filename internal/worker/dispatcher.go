// Package worker consumes notification events published by the API.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/scholaraid/apiserver/internal/metrics"
	"github.com/scholaraid/apiserver/internal/mq"
	"go.uber.org/zap"
)

// DeliveryStore records that a notification event has been processed.
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}

// Dispatcher marks notifications delivered as their events arrive.
type Dispatcher struct {
	bus     *mq.MQ
	channel string
	store   DeliveryStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(bus *mq.MQ, channel string, store DeliveryStore, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{bus: bus, channel: channel, store: store, logger: logger, now: time.Now}
}

// Run consumes events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification worker started", zap.String("channel", d.channel))
	err := d.bus.Subscribe(ctx, d.channel, d.Handle)
	if errors.Is(err, context.Canceled) {
		d.logger.Info("notification worker stopped")
		return nil
	}
	return err
}

// Handle processes one message. Malformed events are dropped; storage
// failures are returned so the broker redelivers.
func (d *Dispatcher) Handle(ctx context.Context, msg mq.Message) error {
	event, err := mq.DecodeNotificationEvent(msg)
	if err != nil {
		d.logger.Warn("dropping malformed notification event", zap.String("message_id", msg.ID), zap.Error(err))
		metrics.RecordDelivery(err)
		return nil
	}

	err = d.store.MarkDelivered(ctx, event.NotificationID, d.now().UTC())
	metrics.RecordDelivery(err)
	if err != nil {
		d.logger.Error("failed to mark notification delivered",
			zap.String("notification_id", event.NotificationID),
			zap.Error(err),
		)
		return err
	}

	d.logger.Debug("notification delivered",
		zap.String("notification_id", event.NotificationID),
		zap.String("user_id", event.UserID),
		zap.String("category", string(event.Category)),
	)
	return nil
}
