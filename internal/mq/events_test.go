package mq

import (
	"context"
	"testing"
	"time"

	"github.com/scholaraid/apiserver/config"
	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationEventRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus := New(NewMemoryBackend())
	pub := NewNotificationPublisher(bus, "notifications")

	event := types.NotificationEvent{
		NotificationID: "n-1",
		UserID:         "u-1",
		Type:           types.NotificationSuccess,
		Category:       types.CategorySystem,
		Title:          "Welcome to ScholarAid",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, pub.PublishNotification(ctx, event))

	got := make(chan types.NotificationEvent, 1)
	go func() {
		_ = bus.Subscribe(ctx, "notifications", func(_ context.Context, msg Message) error {
			assert.Equal(t, EventNotificationCreated, msg.Attributes[AttrEventType])
			assert.Equal(t, "u-1", msg.Attributes[AttrOrderingKey])
			decoded, err := DecodeNotificationEvent(msg)
			if err != nil {
				return err
			}
			got <- decoded
			return nil
		})
	}()

	select {
	case decoded := <-got:
		assert.Equal(t, event, decoded)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestDecodeNotificationEventRejects(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "wrong type", msg: Message{Data: []byte(`{"notificationId":"n"}`), Attributes: map[string]string{AttrEventType: "other"}}},
		{name: "bad json", msg: Message{Data: []byte(`{`)}},
		{name: "missing id", msg: Message{Data: []byte(`{"userId":"u"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNotificationEvent(tt.msg)
			require.Error(t, err)
		})
	}
}

func TestOpenDisabled(t *testing.T) {
	bus, err := Open(context.Background(), config.MQConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, bus)
}
