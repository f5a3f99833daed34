package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scholaraid/apiserver/internal/mq"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/internal/store/memory"
	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	mu    sync.Mutex
	fails int
	calls []string
}

func (f *flakyStore) MarkDelivered(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fails > 0 {
		f.fails--
		return errors.New("db unavailable")
	}
	return nil
}

func TestHandle(t *testing.T) {
	st := &flakyStore{fails: 1}
	d := NewDispatcher(nil, "notifications", st, nil)
	msg := mq.Message{ID: "1", Data: []byte(`{"notificationId":"n-1","userId":"u-1"}`)}

	require.Error(t, d.Handle(context.Background(), msg))
	require.NoError(t, d.Handle(context.Background(), msg))
	assert.Equal(t, []string{"n-1", "n-1"}, st.calls)

	// malformed events are acknowledged without touching the store
	require.NoError(t, d.Handle(context.Background(), mq.Message{ID: "2", Data: []byte("nope")}))
	assert.Len(t, st.calls, 2)
}

func TestRunMarksPublishedNotificationsDelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := memory.New()
	bus := mq.New(mq.NewMemoryBackend())
	notifications := services.NewNotificationService(
		db.Notifications(),
		mq.NewNotificationPublisher(bus, "notifications"),
		nil,
	)

	created, err := notifications.Notify(ctx, types.Notification{
		UserID:   "u-1",
		Type:     types.NotificationInfo,
		Category: types.CategorySystem,
		Title:    "Hello",
		Message:  "World",
	})
	require.NoError(t, err)
	assert.Nil(t, created.DeliveredAt)

	done := make(chan error, 1)
	go func() {
		done <- NewDispatcher(bus, "notifications", db.Notifications(), nil).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		page, err := notifications.List(ctx, types.NotificationFilter{UserID: "u-1", Limit: 10})
		return err == nil && len(page.Items) == 1 && page.Items[0].DeliveredAt != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
