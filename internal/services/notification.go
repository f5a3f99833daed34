package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	List(ctx context.Context, filter types.NotificationFilter) ([]types.Notification, error)
	Count(ctx context.Context, filter types.NotificationFilter) (int, error)
	Create(ctx context.Context, n types.Notification) (types.Notification, error)
	HasKind(ctx context.Context, userID, kind string) (bool, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
}

// EventPublisher hands stored notifications to the event bus.
type EventPublisher interface {
	PublishNotification(ctx context.Context, event types.NotificationEvent) error
}

// NotificationService encapsulates notification use-cases.
type NotificationService struct {
	repo   NotificationRepository
	events EventPublisher
	logger *zap.Logger
}

// NewNotificationService constructs the service. events may be nil when no
// event bus is configured.
func NewNotificationService(repo NotificationRepository, events EventPublisher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, events: events, logger: logger}
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items  []types.Notification
	Total  int
	Unread int
}

func (s *NotificationService) List(ctx context.Context, filter types.NotificationFilter) (NotificationPage, error) {
	var page NotificationPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		page.Items, err = s.repo.List(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		page.Total, err = s.repo.Count(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		page.Unread, err = s.repo.Count(gctx, types.NotificationFilter{UserID: filter.UserID, UnreadOnly: true})
		return err
	})
	if err := g.Wait(); err != nil {
		return NotificationPage{}, err
	}
	return page, nil
}

// Notify stores a notification and announces it on the event bus. A failed
// publish is logged; the stored notification stands.
func (s *NotificationService) Notify(ctx context.Context, n types.Notification) (types.Notification, error) {
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return types.Notification{}, err
	}
	if s.events == nil {
		return created, nil
	}

	event := types.NotificationEvent{
		NotificationID: created.ID,
		UserID:         created.UserID,
		Type:           created.Type,
		Category:       created.Category,
		Title:          created.Title,
		CreatedAt:      created.CreatedAt,
	}
	if err := s.events.PublishNotification(ctx, event); err != nil {
		s.logger.Warn("failed to publish notification event",
			zap.String("notification_id", created.ID),
			zap.Error(err),
		)
	}
	return created, nil
}

// NotifyOnce stores n unless the user already has a notification whose
// metadata carries the same kind.
func (s *NotificationService) NotifyOnce(ctx context.Context, kind string, n types.Notification) error {
	exists, err := s.repo.HasKind(ctx, n.UserID, kind)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	n.Metadata = mergeMetadata(n.Metadata, map[string]any{"kind": kind})
	_, err = s.Notify(ctx, n)
	return err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func metadata(values map[string]any) json.RawMessage {
	raw, err := json.Marshal(values)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func mergeMetadata(raw json.RawMessage, extra map[string]any) json.RawMessage {
	values := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &values)
	}
	for k, v := range extra {
		values[k] = v
	}
	return metadata(values)
}
