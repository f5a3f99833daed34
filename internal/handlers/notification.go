package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type notificationQuery struct {
	pipeline.Pagination
	UnreadOnly bool                       `form:"unreadOnly"`
	Category   types.NotificationCategory `form:"category" validate:"omitempty,oneof=SCHOLARSHIP APPLICATION REMINDER ACHIEVEMENT SYSTEM"`
}

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// MarkedRead reports how many notifications a read request changed.
type MarkedRead struct {
	MarkedRead int `json:"markedRead"`
}

// NotificationHandler serves the caller's notifications.
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// NotificationRouter registers notification routes on the given router.
func NotificationRouter(r chi.Router, b *pipeline.Builder, notifications *services.NotificationService) {
	h := NewNotificationHandler(notifications)
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/", Auth: pipeline.RequiredAuth, Query: pipeline.SchemaOf[notificationQuery](), Handle: h.List},
		{Method: http.MethodPatch, Pattern: "/read", Auth: pipeline.RequiredAuth, Body: pipeline.SchemaOf[markReadRequest](), Handle: h.MarkRead},
		{Method: http.MethodPatch, Pattern: "/read-all", Auth: pipeline.RequiredAuth, Handle: h.MarkAllRead},
		{Method: http.MethodDelete, Pattern: "/{id}", Auth: pipeline.RequiredAuth, Params: pipeline.SchemaOf[pipeline.IDParam](), Handle: h.Delete},
	})
}

func (h *NotificationHandler) List(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	q := pipeline.Query[notificationQuery](c)
	page, err := h.notifications.List(ctx, types.NotificationFilter{
		UserID:     c.Identity.UserID,
		UnreadOnly: q.UnreadOnly,
		Category:   q.Category,
		Offset:     q.Offset(),
		Limit:      q.Limit,
	})
	if err != nil {
		return pipeline.Result{}, err
	}

	meta := q.Meta(page.Total)
	meta.UnreadCount = &page.Unread
	return pipeline.Page(page.Items, meta), nil
}

func (h *NotificationHandler) MarkRead(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[markReadRequest](c)
	n, err := h.notifications.MarkRead(ctx, c.Identity.UserID, req.IDs)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(MarkedRead{MarkedRead: n}), nil
}

func (h *NotificationHandler) MarkAllRead(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	n, err := h.notifications.MarkAllRead(ctx, c.Identity.UserID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(MarkedRead{MarkedRead: n}), nil
}

func (h *NotificationHandler) Delete(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	params := pipeline.Params[pipeline.IDParam](c)
	if err := h.notifications.Delete(ctx, c.Identity.UserID, params.ID); err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(pipeline.Message{Message: "Notification deleted"}), nil
}
