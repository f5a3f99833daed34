package types

import (
	"encoding/json"
	"time"
)

// NotificationType drives how a client renders a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
)

// NotificationCategory groups notifications by origin.
type NotificationCategory string

const (
	CategoryScholarship NotificationCategory = "SCHOLARSHIP"
	CategoryApplication NotificationCategory = "APPLICATION"
	CategoryReminder    NotificationCategory = "REMINDER"
	CategoryAchievement NotificationCategory = "ACHIEVEMENT"
	CategorySystem      NotificationCategory = "SYSTEM"
)

// Notification is a message addressed to one profile.
type Notification struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Type        NotificationType     `json:"type"`
	Category    NotificationCategory `json:"category"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	Metadata    json.RawMessage      `json:"metadata"`
	IsRead      bool                 `json:"isRead"`
	DeliveredAt *time.Time           `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Category   NotificationCategory
	Offset     int
	Limit      int
}

// NotificationEvent is published on the event bus after a notification is
// stored.
type NotificationEvent struct {
	NotificationID string               `json:"notificationId"`
	UserID         string               `json:"userId"`
	Type           NotificationType     `json:"type"`
	Category       NotificationCategory `json:"category"`
	Title          string               `json:"title"`
	CreatedAt      time.Time            `json:"createdAt"`
}
