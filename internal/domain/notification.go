package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what a notification is about
type NotificationType string

const (
	NotificationInviteReceived NotificationType = "invite.received"
	NotificationInviteAccepted NotificationType = "invite.accepted"
	NotificationMemberRemoved  NotificationType = "member.removed"
)

// Notification is a one-way message to a user referencing another entity
type Notification struct {
	ID          int32            `json:"id"`
	UserID      uuid.UUID        `json:"userId"`
	WorkspaceID int32            `json:"workspaceId"`
	Type        NotificationType `json:"type"`
	Entity      string           `json:"entity"`
	EntityID    string           `json:"entityId"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// NotificationRepository defines the interface for notification persistence operations
type NotificationRepository interface {
	Create(notification *Notification) (*Notification, error)
	ListByUser(userID uuid.UUID, unreadOnly bool, limit int32) ([]*Notification, error)
	MarkRead(userID uuid.UUID, id int32) error
	MarkAllRead(userID uuid.UUID) (int64, error)
}
