package service

import (
	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNotificationLimit int32 = 50
	MaxNotificationLimit     int32 = 100
)

// NotifyInput describes a notification for a single user
type NotifyInput struct {
	UserID      uuid.UUID
	WorkspaceID int32
	Type        domain.NotificationType
	Entity      string
	EntityID    string
	Title       string
	Message     string
}

// NotificationService persists notifications and pushes them to the
// recipient's open websocket connections
type NotificationService struct {
	notificationRepo domain.NotificationRepository
	eventPublisher   websocket.EventPublisher
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo domain.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo, eventPublisher: websocket.NoOpPublisher{}}
}

// SetEventPublisher attaches the realtime hub. nil detaches it.
func (s *NotificationService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisherOrNoOp(publisher)
}

// Notify creates a notification and pushes it to the user
func (s *NotificationService) Notify(input NotifyInput) (*domain.Notification, error) {
	created, err := s.notificationRepo.Create(&domain.Notification{
		UserID:      input.UserID,
		WorkspaceID: input.WorkspaceID,
		Type:        input.Type,
		Entity:      input.Entity,
		EntityID:    input.EntityID,
		Title:       input.Title,
		Message:     input.Message,
	})
	if err != nil {
		return nil, err
	}

	s.eventPublisher.PublishToUser(created.UserID, websocket.NotificationCreated(created))
	return created, nil
}

// notifyBestEffort sends a notification and only logs a failure. The
// operation that triggered it has already been committed.
func (s *NotificationService) notifyBestEffort(input NotifyInput) {
	if s == nil {
		return
	}
	if _, err := s.Notify(input); err != nil {
		log.Warn().Err(err).
			Str("user_id", input.UserID.String()).
			Str("type", string(input.Type)).
			Msg("Failed to create notification")
	}
}

// List returns the user's notifications, newest first
func (s *NotificationService) List(userID uuid.UUID, unreadOnly bool, limit int32) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	if limit > MaxNotificationLimit {
		limit = MaxNotificationLimit
	}
	return s.notificationRepo.ListByUser(userID, unreadOnly, limit)
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(userID uuid.UUID, id int32) error {
	return s.notificationRepo.MarkRead(userID, id)
}

// MarkAllRead marks all of the user's notifications as read
func (s *NotificationService) MarkAllRead(userID uuid.UUID) (int64, error) {
	return s.notificationRepo.MarkAllRead(userID)
}

func publisherOrNoOp(p websocket.EventPublisher) websocket.EventPublisher {
	if p == nil {
		return websocket.NoOpPublisher{}
	}
	return p
}
