package postgres

import (
	"context"
	"errors"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationColumns = `id, user_id, workspace_id, type, entity, entity_id, title, message, read_at, created_at`

// NotificationRepository implements domain.NotificationRepository using PostgreSQL
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create persists a notification
func (r *NotificationRepository) Create(n *domain.Notification) (*domain.Notification, error) {
	return scanNotification(r.pool.QueryRow(context.Background(), `
		INSERT INTO notifications (user_id, workspace_id, type, entity, entity_id, title, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+notificationColumns,
		uuidToPg(n.UserID), n.WorkspaceID, string(n.Type), n.Entity, n.EntityID, n.Title, n.Message))
}

// ListByUser returns the user's notifications, newest first
func (r *NotificationRepository) ListByUser(userID uuid.UUID, unreadOnly bool, limit int32) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND ($2::boolean = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, uuidToPg(userID), unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications as read. Already-read
// notifications keep their original read time.
func (r *NotificationRepository) MarkRead(userID uuid.UUID, id int32) error {
	tag, err := r.pool.Exec(context.Background(), `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE user_id = $1 AND id = $2`, uuidToPg(userID), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read
func (r *NotificationRepository) MarkAllRead(userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(context.Background(),
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, uuidToPg(userID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Helper functions

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n      domain.Notification
		userID pgtype.UUID
		typ    string
		readAt pgtype.Timestamptz
	)
	err := row.Scan(&n.ID, &userID, &n.WorkspaceID, &typ, &n.Entity, &n.EntityID, &n.Title, &n.Message, &readAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	n.UserID = pgToUUID(userID)
	n.Type = domain.NotificationType(typ)
	n.ReadAt = pgTimestamptzToPtr(readAt)
	return &n, nil
}
