package handler

import (
	"net/http"
	"strconv"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles the caller's notification inbox
type NotificationHandler struct {
	notificationService *service.NotificationService
	authService         *service.AuthService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService *service.NotificationService, authService *service.AuthService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		authService:         authService,
	}
}

// MarkAllReadResponse reports how many notifications were marked read
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListNotifications handles GET /api/v1/notifications?unread=true&limit=50
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil || user == nil {
		return err
	}

	unreadOnly := c.QueryParam("unread") == "true"
	var limit int32
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return NewValidationError(c, "Invalid limit", []ValidationError{
				{Field: "limit", Message: "Must be a number"},
			})
		}
		limit = int32(n)
	}

	notifications, err := h.notificationService.List(user.ID, unreadOnly, limit)
	if err != nil {
		return NewDomainError(c, err, "list notifications")
	}

	resp := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, resp)
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil || user == nil {
		return err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return NewValidationError(c, "Invalid notification ID", []ValidationError{
			{Field: "id", Message: "Must be a number"},
		})
	}

	if err := h.notificationService.MarkRead(user.ID, int32(id)); err != nil {
		return NewDomainError(c, err, "mark notification read")
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil || user == nil {
		return err
	}

	updated, err := h.notificationService.MarkAllRead(user.ID)
	if err != nil {
		return NewDomainError(c, err, "mark notifications read")
	}
	return c.JSON(http.StatusOK, MarkAllReadResponse{Updated: updated})
}

// currentUser resolves the authenticated user. A nil user means the error
// response has already been written.
func (h *NotificationHandler) currentUser(c echo.Context) (*domain.User, error) {
	auth0ID := middleware.GetAuth0ID(c)
	if auth0ID == "" {
		return nil, NewUnauthorizedError(c, "Authentication required")
	}

	user, err := h.authService.GetUserByAuth0ID(auth0ID)
	if err != nil {
		return nil, NewDomainError(c, err, "get user")
	}
	return user, nil
}
