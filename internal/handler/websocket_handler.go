package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// JWTValidator resolves a handshake token to the caller's membership in a
// workspace
type JWTValidator interface {
	ValidateToken(token string, workspaceID int32) (*domain.ActorContext, error)
}

type WebSocketHandler struct {
	hub       *websocket.Hub
	validator JWTValidator
	origins   originPolicy
	upgrader  ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, validator JWTValidator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:       hub,
		validator: validator,
		origins:   newOriginPolicy(allowedOrigins),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// originPolicy mirrors the CORS allow-list. "*" admits any origin.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
		}
		p.allowed[o] = struct{}{}
	}
	return p
}

func (p originPolicy) admits(origin string) bool {
	// Non-browser clients send no Origin
	if origin == "" || p.any {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.origins.admits(origin) {
		return true
	}
	log.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS upgrades GET /ws?token=...&workspaceId=... into an event stream
// for one workspace. Browsers cannot set headers on the upgrade request, so
// both the token and the workspace travel in the query.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return NewUnauthorizedError(c, "missing token")
	}

	workspaceID, err := strconv.ParseInt(c.QueryParam("workspaceId"), 10, 32)
	if err != nil || workspaceID <= 0 {
		return NewValidationError(c, "workspaceId must be a positive integer", nil)
	}

	actor, err := h.validator.ValidateToken(token, int32(workspaceID))
	if err != nil {
		return h.rejectHandshake(c, int32(workspaceID), err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Warn().Err(err).Int32("workspace_id", actor.WorkspaceID).Msg("WebSocket upgrade failed")
		return nil
	}

	client := websocket.NewClient(conn, actor.WorkspaceID, actor.UserID, h.hub)
	client.Start()

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("user_id", actor.UserID.String()).
		Str("role", string(actor.Role)).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")
	return nil
}

func (h *WebSocketHandler) rejectHandshake(c echo.Context, workspaceID int32, err error) error {
	switch {
	case errors.Is(err, websocket.ErrNotMember):
		log.Debug().Int32("workspace_id", workspaceID).Msg("WebSocket connection rejected: not a member")
		return NewForbiddenError(c, "not a workspace member")
	case errors.Is(err, websocket.ErrInvalidToken):
		log.Debug().Err(err).Msg("WebSocket connection rejected: invalid token")
		return NewUnauthorizedError(c, "invalid token")
	default:
		log.Error().Err(err).Int32("workspace_id", workspaceID).Msg("WebSocket handshake failed")
		return NewInternalError(c, "internal error")
	}
}
