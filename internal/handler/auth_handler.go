package handler

import (
	"net/http"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SessionResponse is the signed-in user and every workspace they can switch to
type SessionResponse struct {
	User       UserResponse            `json:"user"`
	Workspaces []UserWorkspaceResponse `json:"workspaces"`
	IsNewUser  bool                    `json:"isNewUser"`
}

type LogoutResponse struct {
	Message string `json:"message"`
}

// Callback handles POST /api/v1/auth/callback. The frontend calls it once
// after the Auth0 login redirect; first-time users get a personal workspace.
func (h *AuthHandler) Callback(c echo.Context) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	if identity.Email == "" {
		log.Warn().Str("auth0_id", identity.Auth0ID).Msg("Access token has no email claim")
		return NewValidationError(c, "Email is required for authentication", []ValidationError{
			{Field: "email", Message: "Email claim is missing from token"},
		})
	}

	result, err := h.authService.AuthenticateUser(
		identity.Auth0ID, identity.Email, optionalString(identity.Name), optionalString(identity.Picture))
	if err != nil {
		return NewDomainError(c, err, "authenticate user")
	}

	return c.JSON(http.StatusOK, SessionResponse{
		User:       toUserResponse(result.User),
		Workspaces: toUserWorkspaceResponses(result.Workspaces),
		IsNewUser:  result.IsNewUser,
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	user, err := h.authService.GetUserByAuth0ID(identity.Auth0ID)
	if err != nil {
		return NewDomainError(c, err, "get user")
	}
	workspaces, err := h.authService.ListWorkspaces(user.ID)
	if err != nil {
		return NewDomainError(c, err, "list workspaces")
	}

	return c.JSON(http.StatusOK, SessionResponse{
		User:       toUserResponse(user),
		Workspaces: toUserWorkspaceResponses(workspaces),
	})
}

// Logout handles POST /api/v1/auth/logout. Sessions live in Auth0, so this
// only records the event.
func (h *AuthHandler) Logout(c echo.Context) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	log.Info().Str("auth0_id", identity.Auth0ID).Msg("User logged out")
	return c.JSON(http.StatusOK, LogoutResponse{Message: "Logged out successfully"})
}

func toUserWorkspaceResponses(workspaces []*domain.UserWorkspace) []UserWorkspaceResponse {
	resp := make([]UserWorkspaceResponse, 0, len(workspaces))
	for _, uw := range workspaces {
		resp = append(resp, UserWorkspaceResponse{
			Workspace: toWorkspaceResponse(uw.Workspace, ""),
			Role:      string(uw.Role),
			JoinedAt:  formatTime(uw.JoinedAt),
		})
	}
	return resp
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
