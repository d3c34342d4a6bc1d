package handler

import (
	"errors"
	"net/http"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// InviteHandler handles invite HTTP requests
type InviteHandler struct {
	inviteService *service.InviteService
	authService   *service.AuthService
}

// NewInviteHandler creates a new InviteHandler
func NewInviteHandler(inviteService *service.InviteService, authService *service.AuthService) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		authService:   authService,
	}
}

// CreateInviteRequest represents the create invite request body
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role" validate:"required,oneof=admin member"`
}

// CreateInvite godoc
// @Summary Invite someone to the workspace
// @Description Owners and admins invite an email as admin or member. The invite expires after seven days.
// @Tags invites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param request body CreateInviteRequest true "Invite request"
// @Success 201 {object} InviteResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Failure 429 {object} ProblemDetails
// @Router /workspace/invites [post]
func (h *InviteHandler) CreateInvite(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	var req CreateInviteRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	invite, err := h.inviteService.CreateInvite(actor, service.CreateInviteInput{
		Email: req.Email,
		Role:  domain.Role(req.Role),
	})
	if err != nil {
		return NewDomainError(c, err, "create invite")
	}

	return c.JSON(http.StatusCreated, toInviteResponse(invite))
}

// ListPendingInvites godoc
// @Summary List pending invites
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Success 200 {array} InviteResponse
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /workspace/invites [get]
func (h *InviteHandler) ListPendingInvites(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	invites, err := h.inviteService.ListPendingInvites(actor)
	if err != nil {
		return NewDomainError(c, err, "list invites")
	}

	resp := make([]InviteResponse, 0, len(invites))
	for _, inv := range invites {
		resp = append(resp, toInviteResponse(inv))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetInvite godoc
// @Summary Get an invite by token
// @Description An invite past its expiry answers 410
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param token path string true "Invite token"
// @Success 200 {object} InviteResponse
// @Failure 401 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 410 {object} ProblemDetails
// @Router /invites/{token} [get]
func (h *InviteHandler) GetInvite(c echo.Context) error {
	if middleware.GetAuth0ID(c) == "" {
		return NewUnauthorizedError(c, "Authentication required")
	}

	invite, err := h.inviteService.GetInvite(c.Param("token"))
	if err != nil {
		return NewDomainError(c, err, "get invite")
	}

	return c.JSON(http.StatusOK, toInviteResponse(invite))
}

// AcceptInvite godoc
// @Summary Accept an invite
// @Description The invite is matched against the stored user email, which must be verified with the identity provider
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param token path string true "Invite token"
// @Success 201 {object} MembershipResponse
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Failure 410 {object} ProblemDetails
// @Router /invites/{token}/accept [post]
func (h *InviteHandler) AcceptInvite(c echo.Context) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	if !identity.EmailVerified {
		return NewForbiddenError(c, "Verify your email address before accepting invites")
	}

	user, err := h.authService.GetUserByAuth0ID(identity.Auth0ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return NewUnauthorizedError(c, "Complete sign-up before accepting invites")
		}
		return NewDomainError(c, err, "get user")
	}

	membership, err := h.inviteService.AcceptInvite(user.ID, user.Email, c.Param("token"))
	if err != nil {
		return NewDomainError(c, err, "accept invite")
	}

	return c.JSON(http.StatusCreated, toMembershipResponse(membership))
}
