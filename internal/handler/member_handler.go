package handler

import (
	"net/http"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MemberHandler handles workspace membership HTTP requests
type MemberHandler struct {
	membershipService *service.MembershipService
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(membershipService *service.MembershipService) *MemberHandler {
	return &MemberHandler{membershipService: membershipService}
}

// ChangeRoleRequest represents the role change request body
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin member"`
}

// ListMembers handles GET /api/v1/workspace/members
func (h *MemberHandler) ListMembers(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	members, err := h.membershipService.ListMembers(actor)
	if err != nil {
		return NewDomainError(c, err, "list members")
	}

	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

// RemoveMember godoc
// @Summary Remove a member
// @Description Removing yourself leaves the workspace. The owner cannot be removed and cannot leave.
// @Tags members
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param userId path string true "User ID (UUID)"
// @Success 204 "No Content"
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /workspace/members/{userId} [delete]
func (h *MemberHandler) RemoveMember(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	targetID, ok := parseUserID(c)
	if !ok {
		return invalidUserID(c)
	}

	if err := h.membershipService.RemoveMember(actor, targetID); err != nil {
		return NewDomainError(c, err, "remove member")
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeRole godoc
// @Summary Change a member role
// @Description Owner only. The owner role cannot be granted or revoked.
// @Tags members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Workspace-ID header int true "Workspace ID"
// @Param userId path string true "User ID (UUID)"
// @Param request body ChangeRoleRequest true "Role change request"
// @Success 200 {object} MembershipResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Failure 403 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /workspace/members/{userId} [patch]
func (h *MemberHandler) ChangeRole(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	targetID, ok := parseUserID(c)
	if !ok {
		return invalidUserID(c)
	}

	var req ChangeRoleRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	membership, err := h.membershipService.ChangeRole(actor, targetID, domain.Role(req.Role))
	if err != nil {
		return NewDomainError(c, err, "change role")
	}
	return c.JSON(http.StatusOK, toMembershipResponse(membership))
}

func parseUserID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func invalidUserID(c echo.Context) error {
	return NewValidationError(c, "Invalid user ID", []ValidationError{
		{Field: "userId", Message: "Must be a valid UUID"},
	})
}
