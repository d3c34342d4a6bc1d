package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WorkspaceHandler handles workspace-related HTTP requests
type WorkspaceHandler struct {
	workspaceService *service.WorkspaceService
}

// NewWorkspaceHandler creates a new WorkspaceHandler
func NewWorkspaceHandler(workspaceService *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// RenameWorkspaceRequest represents the rename request body
type RenameWorkspaceRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// GetWorkspace handles GET /api/v1/workspace
func (h *WorkspaceHandler) GetWorkspace(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	ws, err := h.workspaceService.GetWorkspace(actor)
	if err != nil {
		return NewDomainError(c, err, "get workspace")
	}

	return c.JSON(http.StatusOK, toWorkspaceResponse(ws, h.workspaceService.LogoURL(c.Request().Context(), ws)))
}

// RenameWorkspace handles PATCH /api/v1/workspace
func (h *WorkspaceHandler) RenameWorkspace(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	var req RenameWorkspaceRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ws, err := h.workspaceService.Rename(actor, req.Name)
	if err != nil {
		return NewDomainError(c, err, "rename workspace")
	}

	return c.JSON(http.StatusOK, toWorkspaceResponse(ws, h.workspaceService.LogoURL(c.Request().Context(), ws)))
}

// UploadLogo handles POST /api/v1/workspace/logo
func (h *WorkspaceHandler) UploadLogo(c echo.Context) error {
	actor := middleware.GetActor(c)
	if actor == nil {
		return NewUnauthorizedError(c, "Workspace required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "File is required"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return NewInternalError(c, "Failed to read file")
	}

	ctx := c.Request().Context()
	ws, err := h.workspaceService.UploadLogo(ctx, actor, data, file.Filename)
	if err != nil {
		var imageErr *service.ImageError
		switch {
		case errors.Is(err, service.ErrImageStorageNotConfigured):
			return NewServiceUnavailableError(c, "Logo uploads are disabled (storage not configured)")
		case errors.As(err, &imageErr):
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "file", Message: imageErr.Message},
			})
		}
		return NewDomainError(c, err, "upload logo")
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("user_id", actor.UserID.String()).
		Msg("Workspace logo uploaded")

	return c.JSON(http.StatusOK, toWorkspaceResponse(ws, h.workspaceService.LogoURL(ctx, ws)))
}
