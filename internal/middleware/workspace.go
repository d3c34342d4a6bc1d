package middleware

import (
	"errors"
	"strconv"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WorkspaceHeader selects the workspace a request acts in
const WorkspaceHeader = "X-Workspace-ID"

const actorKey = "actor"

// ActorResolver resolves an Auth0 subject to an actor within a workspace
type ActorResolver interface {
	ResolveActor(auth0ID string, workspaceID int32) (*domain.ActorContext, error)
}

// RequireWorkspace resolves the caller's active membership in the workspace
// named by X-Workspace-ID. Must run after Authenticate.
func RequireWorkspace(resolver ActorResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth0ID := GetAuth0ID(c)
			if auth0ID == "" {
				return unauthorizedError(c, "not authenticated")
			}

			raw := c.Request().Header.Get(WorkspaceHeader)
			if raw == "" {
				return badRequestError(c, "missing "+WorkspaceHeader+" header")
			}
			id, err := strconv.ParseInt(raw, 10, 32)
			if err != nil || id <= 0 {
				return badRequestError(c, "invalid "+WorkspaceHeader+" header")
			}

			actor, err := resolver.ResolveActor(auth0ID, int32(id))
			if err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					log.Debug().Str("auth0_id", auth0ID).Int64("workspace_id", id).Msg("Workspace access denied")
					return forbiddenError(c, "not a member of this workspace")
				}
				log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to resolve actor")
				return internalError(c)
			}

			WithActor(c, actor)
			return next(c)
		}
	}
}

// GetActor returns the actor resolved by RequireWorkspace, or nil
func GetActor(c echo.Context) *domain.ActorContext {
	actor, _ := c.Get(actorKey).(*domain.ActorContext)
	return actor
}

// WithActor stores actor on the echo context
func WithActor(c echo.Context, actor *domain.ActorContext) {
	c.Set(actorKey, actor)
}
