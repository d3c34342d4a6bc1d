package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
)

// ErrInvalidToken is returned when JWT validation fails
var ErrInvalidToken = errors.New("invalid token")

// ErrNotMember is returned when the token's user is not an active member of
// the requested workspace
var ErrNotMember = errors.New("not a workspace member")

// ActorResolver resolves an Auth0 subject to an actor within a workspace
type ActorResolver interface {
	ResolveActor(auth0ID string, workspaceID int32) (*domain.ActorContext, error)
}

// JWTValidator authenticates a websocket handshake. Browsers cannot set
// headers on the upgrade request, so the access token arrives as a query
// parameter and is checked with the same validator as the REST API.
type JWTValidator struct {
	tokens   middleware.TokenValidator
	resolver ActorResolver
}

// NewJWTValidator creates a JWTValidator
func NewJWTValidator(tokens middleware.TokenValidator, resolver ActorResolver) *JWTValidator {
	return &JWTValidator{tokens: tokens, resolver: resolver}
}

// ValidateToken validates token and resolves the caller's active membership
// in workspaceID
func (v *JWTValidator) ValidateToken(token string, workspaceID int32) (*domain.ActorContext, error) {
	identity, err := middleware.IdentityFromToken(context.Background(), v.tokens, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	actor, err := v.resolver.ResolveActor(identity.Auth0ID, workspaceID)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("resolve websocket actor: %w", err)
	}
	return actor, nil
}
