package websocket

import (
	"context"
	"errors"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenValidator struct {
	claims   interface{}
	err      error
	gotToken string
}

func (s *stubTokenValidator) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	s.gotToken = token
	return s.claims, s.err
}

type stubActorResolver struct {
	actor   *domain.ActorContext
	err     error
	gotSub  string
	gotWsID int32
}

func (s *stubActorResolver) ResolveActor(auth0ID string, workspaceID int32) (*domain.ActorContext, error) {
	s.gotSub = auth0ID
	s.gotWsID = workspaceID
	return s.actor, s.err
}

func claimsFor(subject string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: subject},
		CustomClaims:     &middleware.CustomClaims{Email: "bob@x.com"},
	}
}

func TestJWTValidator_ResolvesActor(t *testing.T) {
	actor := &domain.ActorContext{UserID: uuid.New(), WorkspaceID: 7, Role: domain.RoleMember}
	tokens := &stubTokenValidator{claims: claimsFor("auth0|abc")}
	resolver := &stubActorResolver{actor: actor}

	got, err := NewJWTValidator(tokens, resolver).ValidateToken("the-token", 7)

	require.NoError(t, err)
	assert.Same(t, actor, got)
	assert.Equal(t, "the-token", tokens.gotToken)
	assert.Equal(t, "auth0|abc", resolver.gotSub)
	assert.Equal(t, int32(7), resolver.gotWsID)
}

func TestJWTValidator_Rejects(t *testing.T) {
	dbDown := errors.New("db down")

	tests := []struct {
		name        string
		tokens      *stubTokenValidator
		resolverErr error
		wantErr     error
	}{
		{"bad signature", &stubTokenValidator{err: errors.New("bad signature")}, nil, ErrInvalidToken},
		{"unexpected claims", &stubTokenValidator{claims: "not claims"}, nil, ErrInvalidToken},
		{"no subject", &stubTokenValidator{claims: claimsFor("")}, nil, ErrInvalidToken},
		{"not a member", &stubTokenValidator{claims: claimsFor("auth0|abc")}, domain.ErrNotWorkspaceMember, ErrNotMember},
		{"resolver failure", &stubTokenValidator{claims: claimsFor("auth0|abc")}, dbDown, dbDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewJWTValidator(tt.tokens, &stubActorResolver{err: tt.resolverErr})

			actor, err := v.ValidateToken("token", 1)

			assert.Nil(t, actor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWTValidator_ResolverFailureIsNotAuthError(t *testing.T) {
	v := NewJWTValidator(&stubTokenValidator{claims: claimsFor("auth0|abc")}, &stubActorResolver{err: errors.New("db down")})

	_, err := v.ValidateToken("token", 1)

	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrNotMember)
}
