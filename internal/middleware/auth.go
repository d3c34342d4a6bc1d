package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CustomClaims are the profile claims the Auth0 action adds to access tokens
type CustomClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Validate implements validator.CustomClaims
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// Identity is the authenticated caller as asserted by the token
type Identity struct {
	Auth0ID string
	Email   string
	// EmailVerified is false only when the token says so explicitly
	EmailVerified bool
	Name          string
	Picture       string
}

const identityKey = "identity"

// TokenValidator is satisfied by *validator.Validator
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (interface{}, error)
}

// AuthMiddleware authenticates requests with Auth0-issued bearer tokens
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuth0Validator builds a validator for RS256 access tokens issued by the
// tenant at domain, checked against its cached JWKS
func NewAuth0Validator(domain, audience string) (*validator.Validator, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
	return validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// ErrInvalidClaims is returned for a token that verifies but names no subject
var ErrInvalidClaims = errors.New("invalid claims")

// IdentityFromToken validates token and extracts the caller's Identity
func IdentityFromToken(ctx context.Context, v TokenValidator, token string) (*Identity, error) {
	claims, err := v.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	identity, ok := identityFromClaims(claims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return identity, nil
}

// NewAuthMiddleware creates an AuthMiddleware around v, usually the result of
// NewAuth0Validator
func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's Identity for downstream handlers
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, reason := bearerToken(c.Request())
			if reason != "" {
				return unauthorizedError(c, reason)
			}

			identity, err := IdentityFromToken(c.Request().Context(), m.validator, token)
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "invalid token")
			}

			WithIdentity(c, identity)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}

func identityFromClaims(claims interface{}) (*Identity, bool) {
	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok || validated.RegisteredClaims.Subject == "" {
		return nil, false
	}

	identity := &Identity{Auth0ID: validated.RegisteredClaims.Subject, EmailVerified: true}
	if custom, ok := validated.CustomClaims.(*CustomClaims); ok && custom != nil {
		identity.Email = custom.Email
		identity.Name = custom.Name
		identity.Picture = custom.Picture
		if custom.EmailVerified != nil {
			identity.EmailVerified = *custom.EmailVerified
		}
	}
	return identity, true
}

// WithIdentity stores identity on the echo context
func WithIdentity(c echo.Context, identity *Identity) {
	c.Set(identityKey, identity)
}

// GetIdentity returns the authenticated caller, or nil outside Authenticate
func GetIdentity(c echo.Context) *Identity {
	identity, _ := c.Get(identityKey).(*Identity)
	return identity
}

// GetAuth0ID returns the caller's Auth0 subject, or ""
func GetAuth0ID(c echo.Context) string {
	if identity := GetIdentity(c); identity != nil {
		return identity.Auth0ID
	}
	return ""
}

// GetEmail returns the email claim, or "" when the token carries none
func GetEmail(c echo.Context) string {
	if identity := GetIdentity(c); identity != nil {
		return identity.Email
	}
	return ""
}
