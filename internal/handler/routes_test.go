package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/dealdesk/dealdesk-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenTable treats the bearer token as the Auth0 subject and looks up its email
type tokenTable map[string]string

func (t tokenTable) ValidateToken(ctx context.Context, token string) (interface{}, error) {
	email, ok := t[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: token},
		CustomClaims:     &middleware.CustomClaims{Email: email},
	}, nil
}

type testServer struct {
	e         *echo.Echo
	publisher *testutil.MockEventPublisher
}

func newTestServer(t *testing.T, tokens tokenTable) *testServer {
	t.Helper()
	users := testutil.NewMockUserRepository()
	memberships := testutil.NewMockMembershipRepository(users)
	workspaces := testutil.NewMockWorkspaceRepository(memberships)
	publisher := testutil.NewMockEventPublisher()

	notifications := service.NewNotificationService(testutil.NewMockNotificationRepository())
	notifications.SetEventPublisher(publisher)
	authService := service.NewAuthService(users, workspaces, memberships)
	inviteService := service.NewInviteService(testutil.NewMockInviteRepository(), memberships, users, workspaces, notifications)
	inviteService.SetEventPublisher(publisher)
	membershipService := service.NewMembershipService(memberships, workspaces, notifications)
	membershipService.SetEventPublisher(publisher)
	dealService := service.NewDealService(testutil.NewMockDealRepository(), memberships)
	dealService.SetEventPublisher(publisher)

	limiter := middleware.NewRateLimiterWithConfig(60, 2)
	t.Cleanup(limiter.Stop)

	e := echo.New()
	e.Validator = RequestValidator{}
	RegisterRoutes(e, middleware.NewAuthMiddleware(tokens), authService, Handlers{
		Auth:          NewAuthHandler(authService),
		Workspace:     NewWorkspaceHandler(service.NewWorkspaceService(workspaces, service.NewImageService(nil))),
		Member:        NewMemberHandler(membershipService),
		Invite:        NewInviteHandler(inviteService, authService),
		Deal:          NewDealHandler(dealService),
		Notification:  NewNotificationHandler(notifications, authService),
		InviteLimiter: limiter,
	})
	return &testServer{e: e, publisher: publisher}
}

func (s *testServer) do(t *testing.T, method, path, token string, workspaceID int32, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if workspaceID != 0 {
		req.Header.Set(middleware.WorkspaceHeader, fmt.Sprintf("%d", workspaceID))
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func signIn(t *testing.T, s *testServer, token string) SessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/callback", token, 0, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRoutes_InviteAndPipelineFlow(t *testing.T) {
	s := newTestServer(t, tokenTable{"alice": "alice@acme.com", "bob": "bob@x.com"})

	alice := signIn(t, s, "alice")
	require.Len(t, alice.Workspaces, 1)
	wsID := alice.Workspaces[0].Workspace.ID
	bob := signIn(t, s, "bob")

	// Bob is not in Alice's workspace yet
	rec := s.do(t, http.MethodGet, "/api/v1/deals/board", "bob", wsID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/deals", "alice", wsID, `{"name":"Globex","value":"1000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/workspace/invites", "alice", wsID, `{"email":"bob@x.com","role":"member"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	var invite InviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invite))

	// Bob was signed up, so the invite lands in his inbox
	rec = s.do(t, http.MethodGet, "/api/v1/notifications", "bob", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, invite.Token, inbox[0].EntityID)

	rec = s.do(t, http.MethodGet, "/api/v1/invites/"+invite.Token, "bob", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/invites/"+invite.Token+"/accept", "bob", 0, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/invites/"+invite.Token+"/accept", "bob", 0, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/deals/board", "bob", wsID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var board []StageColumnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Equal(t, 1, board[0].Count)

	rec = s.do(t, http.MethodGet, "/api/v1/workspace/members", "bob", wsID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members []MemberResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members, 2)
	assert.Equal(t, "alice@acme.com", members[0].Email)

	// Bob leaves; the workspace is closed to him again
	rec = s.do(t, http.MethodDelete, "/api/v1/workspace/members/"+bob.User.ID, "bob", wsID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/deals/board", "bob", wsID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/auth/me", "bob", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Len(t, me.Workspaces, 1)
}

func TestRoutes_Authentication(t *testing.T) {
	s := newTestServer(t, tokenTable{"alice": "alice@acme.com"})
	alice := signIn(t, s, "alice")
	wsID := alice.Workspaces[0].Workspace.ID

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		workspace  int32
		wantStatus int
	}{
		{"no token", http.MethodGet, "/api/v1/auth/me", "", 0, http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/auth/me", "mallory", 0, http.StatusUnauthorized},
		{"missing workspace header", http.MethodGet, "/api/v1/deals/board", "alice", 0, http.StatusBadRequest},
		{"foreign workspace", http.MethodGet, "/api/v1/deals/board", "alice", wsID + 1, http.StatusForbidden},
		{"invite link needs auth", http.MethodGet, "/api/v1/invites/abc", "", 0, http.StatusUnauthorized},
		{"board", http.MethodGet, "/api/v1/deals/board", "alice", wsID, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.workspace, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRoutes_InviteRateLimit(t *testing.T) {
	s := newTestServer(t, tokenTable{"alice": "alice@acme.com"})
	alice := signIn(t, s, "alice")
	wsID := alice.Workspaces[0].Workspace.ID

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"email":"user%d@x.com","role":"member"}`, i)
		statuses = append(statuses, s.do(t, http.MethodPost, "/api/v1/workspace/invites", "alice", wsID, body).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, statuses)
}
