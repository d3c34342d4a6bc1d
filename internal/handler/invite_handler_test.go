package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/dealdesk/dealdesk-backend/internal/service"
	"github.com/dealdesk/dealdesk-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inviteHandlerFixture struct {
	users       *testutil.MockUserRepository
	memberships *testutil.MockMembershipRepository
	invites     *testutil.MockInviteRepository
	handler     *InviteHandler
	owner       *domain.User
}

func newInviteHandlerFixture() *inviteHandlerFixture {
	f := &inviteHandlerFixture{}
	f.users = testutil.NewMockUserRepository()
	f.memberships = testutil.NewMockMembershipRepository(f.users)
	workspaces := testutil.NewMockWorkspaceRepository(f.memberships)
	workspaces.AddWorkspace(&domain.Workspace{ID: 1, Name: "Acme", Slug: "acme"})
	f.invites = testutil.NewMockInviteRepository()

	f.owner = f.users.NewUser("owner@acme.com")
	f.memberships.AddMembership(1, f.owner.ID, domain.RoleOwner, time.Now().Add(-time.Hour))

	notifier := service.NewNotificationService(testutil.NewMockNotificationRepository())
	inviteSvc := service.NewInviteService(f.invites, f.memberships, f.users, workspaces, notifier)
	authSvc := service.NewAuthService(f.users, workspaces, f.memberships)
	f.handler = NewInviteHandler(inviteSvc, authSvc)
	return f
}

func (f *inviteHandlerFixture) addInvite(token, email string, expiresAt time.Time) *domain.Invite {
	inv := &domain.Invite{
		Token:       token,
		Email:       email,
		Role:        domain.RoleMember,
		WorkspaceID: 1,
		InvitedBy:   f.owner.ID,
		Status:      domain.InviteStatusPending,
		ExpiresAt:   expiresAt,
		CreatedAt:   expiresAt.Add(-domain.InviteTTL),
	}
	f.invites.AddInvite(inv)
	return inv
}

// tokenContext builds an authenticated request for an invite token route
func tokenContext(method string, user *domain.User, token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/invites/"+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		setupAuthContext(c, user.Auth0ID, user.Email, "", "")
	}
	c.SetParamNames("token")
	c.SetParamValues(token)
	return c, rec
}

func TestCreateInvite(t *testing.T) {
	f := newInviteHandlerFixture()
	c, rec := newActorContext(http.MethodPost, "/api/v1/workspace/invites",
		`{"email":"bob@x.com","role":"admin"}`, actorOf(f.owner, domain.RoleOwner))

	require.NoError(t, f.handler.CreateInvite(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp InviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bob@x.com", resp.Email)
	assert.Equal(t, "admin", resp.Role)
	assert.Equal(t, "pending", resp.Status)
	assert.NotEmpty(t, resp.Token)
	assert.Len(t, f.invites.Invites, 1)
}

func TestCreateInvite_Errors(t *testing.T) {
	tests := []struct {
		name       string
		role       domain.Role
		body       string
		existing   bool
		wantStatus int
		wantType   string
	}{
		{"invalid email", domain.RoleOwner, `{"email":"nope","role":"member"}`, false, http.StatusBadRequest, ErrorTypeValidation},
		{"owner role", domain.RoleOwner, `{"email":"bob@x.com","role":"owner"}`, false, http.StatusBadRequest, ErrorTypeValidation},
		{"missing role", domain.RoleOwner, `{"email":"bob@x.com"}`, false, http.StatusBadRequest, ErrorTypeValidation},
		{"member cannot invite", domain.RoleMember, `{"email":"bob@x.com","role":"member"}`, false, http.StatusForbidden, ErrorTypeForbidden},
		{"pending invite exists", domain.RoleOwner, `{"email":"bob@x.com","role":"member"}`, true, http.StatusConflict, ErrorTypeConflict},
		{"already a member", domain.RoleOwner, `{"email":"owner@acme.com","role":"member"}`, false, http.StatusConflict, ErrorTypeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInviteHandlerFixture()
			if tt.existing {
				f.addInvite("existing", "bob@x.com", time.Now().Add(time.Hour))
			}
			c, rec := newActorContext(http.MethodPost, "/api/v1/workspace/invites", tt.body, actorOf(f.owner, tt.role))

			require.NoError(t, f.handler.CreateInvite(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, decodeProblem(t, rec).Type)
		})
	}
}

func TestListPendingInvites(t *testing.T) {
	f := newInviteHandlerFixture()
	f.addInvite("live", "bob@x.com", time.Now().Add(time.Hour))
	f.addInvite("stale", "carol@x.com", time.Now().Add(-time.Hour))

	c, rec := newActorContext(http.MethodGet, "/api/v1/workspace/invites", "", actorOf(f.owner, domain.RoleOwner))

	require.NoError(t, f.handler.ListPendingInvites(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []InviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "live", resp[0].Token)
}

func TestGetInvite(t *testing.T) {
	f := newInviteHandlerFixture()
	bob := f.users.NewUser("bob@x.com")
	f.addInvite("abc", "bob@x.com", time.Now().Add(time.Hour))

	c, rec := tokenContext(http.MethodGet, bob, "abc")

	require.NoError(t, f.handler.GetInvite(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp InviteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
}

func TestGetInvite_Errors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		auth       bool
		wantStatus int
	}{
		{"unauthenticated", "abc", false, http.StatusUnauthorized},
		{"unknown token", "missing", true, http.StatusNotFound},
		{"expired", "old", true, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInviteHandlerFixture()
			bob := f.users.NewUser("bob@x.com")
			f.addInvite("abc", "bob@x.com", time.Now().Add(time.Hour))
			old := f.addInvite("old", "bob@x.com", time.Now().Add(-time.Minute))

			var user *domain.User
			if tt.auth {
				user = bob
			}
			c, rec := tokenContext(http.MethodGet, user, tt.token)

			require.NoError(t, f.handler.GetInvite(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.token == "old" {
				assert.Equal(t, domain.InviteStatusExpired, old.Status)
			}
		})
	}
}

func TestAcceptInvite(t *testing.T) {
	f := newInviteHandlerFixture()
	bob := f.users.NewUser("bob@x.com")
	f.addInvite("abc", "bob@x.com", time.Now().Add(time.Hour))

	c, rec := tokenContext(http.MethodPost, bob, "abc")

	require.NoError(t, f.handler.AcceptInvite(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp MembershipResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int32(1), resp.WorkspaceID)
	assert.Equal(t, "member", resp.Role)
	assert.Equal(t, 1, f.memberships.ActiveCount(1, bob.ID))

	// A second accept sees the invite closed
	c, rec = tokenContext(http.MethodPost, bob, "abc")
	require.NoError(t, f.handler.AcceptInvite(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invite is accepted", decodeProblem(t, rec).Detail)
	assert.Equal(t, 1, f.memberships.ActiveCount(1, bob.ID))
}

func TestAcceptInvite_Errors(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		token      string
		signedUp   bool
		wantStatus int
	}{
		{"not signed up", "bob@x.com", "abc", false, http.StatusUnauthorized},
		{"email mismatch", "eve@x.com", "abc", true, http.StatusForbidden},
		{"expired", "bob@x.com", "old", true, http.StatusGone},
		{"unknown token", "bob@x.com", "missing", true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInviteHandlerFixture()
			f.addInvite("abc", "bob@x.com", time.Now().Add(time.Hour))
			f.addInvite("old", "bob@x.com", time.Now().Add(-time.Minute))

			user := &domain.User{Auth0ID: "auth0|" + tt.email, Email: tt.email}
			if tt.signedUp {
				user = f.users.NewUser(tt.email)
			}
			c, rec := tokenContext(http.MethodPost, user, tt.token)

			require.NoError(t, f.handler.AcceptInvite(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAcceptInvite_UnverifiedEmail(t *testing.T) {
	f := newInviteHandlerFixture()
	bob := f.users.NewUser("bob@x.com")
	f.addInvite("abc", "bob@x.com", time.Now().Add(time.Hour))

	c, rec := tokenContext(http.MethodPost, bob, "abc")
	middleware.GetIdentity(c).EmailVerified = false

	require.NoError(t, f.handler.AcceptInvite(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, f.memberships.ActiveCount(1, bob.ID))
}
