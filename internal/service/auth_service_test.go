package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/testutil"
)

func newAuthService() (*AuthService, *testutil.MockUserRepository, *testutil.MockWorkspaceRepository, *testutil.MockMembershipRepository) {
	userRepo := testutil.NewMockUserRepository()
	membershipRepo := testutil.NewMockMembershipRepository(userRepo)
	workspaceRepo := testutil.NewMockWorkspaceRepository(membershipRepo)
	return NewAuthService(userRepo, workspaceRepo, membershipRepo), userRepo, workspaceRepo, membershipRepo
}

func TestAuthenticateUser_NewUser(t *testing.T) {
	service, _, workspaceRepo, membershipRepo := newAuthService()

	auth0ID := "auth0|12345"
	name := "Test User"

	result, err := service.AuthenticateUser(auth0ID, " Test@Example.com", &name, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.IsNewUser {
		t.Error("Expected IsNewUser to be true for new user")
	}

	if result.User.Auth0ID != auth0ID {
		t.Errorf("Expected auth0ID %s, got %s", auth0ID, result.User.Auth0ID)
	}

	if result.User.Email != "test@example.com" {
		t.Errorf("Expected lowercased email, got %s", result.User.Email)
	}

	if len(result.Workspaces) != 1 {
		t.Fatalf("Expected 1 workspace, got %d", len(result.Workspaces))
	}

	ws := result.Workspaces[0]
	if ws.Workspace.Name != "Test User's Workspace" {
		t.Errorf("Expected workspace name \"Test User's Workspace\", got %s", ws.Workspace.Name)
	}
	if ws.Workspace.Slug != "test-user-s-workspace" {
		t.Errorf("Expected slug test-user-s-workspace, got %s", ws.Workspace.Slug)
	}
	if ws.Role != domain.RoleOwner {
		t.Errorf("Expected owner role, got %s", ws.Role)
	}

	if len(workspaceRepo.Workspaces) != 1 {
		t.Errorf("Expected 1 stored workspace, got %d", len(workspaceRepo.Workspaces))
	}
	if membershipRepo.ActiveCount(ws.Workspace.ID, result.User.ID) != 1 {
		t.Error("Expected an active owner membership")
	}
}

func TestAuthenticateUser_NoNameUsesEmail(t *testing.T) {
	service, _, _, _ := newAuthService()

	result, err := service.AuthenticateUser("auth0|x", "jane@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := result.Workspaces[0].Workspace.Name; got != "jane's Workspace" {
		t.Errorf("Expected \"jane's Workspace\", got %s", got)
	}
}

func TestAuthenticateUser_ExistingUser(t *testing.T) {
	service, _, workspaceRepo, _ := newAuthService()

	first, err := service.AuthenticateUser("auth0|existing", "existing@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	second, err := service.AuthenticateUser("auth0|existing", "existing@example.com", nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if second.IsNewUser {
		t.Error("Expected IsNewUser to be false for existing user")
	}
	if second.User.ID != first.User.ID {
		t.Error("Expected the same user on second login")
	}
	if len(workspaceRepo.Workspaces) != 1 {
		t.Errorf("Expected no extra workspace, got %d", len(workspaceRepo.Workspaces))
	}
}

func TestAuthenticateUser_InvitedUserKeepsInvitedWorkspace(t *testing.T) {
	service, userRepo, workspaceRepo, membershipRepo := newAuthService()
	user := userRepo.NewUser("bob@x.com")
	workspaceRepo.AddWorkspace(&domain.Workspace{ID: 7, Name: "Acme", Slug: "acme"})
	membershipRepo.AddMembership(7, user.ID, domain.RoleMember, time.Now())

	result, err := service.AuthenticateUser(user.Auth0ID, user.Email, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.IsNewUser {
		t.Error("Expected no default workspace for a user who already belongs to one")
	}
	if len(result.Workspaces) != 1 || result.Workspaces[0].Workspace.ID != 7 {
		t.Errorf("Expected only workspace 7, got %+v", result.Workspaces)
	}
}

func TestAuthenticateUser_RepoError(t *testing.T) {
	service, userRepo, _, _ := newAuthService()
	userRepo.CreateFn = func(auth0ID, email string, name, pictureURL *string) (*domain.User, error) {
		return nil, errors.New("db down")
	}

	if _, err := service.AuthenticateUser("auth0|x", "x@example.com", nil, nil); err == nil {
		t.Error("Expected error when repository fails")
	}
}

func TestAuthenticateUser_WorkspaceCreateError(t *testing.T) {
	service, _, workspaceRepo, _ := newAuthService()
	workspaceRepo.CreateErr = errors.New("insert failed")

	if _, err := service.AuthenticateUser("auth0|x", "x@example.com", nil, nil); err == nil {
		t.Error("Expected error when workspace creation fails")
	}
}

func TestGetUserByAuth0ID(t *testing.T) {
	service, userRepo, _, _ := newAuthService()
	user := userRepo.NewUser("a@example.com")

	got, err := service.GetUserByAuth0ID(user.Auth0ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected user %s, got %s", user.ID, got.ID)
	}

	if _, err := service.GetUserByAuth0ID("auth0|missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestResolveActor(t *testing.T) {
	service, userRepo, workspaceRepo, membershipRepo := newAuthService()
	user := userRepo.NewUser("a@example.com")
	workspaceRepo.AddWorkspace(&domain.Workspace{ID: 3, Name: "Acme", Slug: "acme"})
	membershipRepo.AddMembership(3, user.ID, domain.RoleAdmin, time.Now())

	actor, err := service.ResolveActor(user.Auth0ID, 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if actor.UserID != user.ID || actor.WorkspaceID != 3 || actor.Role != domain.RoleAdmin {
		t.Errorf("Unexpected actor %+v", actor)
	}
	if actor.Email != "a@example.com" {
		t.Errorf("Expected actor email, got %s", actor.Email)
	}
}

func TestResolveActor_NotMember(t *testing.T) {
	service, userRepo, _, membershipRepo := newAuthService()
	user := userRepo.NewUser("a@example.com")
	membershipRepo.AddMembership(3, user.ID, domain.RoleMember, time.Now())
	if err := membershipRepo.Remove(3, user.ID, user.ID, time.Now()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	tests := []struct {
		name        string
		auth0ID     string
		workspaceID int32
	}{
		{"unknown user", "auth0|ghost", 3},
		{"other workspace", user.Auth0ID, 4},
		{"removed membership", user.Auth0ID, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ResolveActor(tt.auth0ID, tt.workspaceID)
			if !errors.Is(err, domain.ErrNotWorkspaceMember) {
				t.Errorf("Expected ErrNotWorkspaceMember, got %v", err)
			}
			if !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("Expected forbidden classification, got %v", err)
			}
		})
	}
}
