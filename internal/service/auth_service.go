package service

import (
	"errors"
	"strings"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthService handles authentication-related business logic
type AuthService struct {
	userRepo       domain.UserRepository
	workspaceRepo  domain.WorkspaceRepository
	membershipRepo domain.MembershipRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo domain.UserRepository, workspaceRepo domain.WorkspaceRepository, membershipRepo domain.MembershipRepository) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		workspaceRepo:  workspaceRepo,
		membershipRepo: membershipRepo,
	}
}

// AuthResult represents the result of an authentication operation
type AuthResult struct {
	User       *domain.User
	Workspaces []*domain.UserWorkspace
	IsNewUser  bool
}

// AuthenticateUser handles the authentication flow after Auth0 callback.
// A user without any workspace gets one of their own, owned by them.
func (s *AuthService) AuthenticateUser(auth0ID, email string, name, pictureURL *string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.CreateOrGetByAuth0ID(auth0ID, email, name, pictureURL)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to create or get user")
		return nil, err
	}

	workspaces, err := s.workspaceRepo.ListByUser(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to list workspaces")
		return nil, err
	}

	if len(workspaces) > 0 {
		log.Info().Str("user_id", user.ID.String()).Msg("Existing user authenticated")
		return &AuthResult{User: user, Workspaces: workspaces}, nil
	}

	workspace, err := s.createDefaultWorkspace(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to create default workspace")
		return nil, err
	}
	log.Info().
		Str("user_id", user.ID.String()).
		Int32("workspace_id", workspace.ID).
		Msg("Created new user with default workspace")

	return &AuthResult{
		User: user,
		Workspaces: []*domain.UserWorkspace{{
			Workspace: workspace,
			Role:      domain.RoleOwner,
			JoinedAt:  workspace.CreatedAt,
		}},
		IsNewUser: true,
	}, nil
}

// GetUserByAuth0ID retrieves a user by their Auth0 ID
func (s *AuthService) GetUserByAuth0ID(auth0ID string) (*domain.User, error) {
	return s.userRepo.GetByAuth0ID(auth0ID)
}

// ListWorkspaces returns the workspaces the user is an active member of
func (s *AuthService) ListWorkspaces(userID uuid.UUID) ([]*domain.UserWorkspace, error) {
	return s.workspaceRepo.ListByUser(userID)
}

// ResolveActor builds the actor context of auth0ID inside workspaceID
func (s *AuthService) ResolveActor(auth0ID string, workspaceID int32) (*domain.ActorContext, error) {
	user, err := s.userRepo.GetByAuth0ID(auth0ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotWorkspaceMember
		}
		return nil, err
	}

	membership, err := s.membershipRepo.GetActive(workspaceID, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrNotWorkspaceMember
		}
		return nil, err
	}

	return &domain.ActorContext{
		UserID:      user.ID,
		Email:       user.Email,
		WorkspaceID: workspaceID,
		Role:        membership.Role,
	}, nil
}

func (s *AuthService) createDefaultWorkspace(user *domain.User) (*domain.Workspace, error) {
	name := defaultWorkspaceName(user)
	slug, err := uniqueSlug(s.workspaceRepo, name, 0)
	if err != nil {
		return nil, err
	}
	return s.workspaceRepo.CreateWithOwner(&domain.Workspace{Name: name, Slug: slug}, user.ID)
}

func defaultWorkspaceName(user *domain.User) string {
	owner := ""
	if user.Name != nil {
		owner = strings.TrimSpace(*user.Name)
	}
	if owner == "" {
		owner, _, _ = strings.Cut(user.Email, "@")
	}
	if owner == "" {
		return "My Workspace"
	}
	name := owner + "'s Workspace"
	if len([]rune(name)) > domain.MaxNameLength {
		name = string([]rune(name)[:domain.MaxNameLength])
	}
	return name
}
