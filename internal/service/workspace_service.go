package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/util"
	"github.com/rs/zerolog/log"
)

// WorkspaceService handles workspace-related business logic
type WorkspaceService struct {
	workspaceRepo domain.WorkspaceRepository
	images        *ImageService
}

// NewWorkspaceService creates a new WorkspaceService
func NewWorkspaceService(workspaceRepo domain.WorkspaceRepository, images *ImageService) *WorkspaceService {
	return &WorkspaceService{workspaceRepo: workspaceRepo, images: images}
}

// GetWorkspace returns the actor's workspace
func (s *WorkspaceService) GetWorkspace(actor *domain.ActorContext) (*domain.Workspace, error) {
	return s.workspaceRepo.GetByID(actor.WorkspaceID)
}

// Rename renames the actor's workspace and regenerates its slug. Owner only.
func (s *WorkspaceService) Rename(actor *domain.ActorContext, name string) (*domain.Workspace, error) {
	if actor.Role != domain.RoleOwner {
		return nil, domain.ErrInsufficientRole
	}

	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	slug, err := uniqueSlug(s.workspaceRepo, name, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	updated, err := s.workspaceRepo.UpdateName(actor.WorkspaceID, name, slug)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("slug", slug).
		Msg("Workspace renamed")
	return updated, nil
}

// UploadLogo replaces the workspace logo. Owners and admins only.
func (s *WorkspaceService) UploadLogo(ctx context.Context, actor *domain.ActorContext, data []byte, filename string) (*domain.Workspace, error) {
	if !actor.Role.CanManageMembers() {
		return nil, domain.ErrInsufficientRole
	}

	current, err := s.workspaceRepo.GetByID(actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	objectPath, err := s.images.StoreLogo(ctx, actor.WorkspaceID, data, filename)
	if err != nil {
		return nil, err
	}

	updated, err := s.workspaceRepo.UpdateLogo(actor.WorkspaceID, objectPath)
	if err != nil {
		_ = s.images.Delete(ctx, objectPath)
		return nil, err
	}

	if current.LogoPath != nil && *current.LogoPath != objectPath {
		if err := s.images.Delete(ctx, *current.LogoPath); err != nil {
			log.Warn().Err(err).Int32("workspace_id", actor.WorkspaceID).Msg("Failed to delete previous logo")
		}
	}
	return updated, nil
}

// LogoURL returns a temporary URL for the workspace logo, or ""
func (s *WorkspaceService) LogoURL(ctx context.Context, ws *domain.Workspace) string {
	if ws.LogoPath == nil {
		return ""
	}
	return s.images.URL(ctx, *ws.LogoPath)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrNameRequired
	}
	if utf8.RuneCountInString(name) > domain.MaxNameLength {
		return "", domain.ErrNameTooLong
	}
	return name, nil
}

// uniqueSlug slugifies name and appends -1, -2, ... until no workspace other
// than excludeID holds it
func uniqueSlug(repo domain.WorkspaceRepository, name string, excludeID int32) (string, error) {
	base := util.Slugify(name)
	for n := 0; ; n++ {
		candidate := util.SlugCandidate(base, n)
		exists, err := repo.SlugExists(candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
