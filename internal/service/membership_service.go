package service

import (
	"fmt"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MemberEventPayload is the websocket payload of member events
type MemberEventPayload struct {
	UserID uuid.UUID   `json:"userId"`
	Role   domain.Role `json:"role,omitempty"`
}

// MembershipService enforces who may leave, remove or re-role members
type MembershipService struct {
	membershipRepo domain.MembershipRepository
	workspaceRepo  domain.WorkspaceRepository
	notifications  *NotificationService
	eventPublisher websocket.EventPublisher
	now            func() time.Time
}

// NewMembershipService creates a new MembershipService
func NewMembershipService(
	membershipRepo domain.MembershipRepository,
	workspaceRepo domain.WorkspaceRepository,
	notifications *NotificationService,
) *MembershipService {
	return &MembershipService{
		membershipRepo: membershipRepo,
		workspaceRepo:  workspaceRepo,
		notifications:  notifications,
		eventPublisher: websocket.NoOpPublisher{},
		now:            time.Now,
	}
}

// SetEventPublisher attaches the realtime hub. nil detaches it.
func (s *MembershipService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisherOrNoOp(publisher)
}

// memberGone tells the workspace the member left and drops their live
// connections so they stop receiving its events
func (s *MembershipService) memberGone(workspaceID int32, userID uuid.UUID) {
	s.eventPublisher.Publish(workspaceID, websocket.MemberRemoved(MemberEventPayload{UserID: userID}))
	s.eventPublisher.DisconnectMember(workspaceID, userID)
}

// ListMembers returns the workspace's active members, owner first, then
// admins, then members, each group by join time
func (s *MembershipService) ListMembers(actor *domain.ActorContext) ([]*domain.Member, error) {
	return s.membershipRepo.ListActive(actor.WorkspaceID)
}

// RemoveMember removes targetID from the actor's workspace. When targetID is
// the actor this is a leave.
func (s *MembershipService) RemoveMember(actor *domain.ActorContext, targetID uuid.UUID) error {
	if actor.UserID == targetID {
		return s.leave(actor)
	}

	if !actor.Role.CanManageMembers() {
		return domain.ErrInsufficientRole
	}

	target, err := s.membershipRepo.GetActive(actor.WorkspaceID, targetID)
	if err != nil {
		return err
	}
	switch {
	case target.Role == domain.RoleOwner:
		return domain.ErrOwnerNotRemovable
	case actor.Role == domain.RoleAdmin && target.Role == domain.RoleAdmin:
		return domain.ErrAdminRemovesAdmin
	}

	if err := s.membershipRepo.Remove(actor.WorkspaceID, targetID, actor.UserID, s.now()); err != nil {
		return err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("user_id", targetID.String()).
		Str("removed_by", actor.UserID.String()).
		Msg("Member removed")

	s.notifications.notifyBestEffort(NotifyInput{
		UserID:      targetID,
		WorkspaceID: actor.WorkspaceID,
		Type:        domain.NotificationMemberRemoved,
		Entity:      "workspace",
		EntityID:    fmt.Sprintf("%d", actor.WorkspaceID),
		Title:       fmt.Sprintf("You were removed from %s", s.workspaceName(actor.WorkspaceID)),
	})
	s.memberGone(actor.WorkspaceID, targetID)
	return nil
}

func (s *MembershipService) leave(actor *domain.ActorContext) error {
	if actor.Role == domain.RoleOwner {
		return domain.ErrOwnerCannotLeave
	}
	if err := s.membershipRepo.Remove(actor.WorkspaceID, actor.UserID, actor.UserID, s.now()); err != nil {
		return err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("user_id", actor.UserID.String()).
		Msg("Member left workspace")

	s.memberGone(actor.WorkspaceID, actor.UserID)
	return nil
}

// ChangeRole switches a member between admin and member. Only the owner may
// do this and the owner role itself never moves.
func (s *MembershipService) ChangeRole(actor *domain.ActorContext, targetID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	if actor.Role != domain.RoleOwner {
		return nil, domain.ErrInsufficientRole
	}
	if !role.IsValid() {
		return nil, domain.ErrInvalidRole
	}
	if role == domain.RoleOwner {
		return nil, domain.ErrOwnerRoleImmutable
	}

	target, err := s.membershipRepo.GetActive(actor.WorkspaceID, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleOwner {
		return nil, domain.ErrOwnerRoleImmutable
	}
	if target.Role == role {
		return target, nil
	}

	updated, err := s.membershipRepo.UpdateRole(actor.WorkspaceID, targetID, role)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Str("user_id", targetID.String()).
		Str("role", string(role)).
		Msg("Member role changed")
	return updated, nil
}

func (s *MembershipService) workspaceName(workspaceID int32) string {
	ws, err := s.workspaceRepo.GetByID(workspaceID)
	if err != nil {
		return "a workspace"
	}
	return ws.Name
}
