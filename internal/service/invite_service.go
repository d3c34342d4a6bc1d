package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/util"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateInviteInput is the validated input of CreateInvite
type CreateInviteInput struct {
	Email string
	Role  domain.Role
}

// InviteService drives the invite lifecycle: pending to accepted, or pending
// to expired when read after its expiry
type InviteService struct {
	inviteRepo     domain.InviteRepository
	membershipRepo domain.MembershipRepository
	userRepo       domain.UserRepository
	workspaceRepo  domain.WorkspaceRepository
	notifications  *NotificationService
	eventPublisher websocket.EventPublisher
	now            func() time.Time
	newToken       func() (string, error)
}

// NewInviteService creates a new InviteService
func NewInviteService(
	inviteRepo domain.InviteRepository,
	membershipRepo domain.MembershipRepository,
	userRepo domain.UserRepository,
	workspaceRepo domain.WorkspaceRepository,
	notifications *NotificationService,
) *InviteService {
	return &InviteService{
		inviteRepo:     inviteRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		workspaceRepo:  workspaceRepo,
		notifications:  notifications,
		eventPublisher: websocket.NoOpPublisher{},
		now:            time.Now,
		newToken: func() (string, error) {
			return util.GenerateURLToken(util.InviteTokenBytes)
		},
	}
}

// SetEventPublisher attaches the realtime hub. nil detaches it.
func (s *InviteService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisherOrNoOp(publisher)
}

// SetClock overrides the time source (tests)
func (s *InviteService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *InviteService) publishEvent(workspaceID int32, event websocket.Event) {
	s.eventPublisher.Publish(workspaceID, event)
}

// NormalizeEmail trims and lowercases an address and checks that it is a
// bare address (no display name)
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

// CreateInvite issues an invite for email to join the actor's workspace
func (s *InviteService) CreateInvite(actor *domain.ActorContext, input CreateInviteInput) (*domain.Invite, error) {
	if !actor.Role.CanManageMembers() {
		return nil, domain.ErrInsufficientRole
	}

	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if input.Role != domain.RoleAdmin && input.Role != domain.RoleMember {
		return nil, domain.ErrInvalidRole
	}

	isMember, err := s.membershipRepo.HasActiveByEmail(actor.WorkspaceID, email)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, domain.ErrAlreadyMember
	}

	now := s.now()
	pending, err := s.inviteRepo.ListPendingByEmail(actor.WorkspaceID, email)
	if err != nil {
		return nil, err
	}
	for _, existing := range pending {
		if domain.EffectiveStatus(existing, now) == domain.InviteStatusPending {
			return nil, domain.ErrInviteAlreadySent
		}
		s.persistExpired(existing)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}

	created, err := s.inviteRepo.Create(&domain.Invite{
		Token:       token,
		Email:       email,
		Role:        input.Role,
		WorkspaceID: actor.WorkspaceID,
		InvitedBy:   actor.UserID,
		Status:      domain.InviteStatusPending,
		ExpiresAt:   now.Add(domain.InviteTTL),
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("workspace_id", actor.WorkspaceID).
		Int32("invite_id", created.ID).
		Str("role", string(created.Role)).
		Msg("Invite created")

	if invitee, err := s.userRepo.GetByEmail(email); err == nil {
		s.notifications.notifyBestEffort(NotifyInput{
			UserID:      invitee.ID,
			WorkspaceID: actor.WorkspaceID,
			Type:        domain.NotificationInviteReceived,
			Entity:      "invite",
			EntityID:    created.Token,
			Title:       fmt.Sprintf("You've been invited to join %s", s.workspaceName(actor.WorkspaceID)),
			Message:     fmt.Sprintf("You were invited as %s.", created.Role),
		})
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		log.Warn().Err(err).Int32("invite_id", created.ID).Msg("Failed to look up invitee")
	}

	return created, nil
}

// GetInvite reads an invite by token. A pending invite past its expiry is
// transitioned to expired and returned together with ErrInviteExpired.
func (s *InviteService) GetInvite(token string) (*domain.Invite, error) {
	invite, err := s.inviteRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}

	if domain.EffectiveStatus(invite, s.now()) == domain.InviteStatusExpired {
		s.persistExpired(invite)
		return invite, domain.ErrInviteExpired
	}
	return invite, nil
}

// AcceptInvite adds userID to the invite's workspace. email is the caller's
// authenticated email and must match the invite.
func (s *InviteService) AcceptInvite(userID uuid.UUID, email string, token string) (*domain.Membership, error) {
	invite, err := s.inviteRepo.GetByToken(token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch domain.EffectiveStatus(invite, now) {
	case domain.InviteStatusPending:
	case domain.InviteStatusExpired:
		s.persistExpired(invite)
		return nil, domain.ErrInviteExpired
	default:
		return nil, &domain.InviteNotPendingError{Status: invite.Status}
	}

	if invite.Email != "" && !strings.EqualFold(strings.TrimSpace(email), invite.Email) {
		return nil, domain.ErrInviteEmailMismatch
	}

	if _, err := s.membershipRepo.GetActive(invite.WorkspaceID, userID); err == nil {
		s.closeOut(invite, userID, now)
		return nil, domain.ErrAlreadyMember
	} else if !errors.Is(err, domain.ErrMembershipNotFound) {
		return nil, err
	}

	membership, err := s.membershipRepo.Create(&domain.Membership{
		WorkspaceID: invite.WorkspaceID,
		UserID:      userID,
		Role:        invite.Role,
		State:       domain.Active{Joined: now},
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyMember) {
			s.closeOut(invite, userID, now)
		}
		return nil, err
	}

	s.closeOut(invite, userID, now)

	log.Info().
		Int32("workspace_id", invite.WorkspaceID).
		Int32("invite_id", invite.ID).
		Str("user_id", userID.String()).
		Msg("Invite accepted")

	s.notifications.notifyBestEffort(NotifyInput{
		UserID:      invite.InvitedBy,
		WorkspaceID: invite.WorkspaceID,
		Type:        domain.NotificationInviteAccepted,
		Entity:      "member",
		EntityID:    userID.String(),
		Title:       fmt.Sprintf("%s accepted your invite", invite.Email),
		Message:     fmt.Sprintf("%s joined %s as %s.", invite.Email, s.workspaceName(invite.WorkspaceID), invite.Role),
	})
	s.publishEvent(invite.WorkspaceID, websocket.MemberJoined(MemberEventPayload{
		UserID: userID,
		Role:   membership.Role,
	}))

	return membership, nil
}

// ListPendingInvites returns the workspace's invites that are still acceptable
func (s *InviteService) ListPendingInvites(actor *domain.ActorContext) ([]*domain.Invite, error) {
	if !actor.Role.CanManageMembers() {
		return nil, domain.ErrInsufficientRole
	}

	invites, err := s.inviteRepo.ListPending(actor.WorkspaceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]*domain.Invite, 0, len(invites))
	for _, invite := range invites {
		if domain.EffectiveStatus(invite, now) == domain.InviteStatusPending {
			result = append(result, invite)
		}
	}
	return result, nil
}

// persistExpired writes back the derived expired status. The write is a cache
// of EffectiveStatus, so a failure is only logged.
func (s *InviteService) persistExpired(invite *domain.Invite) {
	if invite.Status != domain.InviteStatusPending {
		return
	}
	if err := s.inviteRepo.MarkExpired(invite.ID); err != nil {
		log.Warn().Err(err).Int32("invite_id", invite.ID).Msg("Failed to persist invite expiry")
		return
	}
	invite.Status = domain.InviteStatusExpired
}

// closeOut marks the invite accepted. Losing a race against another
// acceptance is not an error for the caller.
func (s *InviteService) closeOut(invite *domain.Invite, userID uuid.UUID, now time.Time) {
	if err := s.inviteRepo.MarkAccepted(invite.ID, userID, now); err != nil {
		log.Warn().Err(err).Int32("invite_id", invite.ID).Msg("Failed to mark invite accepted")
		return
	}
	invite.Status = domain.InviteStatusAccepted
	invite.AcceptedBy = &userID
	invite.AcceptedAt = &now
}

func (s *InviteService) workspaceName(workspaceID int32) string {
	ws, err := s.workspaceRepo.GetByID(workspaceID)
	if err != nil {
		return "a workspace"
	}
	return ws.Name
}
