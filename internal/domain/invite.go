package domain

import (
	"time"

	"github.com/google/uuid"
)

// InviteStatus is the lifecycle status of a workspace invite
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
)

// InviteTTL is how long an invite stays acceptable
const InviteTTL = 7 * 24 * time.Hour

// Invite is an invitation for an email address to join a workspace
type Invite struct {
	ID          int32        `json:"id"`
	Token       string       `json:"token"`
	Email       string       `json:"email"`
	Role        Role         `json:"role"`
	WorkspaceID int32        `json:"workspaceId"`
	InvitedBy   uuid.UUID    `json:"invitedBy"`
	Status      InviteStatus `json:"status"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	AcceptedBy  *uuid.UUID   `json:"acceptedBy,omitempty"`
	AcceptedAt  *time.Time   `json:"acceptedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// EffectiveStatus derives the status at instant now. A pending invite past its
// expiry is expired whether or not that has been persisted yet.
func EffectiveStatus(invite *Invite, now time.Time) InviteStatus {
	if invite.Status == InviteStatusPending && now.After(invite.ExpiresAt) {
		return InviteStatusExpired
	}
	return invite.Status
}

// InviteRepository defines the interface for invite persistence operations
type InviteRepository interface {
	Create(invite *Invite) (*Invite, error)
	GetByToken(token string) (*Invite, error)
	// ListPendingByEmail returns stored-pending invites for email, including
	// ones whose expiry has passed but were not yet transitioned
	ListPendingByEmail(workspaceID int32, email string) ([]*Invite, error)
	ListPending(workspaceID int32) ([]*Invite, error)
	MarkExpired(id int32) error
	MarkAccepted(id int32, acceptedBy uuid.UUID, acceptedAt time.Time) error
}
