package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within a workspace
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Rank orders roles for listing: owner first, then admin, then member
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	case RoleMember:
		return 2
	}
	return 3
}

// CanManageMembers reports whether the role may invite or remove members
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// MembershipState is either Active or Removed. Rows are never hard-deleted;
// leaving or being removed moves the membership to Removed.
type MembershipState interface {
	JoinedAt() time.Time
	isMembershipState()
}

// Active is the state of a current member
type Active struct {
	Joined time.Time
}

func (s Active) JoinedAt() time.Time { return s.Joined }
func (Active) isMembershipState() {}

// Removed is the state of a member who left or was removed
type Removed struct {
	Joined    time.Time
	RemovedAt time.Time
	RemovedBy uuid.UUID
}

func (s Removed) JoinedAt() time.Time { return s.Joined }
func (Removed) isMembershipState() {}

// Membership is a (user, workspace) row
type Membership struct {
	ID          int32
	WorkspaceID int32
	UserID      uuid.UUID
	Role        Role
	State       MembershipState
}

// IsActive reports whether the membership has not been removed
func (m *Membership) IsActive() bool {
	_, ok := m.State.(Active)
	return ok
}

// Member is an active membership joined with the user's profile
type Member struct {
	Membership
	Email string
	Name  *string
}

// MembershipRepository defines the interface for membership persistence operations
type MembershipRepository interface {
	Create(membership *Membership) (*Membership, error)
	// GetActive returns ErrMembershipNotFound when the user has no active membership
	GetActive(workspaceID int32, userID uuid.UUID) (*Membership, error)
	ListActive(workspaceID int32) ([]*Member, error)
	HasActiveByEmail(workspaceID int32, email string) (bool, error)
	Remove(workspaceID int32, userID uuid.UUID, removedBy uuid.UUID, removedAt time.Time) error
	UpdateRole(workspaceID int32, userID uuid.UUID, role Role) (*Membership, error)
}
