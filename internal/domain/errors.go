package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every business-rule failure wraps exactly one of these so
// callers can classify with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrExpired      = errors.New("expired")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Specific errors
var (
	ErrUserNotFound         = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrWorkspaceNotFound    = fmt.Errorf("workspace not found: %w", ErrNotFound)
	ErrMembershipNotFound   = fmt.Errorf("membership not found: %w", ErrNotFound)
	ErrInviteNotFound       = fmt.Errorf("invite not found: %w", ErrNotFound)
	ErrDealNotFound         = fmt.Errorf("deal not found: %w", ErrNotFound)
	ErrTargetDealNotFound   = fmt.Errorf("target deal not found in stage: %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification not found: %w", ErrNotFound)

	ErrNotWorkspaceMember  = fmt.Errorf("not a member of this workspace: %w", ErrForbidden)
	ErrInsufficientRole    = fmt.Errorf("insufficient role: %w", ErrForbidden)
	ErrOwnerCannotLeave    = fmt.Errorf("owner cannot leave the workspace: %w", ErrForbidden)
	ErrOwnerNotRemovable   = fmt.Errorf("owner cannot be removed: %w", ErrForbidden)
	ErrAdminRemovesAdmin   = fmt.Errorf("admins cannot remove other admins: %w", ErrForbidden)
	ErrInviteEmailMismatch = fmt.Errorf("invite was issued to a different email: %w", ErrForbidden)
	ErrOwnerRoleImmutable  = fmt.Errorf("owner role cannot be granted or revoked: %w", ErrForbidden)

	ErrInviteExpired     = fmt.Errorf("invite has expired: %w", ErrExpired)
	ErrAlreadyMember     = fmt.Errorf("user is already a member of this workspace: %w", ErrConflict)
	ErrInviteAlreadySent = fmt.Errorf("a pending invite already exists for this email: %w", ErrConflict)

	ErrNameRequired       = fmt.Errorf("name is required: %w", ErrInvalidInput)
	ErrNameTooLong        = fmt.Errorf("name exceeds maximum length: %w", ErrInvalidInput)
	ErrInvalidEmail       = fmt.Errorf("invalid email: %w", ErrInvalidInput)
	ErrInvalidRole        = fmt.Errorf("invalid role: %w", ErrInvalidInput)
	ErrInvalidStage       = fmt.Errorf("invalid stage: %w", ErrInvalidInput)
	ErrInvalidEdge        = fmt.Errorf("invalid drop edge: %w", ErrInvalidInput)
	ErrInvalidValue       = fmt.Errorf("value must not be negative: %w", ErrInvalidInput)
	ErrInvalidProbability = fmt.Errorf("probability must be between 0 and 100: %w", ErrInvalidInput)
	ErrInvalidOwner       = fmt.Errorf("deal owner is not a workspace member: %w", ErrInvalidInput)
)

// InviteNotPendingError is returned when accepting an invite that already
// reached a terminal status.
type InviteNotPendingError struct {
	Status InviteStatus
}

func (e *InviteNotPendingError) Error() string {
	return fmt.Sprintf("invite is %s", e.Status)
}

// Unwrap classifies the error as a conflict
func (e *InviteNotPendingError) Unwrap() error {
	return ErrConflict
}

// Validation constants
const (
	MaxNameLength = 255
)
