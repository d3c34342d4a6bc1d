package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		invite Invite
		want   InviteStatus
	}{
		{
			name:   "pending before expiry",
			invite: Invite{Status: InviteStatusPending, ExpiresAt: now.Add(time.Hour)},
			want:   InviteStatusPending,
		},
		{
			name:   "pending at exact expiry is still pending",
			invite: Invite{Status: InviteStatusPending, ExpiresAt: now},
			want:   InviteStatusPending,
		},
		{
			name:   "pending past expiry",
			invite: Invite{Status: InviteStatusPending, ExpiresAt: now.Add(-time.Second)},
			want:   InviteStatusExpired,
		},
		{
			name:   "accepted past expiry stays accepted",
			invite: Invite{Status: InviteStatusAccepted, ExpiresAt: now.Add(-InviteTTL)},
			want:   InviteStatusAccepted,
		},
		{
			name:   "stored expired",
			invite: Invite{Status: InviteStatusExpired, ExpiresAt: now.Add(time.Hour)},
			want:   InviteStatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveStatus(&tt.invite, now)
			if got != tt.want {
				t.Errorf("EffectiveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInviteNotPendingError(t *testing.T) {
	err := error(&InviteNotPendingError{Status: InviteStatusAccepted})

	if err.Error() != "invite is accepted" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("expected InviteNotPendingError to classify as ErrConflict")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrInviteNotFound, ErrNotFound},
		{ErrOwnerCannotLeave, ErrForbidden},
		{ErrOwnerNotRemovable, ErrForbidden},
		{ErrAdminRemovesAdmin, ErrForbidden},
		{ErrInviteEmailMismatch, ErrForbidden},
		{ErrInviteExpired, ErrExpired},
		{ErrAlreadyMember, ErrConflict},
		{ErrInviteAlreadySent, ErrConflict},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("expected %q to wrap %q", tt.err, tt.kind)
		}
	}
}
