package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const inviteColumns = `id, token, email, role, workspace_id, invited_by, status, expires_at, accepted_by, accepted_at, created_at`

// InviteRepository implements domain.InviteRepository using PostgreSQL
type InviteRepository struct {
	pool *pgxpool.Pool
}

// NewInviteRepository creates a new InviteRepository
func NewInviteRepository(pool *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{pool: pool}
}

// Create persists a pending invite
func (r *InviteRepository) Create(invite *domain.Invite) (*domain.Invite, error) {
	return scanInvite(r.pool.QueryRow(context.Background(), `
		INSERT INTO workspace_invites (token, email, role, workspace_id, invited_by, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+inviteColumns,
		invite.Token, invite.Email, string(invite.Role), invite.WorkspaceID,
		uuidToPg(invite.InvitedBy), string(domain.InviteStatusPending), invite.ExpiresAt))
}

// GetByToken retrieves an invite by its token
func (r *InviteRepository) GetByToken(token string) (*domain.Invite, error) {
	return scanInvite(r.pool.QueryRow(context.Background(),
		`SELECT `+inviteColumns+` FROM workspace_invites WHERE token = $1`, token))
}

// ListPendingByEmail returns stored-pending invites for email in the workspace
func (r *InviteRepository) ListPendingByEmail(workspaceID int32, email string) ([]*domain.Invite, error) {
	return r.list(`
		SELECT `+inviteColumns+` FROM workspace_invites
		WHERE workspace_id = $1 AND lower(email) = lower($2) AND status = 'pending'
		ORDER BY created_at ASC`, workspaceID, email)
}

// ListPending returns the workspace's stored-pending invites, newest first
func (r *InviteRepository) ListPending(workspaceID int32) ([]*domain.Invite, error) {
	return r.list(`
		SELECT `+inviteColumns+` FROM workspace_invites
		WHERE workspace_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC`, workspaceID)
}

// MarkExpired moves a pending invite to expired
func (r *InviteRepository) MarkExpired(id int32) error {
	tag, err := r.pool.Exec(context.Background(),
		`UPDATE workspace_invites SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.notPending(id)
	}
	return nil
}

// MarkAccepted moves a pending invite to accepted
func (r *InviteRepository) MarkAccepted(id int32, acceptedBy uuid.UUID, acceptedAt time.Time) error {
	tag, err := r.pool.Exec(context.Background(), `
		UPDATE workspace_invites SET status = 'accepted', accepted_by = $2, accepted_at = $3
		WHERE id = $1 AND status = 'pending'`, id, uuidToPg(acceptedBy), acceptedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.notPending(id)
	}
	return nil
}

// notPending reports why a status update matched no pending row
func (r *InviteRepository) notPending(id int32) error {
	var status string
	err := r.pool.QueryRow(context.Background(),
		`SELECT status FROM workspace_invites WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInviteNotFound
		}
		return err
	}
	return &domain.InviteNotPendingError{Status: domain.InviteStatus(status)}
}

func (r *InviteRepository) list(query string, args ...any) ([]*domain.Invite, error) {
	rows, err := r.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invites := make([]*domain.Invite, 0)
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// Helper functions

func scanInvite(row rowScanner) (*domain.Invite, error) {
	var (
		invite     domain.Invite
		role       string
		status     string
		invitedBy  pgtype.UUID
		acceptedBy pgtype.UUID
		acceptedAt pgtype.Timestamptz
	)
	err := row.Scan(&invite.ID, &invite.Token, &invite.Email, &role, &invite.WorkspaceID, &invitedBy,
		&status, &invite.ExpiresAt, &acceptedBy, &acceptedAt, &invite.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	invite.Role = domain.Role(role)
	invite.Status = domain.InviteStatus(status)
	invite.InvitedBy = pgToUUID(invitedBy)
	invite.AcceptedBy = pgToUUIDPtr(acceptedBy)
	invite.AcceptedAt = pgTimestamptzToPtr(acceptedAt)
	return &invite, nil
}
