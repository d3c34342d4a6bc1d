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

const membershipColumns = `id, workspace_id, user_id, role, joined_at, removed_at, removed_by`

// MembershipRepository implements domain.MembershipRepository using PostgreSQL
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Create inserts an active membership. A concurrent duplicate is rejected by
// the partial unique index and surfaces as ErrAlreadyMember.
func (r *MembershipRepository) Create(membership *domain.Membership) (*domain.Membership, error) {
	joinedAt := time.Now()
	if membership.State != nil {
		joinedAt = membership.State.JoinedAt()
	}

	created, err := scanMembership(r.pool.QueryRow(context.Background(), `
		INSERT INTO user_workspaces (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+membershipColumns,
		membership.WorkspaceID, uuidToPg(membership.UserID), string(membership.Role), joinedAt))
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, err
	}
	return created, nil
}

// GetActive retrieves the user's active membership in the workspace
func (r *MembershipRepository) GetActive(workspaceID int32, userID uuid.UUID) (*domain.Membership, error) {
	return scanMembership(r.pool.QueryRow(context.Background(), `
		SELECT `+membershipColumns+` FROM user_workspaces
		WHERE workspace_id = $1 AND user_id = $2 AND removed_at IS NULL
		ORDER BY joined_at ASC
		LIMIT 1`, workspaceID, uuidToPg(userID)))
}

// ListActive returns active members ordered by role rank, then join time
func (r *MembershipRepository) ListActive(workspaceID int32) ([]*domain.Member, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT uw.id, uw.workspace_id, uw.user_id, uw.role, uw.joined_at, uw.removed_at, uw.removed_by,
			u.email, u.name
		FROM user_workspaces uw
		JOIN users u ON u.id = uw.user_id
		WHERE uw.workspace_id = $1 AND uw.removed_at IS NULL
		ORDER BY CASE uw.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END,
			uw.joined_at ASC, uw.id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]*domain.Member, 0)
	for rows.Next() {
		var (
			member domain.Member
			name   pgtype.Text
		)
		m, err := scanMembershipWith(rows, &member.Email, &name)
		if err != nil {
			return nil, err
		}
		member.Membership = *m
		member.Name = pgTextToStringPtr(name)
		members = append(members, &member)
	}
	return members, rows.Err()
}

// HasActiveByEmail reports whether any account with email is an active member
func (r *MembershipRepository) HasActiveByEmail(workspaceID int32, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(context.Background(), `
		SELECT EXISTS(
			SELECT 1 FROM user_workspaces uw
			JOIN users u ON u.id = uw.user_id
			WHERE uw.workspace_id = $1 AND lower(u.email) = lower($2) AND uw.removed_at IS NULL
		)`, workspaceID, email).Scan(&exists)
	return exists, err
}

// Remove soft-deletes the active membership, stamping when and by whom
func (r *MembershipRepository) Remove(workspaceID int32, userID uuid.UUID, removedBy uuid.UUID, removedAt time.Time) error {
	tag, err := r.pool.Exec(context.Background(), `
		UPDATE user_workspaces SET removed_at = $3, removed_by = $4
		WHERE workspace_id = $1 AND user_id = $2 AND removed_at IS NULL`,
		workspaceID, uuidToPg(userID), removedAt, uuidToPg(removedBy))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

// UpdateRole changes the role of an active membership
func (r *MembershipRepository) UpdateRole(workspaceID int32, userID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	return scanMembership(r.pool.QueryRow(context.Background(), `
		UPDATE user_workspaces SET role = $3
		WHERE workspace_id = $1 AND user_id = $2 AND removed_at IS NULL
		RETURNING `+membershipColumns, workspaceID, uuidToPg(userID), string(role)))
}

// Helper functions

func scanMembership(row rowScanner) (*domain.Membership, error) {
	return scanMembershipWith(row)
}

// scanMembershipWith scans the membership columns followed by extra destinations
func scanMembershipWith(row rowScanner, extra ...any) (*domain.Membership, error) {
	var (
		m         domain.Membership
		userID    pgtype.UUID
		role      string
		joinedAt  time.Time
		removedAt pgtype.Timestamptz
		removedBy pgtype.UUID
	)
	dest := append([]any{&m.ID, &m.WorkspaceID, &userID, &role, &joinedAt, &removedAt, &removedBy}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	m.UserID = pgToUUID(userID)
	m.Role = domain.Role(role)
	if removedAt.Valid {
		m.State = domain.Removed{Joined: joinedAt, RemovedAt: removedAt.Time, RemovedBy: pgToUUID(removedBy)}
	} else {
		m.State = domain.Active{Joined: joinedAt}
	}
	return &m, nil
}
