package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const workspaceColumns = `id, name, slug, logo_path, created_at, updated_at`

// WorkspaceRepository implements domain.WorkspaceRepository using PostgreSQL
type WorkspaceRepository struct {
	pool *pgxpool.Pool
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(pool *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{pool: pool}
}

// GetByID retrieves a workspace by its ID
func (r *WorkspaceRepository) GetByID(id int32) (*domain.Workspace, error) {
	row := r.pool.QueryRow(context.Background(),
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
	return scanWorkspace(row)
}

// SlugExists reports whether a workspace other than excludeID already uses slug
func (r *WorkspaceRepository) SlugExists(slug string, excludeID int32) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM workspaces WHERE slug = $1 AND id <> $2)`, slug, excludeID,
	).Scan(&exists)
	return exists, err
}

// CreateWithOwner atomically creates a workspace and the owner's membership
func (r *WorkspaceRepository) CreateWithOwner(workspace *domain.Workspace, ownerID uuid.UUID) (*domain.Workspace, error) {
	ctx := context.Background()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// 1. Create the workspace
	created, err := scanWorkspace(tx.QueryRow(ctx,
		`INSERT INTO workspaces (name, slug) VALUES ($1, $2) RETURNING `+workspaceColumns,
		workspace.Name, workspace.Slug))
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, fmt.Errorf("slug %q already taken: %w", workspace.Slug, domain.ErrConflict)
		}
		return nil, err
	}

	// 2. Create the owner membership
	_, err = tx.Exec(ctx,
		`INSERT INTO user_workspaces (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		created.ID, uuidToPg(ownerID), string(domain.RoleOwner))
	if err != nil {
		return nil, err
	}

	// 3. Commit
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateName updates a workspace's name and slug together
func (r *WorkspaceRepository) UpdateName(id int32, name, slug string) (*domain.Workspace, error) {
	workspace, err := scanWorkspace(r.pool.QueryRow(context.Background(), `
		UPDATE workspaces SET name = $2, slug = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+workspaceColumns, id, name, slug))
	if isPgUniqueViolation(err) {
		return nil, fmt.Errorf("slug %q already taken: %w", slug, domain.ErrConflict)
	}
	return workspace, err
}

// UpdateLogo sets the storage path of the workspace logo
func (r *WorkspaceRepository) UpdateLogo(id int32, logoPath string) (*domain.Workspace, error) {
	return scanWorkspace(r.pool.QueryRow(context.Background(), `
		UPDATE workspaces SET logo_path = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+workspaceColumns, id, logoPath))
}

// ListByUser returns the user's active memberships joined with their workspaces
func (r *WorkspaceRepository) ListByUser(userID uuid.UUID) ([]*domain.UserWorkspace, error) {
	rows, err := r.pool.Query(context.Background(), `
		SELECT w.id, w.name, w.slug, w.logo_path, w.created_at, w.updated_at, uw.role, uw.joined_at
		FROM user_workspaces uw
		JOIN workspaces w ON w.id = uw.workspace_id
		WHERE uw.user_id = $1 AND uw.removed_at IS NULL
		ORDER BY uw.joined_at ASC, w.id ASC`, uuidToPg(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.UserWorkspace, 0)
	for rows.Next() {
		var (
			ws       domain.Workspace
			logoPath pgtype.Text
			uw       domain.UserWorkspace
			role     string
		)
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Slug, &logoPath, &ws.CreatedAt, &ws.UpdatedAt, &role, &uw.JoinedAt); err != nil {
			return nil, err
		}
		ws.LogoPath = pgTextToStringPtr(logoPath)
		uw.Workspace = &ws
		uw.Role = domain.Role(role)
		result = append(result, &uw)
	}
	return result, rows.Err()
}

// Helper functions

func scanWorkspace(row rowScanner) (*domain.Workspace, error) {
	var (
		workspace domain.Workspace
		logoPath  pgtype.Text
	)
	err := row.Scan(&workspace.ID, &workspace.Name, &workspace.Slug, &logoPath, &workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, err
	}
	workspace.LogoPath = pgTextToStringPtr(logoPath)
	return &workspace, nil
}
