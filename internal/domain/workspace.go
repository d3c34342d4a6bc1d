package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is a tenant. Every CRM record belongs to exactly one workspace.
type Workspace struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	LogoPath  *string   `json:"logoPath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserWorkspace pairs a workspace with the caller's role in it
type UserWorkspace struct {
	Workspace *Workspace `json:"workspace"`
	Role      Role       `json:"role"`
	JoinedAt  time.Time  `json:"joinedAt"`
}

// WorkspaceRepository defines the interface for workspace persistence operations
type WorkspaceRepository interface {
	GetByID(id int32) (*Workspace, error)
	// SlugExists reports whether another workspace (id != excludeID) holds slug
	SlugExists(slug string, excludeID int32) (bool, error)
	// CreateWithOwner atomically creates the workspace and its owner membership
	CreateWithOwner(workspace *Workspace, ownerID uuid.UUID) (*Workspace, error)
	UpdateName(id int32, name, slug string) (*Workspace, error)
	UpdateLogo(id int32, logoPath string) (*Workspace, error)
	ListByUser(userID uuid.UUID) ([]*UserWorkspace, error)
}
