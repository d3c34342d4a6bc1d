package handler

import (
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
)

const dateLayout = "2006-01-02"

// UserResponse represents a user in API responses
type UserResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       *string `json:"name"`
	PictureURL *string `json:"pictureUrl"`
}

// WorkspaceResponse represents a workspace in API responses
type WorkspaceResponse struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	LogoURL   string `json:"logoUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// UserWorkspaceResponse is a workspace with the caller's role in it
type UserWorkspaceResponse struct {
	Workspace WorkspaceResponse `json:"workspace"`
	Role      string            `json:"role"`
	JoinedAt  string            `json:"joinedAt"`
}

// MemberResponse represents an active member in API responses
type MemberResponse struct {
	UserID   string  `json:"userId"`
	Email    string  `json:"email"`
	Name     *string `json:"name"`
	Role     string  `json:"role"`
	JoinedAt string  `json:"joinedAt"`
}

// MembershipResponse represents a single membership in API responses
type MembershipResponse struct {
	WorkspaceID int32  `json:"workspaceId"`
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	JoinedAt    string `json:"joinedAt"`
}

// InviteResponse represents an invite in API responses
type InviteResponse struct {
	ID          int32  `json:"id"`
	Token       string `json:"token"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	WorkspaceID int32  `json:"workspaceId"`
	InvitedBy   string `json:"invitedBy"`
	Status      string `json:"status"`
	ExpiresAt   string `json:"expiresAt"`
	CreatedAt   string `json:"createdAt"`
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID          int32   `json:"id"`
	WorkspaceID int32   `json:"workspaceId"`
	Name        string  `json:"name"`
	Value       string  `json:"value"`
	Stage       string  `json:"stage"`
	Position    int64   `json:"position"`
	Probability int32   `json:"probability"`
	CloseDate   *string `json:"closeDate,omitempty"`
	OwnerID     *string `json:"ownerId,omitempty"`
	CompanyID   *int32  `json:"companyId,omitempty"`
	ContactID   *int32  `json:"contactId,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// StageColumnResponse is one column of the board
type StageColumnResponse struct {
	Stage      string         `json:"stage"`
	Deals      []DealResponse `json:"deals"`
	Count      int            `json:"count"`
	TotalValue string         `json:"totalValue"`
}

// TransitionResponse represents a stage transition in API responses
type TransitionResponse struct {
	ID           int32   `json:"id"`
	DealID       int32   `json:"dealId"`
	FromStage    *string `json:"fromStage"`
	ToStage      string  `json:"toStage"`
	FromPosition *int64  `json:"fromPosition"`
	ToPosition   int64   `json:"toPosition"`
	Value        string  `json:"value"`
	Probability  int32   `json:"probability"`
	ActorID      string  `json:"actorId"`
	CreatedAt    string  `json:"createdAt"`
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID          int32   `json:"id"`
	WorkspaceID int32   `json:"workspaceId"`
	Type        string  `json:"type"`
	Entity      string  `json:"entity"`
	EntityID    string  `json:"entityId"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	ReadAt      *string `json:"readAt"`
	CreatedAt   string  `json:"createdAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		PictureURL: u.PictureURL,
	}
}

func toWorkspaceResponse(ws *domain.Workspace, logoURL string) WorkspaceResponse {
	return WorkspaceResponse{
		ID:        ws.ID,
		Name:      ws.Name,
		Slug:      ws.Slug,
		LogoURL:   logoURL,
		CreatedAt: formatTime(ws.CreatedAt),
	}
}

func toMemberResponse(m *domain.Member) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID.String(),
		Email:    m.Email,
		Name:     m.Name,
		Role:     string(m.Role),
		JoinedAt: formatTime(m.State.JoinedAt()),
	}
}

func toMembershipResponse(m *domain.Membership) MembershipResponse {
	return MembershipResponse{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID.String(),
		Role:        string(m.Role),
		JoinedAt:    formatTime(m.State.JoinedAt()),
	}
}

func toInviteResponse(inv *domain.Invite) InviteResponse {
	return InviteResponse{
		ID:          inv.ID,
		Token:       inv.Token,
		Email:       inv.Email,
		Role:        string(inv.Role),
		WorkspaceID: inv.WorkspaceID,
		InvitedBy:   inv.InvitedBy.String(),
		Status:      string(inv.Status),
		ExpiresAt:   formatTime(inv.ExpiresAt),
		CreatedAt:   formatTime(inv.CreatedAt),
	}
}

func toDealResponse(d *domain.Deal) DealResponse {
	resp := DealResponse{
		ID:          d.ID,
		WorkspaceID: d.WorkspaceID,
		Name:        d.Name,
		Value:       d.Value.StringFixed(2),
		Stage:       string(d.Stage),
		Position:    d.Position,
		Probability: d.Probability,
		CompanyID:   d.CompanyID,
		ContactID:   d.ContactID,
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
	if d.CloseDate != nil {
		s := d.CloseDate.Format(dateLayout)
		resp.CloseDate = &s
	}
	if d.OwnerID != nil {
		s := d.OwnerID.String()
		resp.OwnerID = &s
	}
	return resp
}

func toTransitionResponse(t *domain.StageTransition) TransitionResponse {
	resp := TransitionResponse{
		ID:           t.ID,
		DealID:       t.DealID,
		ToStage:      string(t.ToStage),
		FromPosition: t.FromPosition,
		ToPosition:   t.ToPosition,
		Value:        t.Value.StringFixed(2),
		Probability:  t.Probability,
		ActorID:      t.ActorID.String(),
		CreatedAt:    formatTime(t.CreatedAt),
	}
	if t.FromStage != nil {
		s := string(*t.FromStage)
		resp.FromStage = &s
	}
	return resp
}

func toNotificationResponse(n *domain.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:          n.ID,
		WorkspaceID: n.WorkspaceID,
		Type:        string(n.Type),
		Entity:      n.Entity,
		EntityID:    n.EntityID,
		Title:       n.Title,
		Message:     n.Message,
		CreatedAt:   formatTime(n.CreatedAt),
	}
	if n.ReadAt != nil {
		s := formatTime(*n.ReadAt)
		resp.ReadAt = &s
	}
	return resp
}
