package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/websocket"
	"github.com/google/uuid"
)

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	Users    map[string]*domain.User
	ByID     map[uuid.UUID]*domain.User
	CreateFn func(auth0ID, email string, name, pictureURL *string) (*domain.User, error)
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
		ByID:  make(map[uuid.UUID]*domain.User),
	}
}

// GetByID retrieves a user by ID
func (m *MockUserRepository) GetByID(id uuid.UUID) (*domain.User, error) {
	if user, ok := m.ByID[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByAuth0ID retrieves a user by Auth0 ID
func (m *MockUserRepository) GetByAuth0ID(auth0ID string) (*domain.User, error) {
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByEmail retrieves a user by email, case-insensitively
func (m *MockUserRepository) GetByEmail(email string) (*domain.User, error) {
	for _, user := range m.ByID {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// CreateOrGetByAuth0ID creates or retrieves a user by Auth0 ID
func (m *MockUserRepository) CreateOrGetByAuth0ID(auth0ID, email string, name, pictureURL *string) (*domain.User, error) {
	if m.CreateFn != nil {
		return m.CreateFn(auth0ID, email, name, pictureURL)
	}
	if user, ok := m.Users[auth0ID]; ok {
		return user, nil
	}
	user := &domain.User{
		ID:         uuid.New(),
		Auth0ID:    auth0ID,
		Email:      email,
		Name:       name,
		PictureURL: pictureURL,
	}
	m.Users[auth0ID] = user
	m.ByID[user.ID] = user
	return user, nil
}

// AddUser adds a user to the mock repository (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.Users[user.Auth0ID] = user
	m.ByID[user.ID] = user
}

// NewUser creates and adds a user with the given email (helper for tests)
func (m *MockUserRepository) NewUser(email string) *domain.User {
	user := &domain.User{
		ID:      uuid.New(),
		Auth0ID: "auth0|" + email,
		Email:   email,
	}
	m.AddUser(user)
	return user
}

// MockWorkspaceRepository is a mock implementation of domain.WorkspaceRepository
type MockWorkspaceRepository struct {
	Workspaces map[int32]*domain.Workspace
	NextID     int32
	// Memberships receives the owner membership on CreateWithOwner and backs ListByUser
	Memberships *MockMembershipRepository
	CreateErr   error
}

// NewMockWorkspaceRepository creates a new MockWorkspaceRepository
func NewMockWorkspaceRepository(memberships *MockMembershipRepository) *MockWorkspaceRepository {
	return &MockWorkspaceRepository{
		Workspaces:  make(map[int32]*domain.Workspace),
		NextID:      1,
		Memberships: memberships,
	}
}

// GetByID retrieves a workspace by ID
func (m *MockWorkspaceRepository) GetByID(id int32) (*domain.Workspace, error) {
	if ws, ok := m.Workspaces[id]; ok {
		return copyWorkspace(ws), nil
	}
	return nil, domain.ErrWorkspaceNotFound
}

// SlugExists reports whether another workspace uses slug
func (m *MockWorkspaceRepository) SlugExists(slug string, excludeID int32) (bool, error) {
	for id, ws := range m.Workspaces {
		if id != excludeID && ws.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// CreateWithOwner creates a workspace and its owner membership
func (m *MockWorkspaceRepository) CreateWithOwner(workspace *domain.Workspace, ownerID uuid.UUID) (*domain.Workspace, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	workspace.ID = m.NextID
	m.NextID++
	workspace.CreatedAt = time.Now()
	workspace.UpdatedAt = workspace.CreatedAt
	m.Workspaces[workspace.ID] = workspace

	if m.Memberships != nil {
		m.Memberships.AddMembership(workspace.ID, ownerID, domain.RoleOwner, workspace.CreatedAt)
	}
	return copyWorkspace(workspace), nil
}

// UpdateName updates a workspace's name and slug
func (m *MockWorkspaceRepository) UpdateName(id int32, name, slug string) (*domain.Workspace, error) {
	ws, ok := m.Workspaces[id]
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	ws.Name = name
	ws.Slug = slug
	ws.UpdatedAt = time.Now()
	return copyWorkspace(ws), nil
}

// UpdateLogo sets a workspace's logo path
func (m *MockWorkspaceRepository) UpdateLogo(id int32, logoPath string) (*domain.Workspace, error) {
	ws, ok := m.Workspaces[id]
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	ws.LogoPath = &logoPath
	return copyWorkspace(ws), nil
}

// ListByUser returns the user's active memberships with their workspaces
func (m *MockWorkspaceRepository) ListByUser(userID uuid.UUID) ([]*domain.UserWorkspace, error) {
	result := make([]*domain.UserWorkspace, 0)
	if m.Memberships == nil {
		return result, nil
	}
	for _, ms := range m.Memberships.Rows {
		if ms.UserID != userID || !ms.IsActive() {
			continue
		}
		ws, ok := m.Workspaces[ms.WorkspaceID]
		if !ok {
			continue
		}
		result = append(result, &domain.UserWorkspace{Workspace: copyWorkspace(ws), Role: ms.Role, JoinedAt: ms.State.JoinedAt()})
	}
	return result, nil
}

// AddWorkspace adds a workspace to the mock repository (helper for tests)
func (m *MockWorkspaceRepository) AddWorkspace(ws *domain.Workspace) {
	m.Workspaces[ws.ID] = ws
	if ws.ID >= m.NextID {
		m.NextID = ws.ID + 1
	}
}

// MockMembershipRepository is a mock implementation of domain.MembershipRepository.
// Rows keeps removed memberships as history.
type MockMembershipRepository struct {
	Rows      []*domain.Membership
	Users     *MockUserRepository
	NextID    int32
	CreateErr error
	RemoveErr error
}

// NewMockMembershipRepository creates a new MockMembershipRepository
func NewMockMembershipRepository(users *MockUserRepository) *MockMembershipRepository {
	return &MockMembershipRepository{
		Rows:   make([]*domain.Membership, 0),
		Users:  users,
		NextID: 1,
	}
}

// Create inserts an active membership, rejecting a duplicate active one
func (m *MockMembershipRepository) Create(membership *domain.Membership) (*domain.Membership, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, err := m.GetActive(membership.WorkspaceID, membership.UserID); err == nil {
		return nil, domain.ErrAlreadyMember
	}
	membership.ID = m.NextID
	m.NextID++
	if membership.State == nil {
		membership.State = domain.Active{Joined: time.Now()}
	}
	m.Rows = append(m.Rows, membership)
	return membership, nil
}

// GetActive retrieves the active membership of a user in a workspace
func (m *MockMembershipRepository) GetActive(workspaceID int32, userID uuid.UUID) (*domain.Membership, error) {
	for _, ms := range m.Rows {
		if ms.WorkspaceID == workspaceID && ms.UserID == userID && ms.IsActive() {
			return ms, nil
		}
	}
	return nil, domain.ErrMembershipNotFound
}

// ListActive returns active members ordered by role rank, then join time
func (m *MockMembershipRepository) ListActive(workspaceID int32) ([]*domain.Member, error) {
	members := make([]*domain.Member, 0)
	for _, ms := range m.Rows {
		if ms.WorkspaceID != workspaceID || !ms.IsActive() {
			continue
		}
		member := &domain.Member{Membership: *ms}
		if m.Users != nil {
			if user, err := m.Users.GetByID(ms.UserID); err == nil {
				member.Email = user.Email
				member.Name = user.Name
			}
		}
		members = append(members, member)
	}
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := members[i].Role.Rank(), members[j].Role.Rank()
		if ri != rj {
			return ri < rj
		}
		return members[i].State.JoinedAt().Before(members[j].State.JoinedAt())
	})
	return members, nil
}

// HasActiveByEmail reports whether a user with email is an active member
func (m *MockMembershipRepository) HasActiveByEmail(workspaceID int32, email string) (bool, error) {
	if m.Users == nil {
		return false, nil
	}
	for _, ms := range m.Rows {
		if ms.WorkspaceID != workspaceID || !ms.IsActive() {
			continue
		}
		if user, err := m.Users.GetByID(ms.UserID); err == nil && strings.EqualFold(user.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// Remove soft-deletes an active membership
func (m *MockMembershipRepository) Remove(workspaceID int32, userID uuid.UUID, removedBy uuid.UUID, removedAt time.Time) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	ms, err := m.GetActive(workspaceID, userID)
	if err != nil {
		return err
	}
	ms.State = domain.Removed{Joined: ms.State.JoinedAt(), RemovedAt: removedAt, RemovedBy: removedBy}
	return nil
}

// UpdateRole changes the role of an active membership
func (m *MockMembershipRepository) UpdateRole(workspaceID int32, userID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	ms, err := m.GetActive(workspaceID, userID)
	if err != nil {
		return nil, err
	}
	ms.Role = role
	return ms, nil
}

// AddMembership adds an active membership (helper for tests)
func (m *MockMembershipRepository) AddMembership(workspaceID int32, userID uuid.UUID, role domain.Role, joinedAt time.Time) *domain.Membership {
	ms := &domain.Membership{
		ID:          m.NextID,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		State:       domain.Active{Joined: joinedAt},
	}
	m.NextID++
	m.Rows = append(m.Rows, ms)
	return ms
}

// ActiveCount counts active memberships for (workspace, user) (helper for tests)
func (m *MockMembershipRepository) ActiveCount(workspaceID int32, userID uuid.UUID) int {
	count := 0
	for _, ms := range m.Rows {
		if ms.WorkspaceID == workspaceID && ms.UserID == userID && ms.IsActive() {
			count++
		}
	}
	return count
}

// MockInviteRepository is a mock implementation of domain.InviteRepository
type MockInviteRepository struct {
	Invites   map[int32]*domain.Invite
	NextID    int32
	CreateErr error
}

// NewMockInviteRepository creates a new MockInviteRepository
func NewMockInviteRepository() *MockInviteRepository {
	return &MockInviteRepository{
		Invites: make(map[int32]*domain.Invite),
		NextID:  1,
	}
}

// Create persists a pending invite
func (m *MockInviteRepository) Create(invite *domain.Invite) (*domain.Invite, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	invite.ID = m.NextID
	m.NextID++
	invite.Status = domain.InviteStatusPending
	invite.CreatedAt = time.Now()
	m.Invites[invite.ID] = invite
	return invite, nil
}

// GetByToken retrieves an invite by token
func (m *MockInviteRepository) GetByToken(token string) (*domain.Invite, error) {
	for _, invite := range m.Invites {
		if invite.Token == token {
			return invite, nil
		}
	}
	return nil, domain.ErrInviteNotFound
}

// ListPendingByEmail returns stored-pending invites for email
func (m *MockInviteRepository) ListPendingByEmail(workspaceID int32, email string) ([]*domain.Invite, error) {
	result := make([]*domain.Invite, 0)
	for _, invite := range m.sorted() {
		if invite.WorkspaceID == workspaceID && strings.EqualFold(invite.Email, email) && invite.Status == domain.InviteStatusPending {
			result = append(result, invite)
		}
	}
	return result, nil
}

// ListPending returns stored-pending invites of a workspace, newest first
func (m *MockInviteRepository) ListPending(workspaceID int32) ([]*domain.Invite, error) {
	result := make([]*domain.Invite, 0)
	invites := m.sorted()
	for i := len(invites) - 1; i >= 0; i-- {
		if invites[i].WorkspaceID == workspaceID && invites[i].Status == domain.InviteStatusPending {
			result = append(result, invites[i])
		}
	}
	return result, nil
}

// MarkExpired moves a pending invite to expired
func (m *MockInviteRepository) MarkExpired(id int32) error {
	invite, err := m.pending(id)
	if err != nil {
		return err
	}
	invite.Status = domain.InviteStatusExpired
	return nil
}

// MarkAccepted moves a pending invite to accepted
func (m *MockInviteRepository) MarkAccepted(id int32, acceptedBy uuid.UUID, acceptedAt time.Time) error {
	invite, err := m.pending(id)
	if err != nil {
		return err
	}
	invite.Status = domain.InviteStatusAccepted
	invite.AcceptedBy = &acceptedBy
	invite.AcceptedAt = &acceptedAt
	return nil
}

func (m *MockInviteRepository) pending(id int32) (*domain.Invite, error) {
	invite, ok := m.Invites[id]
	if !ok {
		return nil, domain.ErrInviteNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return nil, &domain.InviteNotPendingError{Status: invite.Status}
	}
	return invite, nil
}

func (m *MockInviteRepository) sorted() []*domain.Invite {
	invites := make([]*domain.Invite, 0, len(m.Invites))
	for _, invite := range m.Invites {
		invites = append(invites, invite)
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].ID < invites[j].ID })
	return invites
}

// AddInvite adds an invite to the mock repository (helper for tests)
func (m *MockInviteRepository) AddInvite(invite *domain.Invite) {
	if invite.ID == 0 {
		invite.ID = m.NextID
	}
	if invite.ID >= m.NextID {
		m.NextID = invite.ID + 1
	}
	m.Invites[invite.ID] = invite
}

// MockDealRepository is a mock implementation of domain.DealRepository
type MockDealRepository struct {
	Deals       map[int32]*domain.Deal
	Transitions []*domain.StageTransition
	NextID      int32
	UpdateErr   error
}

// NewMockDealRepository creates a new MockDealRepository
func NewMockDealRepository() *MockDealRepository {
	return &MockDealRepository{
		Deals:       make(map[int32]*domain.Deal),
		Transitions: make([]*domain.StageTransition, 0),
		NextID:      1,
	}
}

// CreateWithTransition creates a deal and its initial transition
func (m *MockDealRepository) CreateWithTransition(deal *domain.Deal, transition *domain.StageTransition) (*domain.Deal, error) {
	deal.ID = m.NextID
	m.NextID++
	deal.CreatedAt = time.Now()
	deal.UpdatedAt = deal.CreatedAt
	m.Deals[deal.ID] = deal

	transition.DealID = deal.ID
	m.appendTransition(transition)
	return copyDeal(deal), nil
}

// GetByID retrieves a deal by ID within a workspace
func (m *MockDealRepository) GetByID(workspaceID int32, id int32) (*domain.Deal, error) {
	deal, ok := m.Deals[id]
	if !ok || deal.WorkspaceID != workspaceID {
		return nil, domain.ErrDealNotFound
	}
	return copyDeal(deal), nil
}

// ListByStage returns a stage's deals ordered by position, then id
func (m *MockDealRepository) ListByStage(workspaceID int32, stage domain.Stage) ([]*domain.Deal, error) {
	result := make([]*domain.Deal, 0)
	for _, deal := range m.Deals {
		if deal.WorkspaceID == workspaceID && deal.Stage == stage {
			result = append(result, copyDeal(deal))
		}
	}
	sortDeals(result)
	return result, nil
}

// ListByWorkspace returns all deals of a workspace
func (m *MockDealRepository) ListByWorkspace(workspaceID int32) ([]*domain.Deal, error) {
	result := make([]*domain.Deal, 0)
	for _, deal := range m.Deals {
		if deal.WorkspaceID == workspaceID {
			result = append(result, copyDeal(deal))
		}
	}
	sortDeals(result)
	return result, nil
}

// UpdateWithTransition saves a deal and optionally appends a transition
func (m *MockDealRepository) UpdateWithTransition(deal *domain.Deal, transition *domain.StageTransition) (*domain.Deal, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	existing, ok := m.Deals[deal.ID]
	if !ok || existing.WorkspaceID != deal.WorkspaceID {
		return nil, domain.ErrDealNotFound
	}
	deal.UpdatedAt = time.Now()
	m.Deals[deal.ID] = copyDeal(deal)
	if transition != nil {
		transition.DealID = deal.ID
		m.appendTransition(transition)
	}
	return copyDeal(deal), nil
}

// Delete removes a deal and its transitions
func (m *MockDealRepository) Delete(workspaceID int32, id int32) error {
	deal, ok := m.Deals[id]
	if !ok || deal.WorkspaceID != workspaceID {
		return domain.ErrDealNotFound
	}
	delete(m.Deals, id)
	kept := m.Transitions[:0]
	for _, t := range m.Transitions {
		if t.DealID != id {
			kept = append(kept, t)
		}
	}
	m.Transitions = kept
	return nil
}

// ListTransitions returns a deal's transitions in insertion order
func (m *MockDealRepository) ListTransitions(workspaceID int32, dealID int32) ([]*domain.StageTransition, error) {
	result := make([]*domain.StageTransition, 0)
	for _, t := range m.Transitions {
		if t.WorkspaceID == workspaceID && t.DealID == dealID {
			result = append(result, t)
		}
	}
	return result, nil
}

// AddDeal adds a deal to the mock repository (helper for tests)
func (m *MockDealRepository) AddDeal(deal *domain.Deal) {
	if deal.ID == 0 {
		deal.ID = m.NextID
	}
	if deal.ID >= m.NextID {
		m.NextID = deal.ID + 1
	}
	m.Deals[deal.ID] = deal
}

func (m *MockDealRepository) appendTransition(t *domain.StageTransition) {
	t.ID = int32(len(m.Transitions) + 1)
	t.CreatedAt = time.Now()
	m.Transitions = append(m.Transitions, t)
}

// copyWorkspace detaches returned rows from the stored ones, like rows
// scanned from postgres
func copyWorkspace(ws *domain.Workspace) *domain.Workspace {
	c := *ws
	if ws.LogoPath != nil {
		path := *ws.LogoPath
		c.LogoPath = &path
	}
	return &c
}

func copyDeal(deal *domain.Deal) *domain.Deal {
	c := *deal
	return &c
}

func sortDeals(deals []*domain.Deal) {
	sort.Slice(deals, func(i, j int) bool {
		if deals[i].Position != deals[j].Position {
			return deals[i].Position < deals[j].Position
		}
		return deals[i].ID < deals[j].ID
	})
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository
type MockNotificationRepository struct {
	Notifications []*domain.Notification
	CreateErr     error
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		Notifications: make([]*domain.Notification, 0),
	}
}

// Create persists a notification
func (m *MockNotificationRepository) Create(n *domain.Notification) (*domain.Notification, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	n.ID = int32(len(m.Notifications) + 1)
	n.CreatedAt = time.Now()
	m.Notifications = append(m.Notifications, n)
	return n, nil
}

// ListByUser returns a user's notifications, newest first
func (m *MockNotificationRepository) ListByUser(userID uuid.UUID, unreadOnly bool, limit int32) ([]*domain.Notification, error) {
	result := make([]*domain.Notification, 0)
	for i := len(m.Notifications) - 1; i >= 0 && int32(len(result)) < limit; i-- {
		n := m.Notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

// MarkRead marks one notification as read
func (m *MockNotificationRepository) MarkRead(userID uuid.UUID, id int32) error {
	for _, n := range m.Notifications {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				now := time.Now()
				n.ReadAt = &now
			}
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// MarkAllRead marks all of a user's notifications as read
func (m *MockNotificationRepository) MarkAllRead(userID uuid.UUID) (int64, error) {
	var count int64
	now := time.Now()
	for _, n := range m.Notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

// ForUser returns all notifications of a user (helper for tests)
func (m *MockNotificationRepository) ForUser(userID uuid.UUID) []*domain.Notification {
	result := make([]*domain.Notification, 0)
	for _, n := range m.Notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

// MockObjectStorage is an in-memory storage.ObjectStorage
type MockObjectStorage struct {
	Objects      map[string][]byte
	ContentTypes map[string]string
	PutErr       error
}

// NewMockObjectStorage creates a new MockObjectStorage
func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{Objects: make(map[string][]byte), ContentTypes: make(map[string]string)}
}

func (m *MockObjectStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.Objects[key] = append([]byte(nil), body...)
	m.ContentTypes[key] = contentType
	return nil
}

func (m *MockObjectStorage) Remove(ctx context.Context, key string) error {
	delete(m.Objects, key)
	delete(m.ContentTypes, key)
	return nil
}

// SignedURL returns a fake URL for key
func (m *MockObjectStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

// PublishedEvent is an event recorded by MockEventPublisher. Exactly one of
// WorkspaceID or UserID is set.
type PublishedEvent struct {
	WorkspaceID int32
	UserID      uuid.UUID
	Event       websocket.Event
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu          sync.Mutex
	Events      []PublishedEvent
	Disconnects []Disconnect
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{Events: make([]PublishedEvent, 0)}
}

// Publish records a workspace event
func (m *MockEventPublisher) Publish(workspaceID int32, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{WorkspaceID: workspaceID, Event: event})
}

// PublishToUser records a user event
func (m *MockEventPublisher) PublishToUser(userID uuid.UUID, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
}

// Disconnect is a DisconnectMember call recorded by MockEventPublisher
type Disconnect struct {
	WorkspaceID int32
	UserID      uuid.UUID
}

// DisconnectMember records the disconnect
func (m *MockEventPublisher) DisconnectMember(workspaceID int32, userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disconnects = append(m.Disconnects, Disconnect{WorkspaceID: workspaceID, UserID: userID})
}
