package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the redis commands the cache uses
type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	gets    int
	failGet bool
	failSet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) store(key string, value interface{}, expiration time.Duration) {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	f.store(key, value, expiration)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.failSet {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.store(key, value, expiration)
	return redis.NewBoolResult(true, nil)
}

// interleavedRepo runs between once, after the database read and before the
// cache fill
type interleavedRepo struct {
	domain.MembershipRepository
	between func()
}

func (r *interleavedRepo) GetActive(workspaceID int32, userID uuid.UUID) (*domain.Membership, error) {
	m, err := r.MembershipRepository.GetActive(workspaceID, userID)
	if r.between != nil {
		between := r.between
		r.between = nil
		between()
	}
	return m, err
}

func setup(t *testing.T) (*MembershipRepository, *testutil.MockMembershipRepository, *fakeRedis) {
	t.Helper()
	users := testutil.NewMockUserRepository()
	memberships := testutil.NewMockMembershipRepository(users)
	client := newFakeRedis()
	return NewMembershipRepository(memberships, client, time.Minute), memberships, client
}

func TestGetActive_CachesOnMiss(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	memberships.AddMembership(1, userID, domain.RoleAdmin, joined)

	got, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	key := MembershipKey(1, userID)
	assert.Contains(t, client.data, key)
	assert.Equal(t, time.Minute, client.ttls[key])

	// Served from cache even after the underlying row changes
	memberships.Rows[0].Role = domain.RoleMember
	cached, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, cached.Role)
	assert.True(t, cached.IsActive())
	assert.True(t, joined.Equal(cached.State.JoinedAt()))
}

func TestGetActive_NotFoundIsNotCached(t *testing.T) {
	repo, _, client := setup(t)
	userID := uuid.New()

	_, err := repo.GetActive(1, userID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
	assert.Empty(t, client.data)
}

func TestGetActive_RedisFailureFallsThrough(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	memberships.AddMembership(1, userID, domain.RoleMember, time.Now())
	client.failGet = true

	got, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, got.Role)
}

func TestWritesInvalidate(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	owner := uuid.New()
	memberships.AddMembership(1, userID, domain.RoleMember, time.Now())
	key := MembershipKey(1, userID)

	_, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	require.Contains(t, client.data, key)

	_, err = repo.UpdateRole(1, userID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, invalidated, client.data[key])
	assert.Equal(t, InvalidatedTTL, client.ttls[key])

	got, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	require.NoError(t, repo.Remove(1, userID, owner, time.Now()))
	assert.Equal(t, invalidated, client.data[key])

	_, err = repo.GetActive(1, userID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestCreate_Invalidates(t *testing.T) {
	repo, _, client := setup(t)
	userID := uuid.New()
	key := MembershipKey(2, userID)
	client.data[key] = "stale"

	_, err := repo.Create(&domain.Membership{WorkspaceID: 2, UserID: userID, Role: domain.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, invalidated, client.data[key])
}

func TestGetActive_MalformedEntryIsReloaded(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	memberships.AddMembership(1, userID, domain.RoleOwner, time.Now())
	client.data[MembershipKey(1, userID)] = "{not json"

	got, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, got.Role)
}

func TestGetActive_RemovalDuringFillIsNotCached(t *testing.T) {
	users := testutil.NewMockUserRepository()
	memberships := testutil.NewMockMembershipRepository(users)
	client := newFakeRedis()
	next := &interleavedRepo{MembershipRepository: memberships}
	repo := NewMembershipRepository(next, client, time.Minute)

	userID := uuid.New()
	memberships.AddMembership(1, userID, domain.RoleMember, time.Now())
	next.between = func() {
		require.NoError(t, repo.Remove(1, userID, uuid.New(), time.Now()))
	}

	_, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, invalidated, client.data[MembershipKey(1, userID)])

	_, err = repo.GetActive(1, userID)
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}

func TestGetActive_InvalidatedKeyIsAMiss(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	key := MembershipKey(1, userID)
	memberships.AddMembership(1, userID, domain.RoleAdmin, time.Now())
	client.data[key] = invalidated

	got, err := repo.GetActive(1, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, invalidated, client.data[key])
}

func TestWrites_FailedInvalidationIsReported(t *testing.T) {
	repo, memberships, client := setup(t)
	userID := uuid.New()
	memberships.AddMembership(1, userID, domain.RoleMember, time.Now())
	client.failSet = true

	_, err := repo.UpdateRole(1, userID, domain.RoleAdmin)
	assert.ErrorContains(t, err, "invalidate membership cache")

	err = repo.Remove(1, userID, uuid.New(), time.Now())
	assert.ErrorContains(t, err, "invalidate membership cache")
}

func TestWrites_UnderlyingErrorWins(t *testing.T) {
	repo, _, client := setup(t)
	userID := uuid.New()
	client.failSet = true

	err := repo.Remove(1, userID, uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrMembershipNotFound)
}
