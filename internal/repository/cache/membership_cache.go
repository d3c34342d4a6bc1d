package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMembershipTTL is used when no TTL is configured
	DefaultMembershipTTL = 5 * time.Minute

	// InvalidatedTTL bounds how long a written key refuses fills. A fill
	// that read the database before the write lands inside this window.
	InvalidatedTTL = time.Minute

	// invalidated marks a key whose membership changed; it reads as a miss
	invalidated = "invalidated"
)

// redisClient is the subset of *redis.Client used by the cache
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// cachedMembership is the JSON form of an active membership
type cachedMembership struct {
	ID          int32     `json:"id"`
	WorkspaceID int32     `json:"workspace_id"`
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// MembershipRepository is a read-through redis cache in front of a
// domain.MembershipRepository. Only active memberships looked up by
// (workspace, user) are cached. Every write overwrites the affected key with
// an invalidation marker, and fills only land on empty keys, so a fill racing
// a removal cannot resurrect the old row. Read failures fall through to the
// underlying repository; a failed invalidation is returned to the caller.
type MembershipRepository struct {
	next   domain.MembershipRepository
	client redisClient
	ttl    time.Duration
}

// NewMembershipRepository wraps next with a redis cache
func NewMembershipRepository(next domain.MembershipRepository, client redisClient, ttl time.Duration) *MembershipRepository {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	return &MembershipRepository{next: next, client: client, ttl: ttl}
}

// MembershipKey generates the cache key for a (workspace, user) membership
func MembershipKey(workspaceID int32, userID uuid.UUID) string {
	return fmt.Sprintf("membership:ws:%d:user:%s", workspaceID, userID)
}

// GetActive returns the cached membership or loads and caches it
func (r *MembershipRepository) GetActive(workspaceID int32, userID uuid.UUID) (*domain.Membership, error) {
	ctx := context.Background()
	key := MembershipKey(workspaceID, userID)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(raw) == invalidated:
		// miss; the fill below will not overwrite the marker
	case err == nil:
		var cached cachedMembership
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached.toDomain(), nil
		}
		log.Warn().Str("key", key).Msg("Discarding malformed membership cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("Membership cache read failed")
	}

	membership, err := r.next.GetActive(workspaceID, userID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(fromDomain(membership))
	if err == nil {
		if setErr := r.client.SetNX(ctx, key, data, r.ttl).Err(); setErr != nil {
			log.Warn().Err(setErr).Str("key", key).Msg("Membership cache write failed")
		}
	}
	return membership, nil
}

// Create delegates and invalidates the new member's key
func (r *MembershipRepository) Create(membership *domain.Membership) (*domain.Membership, error) {
	created, err := r.next.Create(membership)
	if invErr := r.invalidate(membership.WorkspaceID, membership.UserID); err == nil {
		err = invErr
	}
	return created, err
}

// ListActive is not cached
func (r *MembershipRepository) ListActive(workspaceID int32) ([]*domain.Member, error) {
	return r.next.ListActive(workspaceID)
}

// HasActiveByEmail is not cached
func (r *MembershipRepository) HasActiveByEmail(workspaceID int32, email string) (bool, error) {
	return r.next.HasActiveByEmail(workspaceID, email)
}

// Remove delegates and invalidates the removed member's key
func (r *MembershipRepository) Remove(workspaceID int32, userID uuid.UUID, removedBy uuid.UUID, removedAt time.Time) error {
	err := r.next.Remove(workspaceID, userID, removedBy, removedAt)
	if invErr := r.invalidate(workspaceID, userID); err == nil {
		err = invErr
	}
	return err
}

// UpdateRole delegates and invalidates the member's key
func (r *MembershipRepository) UpdateRole(workspaceID int32, userID uuid.UUID, role domain.Role) (*domain.Membership, error) {
	updated, err := r.next.UpdateRole(workspaceID, userID, role)
	if invErr := r.invalidate(workspaceID, userID); err == nil {
		err = invErr
	}
	return updated, err
}

// invalidate runs even when the database write failed, since the write may
// have committed before the error surfaced
func (r *MembershipRepository) invalidate(workspaceID int32, userID uuid.UUID) error {
	key := MembershipKey(workspaceID, userID)
	if err := r.client.Set(context.Background(), key, invalidated, InvalidatedTTL).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Membership cache invalidation failed")
		return fmt.Errorf("invalidate membership cache: %w", err)
	}
	return nil
}

func fromDomain(m *domain.Membership) cachedMembership {
	c := cachedMembership{
		ID:          m.ID,
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Role:        string(m.Role),
	}
	if m.State != nil {
		c.JoinedAt = m.State.JoinedAt()
	}
	return c
}

func (c cachedMembership) toDomain() *domain.Membership {
	return &domain.Membership{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		UserID:      c.UserID,
		Role:        domain.Role(c.Role),
		State:       domain.Active{Joined: c.JoinedAt},
	}
}
