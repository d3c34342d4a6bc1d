package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = 20
	DefaultBurstSize = 5

	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

// limitKey scopes a budget to one membership, so an inviter active in two
// workspaces has two independent budgets
type limitKey struct {
	workspaceID int32
	userID      uuid.UUID
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per (workspace, user)
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[limitKey]*bucket

	requestsPerMinute int
	burstSize         int
	every             rate.Limit

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewRateLimiterWithConfig allows requestsPerMinute sustained with bursts of
// burstSize. Non-positive values fall back to the defaults.
func NewRateLimiterWithConfig(requestsPerMinute int, burstSize int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRateLimit
	}
	if burstSize <= 0 {
		burstSize = DefaultBurstSize
	}
	rl := &RateLimiter{
		buckets:           make(map[limitKey]*bucket),
		requestsPerMinute: requestsPerMinute,
		burstSize:         burstSize,
		every:             rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		now:               time.Now,
		stop:              make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop ends the idle bucket sweeper. Safe to call more than once.
func (r *RateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// take consumes one token for actor. When the bucket is empty it reports how
// long until the next token.
func (r *RateLimiter) take(actor *domain.ActorContext) (remaining int, wait time.Duration) {
	key := limitKey{workspaceID: actor.WorkspaceID, userID: actor.UserID}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.every, r.burstSize)}
		r.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return int(math.Floor(b.limiter.TokensAt(now))), 0
	}

	missing := 1 - b.limiter.TokensAt(now)
	return 0, time.Duration(missing / float64(r.every) * float64(time.Second))
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stop:
			return
		}
	}
}

func (r *RateLimiter) evictIdle() {
	cutoff := r.now().Add(-idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// RateLimitMiddleware limits requests per resolved actor. Requests without an
// actor pass through. Must run after RequireWorkspace.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := GetActor(c)
			if actor == nil || actor.UserID == uuid.Nil {
				return next(c)
			}

			remaining, wait := rl.take(actor)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMinute))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if wait == 0 {
				return next(c)
			}

			retryAfter := int(math.Ceil(wait.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			log.Warn().
				Str("user_id", actor.UserID.String()).
				Int32("workspace_id", actor.WorkspaceID).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")

			return problem(c, http.StatusTooManyRequests, errorTypeRateLimit, "Rate Limit Exceeded",
				"Too many requests. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
		}
	}
}
