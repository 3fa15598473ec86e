package httptransport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"chat-server-go/internal/domain/auth/model"
	platformerrors "chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/logging"
	"chat-server-go/internal/platform/observability"
)

// RequestIDHeader carries the correlation ID in and out.
const RequestIDHeader = "X-Request-ID"

const identityKey = "auth.identity"

// RequestAuthenticator resolves the identity behind a bearer token.
type RequestAuthenticator interface {
	AuthenticateRequest(ctx context.Context, token string) (model.Identity, error)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the caller's identity on the context.
func BearerAuth(authn RequestAuthenticator, logger *logging.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.AuthRejected()
			RespondAuthFailure(c)
			return
		}

		identity, err := authn.AuthenticateRequest(c.Request.Context(), token)
		if err != nil {
			if platformerrors.IsKind(err, platformerrors.KindAuth) {
				metrics.AuthRejected()
				RespondAuthFailure(c)
				return
			}
			RespondDomainError(c, logger, err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IdentityFrom returns the identity stored by BearerAuth.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}

// LoginLimiter is a per-client token bucket guarding password verification.
type LoginLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLoginLimiter returns nil when perSecond is not positive, which disables limiting.
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (l *LoginLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *LoginLimiter) Middleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			metrics.Login(observability.LoginRateLimited)
			c.Header("Retry-After", "1")
			RespondError(c, http.StatusTooManyRequests, "too many login attempts", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
