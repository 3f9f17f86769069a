package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
	"golang.org/x/time/rate"
)

const (
	claimKey     = "sessionClaim"
	requestIDKey = "requestID"
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[len("Bearer "):])
	return token, token != ""
}

func claimFromContext(c *gin.Context) (core.SessionClaim, bool) {
	v, exists := c.Get(claimKey)
	if !exists {
		return core.SessionClaim{}, false
	}
	claim, ok := v.(core.SessionClaim)
	return claim, ok
}

// AuthMiddleware creates middleware that validates session credentials
func AuthMiddleware(verifier ports.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
			return
		}

		claim, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(claimKey, *claim)

		c.Next()
	}
}

// RequestLogger logs every request with a request id
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		logger.InfoContext(c.Request.Context(), "request",
			slog.Group("req",
				slog.String("id", requestID),
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.String("remote_addr", c.ClientIP()),
				slog.String("user_agent", c.Request.UserAgent()),
			),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// rateLimiter keeps one token bucket per client IP
type rateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 10 * time.Minute

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		limit:     limit,
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastSweep) > time.Minute {
		for k, cl := range r.clients {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}

	cl, ok := r.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = cl
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// RateLimit rejects clients exceeding limit requests per second
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := newRateLimiter(limit, burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
