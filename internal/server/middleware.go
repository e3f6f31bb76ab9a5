package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the caller from the X-User-Id header. Session
// handling lives in the edge gateway; by the time a request reaches this
// service the gateway has already authenticated it and stamped the header.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")
		if s.cfg.AdminToken == "" || token != s.cfg.AdminToken {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.webhookLimit.Allow(c.ClientIP()) {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return ""
	}
	userID, _ := value.(string)
	return userID
}

// rateLimiter is a fixed-window per-key counter. Good enough to shield the
// public webhook endpoint from floods without pulling in shared state.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	started time.Time
	counts  map[string]int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		started: time.Now(),
		counts:  make(map[string]int),
	}
}

func (l *rateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.started) > l.window {
		l.started = now
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= l.limit
}
