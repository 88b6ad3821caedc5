package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
)

const (
	sessionHeader = "X-Session-Id"
	sessionParam  = "sessionId"
	identityKey   = "identity"
)

// sessionToken looks in the header, then the query string, then the cookie.
func sessionToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(sessionHeader)); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.Query(sessionParam)); token != "" {
		return token
	}
	if cookie, err := c.Cookie(sessionParam); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// sessionMiddleware attaches the caller's identity when a valid session is presented.
// Requests without one proceed anonymously.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := h.sessions.Resolve(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(identityKey, identity)
		case domain.IsAuthentication(err):
		default:
			h.logger.WithField("path", c.Request.URL.Path).Errorf("resolve session: %v", err)
		}
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, protocol.Error{Error: "Authentication required"})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if identity, ok := currentIdentity(c); ok {
			entry = entry.WithField("user_id", identity.UserID)
		}
		for _, e := range c.Errors {
			entry.Errorf("handler error: %v", e.Err)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Debug("request completed")
		}
	}
}

// rateLimitPerIP keeps one token bucket per client IP in an expiring LRU.
func rateLimitPerIP(cfg RateLimit) gin.HandlerFunc {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	visitors := lru.NewLRU[string, *rate.Limiter](cfg.CacheSize, nil, cfg.TTL)

	return func(c *gin.Context) {
		host := c.ClientIP()
		lim, found := visitors.Get(host)
		if !found {
			lim = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
			visitors.Add(host, lim)
		}

		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, protocol.Error{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
