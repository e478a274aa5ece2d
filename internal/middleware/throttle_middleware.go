package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/internal/errors"
	"github.com/hanbitlab/storefront-backend/pkg/redis"
)

// Throttle scopes. Reads and writes carry separate rates.
const (
	ScopeCart      = "cart"
	ScopeCartWrite = "cart_write"
)

// ThrottleMiddleware enforces per-caller fixed-window rate limits
// backed by Redis. Rates come from injected configuration; when Redis
// is not configured the middleware passes everything through.
type ThrottleMiddleware struct {
	cfg config.ThrottleConfig
}

func NewThrottleMiddleware(cfg config.ThrottleConfig) *ThrottleMiddleware {
	return &ThrottleMiddleware{cfg: cfg}
}

func (m *ThrottleMiddleware) rateFor(scope string) int {
	switch scope {
	case ScopeCartWrite:
		return m.cfg.CartWritePerMin
	default:
		return m.cfg.CartReadPerMin
	}
}

// callerKey identifies the throttle bucket: authenticated user ID when
// present, guest session otherwise, client IP as the last resort.
func callerKey(c *gin.Context) string {
	if userID, ok := GetUserID(c); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	if sessionID := c.GetHeader("X-Session-Id"); sessionID != "" {
		return "session:" + sessionID
	}
	return "ip:" + c.ClientIP()
}

// Scope limits requests for the named scope.
func (m *ThrottleMiddleware) Scope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := redis.GetClient()
		if client == nil {
			c.Next()
			return
		}

		limit := m.rateFor(scope)
		if limit <= 0 {
			c.Next()
			return
		}

		count, err := redis.IncrWindow(c.Request.Context(), scope, callerKey(c), time.Minute)
		if err != nil {
			// Throttling must not take the API down with it.
			c.Next()
			return
		}

		if count > int64(limit) {
			log := GetLoggerFromContext(c)
			log.Warn("Request throttled", map[string]interface{}{
				"scope": scope,
				"count": count,
				"limit": limit,
			})
			errors.TooManyRequests(c, "")
			c.Abort()
			return
		}

		c.Next()
	}
}
