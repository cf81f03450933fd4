package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/fashionos/sponsor-crm/internal/config"
)

const (
	agentPathPrefix = "/agent"
	limiterIdleTTL  = 30 * time.Minute
)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AgentRateLimiter applies a token bucket per caller to the AI endpoints. Callers
// are keyed by user id, falling back to the client IP.
func AgentRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}

	var (
		mu      sync.Mutex
		callers = make(map[string]*callerLimiter)
	)
	allow := func(key string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		for k, entry := range callers {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(callers, k)
			}
		}
		entry, ok := callers[key]
		if !ok {
			entry = &callerLimiter{limiter: rate.NewLimiter(rate.Every(perRequest), cfg.Requests)}
			callers[key] = entry
		}
		entry.lastSeen = now
		return entry.limiter.AllowN(now, 1)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Path(), agentPathPrefix) {
				return next(c)
			}

			key := c.RealIP()
			if actor := ActorFromContext(c); actor.UserID != uuid.Nil {
				key = actor.UserID.String()
			}
			if !allow(key, time.Now()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(perRequest.Seconds()))))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "agent rate limit exceeded"})
			}
			return next(c)
		}
	}
}
