package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Logging writes one key=value line per request. Authenticated requests carry
// the caller's user id and role so portal traffic can be told from staff
// traffic; the pipeline stream line is written when the stream ends.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			actor := ActorFromContext(c)
			user, role := "-", "-"
			if actor.Role != "" {
				user, role = actor.UserID.String(), actor.Role
			}
			log.Printf("request_id=%s method=%s path=%s route=%s status=%d bytes=%d user_id=%s role=%s latency=%s",
				RequestIDFromContext(c), req.Method, req.URL.Path, c.Path(), c.Response().Status, c.Response().Size, user, role, latency)

			return err
		}
	}
}
