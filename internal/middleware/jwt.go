package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/fashionos/sponsor-crm/internal/auth"
)

// JWT validates bearer tokens and stores the caller in the request context.
// The pipeline event stream cannot set headers, so a token query parameter is
// accepted when allowQuery is set.
func JWT(manager *authpkg.JWTManager, allowQuery ...bool) echo.MiddlewareFunc {
	queryFallback := len(allowQuery) > 0 && allowQuery[0]
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c, queryFallback)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
			}

			claims, err := manager.ParseToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			actor, err := claims.Actor()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(ContextKeyUserID, claims.Subject)
			c.Set(ContextKeyUserEmail, claims.Email)
			c.Set(ContextKeyUserRole, claims.Role)
			c.Set(ContextKeyActor, actor)

			return next(c)
		}
	}
}

// bearerToken returns the presented token and whether any credential was sent at all.
func bearerToken(c echo.Context, queryFallback bool) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if queryFallback {
			if token := c.QueryParam("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}
