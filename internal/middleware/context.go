package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// Context keys used to store authentication metadata.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
	ContextKeyActor     = "actor"
)

// ActorFromContext returns the authenticated caller. Unauthenticated requests
// get the zero Actor.
func ActorFromContext(c echo.Context) entity.Actor {
	if actor, ok := c.Get(ContextKeyActor).(entity.Actor); ok {
		return actor
	}
	return entity.Actor{}
}
