package router

import (
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/auth"
	"github.com/fashionos/sponsor-crm/internal/config"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/handler"
	middlewarepkg "github.com/fashionos/sponsor-crm/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Users        *handler.UserAdminHandler
	Sponsors     *handler.SponsorsHandler
	Events       *handler.EventsHandler
	Deals        *handler.DealsHandler
	Deliverables *handler.DeliverablesHandler
	Packages     *handler.PackagesHandler
	Pipeline     *handler.PipelineHandler
	Agent        *handler.AgentHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", handlers.Health.Check)

	e.POST("/auth/register", handlers.Auth.Register)
	e.POST("/auth/login", handlers.Auth.Login)

	staffOnly := middlewarepkg.RequireRole(entity.RoleAdmin, entity.RoleOperator)

	// EventSource cannot set headers, so the stream also accepts ?token=.
	e.GET("/pipeline/stream", handlers.Pipeline.Stream, middlewarepkg.JWT(jwtManager, true), staffOnly)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	admin := secured.Group("/admin", middlewarepkg.RequireRole(entity.RoleAdmin))
	admin.GET("/users", handlers.Users.List)
	admin.POST("/users", handlers.Users.Create)
	admin.PATCH("/users/:id", handlers.Users.Update)
	admin.DELETE("/users/:id", handlers.Users.Delete)

	staff := secured.Group("", staffOnly)

	staff.GET("/sponsors", handlers.Sponsors.List)
	staff.POST("/sponsors", handlers.Sponsors.Create)
	staff.GET("/sponsors/:id", handlers.Sponsors.Get)
	staff.PATCH("/sponsors/:id", handlers.Sponsors.Update)
	staff.GET("/sponsors/:id/contacts", handlers.Sponsors.ListContacts)
	staff.POST("/sponsors/:id/contacts", handlers.Sponsors.AddContact)
	staff.POST("/sponsors/:id/contacts/:contactId/primary", handlers.Sponsors.SetPrimaryContact)
	staff.DELETE("/sponsors/:id/contacts/:contactId", handlers.Sponsors.DeleteContact)
	staff.GET("/sponsors/:id/interactions", handlers.Sponsors.ListInteractions)
	staff.POST("/sponsors/:id/interactions", handlers.Sponsors.LogInteraction)
	staff.POST("/sponsors/:id/score", handlers.Sponsors.Score)

	staff.GET("/events", handlers.Events.List)

	staff.GET("/deals", handlers.Deals.List)
	staff.POST("/deals", handlers.Deals.Create)
	staff.GET("/deals/:id", handlers.Deals.Get)
	staff.PATCH("/deals/:id", handlers.Deals.Update)
	staff.DELETE("/deals/:id", handlers.Deals.Delete)
	staff.PATCH("/deals/:id/status", handlers.Deals.UpdateStatus)
	staff.GET("/deals/:id/deliverables", handlers.Deliverables.ListByDeal)
	staff.POST("/deals/:id/deliverables/provision", handlers.Deals.Provision)

	staff.PATCH("/deliverables/:id/status", handlers.Deliverables.UpdateStatus)
	staff.POST("/deliverables/:id/upload", handlers.Deliverables.Upload)

	staff.GET("/packages", handlers.Packages.List)
	staff.POST("/packages", handlers.Packages.Create)
	staff.POST("/packages/seed", handlers.Packages.Seed)
	staff.GET("/packages/:id", handlers.Packages.Get)
	staff.PUT("/packages/:id", handlers.Packages.Update)
	staff.DELETE("/packages/:id", handlers.Packages.Delete)

	staff.GET("/pipeline/board", handlers.Pipeline.Board)
	staff.POST("/pipeline/board/drag", handlers.Pipeline.DragStart)
	staff.DELETE("/pipeline/board/drag", handlers.Pipeline.Cancel)
	staff.POST("/pipeline/board/hover", handlers.Pipeline.DragOver)
	staff.POST("/pipeline/board/drop", handlers.Pipeline.Drop)

	staff.POST("/agent/:action", handlers.Agent.Run, middlewarepkg.AgentRateLimiter(cfg.RateLimitAgent))

	portal := secured.Group("/portal", middlewarepkg.RequireRole(entity.RoleSponsor))
	portal.GET("/sponsors", handlers.Sponsors.List)
	portal.GET("/sponsors/:id", handlers.Sponsors.Get)
	portal.GET("/deals", handlers.Deals.List)
	portal.GET("/deals/:id", handlers.Deals.Get)
	portal.GET("/deals/:id/deliverables", handlers.Deliverables.ListByDeal)
	portal.PATCH("/deliverables/:id/status", handlers.Deliverables.UpdateStatus)
	portal.POST("/deliverables/:id/upload", handlers.Deliverables.Upload)
}
