package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReadinessCheck reports whether a dependency is ready to serve.
type ReadinessCheck interface {
	Loaded() bool
}

// HealthHandler exposes liveness and pipeline readiness.
type HealthHandler struct {
	pipeline ReadinessCheck
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(pipeline ReadinessCheck) *HealthHandler {
	return &HealthHandler{pipeline: pipeline}
}

// Check handles GET /healthz. The service reports degraded until the pipeline
// finished its first load.
func (h *HealthHandler) Check(c echo.Context) error {
	if h.pipeline != nil && !h.pipeline.Loaded() {
		return c.JSON(http.StatusServiceUnavailable, APIResponse{
			Status:  "error",
			Message: "pipeline loading",
			Data:    map[string]any{"status": "degraded"},
		})
	}
	return Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
}
