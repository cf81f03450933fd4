package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/middleware"
)

// AgentAPI runs AI actions.
type AgentAPI interface {
	Run(ctx context.Context, rawAction string, req dto.AgentRequest, requestID string) (*dto.AgentResponse, error)
}

// AgentHandler exposes the AI agent actions.
type AgentHandler struct {
	agent AgentAPI
}

// NewAgentHandler constructs an AgentHandler.
func NewAgentHandler(agent AgentAPI) *AgentHandler {
	return &AgentHandler{agent: agent}
}

// Run handles POST /agent/:action.
func (h *AgentHandler) Run(c echo.Context) error {
	var req dto.AgentRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	resp, err := h.agent.Run(c.Request().Context(), c.Param("action"), req, middleware.RequestIDFromContext(c))
	if err != nil {
		return respondError(c, err, "agent request failed")
	}
	return Success(c, http.StatusOK, "agent action completed", resp)
}
