package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// EventLister reads the events deals can be attached to.
type EventLister interface {
	List(ctx context.Context) ([]entity.Event, error)
}

// EventsHandler exposes events for deal creation.
type EventsHandler struct {
	events EventLister
}

// NewEventsHandler constructs an EventsHandler.
func NewEventsHandler(events EventLister) *EventsHandler {
	return &EventsHandler{events: events}
}

// List handles GET /events.
func (h *EventsHandler) List(c echo.Context) error {
	records, err := h.events.List(c.Request().Context())
	if err != nil {
		return respondError(c, err, "failed to list events")
	}
	return Success(c, http.StatusOK, "events retrieved", records)
}
