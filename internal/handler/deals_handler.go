package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service/provisioning"
)

// DealsAPI is the deal workflow used by DealsHandler.
type DealsAPI interface {
	List(ctx context.Context, query dto.DealListQuery, actor entity.Actor) ([]entity.Deal, error)
	Get(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Deal, error)
	Create(ctx context.Context, req dto.DealRequest) (*entity.Deal, error)
	Update(ctx context.Context, id uuid.UUID, req dto.DealPatchRequest) (*entity.Deal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, rawStatus string) (entity.Deal, error)
	Provision(ctx context.Context, id uuid.UUID) (provisioning.Outcome, error)
}

// DealsHandler exposes deals and their status transitions.
type DealsHandler struct {
	deals DealsAPI
}

// NewDealsHandler constructs a DealsHandler.
func NewDealsHandler(deals DealsAPI) *DealsHandler {
	return &DealsHandler{deals: deals}
}

// List handles GET /deals and GET /portal/deals.
func (h *DealsHandler) List(c echo.Context) error {
	var query dto.DealListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return Error(c, http.StatusBadRequest, "invalid query parameters")
	}
	records, err := h.deals.List(c.Request().Context(), query, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to list deals")
	}
	return Success(c, http.StatusOK, "deals retrieved", records)
}

// Get handles GET /deals/:id.
func (h *DealsHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	deal, err := h.deals.Get(c.Request().Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to load deal")
	}
	return Success(c, http.StatusOK, "deal retrieved", deal)
}

// Create handles POST /deals.
func (h *DealsHandler) Create(c echo.Context) error {
	var req dto.DealRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	deal, err := h.deals.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "failed to create deal")
	}
	return Success(c, http.StatusCreated, "deal created", deal)
}

// Update handles PATCH /deals/:id.
func (h *DealsHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.DealPatchRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	deal, err := h.deals.Update(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err, "failed to update deal")
	}
	return Success(c, http.StatusOK, "deal updated", deal)
}

// Delete handles DELETE /deals/:id.
func (h *DealsHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.deals.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err, "failed to delete deal")
	}
	return Success(c, http.StatusOK, "deal deleted", nil)
}

// UpdateStatus handles PATCH /deals/:id/status.
func (h *DealsHandler) UpdateStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.StatusRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	deal, err := h.deals.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return respondError(c, err, "failed to update deal status")
	}
	return Success(c, http.StatusOK, "deal moved to "+string(deal.Status), deal)
}

// Provision handles POST /deals/:id/deliverables/provision.
func (h *DealsHandler) Provision(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	outcome, err := h.deals.Provision(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "failed to provision deliverables")
	}
	message := "deliverables provisioned"
	if outcome.Skipped {
		message = "deliverables already provisioned"
	}
	return Success(c, http.StatusOK, message, outcome)
}
