package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service"
)

// SponsorsAPI is the sponsor workflow used by SponsorsHandler.
type SponsorsAPI interface {
	List(ctx context.Context, query dto.SponsorListQuery, actor entity.Actor) ([]entity.SponsorProfile, error)
	Get(ctx context.Context, id uuid.UUID, actor entity.Actor) (*service.SponsorDetail, error)
	Create(ctx context.Context, req dto.SponsorRequest, actor entity.Actor) (*entity.SponsorProfile, error)
	Update(ctx context.Context, id uuid.UUID, req dto.SponsorPatchRequest, actor entity.Actor) (*entity.SponsorProfile, error)
	ListContacts(ctx context.Context, sponsorID uuid.UUID, actor entity.Actor) ([]entity.SponsorContact, error)
	AddContact(ctx context.Context, sponsorID uuid.UUID, req dto.ContactRequest, actor entity.Actor) (*entity.SponsorContact, error)
	SetPrimaryContact(ctx context.Context, sponsorID, contactID uuid.UUID, actor entity.Actor) error
	DeleteContact(ctx context.Context, sponsorID, contactID uuid.UUID, actor entity.Actor) error
	ListInteractions(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error)
	LogInteraction(ctx context.Context, sponsorID uuid.UUID, req dto.InteractionRequest, actor entity.Actor) (*entity.SponsorInteraction, error)
	ScoreLead(ctx context.Context, sponsorID uuid.UUID, requestID string) (*service.LeadScoreOutcome, error)
}

// SponsorsHandler exposes sponsor profiles, contacts and interactions.
type SponsorsHandler struct {
	sponsors SponsorsAPI
}

// NewSponsorsHandler constructs a SponsorsHandler.
func NewSponsorsHandler(sponsors SponsorsAPI) *SponsorsHandler {
	return &SponsorsHandler{sponsors: sponsors}
}

// List handles GET /sponsors.
func (h *SponsorsHandler) List(c echo.Context) error {
	var query dto.SponsorListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &query); err != nil {
		return Error(c, http.StatusBadRequest, "invalid query parameters")
	}
	records, err := h.sponsors.List(c.Request().Context(), query, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to list sponsors")
	}
	return Success(c, http.StatusOK, "sponsors retrieved", records)
}

// Get handles GET /sponsors/:id.
func (h *SponsorsHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	detail, err := h.sponsors.Get(c.Request().Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to load sponsor")
	}
	return Success(c, http.StatusOK, "sponsor retrieved", detail)
}

// Create handles POST /sponsors.
func (h *SponsorsHandler) Create(c echo.Context) error {
	var req dto.SponsorRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	profile, err := h.sponsors.Create(c.Request().Context(), req, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to create sponsor")
	}
	return Success(c, http.StatusCreated, "sponsor created", profile)
}

// Update handles PATCH /sponsors/:id.
func (h *SponsorsHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.SponsorPatchRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	profile, err := h.sponsors.Update(c.Request().Context(), id, req, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to update sponsor")
	}
	return Success(c, http.StatusOK, "sponsor updated", profile)
}

// ListContacts handles GET /sponsors/:id/contacts.
func (h *SponsorsHandler) ListContacts(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	contacts, err := h.sponsors.ListContacts(c.Request().Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to list contacts")
	}
	return Success(c, http.StatusOK, "contacts retrieved", contacts)
}

// AddContact handles POST /sponsors/:id/contacts.
func (h *SponsorsHandler) AddContact(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.ContactRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	contact, err := h.sponsors.AddContact(c.Request().Context(), id, req, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to add contact")
	}
	return Success(c, http.StatusCreated, "contact added", contact)
}

// SetPrimaryContact handles POST /sponsors/:id/contacts/:contactId/primary.
func (h *SponsorsHandler) SetPrimaryContact(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	contactID, err := parseIDParam(c, "contactId")
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.sponsors.SetPrimaryContact(c.Request().Context(), id, contactID, middleware.ActorFromContext(c)); err != nil {
		return respondError(c, err, "failed to update primary contact")
	}
	return Success(c, http.StatusOK, "primary contact updated", nil)
}

// DeleteContact handles DELETE /sponsors/:id/contacts/:contactId.
func (h *SponsorsHandler) DeleteContact(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	contactID, err := parseIDParam(c, "contactId")
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.sponsors.DeleteContact(c.Request().Context(), id, contactID, middleware.ActorFromContext(c)); err != nil {
		return respondError(c, err, "failed to delete contact")
	}
	return Success(c, http.StatusOK, "contact deleted", nil)
}

// ListInteractions handles GET /sponsors/:id/interactions.
func (h *SponsorsHandler) ListInteractions(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.sponsors.ListInteractions(c.Request().Context(), id, limit)
	if err != nil {
		return respondError(c, err, "failed to list interactions")
	}
	return Success(c, http.StatusOK, "interactions retrieved", records)
}

// LogInteraction handles POST /sponsors/:id/interactions.
func (h *SponsorsHandler) LogInteraction(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.InteractionRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	interaction, err := h.sponsors.LogInteraction(c.Request().Context(), id, req, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to log interaction")
	}
	return Success(c, http.StatusCreated, "interaction logged", interaction)
}

// Score handles POST /sponsors/:id/score.
func (h *SponsorsHandler) Score(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	outcome, err := h.sponsors.ScoreLead(c.Request().Context(), id, middleware.RequestIDFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to score sponsor")
	}
	return Success(c, http.StatusOK, "sponsor scored", outcome)
}
