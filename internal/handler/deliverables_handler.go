package handler

import (
	"context"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service"
)

const maxUploadBytes = 25 << 20

// DeliverablesAPI is the deliverable workflow used by DeliverablesHandler.
type DeliverablesAPI interface {
	ListByDeal(ctx context.Context, dealID uuid.UUID, actor entity.Actor) ([]entity.Deliverable, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req dto.StatusRequest, actor entity.Actor) (*service.DeliverableUpdate, error)
	Upload(ctx context.Context, id uuid.UUID, filename, contentType string, body io.Reader, actor entity.Actor) (*service.DeliverableUpdate, error)
}

// DeliverablesHandler exposes sponsor deliverables and asset uploads.
type DeliverablesHandler struct {
	deliverables DeliverablesAPI
}

// NewDeliverablesHandler constructs a DeliverablesHandler.
func NewDeliverablesHandler(deliverables DeliverablesAPI) *DeliverablesHandler {
	return &DeliverablesHandler{deliverables: deliverables}
}

// ListByDeal handles GET /deals/:id/deliverables.
func (h *DeliverablesHandler) ListByDeal(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	items, err := h.deliverables.ListByDeal(c.Request().Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to list deliverables")
	}
	return Success(c, http.StatusOK, "deliverables retrieved", items)
}

// UpdateStatus handles PATCH /deliverables/:id/status.
func (h *DeliverablesHandler) UpdateStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.StatusRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	update, err := h.deliverables.UpdateStatus(c.Request().Context(), id, req, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to update deliverable")
	}
	return Success(c, http.StatusOK, "deliverable updated", update)
}

// Upload handles POST /deliverables/:id/upload and POST /portal/deliverables/:id/upload.
func (h *DeliverablesHandler) Upload(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing file")
	}
	if fileHeader.Size > maxUploadBytes {
		return Error(c, http.StatusRequestEntityTooLarge, "file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	update, err := h.deliverables.Upload(c.Request().Context(), id, filepath.Base(fileHeader.Filename), contentType, file, middleware.ActorFromContext(c))
	if err != nil {
		return respondError(c, err, "failed to upload deliverable")
	}
	return Success(c, http.StatusOK, "deliverable uploaded", update)
}
