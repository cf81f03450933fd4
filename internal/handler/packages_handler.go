package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/service"
)

// PackagesAPI is the package catalogue used by PackagesHandler.
type PackagesAPI interface {
	List(ctx context.Context) ([]entity.SponsorshipPackage, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.SponsorshipPackage, error)
	Create(ctx context.Context, req dto.PackageRequest) (*entity.SponsorshipPackage, error)
	Update(ctx context.Context, id uuid.UUID, req dto.PackageRequest) (*entity.SponsorshipPackage, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Seed(ctx context.Context, r io.Reader) (service.SeedSummary, error)
}

// PackagesHandler exposes sponsorship packages.
type PackagesHandler struct {
	packages PackagesAPI
}

// NewPackagesHandler constructs a PackagesHandler.
func NewPackagesHandler(packages PackagesAPI) *PackagesHandler {
	return &PackagesHandler{packages: packages}
}

// List handles GET /packages.
func (h *PackagesHandler) List(c echo.Context) error {
	records, err := h.packages.List(c.Request().Context())
	if err != nil {
		return respondError(c, err, "failed to list packages")
	}
	return Success(c, http.StatusOK, "packages retrieved", records)
}

// Get handles GET /packages/:id.
func (h *PackagesHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	pkg, err := h.packages.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "failed to load package")
	}
	return Success(c, http.StatusOK, "package retrieved", pkg)
}

// Create handles POST /packages.
func (h *PackagesHandler) Create(c echo.Context) error {
	var req dto.PackageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	pkg, err := h.packages.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "failed to create package")
	}
	return Success(c, http.StatusCreated, "package created", pkg)
}

// Update handles PUT /packages/:id.
func (h *PackagesHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.PackageRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	pkg, err := h.packages.Update(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err, "failed to update package")
	}
	return Success(c, http.StatusOK, "package updated", pkg)
}

// Delete handles DELETE /packages/:id.
func (h *PackagesHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.packages.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err, "failed to delete package")
	}
	return Success(c, http.StatusOK, "package deleted", nil)
}

// Seed handles POST /packages/seed with a YAML file upload.
func (h *PackagesHandler) Seed(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing yaml file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	summary, err := h.packages.Seed(c.Request().Context(), file)
	if err != nil {
		return respondError(c, err, "failed to seed packages")
	}
	return Success(c, http.StatusOK, "packages seeded", summary)
}
