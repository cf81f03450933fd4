package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/service"
)

// UserAdminHandler exposes administrative account endpoints, including the
// link between sponsor portal accounts and the profiles they own.
type UserAdminHandler struct {
	users *service.UserService
}

// NewUserAdminHandler constructs a handler instance.
func NewUserAdminHandler(users *service.UserService) *UserAdminHandler {
	return &UserAdminHandler{users: users}
}

// List handles GET /admin/users?role=&search=.
func (h *UserAdminHandler) List(c echo.Context) error {
	var query dto.UserListQuery
	if err := c.Bind(&query); err != nil {
		return Error(c, http.StatusBadRequest, "invalid query")
	}

	records, err := h.users.ListUsers(c.Request().Context(), query)
	if err != nil {
		return respondError(c, err, "failed to list users")
	}
	return Success(c, http.StatusOK, "users retrieved", records)
}

// Create handles POST /admin/users.
func (h *UserAdminHandler) Create(c echo.Context) error {
	var req dto.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.CreateUser(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "failed to create user")
	}
	return Success(c, http.StatusCreated, "user created", user)
}

// Update handles PATCH /admin/users/:id.
func (h *UserAdminHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	var req dto.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateUser(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err, "failed to update user")
	}
	return Success(c, http.StatusOK, "user updated", user)
}

// Delete handles DELETE /admin/users/:id. Owned sponsor profiles are released.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return respondError(c, err, "")
	}
	if err := h.users.DeleteUser(c.Request().Context(), id, middleware.ActorFromContext(c)); err != nil {
		return respondError(c, err, "failed to delete user")
	}
	return Success(c, http.StatusOK, "user deleted", nil)
}
