package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/dto"
	"github.com/fashionos/sponsor-crm/internal/service"
)

// AuthHandler exposes the sign-in endpoints shared by staff and the sponsor portal.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /auth/register. Only sponsor portal accounts can sign up.
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	session, err := h.authService.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err, "unable to register user")
	}
	return Success(c, http.StatusCreated, "registration successful", session)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	session, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err, "unable to authenticate")
	}
	return Success(c, http.StatusOK, "login successful", session)
}
