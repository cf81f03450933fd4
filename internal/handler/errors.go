package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fashionos/sponsor-crm/internal/agent"
	"github.com/fashionos/sponsor-crm/internal/middleware"
	"github.com/fashionos/sponsor-crm/internal/repository"
	"github.com/fashionos/sponsor-crm/internal/service"
	"github.com/fashionos/sponsor-crm/internal/service/kanban"
	"github.com/fashionos/sponsor-crm/internal/service/pipeline"
)

var notFoundErrors = []error{
	repository.ErrSponsorNotFound,
	repository.ErrContactNotFound,
	repository.ErrDealNotFound,
	repository.ErrDeliverableNotFound,
	repository.ErrPackageNotFound,
	repository.ErrEventNotFound,
	repository.ErrUserNotFound,
	kanban.ErrDealNotFound,
}

var badRequestErrors = []error{
	kanban.ErrUnknownColumn,
	kanban.ErrNoDrag,
	pipeline.ErrInvalidStatus,
}

// respondError maps service errors onto the response envelope. Anything it does
// not recognise is logged and reported with the fallback message.
func respondError(c echo.Context, err error, fallback string) error {
	var validationErr service.ValidationError
	if errors.As(err, &validationErr) {
		return Error(c, http.StatusBadRequest, validationErr.Error())
	}
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		return Error(c, http.StatusBadGateway, agentErr.Error())
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return Error(c, http.StatusNotFound, target.Error())
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return Error(c, http.StatusBadRequest, err.Error())
		}
	}

	switch {
	case errors.Is(err, service.ErrForbidden):
		return Error(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidCredentials):
		return Error(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, repository.ErrEmailDuplicate), errors.Is(err, service.ErrEmailAlreadyExists):
		return Error(c, http.StatusConflict, "email already exists")
	case errors.Is(err, repository.ErrPackageDuplicate):
		return Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrTransitionNotAllowed), errors.Is(err, kanban.ErrInvalidDrop):
		return Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrTransitionAborted), errors.Is(err, repository.ErrStatusConflict):
		return Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUploadFailed):
		return Error(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return Error(c, http.StatusGatewayTimeout, "request timed out")
	}

	log.Printf("request_id=%s path=%s err=%v", middleware.RequestIDFromContext(c), c.Path(), err)
	return Error(c, http.StatusInternalServerError, fallback)
}

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, service.ValidationError{Message: "invalid " + name}
	}
	return id, nil
}
