package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
	"github.com/fleetgrid/fleet-backend-go/pkg/response"
)

// handleServiceError maps the typed domain errors to HTTP status codes.
// Everything else is a 500; the services never speak HTTP themselves.
func handleServiceError(c *gin.Context, err error) {
	var validationErr *apperrors.ValidationError
	var notFoundErr *apperrors.NotFoundError
	var conflictErr *apperrors.ConflictError

	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, validationErr.Message)
	case errors.As(err, &notFoundErr):
		response.NotFound(c, notFoundErr.Message)
	case errors.As(err, &conflictErr):
		response.Conflict(c, conflictErr.Message)
	default:
		response.InternalError(c, err.Error())
	}
}
