package service

import (
	"errors"

	"github.com/fleetgrid/fleet-backend-go/internal/apperrors"
)

// isDomainError reports whether err is one of the typed domain kinds,
// which pass through service boundaries unwrapped
func isDomainError(err error) bool {
	var ve *apperrors.ValidationError
	var nf *apperrors.NotFoundError
	var cf *apperrors.ConflictError
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &cf)
}
