package server

import (
	"errors"
	"net/http"

	"github.com/fuelgrid/tanksync/internal/dip"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Sentinel errors mapped onto HTTP statuses by AbortWithError.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func invalidRequestError(message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: message,
	}
}

// AbortWithError terminates the request with the JSON error contract.
// Unrecognized errors become an opaque 500 so internals never leak.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, ErrUnauthorized):
		apiErr = &apiError{
			Status:  http.StatusUnauthorized,
			Code:    "unauthorized",
			Message: "invalid or missing bearer token",
		}
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		apiErr = &apiError{
			Status:  http.StatusNotFound,
			Code:    "not_found",
			Message: "resource not found",
		}
	case errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, domain.ErrBatchTooLarge),
		errors.Is(err, dip.ErrUnknownTank),
		errors.Is(err, dip.ErrOutOfBounds):
		apiErr = invalidRequestError(err.Error())
	default:
		apiErr = &apiError{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "unexpected error",
		}
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}
