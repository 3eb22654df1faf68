package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winwai/raffled/internal/economics"
	"github.com/winwai/raffled/internal/raffle/domain"
)

// APIError is a structured error with a machine-readable code.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrUnauthenticated  = &APIError{Status: http.StatusUnauthorized, Code: "unauthenticated", Message: "authentication required"}
	ErrPermissionDenied = &APIError{Status: http.StatusForbidden, Code: "permission-denied", Message: "administrator privilege required"}
	ErrNotFound         = &APIError{Status: http.StatusNotFound, Code: "not-found", Message: "resource not found"}
	ErrTooManyRequests  = &APIError{Status: http.StatusTooManyRequests, Code: "resource-exhausted", Message: "rate limit exceeded"}
)

func invalidArgument(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid-argument", Message: message}
}

func conflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: "conflict", Message: message}
}

// AbortWithError maps domain errors onto the structured response body.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	switch {
	case errors.Is(err, domain.ErrRaffleNotFound):
		apiErr = ErrNotFound
	case errors.Is(err, domain.ErrRaffleNotActive):
		apiErr = conflict("raffle is not active")
	case errors.Is(err, domain.ErrInvalidAdCount):
		apiErr = invalidArgument("ad_count must be a positive integer")
	case errors.Is(err, domain.ErrInvalidIterations):
		apiErr = invalidArgument("iterations out of range")
	case errors.Is(err, economics.ErrInvalidPrizeValue):
		apiErr = invalidArgument("prize_value must be a positive number")
	case errors.Is(err, economics.ErrInvalidECPM):
		apiErr = invalidArgument("ecpm must be a positive number")
	case errors.Is(err, economics.ErrInvalidFillRate):
		apiErr = invalidArgument("fill_rate must be in (0, 1]")
	default:
		apiErr = &APIError{Status: http.StatusInternalServerError, Code: "internal", Message: "internal error"}
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}
