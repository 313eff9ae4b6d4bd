// Package handlers implements the HTTP endpoints of the review API.
//
// Handlers stay transport-thin: decode input, call a service interface, and
// translate the result (or a service error) into JSON. All failures leave
// through fail so the envelope and 5xx logging are uniform.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/review-insights-backend/internal/http/middleware"
	"github.com/tbourn/review-insights-backend/internal/services"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID for log correlation
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to display
	Message string `json:"message" example:"submission not found"`
}

// fail aborts with the envelope. Server errors are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps service errors onto statuses. Anything unrecognized is a 500
// with fallbackCode; its detail goes to the log, not the client.
func failErr(c *gin.Context, err error, fallbackCode string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, verr.Error())
	case errors.Is(err, services.ErrSubmissionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "submission not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid username or password")
	case errors.Is(err, services.ErrInvalidToken):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Str("code", fallbackCode).Msg("service error")
		fail(c, http.StatusInternalServerError, fallbackCode, "internal server error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
