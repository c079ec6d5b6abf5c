package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
)

// renderError maps ledger errors to HTTP responses. None of these are
// retried server-side; they are all actionable by the caller.
func (s *Server) renderError(c *gin.Context, err error) {
	var (
		validationErr    *ledger.ValidationError
		notFoundErr      *ledger.NotFoundError
		periodClosedErr  *ledger.PeriodClosedError
		alreadyClosedErr *ledger.AlreadyClosedError
		notClosedErr     *ledger.NotClosedError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": notFoundErr.Error()})
	case errors.As(err, &periodClosedErr):
		c.JSON(http.StatusConflict, gin.H{"error": "PERIOD_CLOSED", "message": periodClosedErr.Error()})
	case errors.As(err, &alreadyClosedErr):
		c.JSON(http.StatusConflict, gin.H{"error": "PERIOD_ALREADY_CLOSED", "message": alreadyClosedErr.Error()})
	case errors.As(err, &notClosedErr):
		c.JSON(http.StatusConflict, gin.H{"error": "PERIOD_NOT_CLOSED", "message": notClosedErr.Error()})
	default:
		s.log.Error().Err(err).
			Str("trace_id", logging.TraceIDFromContext(c.Request.Context())).
			Str("path", c.Request.URL.Path).
			Msg("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": "internal server error"})
	}
}
