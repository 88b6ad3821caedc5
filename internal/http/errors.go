package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
	"timer-tracker/internal/service"
)

// respondError maps domain errors onto status codes. Anything unrecognised is logged and
// reported with the generic fallback message.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, protocol.Error{Error: verr.Message, Reason: verr.Reason})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, protocol.Error{Error: err.Error()})
	case domain.IsAuthentication(err):
		c.JSON(http.StatusUnauthorized, protocol.Error{Error: "Invalid username or password"})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, protocol.Error{Error: "Username already exists"})
	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, protocol.Error{Error: err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, protocol.Error{Error: "Timer not found"})
	case errors.Is(err, service.ErrExportDisabled):
		c.JSON(http.StatusServiceUnavailable, protocol.Error{Error: "Timer export is not configured"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, protocol.Error{Error: fallback})
	}
}
