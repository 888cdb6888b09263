package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor collapses an error into a status and a client-safe message.
// Validation messages are passed through; everything else is generic.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrAuthentication):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrReconciliation):
		return http.StatusConflict, "event could not be reconciled"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	code, text := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), msg, "kind", common.Kind(err), "error", err)
	} else {
		s.logger.Warn(c.Request.Context(), msg, "kind", common.Kind(err), "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": text})
}
