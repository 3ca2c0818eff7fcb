package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartsdlc/internal/apperr"
)

func failure(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

// writeError is the single place errors become HTTP responses. Provider and
// unexpected error detail is logged, never sent to the caller.
func (h *Handler) writeError(c *gin.Context, err error, providerMsg string) {
	var (
		validation *apperr.ValidationError
		tooLarge   *apperr.PayloadTooLargeError
		provider   *apperr.ProviderError
		maxBytes   *http.MaxBytesError
	)
	logger := h.logger.With("correlation_id", correlationID(c), "path", c.FullPath())
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, failure(validation.Reason))
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, failure(fmt.Sprintf("File too large (max %d bytes)", tooLarge.Limit)))
	case errors.As(err, &maxBytes):
		c.JSON(http.StatusRequestEntityTooLarge, failure(fmt.Sprintf("File too large (max %d bytes)", h.ingestor.MaxBytes())))
	case errors.Is(err, apperr.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, failure(apperr.ErrBusy.Error()))
	case errors.As(err, &provider):
		logger.Error("provider failure", "op", provider.Op, "error", provider.Err)
		c.JSON(http.StatusInternalServerError, failure(providerMsg))
	default:
		logger.Error("unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, failure(apperr.ErrUnhandled.Error()))
	}
}
