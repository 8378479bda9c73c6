package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/skip/internal/service"
)

// writeError maps a service error onto a JSON response. Unknown errors are
// reported as internal failures without leaking their details.
func writeError(c *gin.Context, err error) {
	var nf *service.NotFoundError
	var pe *service.PreconditionError
	var ve *service.ValidationError
	var se *service.PersistenceError

	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &pe):
		c.JSON(http.StatusConflict, gin.H{"error": pe.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &se):
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Persistence failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
