package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tuushin/crmsync/backend-go/internal/analytics"
	"github.com/tuushin/crmsync/backend-go/internal/crm"
	"github.com/tuushin/crmsync/backend-go/internal/pipeline"
	"github.com/tuushin/crmsync/backend-go/internal/service"
)

func badRequest(c *gin.Context, message string, details interface{}) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "details": details})
}

// respondError maps service errors onto HTTP responses. fallback is the
// generic message used for unexpected failures.
func respondError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	var httpErr *crm.HTTPError

	switch {
	case errors.As(err, &validationErr):
		badRequest(c, "invalid request", gin.H{"field": validationErr.Field, "message": validationErr.Message})
	case errors.Is(err, analytics.ErrInvalidSalesKey):
		badRequest(c, "invalid salesKey", err.Error())
	case errors.Is(err, pipeline.ErrInvalidRequest):
		badRequest(c, "invalid request", err.Error())
	case errors.Is(err, crm.ErrMissingCredentials):
		log.Error().Err(err).Msg("crm integration is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": crm.ErrMissingCredentials.Error()})
	case errors.As(err, &httpErr):
		log.Error().Err(err).Int("upstream_status", httpErr.StatusCode).Msg(fallback)
		c.JSON(http.StatusBadGateway, gin.H{"error": fallback, "details": err.Error()})
	default:
		log.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
	}
}
