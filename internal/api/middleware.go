package api

import (
	"errors"
	"net/http"
	"strings"

	"campus-events/internal/models"
	"campus-events/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Headers set by the authenticating gateway in front of this service
const (
	headerActorID          = "X-Actor-Id"
	headerActorRole        = "X-Actor-Role"
	headerActorEmail       = "X-Actor-Email"
	headerActorAffiliation = "X-Actor-Affiliation"

	actorKey = "actor"
)

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AddAllowHeaders(headerActorID, headerActorRole, headerActorEmail, headerActorAffiliation)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + headerActorID})
			return
		}

		role := models.Role(strings.ToLower(c.GetHeader(headerActorRole)))
		if role != models.RoleParticipant && role != models.RoleOrganizer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown actor role"})
			return
		}

		c.Set(actorKey, models.Actor{
			ID:             id,
			Role:           role,
			Email:          strings.TrimSpace(c.GetHeader(headerActorEmail)),
			IIITAffiliated: strings.EqualFold(c.GetHeader(headerActorAffiliation), "iiit"),
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	a, _ := c.Get(actorKey)
	actor, _ := a.(models.Actor)
	return actor
}

var kindStatus = map[models.ErrorKind]int{
	models.KindNotFound:          http.StatusNotFound,
	models.KindForbidden:         http.StatusForbidden,
	models.KindValidationFailed:  http.StatusBadRequest,
	models.KindAlreadyExists:     http.StatusConflict,
	models.KindNotOpen:           http.StatusConflict,
	models.KindCapacityReached:   http.StatusConflict,
	models.KindOutOfStock:        http.StatusConflict,
	models.KindLockedField:       http.StatusConflict,
	models.KindInvalidTransition: http.StatusConflict,
	models.KindDeadlinePassed:    http.StatusUnprocessableEntity,
	models.KindNotEligible:       http.StatusUnprocessableEntity,
	models.KindInvalidTicket:     http.StatusUnprocessableEntity,
}

// respondError writes err as JSON. Business failures keep their kind and
// reason; anything else is logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		status, ok := kindStatus[domainErr.Kind]
		if !ok {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":   domainErr.Kind,
			"details": domainErr.Reason,
		})
		return
	}

	util.GetLogger().Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal error",
	})
}
