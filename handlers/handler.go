package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/journal"
	"restaurant-order-engine/media"
)

// Handler holds what the HTTP layer needs to reach the engine and its
// collaborators.
type Handler struct {
	Engine      *engine.Engine
	DB          *gorm.DB
	Journal     *journal.Recorder
	Images      *media.Store
	JWTSecret   []byte
	EventBuffer int
	Log         *zap.Logger
}

// fail writes err with the status its kind maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  apperror.KindOf(err).String(),
	})
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validationf("invalid %s %q", name, c.Param(name))
	}
	return uint(id), nil
}
