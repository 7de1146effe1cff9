package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler exposes session-scoped account operations.
type HTTPHandler struct {
	establisher *Establisher
	logger      *zap.Logger
}

// NewHTTPHandler creates the session HTTP handler.
func NewHTTPHandler(establisher *Establisher, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{establisher: establisher, logger: logger}
}

// RegisterRoutes registers the session routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/unlink", h.handleUnlink)
}

func (h *HTTPHandler) handleUnlink(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Provider == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "provider is required"})
		return
	}
	if err := h.establisher.Unlink(c.Request.Context(), req.Provider); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
