package consent

import (
	"net/http"
	"strings"
	"sync"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPHandler exposes the review/decide round trip over JSON. Flows live
// in process memory keyed by an opaque id; a decided flow stays in the
// registry so a repeated decision is rejected instead of re-run.
type HTTPHandler struct {
	client *backend.Client
	logger *zap.Logger

	mu    sync.Mutex
	flows map[string]*Flow
}

// NewHTTPHandler creates the consent HTTP handler.
func NewHTTPHandler(client *backend.Client, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{client: client, logger: logger, flows: make(map[string]*Flow)}
}

// RegisterRoutes registers the consent routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/consent/start", h.handleStart)
	r.POST("/api/consent/:id/grant", h.handleGrant)
	r.POST("/api/consent/:id/deny", h.handleDeny)
	r.POST("/api/revoke-consent", h.handleRevoke)
}

func (h *HTTPHandler) lookup(c *gin.Context) *Flow {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.flows[c.Param("id")]
	if f == nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "unknown consent session, please restart"})
	}
	return f
}

func (h *HTTPHandler) handleStart(c *gin.Context) {
	var req struct {
		Application string `json:"application"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Application == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "application is required"})
		return
	}
	app, err := h.client.GetApplication(c.Request.Context(), "admin/"+req.Application)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}

	params := backend.ParseOAuthParams(c.Request.URL.Query())
	scopes := strings.Fields(params.Scope)
	f := NewFlow(h.client, app, params, scopes, h.logger)

	id := uuid.NewString()
	h.mu.Lock()
	h.flows[id] = f
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"id": id, "scopes": scopes}})
}

func (h *HTTPHandler) handleGrant(c *gin.Context) {
	f := h.lookup(c)
	if f == nil {
		return
	}
	if err := f.Grant(c.Request.Context(), nav.FromGin(c)); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
	}
}

func (h *HTTPHandler) handleDeny(c *gin.Context) {
	f := h.lookup(c)
	if f == nil {
		return
	}
	if err := f.Deny(nav.FromGin(c)); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
	}
}

func (h *HTTPHandler) handleRevoke(c *gin.Context) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "clientId is required"})
		return
	}
	if err := h.client.RevokeConsent(c.Request.Context(), req.ClientID); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
