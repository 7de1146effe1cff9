package mfa

import (
	"net/http"
	"sync"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPHandler exposes TOTP enrollment. Setups live in process memory and
// are discarded once enabled.
type HTTPHandler struct {
	client *backend.Client
	logger *zap.Logger

	mu     sync.Mutex
	setups map[string]*Setup
}

// NewHTTPHandler creates the MFA HTTP handler.
func NewHTTPHandler(client *backend.Client, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{client: client, logger: logger, setups: make(map[string]*Setup)}
}

// RegisterRoutes registers the enrollment routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/mfa/setup/begin", h.handleBegin)
	r.GET("/api/mfa/setup/:id/qr", h.handleQR)
	r.POST("/api/mfa/setup/:id/enable", h.handleEnable)
}

func (h *HTTPHandler) lookup(c *gin.Context) *Setup {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.setups[c.Param("id")]
	if s == nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "unknown enrollment session, please restart"})
	}
	return s
}

func (h *HTTPHandler) handleBegin(c *gin.Context) {
	var req struct {
		Account string `json:"account"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Account == "" {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "account is required"})
		return
	}
	s, err := BeginSetup(c.Request.Context(), h.client, req.Account, h.logger)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.setups[id] = s
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"id": id, "provisioningUrl": s.ProvisioningURL()}})
}

func (h *HTTPHandler) handleQR(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}
	png, err := s.QRCodePNG()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *HTTPHandler) handleEnable(c *gin.Context) {
	s := h.lookup(c)
	if s == nil {
		return
	}
	var req struct {
		Passcode string `json:"passcode"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := s.Enable(c.Request.Context(), req.Passcode); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	h.mu.Lock()
	delete(h.setups, c.Param("id"))
	h.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
