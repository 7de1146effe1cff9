package forgot

import (
	"errors"
	"net/http"
	"sync"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/dhawalhost/signgate/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HTTPHandler exposes the wizard over JSON. Wizards live in process
// memory only; a lost identifier means starting over, cool-down included.
type HTTPHandler struct {
	client  *backend.Client
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	wizards map[string]*Wizard
}

// NewHTTPHandler creates the wizard HTTP handler. metrics may be nil.
func NewHTTPHandler(client *backend.Client, metrics *observability.Metrics, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		client:  client,
		metrics: metrics,
		logger:  logger,
		wizards: make(map[string]*Wizard),
	}
}

// RegisterRoutes registers the wizard routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/forgot/start", h.handleStart)
	r.POST("/api/forgot/:id/identify", h.handleIdentify)
	r.POST("/api/forgot/:id/send-code", h.handleSendCode)
	r.POST("/api/forgot/:id/verify", h.handleVerify)
	r.POST("/api/forgot/:id/reset", h.handleReset)
}

func (h *HTTPHandler) lookup(c *gin.Context) *Wizard {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.wizards[c.Param("id")]
	if w == nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": "unknown recovery session, please restart"})
	}
	return w
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
		h.renderError(c, err)
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.wizards[id] = NewWizard(h.client, app, h.logger)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"id": id, "step": StepIdentify.String()}})
}

func (h *HTTPHandler) handleIdentify(c *gin.Context) {
	w := h.lookup(c)
	if w == nil {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := w.Identify(c.Request.Context(), req.Username); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"step": w.Step().String(), "contact": w.Contact()}})
}

func (h *HTTPHandler) handleSendCode(c *gin.Context) {
	w := h.lookup(c)
	if w == nil {
		return
	}
	var req struct {
		Dest string `json:"dest"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := w.SendCode(c.Request.Context(), req.Dest); err != nil {
		h.renderError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecoveryCodesSent.WithLabelValues(req.Dest).Inc()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) handleVerify(c *gin.Context) {
	w := h.lookup(c)
	if w == nil {
		return
	}
	var req struct {
		Dest string `json:"dest"`
		Code string `json:"code"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := w.Verify(c.Request.Context(), req.Dest, req.Code); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"step": w.Step().String()}})
}

func (h *HTTPHandler) handleReset(c *gin.Context) {
	w := h.lookup(c)
	if w == nil {
		return
	}
	var req struct {
		Password string `json:"password"`
		Confirm  string `json:"confirm"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := w.Reset(c.Request.Context(), nav.FromGin(c), req.Password, req.Confirm); err != nil {
		h.renderError(c, err)
		return
	}
	h.mu.Lock()
	delete(h.wizards, c.Param("id"))
	h.mu.Unlock()
}

// renderError keeps provider messages verbatim and gives local failures
// the same envelope.
func (h *HTTPHandler) renderError(c *gin.Context, err error) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		c.JSON(http.StatusOK, gin.H{
			"status": "error",
			"msg":    ce.Error(),
			"data2":  gin.H{"remainingSeconds": int(ce.Remaining.Seconds() + 0.5)},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
}
