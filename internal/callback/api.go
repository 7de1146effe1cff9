package callback

import (
	"net/http"

	"github.com/dhawalhost/signgate/internal/authurl"
	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/internal/web3"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPHandler mounts the fixed callback and authorize-entry routes. The
// only contract of these routes is "read query parameters, never assume
// they are well-formed".
type HTTPHandler struct {
	dispatcher *Dispatcher
	builder    *authurl.Builder
	client     *backend.Client
	tokens     web3.TokenStore
	logger     *zap.Logger
}

// NewHTTPHandler creates the callback HTTP handler.
func NewHTTPHandler(dispatcher *Dispatcher, builder *authurl.Builder, client *backend.Client, tokens web3.TokenStore, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		dispatcher: dispatcher,
		builder:    builder,
		client:     client,
		tokens:     tokens,
		logger:     logger,
	}
}

// RegisterRoutes registers the callback routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/callback", h.handleCallback)
	r.POST("/callback/saml", h.handleSAMLCallback)
	r.GET("/login/oauth/authorize", h.handleAuthorize)
	r.GET("/login/saml/authorize/:owner/:application", h.handleSAMLAuthorize)
}

func (h *HTTPHandler) handleCallback(c *gin.Context) {
	ctx := c.Request.Context()
	navc := nav.FromGin(c)
	query := c.Request.URL.Query()

	var inv *Invocation
	if address := query.Get("web3AccessToken"); address != "" {
		token, err := h.tokens.Get(ctx, address)
		if err != nil {
			h.logger.Error("wallet token lookup failed", zap.Error(err))
		}
		inv = h.dispatcher.HandleWeb3(ctx, navc, query.Get("state"), token)
	} else {
		inv = h.dispatcher.HandleOAuth(ctx, navc, query)
	}
	h.renderFailure(c, inv)
}

func (h *HTTPHandler) handleSAMLCallback(c *gin.Context) {
	inv := h.dispatcher.HandleSAML(
		c.Request.Context(),
		nav.FromGin(c),
		c.PostForm("RelayState"),
		c.PostForm("SAMLResponse"),
	)
	h.renderFailure(c, inv)
}

// handleAuthorize is the entry route for an external relying party's
// redirect-code request. An application with a default provider binding
// navigates straight to that provider.
func (h *HTTPHandler) handleAuthorize(c *gin.Context) {
	ctx := c.Request.Context()
	params := backend.ParseOAuthParams(c.Request.URL.Query())

	app, err := h.client.GetAppLogin(ctx, params)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}

	fired, err := h.builder.StartDefault(ctx, nav.FromGin(c), app, params)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	if fired {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": app})
}

// handleSAMLAuthorize serves the SAML-initiated entry, identified by the
// application's owner/name path.
func (h *HTTPHandler) handleSAMLAuthorize(c *gin.Context) {
	id := c.Param("owner") + "/" + c.Param("application")
	app, err := h.client.GetApplication(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": app})
}

// renderFailure surfaces a terminal failure; success already navigated.
func (h *HTTPHandler) renderFailure(c *gin.Context, inv *Invocation) {
	if inv.Phase() != PhaseFailed {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "msg": inv.Message()})
}
