package nav

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ginContext adapts a gin request/response pair to the Context interface.
// Navigate and Replace both issue redirects; Replace uses 303 so the user
// agent drops the current entry method.
type ginContext struct {
	c *gin.Context
}

// FromGin returns a Context backed by the given gin request.
func FromGin(c *gin.Context) Context {
	return &ginContext{c: c}
}

func (g *ginContext) CurrentPath() string { return g.c.Request.URL.Path }

func (g *ginContext) Navigate(url string) {
	g.c.Redirect(http.StatusFound, url)
}

func (g *ginContext) Replace(url string) {
	g.c.Redirect(http.StatusSeeOther, url)
}

func (g *ginContext) WriteDocument(html string) {
	g.c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
