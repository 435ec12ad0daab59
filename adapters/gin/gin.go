// Package hxdashgin mounts a dashboard's live handler on Gin.
//
//	r := gin.New()
//	d := hxdash.New(m, hxdash.WithBasePath("/explain"))
//	d.Add(...)
//	hxdashgin.Mount(r, d)
//
// Gin does not allow a catch-all next to other routes in the same segment,
// so give the dashboard a base path when the engine serves anything else.
package hxdashgin

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/pthm/hxdash"
)

// Mount routes every method under the dashboard's base path to its handler.
func Mount(r *gin.Engine, d *hxdash.Dashboard) {
	MountGroup(r.Group(d.BasePath()), d)
}

// MountGroup routes every method of the group to the dashboard handler. The
// group's base path must match the dashboard's.
func MountGroup(g *gin.RouterGroup, d *hxdash.Dashboard) {
	g.Any("/*path", gin.WrapH(d.MountedHandler()))
}

// Render writes a templ component to the Gin response.
//
//	r.GET("/summary", func(c *gin.Context) {
//	    hxdashgin.Render(c, http.StatusOK, summary.Layout())
//	})
func Render(c *gin.Context, status int, component templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}
