// Package hxdashecho mounts a dashboard's live handler on Echo.
//
//	e := echo.New()
//	d := hxdash.New(m, hxdash.WithBasePath("/explain"))
//	d.Add(...)
//	hxdashecho.Mount(e, d)
//
// Or on a group, so the dashboard shares the group's middleware. The group
// prefix must match the dashboard's base path:
//
//	g := e.Group("/explain", authMiddleware)
//	hxdashecho.MountGroup(g, d)
package hxdashecho

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxdash"
)

// Mount routes every method under the dashboard's base path to its handler.
func Mount(e *echo.Echo, d *hxdash.Dashboard) {
	h := echo.WrapHandler(d.MountedHandler())
	e.Any(d.BasePath()+"/*", h)
	if d.BasePath() != "" {
		e.Any(d.BasePath(), redirectSlash)
	}
}

// MountGroup routes every method of the group to the dashboard handler.
func MountGroup(g *echo.Group, d *hxdash.Dashboard) {
	g.Any("/*", echo.WrapHandler(d.MountedHandler()))
}

func redirectSlash(c echo.Context) error {
	return c.Redirect(http.StatusPermanentRedirect, c.Request().URL.Path+"/")
}

// Render writes a templ component, such as a component layout, to the Echo
// response.
//
//	func handler(c echo.Context) error {
//	    return hxdashecho.Render(c, summary.Layout())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
