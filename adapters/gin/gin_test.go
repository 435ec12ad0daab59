package hxdashgin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pthm/hxdash"
	"github.com/pthm/hxdash/components"
	"github.com/pthm/hxdash/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newDashboard(t *testing.T, opts ...hxdash.DashboardOption) (*hxdash.Dashboard, *components.IndexSelector) {
	t.Helper()
	d := hxdash.New(model.DemoRegressor(1), opts...)
	sel, err := components.NewIndexSelector(d, components.IndexSelectorConfig{})
	require.NoError(t, err)
	d.Add(sel)
	return d, sel
}

func serve(r http.Handler, method, path string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMount(t *testing.T) {
	r := gin.New()
	d, sel := newDashboard(t, hxdash.WithBasePath("/explain"))
	Mount(r, d)

	rec := serve(r, http.MethodGet, "/explain/", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="`+sel.ID("index")+`"`)
	assert.Contains(t, rec.Body.String(), `hx-post="/explain/_cb/set"`)
}

func TestMountRoot(t *testing.T) {
	r := gin.New()
	d, _ := newDashboard(t)
	Mount(r, d)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", false).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, hxdash.PathSet, false).Code)
	assert.Equal(t, http.StatusGone, serve(r, http.MethodPost, hxdash.PathSet, true).Code)
}

func TestMountGroupSharesMiddleware(t *testing.T) {
	r := gin.New()
	d, _ := newDashboard(t, hxdash.WithBasePath("/app"))
	var seen int
	g := r.Group("/app", func(c *gin.Context) {
		seen++
		c.Next()
	})
	MountGroup(g, d)

	rec := serve(r, http.MethodGet, "/app/_state", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 1, seen)
}

func TestRender(t *testing.T) {
	_, sel := newDashboard(t)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Render(c, http.StatusOK, sel.Layout())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sel.ID("index"))
}
