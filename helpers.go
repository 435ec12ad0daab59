package hxdash

import (
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component to the HTTP response.
//
// render.Node implements templ.Component, so layouts can be written
// directly:
//
//	hxdash.Render(w, r, component.Layout())
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// TriggerID returns the id of the element that triggered the request. For
// control posts this is the channel id whose value changed.
func TriggerID(r *http.Request) string {
	return r.Header.Get("HX-Trigger")
}

// requireHTMX rejects mutating requests that HTMX did not send. Browsers
// cannot add the header cross-origin without a CORS preflight, which makes
// it a CSRF guard.
func requireHTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !IsHTMX(r) {
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
