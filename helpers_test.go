package hxdash

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMXHeaders(t *testing.T) {
	r := httptest.NewRequest("POST", "/_cb/set", nil)
	if IsHTMX(r) {
		t.Error("IsHTMX() = true without header")
	}
	if got := TriggerID(r); got != "" {
		t.Errorf("TriggerID() = %q without header", got)
	}
	r.Header.Set("HX-Request", "true")
	r.Header.Set("HX-Trigger", "importances-depth-abc")
	if !IsHTMX(r) {
		t.Error("IsHTMX() = false")
	}
	if got := TriggerID(r); got != "importances-depth-abc" {
		t.Errorf("TriggerID() = %q, want importances-depth-abc", got)
	}
}

func TestRequireHTMX(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := requireHTMX(ok)

	tests := []struct {
		method string
		htmx   bool
		want   int
	}{
		{"GET", false, http.StatusNoContent},
		{"HEAD", false, http.StatusNoContent},
		{"POST", false, http.StatusForbidden},
		{"POST", true, http.StatusNoContent},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/", nil)
		if tt.htmx {
			r.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != tt.want {
			t.Errorf("%s htmx=%v: status = %d, want %d", tt.method, tt.htmx, rec.Code, tt.want)
		}
	}
}

func TestRenderWritesHTML(t *testing.T) {
	w := mustWidget(New(nil), WithName("w"))
	rec := httptest.NewRecorder()
	if err := Render(rec, httptest.NewRequest("GET", "/", nil), w.Layout()); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}
