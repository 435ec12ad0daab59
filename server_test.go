package hxdash

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

// openPage loads the dashboard page and returns its session cookie.
func openPage(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	res, resp := NewTestRequest("GET", "/").Execute(h)
	if !res.IsOK() {
		t.Fatalf("GET / = %d", res.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("GET / set no session cookie")
	return nil
}

func TestServePage(t *testing.T) {
	d, w := newTestDashboard(WithDashboardTitle("Fake <model>"))
	res, _ := NewTestRequest("GET", "/").Execute(d.Handler())

	if !res.IsOK() {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !res.HTMLContainsAll(
		`id="`+w.ID("depth")+`"`,
		`hx-post="/_cb/set"`,
		`hx-post="/_cb/init" hx-swap="none">Reset</button>`,
		`hx-get="/_permalink" hx-swap="innerHTML" hx-target="#permalink-out">Permalink</button>`,
		`id="toasts"`,
		"htmx.org",
		"Fake &lt;model&gt;",
	) {
		t.Errorf("page missing expected content:\n%s", res.HTML)
	}
	if d.sessions.len() != 1 {
		t.Errorf("sessions = %d, want 1", d.sessions.len())
	}
}

func TestServeSet(t *testing.T) {
	d, w := newTestDashboard()
	h := d.Handler()
	cookie := openPage(t, h)

	res, _ := NewTestRequest("POST", PathSet).
		WithCookies(cookie).
		WithTrigger(w.ID("index")).
		WithFormData("value", "b").
		Execute(h)
	if !res.IsOK() {
		t.Fatalf("status = %d: %s", res.StatusCode, res.HTML)
	}
	if !res.HTMLContainsAll(`id="`+w.out.ID+`"`, `hx-swap-oob="true"`, "depth=3 index=b") {
		t.Errorf("response = %s", res.HTML)
	}
	// The control that changed is not echoed back.
	if res.HTMLContains(`id="` + w.ID("index") + `"`) {
		t.Error("response re-renders the triggering control")
	}

	res, _ = NewTestRequest("POST", PathSet).
		WithCookies(cookie).
		WithTrigger(w.ID("depth")).
		WithFormData("value", "1").
		Execute(h)
	if !res.HTMLContains("depth=1 index=b") {
		t.Errorf("depth change response = %s", res.HTML)
	}
}

func TestServeSetNotice(t *testing.T) {
	d, w := newTestDashboard()
	h := d.Handler()
	cookie := openPage(t, h)

	res, _ := NewTestRequest("POST", PathSet).
		WithCookies(cookie).
		WithTrigger(w.ID("index")).
		WithFormData("value", "zzz").
		Execute(h)
	if !res.HasNotice(NoticeWarning, "Unknown index zzz") {
		t.Errorf("notices = %v", res.Notices)
	}
	if res.HTMLContains(`id="` + w.out.ID + `"`) {
		t.Error("output updated for an unknown index")
	}
}

func TestServeSetErrors(t *testing.T) {
	d, w := newTestDashboard()
	h := d.Handler()
	cookie := openPage(t, h)

	tests := []struct {
		name string
		req  *TestRequestBuilder
		want int
	}{
		{
			name: "not htmx",
			req:  NewTestRequest("POST", PathSet).WithCookies(cookie).WithTrigger(w.ID("index")).WithoutHeader("HX-Request"),
			want: http.StatusForbidden,
		},
		{
			name: "no session",
			req:  NewTestRequest("POST", PathSet).WithTrigger(w.ID("index")).WithFormData("value", "a"),
			want: http.StatusGone,
		},
		{
			name: "no trigger",
			req:  NewTestRequest("POST", PathSet).WithCookies(cookie).WithFormData("value", "a"),
			want: http.StatusBadRequest,
		},
		{
			name: "bad value",
			req:  NewTestRequest("POST", PathSet).WithCookies(cookie).WithTrigger(w.ID("depth")).WithFormData("value", "deep"),
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := tt.req.Execute(h)
			if !res.HasStatus(tt.want) {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}
}

func TestServeInitResets(t *testing.T) {
	d, w := newTestDashboard()
	h := d.Handler()
	cookie := openPage(t, h)

	NewTestRequest("POST", PathSet).WithCookies(cookie).WithTrigger(w.ID("index")).WithFormData("value", "b").Execute(h)

	res, _ := NewTestRequest("POST", PathInit).WithCookies(cookie).Execute(h)
	if !res.HTMLContainsAll(`id="hxdash-root"`, `hx-swap-oob="true"`) {
		t.Errorf("init response = %s", res.HTML)
	}

	res, _ = NewTestRequest("GET", PathState).WithCookies(cookie).Execute(h)
	var state map[string]any
	if err := json.Unmarshal([]byte(res.HTML), &state); err != nil {
		t.Fatal(err)
	}
	if state[w.ID("index")] != "" {
		t.Errorf("index after reset = %v, want empty", state[w.ID("index")])
	}
}

func TestServeSnapshotEndpoints(t *testing.T) {
	d, w := newTestDashboard()
	h := d.Handler()
	cookie := openPage(t, h)
	NewTestRequest("POST", PathSet).WithCookies(cookie).WithTrigger(w.ID("index")).WithFormData("value", "b").Execute(h)

	res, _ := NewTestRequest("GET", PathState).WithCookies(cookie).Execute(h)
	var state map[string]any
	if err := json.Unmarshal([]byte(res.HTML), &state); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	if state[w.ID("index")] != "b" || state[w.ID("depth")] != float64(3) {
		t.Errorf("state = %v", state)
	}

	res, _ = NewTestRequest("GET", PathExport).WithCookies(cookie).Execute(h)
	if !res.IsOK() || !res.HTMLContains("depth=3 index=b") {
		t.Errorf("export = %d %s", res.StatusCode, res.HTML)
	}
	if !strings.Contains(res.GetHeader("Content-Disposition"), "dashboard.html") {
		t.Errorf("Content-Disposition = %q", res.GetHeader("Content-Disposition"))
	}

	res, _ = NewTestRequest("GET", PathPermalink).WithCookies(cookie).Execute(h)
	link := res.HTML
	if !strings.HasPrefix(link, PathLink) {
		t.Fatalf("permalink = %q", link)
	}

	// The link works without the session.
	res, _ = NewTestRequest("GET", link).Execute(h)
	if !res.IsOK() || !res.HTMLContains("depth=3 index=b") {
		t.Errorf("GET %s = %d %s", link, res.StatusCode, res.HTML)
	}

	res, _ = NewTestRequest("GET", PathLink+"garbage").Execute(h)
	if !res.HasStatus(http.StatusBadRequest) {
		t.Errorf("bad permalink status = %d, want 400", res.StatusCode)
	}
}

func TestServePermalinkHTMX(t *testing.T) {
	d, _ := newTestDashboard(WithBasePath("/dash"))
	res, _ := NewTestRequest("GET", PathPermalink).WithHeader("HX-Request", "true").Execute(d.Handler())
	if !res.HTMLContains(`<a href="/dash/p/`) {
		t.Errorf("permalink fragment = %s", res.HTML)
	}
}

func TestFormValue(t *testing.T) {
	tests := []struct {
		kind   Kind
		values []string
		want   any
	}{
		{KindInt, []string{"4"}, 4},
		{KindBool, nil, false},
		{KindString, nil, nil},
		{KindAny, []string{"x", "y"}, "x"},
	}
	for _, tt := range tests {
		got, err := formValue(tt.kind, tt.values)
		if err != nil || got != tt.want {
			t.Errorf("formValue(%v, %v) = %v, %v, want %v", tt.kind, tt.values, got, err, tt.want)
		}
	}
	got, _ := formValue(KindStrings, nil)
	if s, ok := got.([]string); !ok || len(s) != 0 {
		t.Errorf("formValue(strings, nil) = %#v, want empty list", got)
	}
}
