package hxdash

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
)

// TestResult holds rendered output for assertions in tests.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header
	Notices    []Notice
}

// TestRender renders a component's live layout.
//
//	result, err := hxdash.TestRender(importances)
//	if !result.HTMLContains(`id="importances-depth-`) {
//	    t.Fatal("missing depth slider")
//	}
func TestRender(c Component) (*TestResult, error) {
	var buf bytes.Buffer
	if err := c.Layout().Render(context.Background(), &buf); err != nil {
		return nil, err
	}
	return &TestResult{HTML: buf.String(), StatusCode: http.StatusOK, Headers: make(http.Header)}, nil
}

// TestExport renders a component from a snapshot, as a batch export would.
func TestExport(c Component, state StateDict) (*TestResult, error) {
	out, err := c.ToHTML(context.Background(), state, false)
	if err != nil {
		return nil, err
	}
	return &TestResult{HTML: out, StatusCode: http.StatusOK, Headers: make(http.Header)}, nil
}

// TestCall invokes a handler function directly. With no triggered channels
// it is an initial call.
//
//	res := hxdash.TestCall(h, hxdash.Values{depth: 5}, depth)
//	if res.IsNoUpdate() { ... }
func TestCall(fn HandlerFunc, in Values, triggered ...Channel) Result {
	normalized := make(Values, len(in))
	for ch, v := range in {
		normalized[normalize(ch)] = v
	}
	return fn(NewCallbackContext(context.Background(), triggered...), normalized)
}

// TestSession wires a dashboard and returns an initialized session.
func TestSession(d *Dashboard) (*Session, Delta, error) {
	return d.NewSession(context.Background())
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// HasNotice checks if a notice with the given level and message was sent.
func (r *TestResult) HasNotice(level, message string) bool {
	for _, n := range r.Notices {
		if n.Level == level && n.Message == message {
			return true
		}
	}
	return false
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

var noticePattern = regexp.MustCompile(`<div class="toast show text-bg-([a-z]+)"[^>]*><div class="toast-body">([^<]*)</div></div>`)

// parseNoticesFromHTML extracts notices from OOB swap HTML.
func parseNoticesFromHTML(html string) []Notice {
	var out []Notice
	for _, m := range noticePattern.FindAllStringSubmatch(html, -1) {
		level := m[1]
		if level == "danger" {
			level = NoticeError
		}
		out = append(out, Notice{Level: level, Message: unescape(m[2])})
	}
	return out
}

func unescape(s string) string {
	r := strings.NewReplacer("&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#39;", "'", "&amp;", "&")
	return r.Replace(s)
}

// TestRequestBuilder builds requests against a dashboard handler.
//
//	result, _ := hxdash.NewTestRequest("POST", "/_cb/set").
//	    WithTrigger("importances-depth-abc").
//	    WithFormData("value", "5").
//	    WithCookies(page.Cookies()...).
//	    Execute(d.Handler())
type TestRequestBuilder struct {
	method  string
	url     string
	form    url.Values
	headers http.Header
	cookies []*http.Cookie
	ctx     context.Context
}

// NewTestRequest creates a new test request builder. Non-GET requests get
// HX-Request: true.
func NewTestRequest(method, url string) *TestRequestBuilder {
	b := &TestRequestBuilder{
		method:  method,
		url:     url,
		form:    make(map[string][]string),
		headers: make(http.Header),
		ctx:     context.Background(),
	}
	if method != http.MethodGet {
		b.headers.Set("HX-Request", "true")
	}
	return b
}

// WithFormData adds a form value. Repeated keys accumulate.
func (b *TestRequestBuilder) WithFormData(key, value string) *TestRequestBuilder {
	b.form.Add(key, value)
	return b
}

// WithTrigger sets the HX-Trigger header naming the control that changed.
func (b *TestRequestBuilder) WithTrigger(id string) *TestRequestBuilder {
	b.headers.Set("HX-Trigger", id)
	return b
}

// WithHeader sets a header.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers.Set(key, value)
	return b
}

// WithoutHeader removes a header.
func (b *TestRequestBuilder) WithoutHeader(key string) *TestRequestBuilder {
	b.headers.Del(key)
	return b
}

// WithCookies adds cookies, typically the session cookie from a page load.
func (b *TestRequestBuilder) WithCookies(cs ...*http.Cookie) *TestRequestBuilder {
	b.cookies = append(b.cookies, cs...)
	return b
}

// WithContext sets the request context.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// Execute runs the request against h and records the response.
func (b *TestRequestBuilder) Execute(h http.Handler) (*TestResult, *http.Response) {
	var body *strings.Reader
	if len(b.form) > 0 {
		body = strings.NewReader(b.form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(b.method, b.url, body).WithContext(b.ctx)
	if len(b.form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, vs := range b.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	return &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
		Notices:    parseNoticesFromHTML(rec.Body.String()),
	}, resp
}
