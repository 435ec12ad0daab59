package hxdash

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pthm/hxdash/render"
)

const (
	sessionCookie = "hxdash_session"
	sessionTTL    = 2 * time.Hour
	htmxScript    = `<script src="https://unpkg.com/htmx.org@2.0.4" crossorigin="anonymous"></script>`
)

// liveSession pairs a channel session with the rendered view it drives.
// The view is a private copy of the layout kept in sync with channel
// values, so changed elements can be re-rendered on their own.
type liveSession struct {
	mu      sync.Mutex
	session *Session
	tree    *render.Node
	view    render.Index
	seen    time.Time
}

// apply writes a channel value into the view and returns the element it
// changed.
func (ls *liveSession) apply(ch Channel, v any) (*render.Node, bool) {
	n, ok := ls.view[ch.ID]
	if !ok {
		return nil, false
	}
	if !n.Apply(ch.Attr, v) {
		return nil, false
	}
	return n, true
}

type sessionStore struct {
	mu sync.Mutex
	m  map[string]*liveSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{m: make(map[string]*liveSession)}
}

func (s *sessionStore) get(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, ls := range s.m {
		if now.Sub(ls.seen) > sessionTTL {
			delete(s.m, k)
		}
	}
	sessionsActive.Set(float64(len(s.m)))
	ls, ok := s.m[id]
	if ok {
		ls.seen = now
	}
	return ls, ok
}

func (s *sessionStore) put(id string, ls *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls.seen = time.Now()
	s.m[id] = ls
	sessionsActive.Set(float64(len(s.m)))
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Handler returns the live-mode HTTP handler:
//
//	GET  /             the dashboard page, starting a new session
//	POST /_cb/init     restart the session from the default state
//	POST /_cb/set      a control changed; HX-Trigger names it, "value" holds it
//	GET  /_export      the session state rendered as a standalone document
//	GET  /_state       the session snapshot as JSON
//	GET  /_permalink   a permalink path for the session snapshot
//	GET  /p/{token}    a permalink rendered as a standalone document
//
// Mutating requests must carry HX-Request: true.
func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", d.servePage)
	mux.HandleFunc("POST "+PathInit, d.serveInit)
	mux.HandleFunc("POST "+PathSet, d.serveSet)
	mux.HandleFunc("GET "+PathExport, d.serveExport)
	mux.HandleFunc("GET "+PathState, d.serveState)
	mux.HandleFunc("GET "+PathPermalink, d.servePermalink)
	mux.HandleFunc("GET "+PathLink+"{token}", d.serveLink)
	return requireHTMX(mux)
}

// MountedHandler is Handler with the base path stripped, for routers that
// pass the full request path:
//
//	d := hxdash.New(m, hxdash.WithBasePath("/explain"))
//	http.Handle("/explain/", d.MountedHandler())
func (d *Dashboard) MountedHandler() http.Handler {
	if d.basePath == "" {
		return d.Handler()
	}
	return http.StripPrefix(d.basePath, d.Handler())
}

func (d *Dashboard) startSession(ctx context.Context) (*liveSession, error) {
	sess, _, err := d.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	tree := d.Layout()
	ls := &liveSession{session: sess, tree: tree, view: render.NewIndex(tree)}
	for k, v := range sess.State() {
		ls.apply(ParseKey(k), v)
	}
	return ls, nil
}

func (d *Dashboard) session(r *http.Request) (string, *liveSession, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", nil, false
	}
	ls, ok := d.sessions.get(c.Value)
	return c.Value, ls, ok
}

func (d *Dashboard) servePage(w http.ResponseWriter, r *http.Request) {
	ls, err := d.startSession(r.Context())
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	id := uuid.NewString()
	d.sessions.put(id, ls)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	var body strings.Builder
	body.WriteString(d.toolbar())
	if err := ls.tree.Render(r.Context(), &body); err != nil {
		d.OnError(w, r, err)
		return
	}
	if err := ToastContainer().Render(r.Context(), &body); err != nil {
		d.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, render.Document(d.title, body.String(), htmxScript))
}

// permalinkTarget is the toolbar element permalink links are written into.
const permalinkTarget = "permalink-out"

func (d *Dashboard) toolbar() string {
	return fmt.Sprintf(`<nav class="navbar mb-3"><h1 class="h3">%s</h1><div>`+
		`<button class="btn btn-outline-secondary btn-sm"%s>Reset</button> `+
		`<a class="btn btn-outline-secondary btn-sm" href="%s">Export</a> `+
		`<button class="btn btn-outline-secondary btn-sm"%s>Permalink</button>`+
		` <span id="%s" class="small text-muted"></span></div></nav>`,
		html.EscapeString(d.title),
		attrString(ResetAttrs(d.basePath)),
		html.EscapeString(d.basePath+PathExport),
		attrString(PermalinkAttrs(d.basePath, permalinkTarget)),
		permalinkTarget)
}

func (d *Dashboard) serveInit(w http.ResponseWriter, r *http.Request) {
	ls, err := d.startSession(r.Context())
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	id, _, ok := d.session(r)
	if !ok {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	}
	d.sessions.put(id, ls)

	root := ls.tree.Clone()
	if root.Attrs == nil {
		root.Attrs = map[string]any{}
	}
	root.Attrs["hx-swap-oob"] = oobAttr(SwapOuter)
	var sb strings.Builder
	if err := root.Render(r.Context(), &sb); err != nil {
		d.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, sb.String())
}

func (d *Dashboard) serveSet(w http.ResponseWriter, r *http.Request) {
	_, ls, ok := d.session(r)
	if !ok {
		http.Error(w, "Session expired, reload the page", http.StatusGone)
		return
	}
	id := TriggerID(r)
	if id == "" {
		http.Error(w, "Bad request: missing HX-Trigger", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ch := ValueOf(id)
	v, err := formValue(d.kindOf(ch), r.PostForm["value"])
	if err != nil {
		http.Error(w, "Bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	delta, err := ls.session.Set(r.Context(), ch, v)
	if err != nil {
		d.logger.Error("update did not settle", slog.String("channel", ch.String()), slog.Any("error", err))
		delta.Notices = append(delta.Notices, Notice{Level: NoticeError, Message: "The dashboard could not apply this change."})
	}

	out, err := ls.render(r.Context(), delta, ch)
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, out)
}

// render applies a delta to the view and returns the out-of-band swaps for
// every element that changed, except the control the user just moved.
func (ls *liveSession) render(ctx context.Context, delta Delta, source Channel) (string, error) {
	var (
		order   []string
		changed = make(map[string]*render.Node)
	)
	for _, ch := range delta.Changed {
		v := delta.Values[ch]
		n, ok := ls.apply(ch, v)
		if !ok || ch == source {
			continue
		}
		if _, seen := changed[n.ID]; !seen {
			order = append(order, n.ID)
		}
		changed[n.ID] = n
	}

	var sb strings.Builder
	for _, id := range order {
		c := changed[id].Clone()
		if c.Attrs == nil {
			c.Attrs = map[string]any{}
		}
		c.Attrs["hx-swap-oob"] = oobAttr(SwapOuter)
		if err := c.Render(ctx, &sb); err != nil {
			return "", err
		}
	}
	sb.WriteString(RenderNoticesOOB(delta.Notices))
	return sb.String(), nil
}

// formValue converts posted control values to a channel value.
func formValue(kind Kind, values []string) (any, error) {
	if kind == KindStrings {
		if values == nil {
			return []string{}, nil
		}
		return values, nil
	}
	if len(values) == 0 {
		if kind == KindBool {
			return false, nil
		}
		return nil, nil
	}
	if kind == KindAny {
		return values[0], nil
	}
	return Coerce(kind, values[0])
}

func (d *Dashboard) snapshot(r *http.Request) StateDict {
	if _, ls, ok := d.session(r); ok {
		return ls.session.Snapshot(d.StateTuples())
	}
	return d.DefaultState()
}

func (d *Dashboard) serveExport(w http.ResponseWriter, r *http.Request) {
	doc, err := d.ToHTML(r.Context(), d.snapshot(r))
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard.html"`)
	fmt.Fprint(w, doc)
}

func (d *Dashboard) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.snapshot(r)); err != nil {
		d.logger.Warn("writing state failed", slog.Any("error", err))
	}
}

func (d *Dashboard) servePermalink(w http.ResponseWriter, r *http.Request) {
	token, err := d.Permalink(d.snapshot(r))
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	link := d.basePath + PathLink + token
	if IsHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<a href="%s">%s</a>`, html.EscapeString(link), html.EscapeString(link))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, link)
}

func (d *Dashboard) serveLink(w http.ResponseWriter, r *http.Request) {
	state, err := d.ParsePermalink(r.PathValue("token"))
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	doc, err := d.ToHTML(r.Context(), d.DefaultState().Merge(state))
	if err != nil {
		d.OnError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, doc)
}
